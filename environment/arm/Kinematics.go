package arm

import "math"

// EEPosition computes the end-effector position of a planar two-link
// arm with link lengths l1 and l2 at joint angles q1 and q2. Angles
// are measured from the positive x-axis (first joint) and relative to
// the first link (second joint).
func EEPosition(l1, l2, q1, q2 float64) (x, y float64) {
	x = l1*math.Cos(q1) + l2*math.Cos(q1+q2)
	y = l1*math.Sin(q1) + l2*math.Sin(q1+q2)
	return
}

// ElbowPosition computes the position of the joint between the two
// links
func ElbowPosition(l1, q1 float64) (x, y float64) {
	return l1 * math.Cos(q1), l1 * math.Sin(q1)
}

// Jacobian computes the 2x2 position Jacobian of the end effector with
// respect to the joint angles, returned in row-major order
// [dx/dq1, dx/dq2, dy/dq1, dy/dq2]. The end-effector velocity is
// J(q)·q̇, mirroring how the full simulator reports hand velocity.
func Jacobian(l1, l2, q1, q2 float64) [4]float64 {
	s1, c1 := math.Sincos(q1)
	s12, c12 := math.Sincos(q1 + q2)

	return [4]float64{
		-l1*s1 - l2*s12, -l2 * s12,
		l1*c1 + l2*c12, l2 * c12,
	}
}

// EEVelocity computes the end-effector velocity from the joint angles
// and joint velocities using the position Jacobian
func EEVelocity(l1, l2, q1, q2, qd1, qd2 float64) (vx, vy float64) {
	j := Jacobian(l1, l2, q1, q2)
	vx = j[0]*qd1 + j[1]*qd2
	vy = j[2]*qd1 + j[3]*qd2
	return
}
