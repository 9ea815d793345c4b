// Package matutils implements utility functions for working with
// mat.Matrix structs
package matutils

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Format formats a matrix for printing
func Format(X mat.Matrix) string {
	fa := mat.Formatted(X, mat.Prefix(""), mat.Squeeze())
	return fmt.Sprintf("%v", fa)
}

// VecClip performs an element-wise clipping of a vector's values such
// that each value is at least min and at most max
func VecClip(a *mat.VecDense, min, max float64) {
	for i := 0; i < a.Len(); i++ {
		value := a.AtVec(i)

		if value < min {
			a.SetVec(i, min)
		} else if value > max {
			a.SetVec(i, max)
		}
	}
}

// VecSub returns the element-wise difference a - b as a new vector
func VecSub(a, b mat.Vector) *mat.VecDense {
	if a.Len() != b.Len() {
		panic(fmt.Sprintf("vecSub: length mismatch \n\thave(%v) "+
			"\n\twant(%v)", b.Len(), a.Len()))
	}
	diff := mat.NewVecDense(a.Len(), nil)
	diff.SubVec(a, b)
	return diff
}
