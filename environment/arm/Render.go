package arm

import (
	"fmt"
	"path/filepath"

	"github.com/fogleman/gg"
)

// Rendering constants
const (
	ViewportW float64 = 600
	ViewportH float64 = 600

	// Scale is the number of pixels per metre
	Scale float64 = 120
)

// worldToPixelCoord converts a position in the arm's workspace to
// pixel coordinates, placing the arm base at the viewport centre
func worldToPixelCoord(coords [2]float64) [2]float64 {
	x := ViewportW/2 + coords[0]*Scale
	y := ViewportH/2 - coords[1]*Scale
	return [2]float64{x, y}
}

// Render draws the current arm configuration and the task target to a
// PNG file named frame_<j>.png in dir
func (a *Arm) Render(dir string, j int) error {
	dc := gg.NewContext(int(ViewportW), int(ViewportH))
	dc.SetRGB(0.08, 0.08, 0.08)
	dc.Clear()

	base := worldToPixelCoord([2]float64{0, 0})
	ex, ey := ElbowPosition(LinkLength1, a.qpos[0])
	elbow := worldToPixelCoord([2]float64{ex, ey})
	tip := worldToPixelCoord([2]float64{a.EEPos()[0], a.EEPos()[1]})

	// Target
	target := worldToPixelCoord([2]float64{
		a.Target().AtVec(0),
		a.Target().AtVec(1),
	})
	dc.SetRGB(0.95, 0.3, 0.3)
	dc.DrawCircle(target[0], target[1], 8)
	dc.Fill()

	// Links
	dc.SetRGB(0.25, 0.55, 1.0)
	dc.SetLineWidth(6)
	dc.DrawLine(base[0], base[1], elbow[0], elbow[1])
	dc.DrawLine(elbow[0], elbow[1], tip[0], tip[1])
	dc.Stroke()

	// Joints and end effector
	dc.SetRGB(0.7, 0.7, 0.7)
	dc.DrawCircle(base[0], base[1], 7)
	dc.DrawCircle(elbow[0], elbow[1], 5)
	dc.Fill()

	dc.SetRGB(1.0, 0.86, 0.25)
	dc.DrawCircle(tip[0], tip[1], 6)
	dc.Fill()

	return dc.SavePNG(filepath.Join(dir, fmt.Sprintf("frame_%06d.png", j)))
}
