package transform

import "gonum.org/v1/gonum/spatial/r3"

// DefaultSceneScale maps kilometres to scene units of one Earth radius.
const DefaultSceneScale = 1 / 6378.137

// ToScene maps an inertial position into a Y-up renderer frame: uniform
// scale, inertial Z becomes scene Y, inertial Y becomes scene -Z.
func ToScene(pos r3.Vec, scale float64) r3.Vec {
	return r3.Vec{
		X: pos.X * scale,
		Y: pos.Z * scale,
		Z: -pos.Y * scale,
	}
}
