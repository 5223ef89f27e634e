package types

import "fmt"

// Region is a rectangular area of the sensor, in pixels.
type Region struct {
	X      int `json:"x" toml:"x"`
	Y      int `json:"y" toml:"y"`
	Width  int `json:"width" toml:"width"`
	Height int `json:"height" toml:"height"`
}

func (r Region) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y)
}

// Empty reports whether the region has no area.
func (r Region) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Within reports whether r lies inside a width x height sensor.
func (r Region) Within(width, height int) bool {
	return r.X >= 0 && r.Y >= 0 && !r.Empty() &&
		r.X+r.Width <= width && r.Y+r.Height <= height
}
