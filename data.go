// Package main - data.go
//
// This file defines core data structures used throughout the bot application.
// It provides geometric primitives and the value types exchanged between the
// perception layer, the control loop and the status consumers.
//
// Major Data Categories:
//
// 1. Geometric Types:
//    - Point: 2D screen coordinates with distance calculation
//    - Region: Screen-space rectangle (window rect or a sub-region of it)
//
// 2. Perception Results:
//    - MatchResult: Outcome of one template match (found, click point, score)
//    - Arrow: Direction reported by the minigame arrow detector
//
// 3. Minigame State:
//    - Lane: Cursor position in the minigame, always in {-1, 0, 1}
//
// 4. Visualization:
//    - DetectionBox: One positive detection, published for overlays and debug frames
//
// Thread Safety:
// All types in this file are value types and are copied when shared.
// Region values are computed once per tick and never mutated afterwards.
package main

import "image"

// Point represents a 2D coordinate in screen space.
//
// Used for:
//   - Click targets returned by template matching
//   - The remembered continue-button position
//   - Window center for casting
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Add offsets the point by another point (region origin + local match location)
func (p Point) Add(other Point) Point {
	return Point{X: p.X + other.X, Y: p.Y + other.Y}
}

// Region represents a screen-space rectangle.
//
// A Region is derived from a window's bounding rectangle, optionally narrowed
// to a relative sub-region (arrow zone, fish-name band).
type Region struct {
	Left   int `json:"x"`
	Top    int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// RegionFromRect builds a Region from two corners, clamping negative sizes to 0.
func RegionFromRect(x1, y1, x2, y2 int) Region {
	return Region{
		Left:   x1,
		Top:    y1,
		Width:  max(x2-x1, 0),
		Height: max(y2-y1, 0),
	}
}

// Empty reports whether the region has no area
func (r Region) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Origin returns the top-left corner
func (r Region) Origin() Point {
	return Point{X: r.Left, Y: r.Top}
}

// Center returns the center point of the region
func (r Region) Center() Point {
	return Point{
		X: r.Left + r.Width/2,
		Y: r.Top + r.Height/2,
	}
}

// Contains checks if a point is within the region
func (r Region) Contains(p Point) bool {
	return p.X >= r.Left && p.X < r.Left+r.Width &&
		p.Y >= r.Top && p.Y < r.Top+r.Height
}

// Sub offsets a region expressed relative to r into screen space.
func (r Region) Sub(rel Region) Region {
	return Region{
		Left:   r.Left + rel.Left,
		Top:    r.Top + rel.Top,
		Width:  rel.Width,
		Height: rel.Height,
	}
}

// RelativeCrop returns the local rectangle covering the given fractions of r.
//
// Parameters:
//   - fx, fy: Fractional start (0.0-1.0) relative to the region's width and height
//   - fw, fh: Fractional size (0.0-1.0)
//
// Returns:
//   - Region: Rectangle relative to r's origin; values are truncated, not rounded
func (r Region) RelativeCrop(fx, fy, fw, fh float64) Region {
	return Region{
		Left:   int(float64(r.Width) * fx),
		Top:    int(float64(r.Height) * fy),
		Width:  int(float64(r.Width) * fw),
		Height: int(float64(r.Height) * fh),
	}
}

// Rect converts the region to an image.Rectangle in the same coordinate space.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.Left, r.Top, r.Left+r.Width, r.Top+r.Height)
}

// Clip intersects a local rectangle with the bounds of a w x h image.
// Returns false when nothing is left.
func (r Region) Clip(w, h int) (Region, bool) {
	c := r.Rect().Intersect(image.Rect(0, 0, w, h))
	if c.Empty() {
		return Region{}, false
	}
	return Region{Left: c.Min.X, Top: c.Min.Y, Width: c.Dx(), Height: c.Dy()}, true
}

// MatchResult is the outcome of a single template match.
//
// Location is the click center (template top-left + half the template size).
// It is only meaningful when Found is true. Size carries the template
// dimensions for building detection boxes.
type MatchResult struct {
	Found    bool
	Location Point
	Score    float64
	Size     Point
}

// Box converts a positive match into a detection box in the same coordinates.
func (m MatchResult) Box(label, color string) DetectionBox {
	return DetectionBox{
		X:          m.Location.X - m.Size.X/2,
		Y:          m.Location.Y - m.Size.Y/2,
		Width:      m.Size.X,
		Height:     m.Size.Y,
		Label:      label,
		Confidence: m.Score,
		Color:      color,
	}
}

// Arrow is the direction reported by the arrow detector.
type Arrow int

const (
	ArrowNone Arrow = iota
	ArrowLeft
	ArrowRight
)

// String returns the string representation of Arrow
func (a Arrow) String() string {
	switch a {
	case ArrowLeft:
		return "left"
	case ArrowRight:
		return "right"
	default:
		return "none"
	}
}

// Lane is the minigame cursor position: -1 left, 0 center, 1 right.
type Lane int

const (
	LaneLeft   Lane = -1
	LaneCenter Lane = 0
	LaneRight  Lane = 1
)

// Shift moves the lane one step in the arrow's direction, clamped to [-1, 1].
func (l Lane) Shift(a Arrow) Lane {
	switch a {
	case ArrowRight:
		return Lane(Clamp(int(l)+1, int(LaneLeft), int(LaneRight)))
	case ArrowLeft:
		return Lane(Clamp(int(l)-1, int(LaneLeft), int(LaneRight)))
	default:
		return l
	}
}

// DetectionBox is one positive detection published for visualization.
type DetectionBox struct {
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Color      string  `json:"color"`
}
