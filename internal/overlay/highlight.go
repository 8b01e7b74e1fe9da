// Package overlay marks each recorded step's element on its frame.
package overlay

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/v0xg/playbot/internal/browser"
	"github.com/v0xg/playbot/internal/executor"
)

// Outline colors
var (
	SuccessColor = color.RGBA{66, 133, 244, 255}
	FailureColor = color.RGBA{219, 68, 55, 255}
)

// Thickness of the outline in pixels
const Thickness = 3

// Highlight returns one image per frame with the step's element outlined,
// blue for a succeeded step and red for a failed one. A failed step without
// an element gets a red border around the whole frame instead. Scale maps
// viewport pixels to screenshot pixels; values <= 0 mean 1.
func Highlight(frames []executor.Frame, scale float64) []image.Image {
	if scale <= 0 {
		scale = 1
	}
	out := make([]image.Image, 0, len(frames))
	for _, f := range frames {
		if f.Image == nil {
			continue
		}
		out = append(out, highlightFrame(f, scale))
	}
	return out
}

func highlightFrame(f executor.Frame, scale float64) image.Image {
	bounds := f.Image.Bounds()
	result := image.NewRGBA(bounds)
	draw.Draw(result, bounds, f.Image, bounds.Min, draw.Src)

	c := SuccessColor
	if !f.OK {
		c = FailureColor
	}

	switch {
	case !f.Box.Empty():
		r := boxRect(f.Box, scale).Add(bounds.Min)
		drawRect(result, r, c)
		if f.OK {
			drawRing(result, (r.Min.X+r.Max.X)/2, (r.Min.Y+r.Max.Y)/2, 6, c)
		}
	case !f.OK:
		drawRect(result, bounds, c)
	}
	return result
}

func boxRect(b browser.Box, scale float64) image.Rectangle {
	return image.Rect(
		int(math.Round(b.X*scale)),
		int(math.Round(b.Y*scale)),
		int(math.Round((b.X+b.Width)*scale)),
		int(math.Round((b.Y+b.Height)*scale)),
	)
}

// drawRect outlines r, growing inward.
func drawRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	for i := 0; i < Thickness; i++ {
		x1, y1 := r.Min.X+i, r.Min.Y+i
		x2, y2 := r.Max.X-1-i, r.Max.Y-1-i
		if x1 > x2 || y1 > y2 {
			return
		}
		drawLine(img, x1, y1, x2, y1, c)
		drawLine(img, x2, y1, x2, y2, c)
		drawLine(img, x2, y2, x1, y2, c)
		drawLine(img, x1, y2, x1, y1, c)
	}
}

// drawLine draws a line between two points using Bresenham's algorithm
func drawLine(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	dx := abs(x2 - x1)
	dy := abs(y2 - y1)
	sx := 1
	if x1 > x2 {
		sx = -1
	}
	sy := 1
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy

	for {
		setPixelSafe(img, x1, y1, c)
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

// drawRing marks the click point
func drawRing(img *image.RGBA, x, y, radius int, c color.RGBA) {
	for angle := 0.0; angle < 360; angle++ {
		rad := angle * math.Pi / 180
		px := x + int(float64(radius)*math.Cos(rad))
		py := y + int(float64(radius)*math.Sin(rad))
		setPixelSafe(img, px, py, c)
	}
}

func setPixelSafe(img *image.RGBA, x, y int, c color.RGBA) {
	if (image.Point{X: x, Y: y}).In(img.Bounds()) {
		img.SetRGBA(x, y, c)
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
