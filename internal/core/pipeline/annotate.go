package pipeline

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	knownColor   = color.RGBA{R: 0, G: 200, B: 0, A: 255}
	unknownColor = color.RGBA{R: 220, G: 0, B: 0, A: 255}
	labelText    = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

const (
	boxThickness = 2
	labelHeight  = 18
)

// Annotate kopiert frame und zeichnet für jede Erkennung einen Rahmen mit Namensfeld darunter
func Annotate(frame image.Image, detections []Detection) *image.RGBA {
	b := frame.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, frame, b.Min, draw.Src)

	for _, d := range detections {
		c := unknownColor
		if d.Known {
			c = knownColor
		}
		drawBox(dst, d.Box, c)
		drawLabel(dst, d.Box, d.Name, c)
	}
	return dst
}

// drawBox zeichnet einen Rahmen. draw.Draw schneidet an den Bildgrenzen ab.
func drawBox(dst *image.RGBA, r image.Rectangle, c color.RGBA) {
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+boxThickness),
		image.Rect(r.Min.X, r.Max.Y-boxThickness, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+boxThickness, r.Max.Y),
		image.Rect(r.Max.X-boxThickness, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e, src, image.Point{}, draw.Src)
	}
}

// drawLabel zeichnet ein gefülltes Feld unterhalb des Rahmens mit dem Namen
func drawLabel(dst *image.RGBA, r image.Rectangle, name string, c color.RGBA) {
	label := image.Rect(r.Min.X, r.Max.Y, r.Max.X, r.Max.Y+labelHeight)
	draw.Draw(dst, label, image.NewUniform(c), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(labelText),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(label.Min.X+4, label.Max.Y-4),
	}
	d.DrawString(name)
}
