package pipeline

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// Downscale verkleinert img um den Faktor f. Das Ergebnis beginnt immer bei (0,0).
// Bei f >= 1 wird img unverändert zurückgegeben.
func Downscale(img image.Image, f float64) image.Image {
	if f <= 0 || f >= 1 {
		return img
	}

	b := img.Bounds()
	w := max(1, int(math.Round(float64(b.Dx())*f)))
	h := max(1, int(math.Round(float64(b.Dy())*f)))

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// RescaleBox rechnet ein Rechteck aus dem verkleinerten Bild in Koordinaten des
// Originalbildes mit Ursprung origin um: (l/f, t/f, r/f, b/f) + origin.
// Bei f >= 1 hat Downscale das Original zurückgegeben und box bleibt unverändert.
func RescaleBox(box image.Rectangle, f float64, origin image.Point) image.Rectangle {
	if f <= 0 || f >= 1 {
		return box
	}
	scale := func(v int) int {
		return int(math.Round(float64(v) / f))
	}
	return image.Rect(scale(box.Min.X), scale(box.Min.Y), scale(box.Max.X), scale(box.Max.Y)).Add(origin)
}
