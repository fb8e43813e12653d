package facerecognition

import (
	"image"

	"golang.org/x/image/draw"
)

// CropFace schneidet box mit einem Rand von margin (Anteil der Boxgröße) aus img aus.
// Der Ausschnitt beginnt bei (0,0).
func CropFace(img image.Image, box image.Rectangle, margin float64) *image.RGBA {
	mx := int(float64(box.Dx()) * margin)
	my := int(float64(box.Dy()) * margin)
	r := image.Rect(box.Min.X-mx, box.Min.Y-my, box.Max.X+mx, box.Max.Y+my).Intersect(img.Bounds())

	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Copy(dst, image.Point{}, img, r, draw.Src, nil)
	return dst
}

// EnsureMinSize vergrößert img proportional, bis die kürzere Seite minSide erreicht.
// Größere Bilder werden unverändert zurückgegeben.
func EnsureMinSize(img *image.RGBA, minSide int) *image.RGBA {
	b := img.Bounds()
	short := min(b.Dx(), b.Dy())
	if short <= 0 || short >= minSide {
		return img
	}

	w := (b.Dx()*minSide + short - 1) / short
	h := (b.Dy()*minSide + short - 1) / short
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
