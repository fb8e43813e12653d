package facerecognition

import (
	"image"
	"image/color"
	"testing"
)

func TestCropFace(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	img.Set(20, 20, color.RGBA{R: 255, A: 255})

	tests := []struct {
		name   string
		box    image.Rectangle
		margin float64
		want   image.Rectangle
	}{
		{"no margin", image.Rect(20, 20, 40, 40), 0, image.Rect(0, 0, 20, 20)},
		{"with margin", image.Rect(20, 20, 40, 40), 0.5, image.Rect(0, 0, 40, 40)},
		{"clipped at border", image.Rect(90, 90, 120, 120), 0, image.Rect(0, 0, 10, 10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CropFace(img, tt.box, tt.margin)
			if got.Bounds() != tt.want {
				t.Errorf("CropFace() bounds = %v, want %v", got.Bounds(), tt.want)
			}
		})
	}

	crop := CropFace(img, image.Rect(20, 20, 40, 40), 0)
	if c := crop.RGBAAt(0, 0); c.R != 255 {
		t.Errorf("crop origin = %v, want the pixel at (20,20)", c)
	}
}

func TestEnsureMinSize(t *testing.T) {
	tests := []struct {
		name string
		size image.Rectangle
		want image.Rectangle
	}{
		{"small square", image.Rect(0, 0, 40, 40), image.Rect(0, 0, 150, 150)},
		{"keeps aspect ratio", image.Rect(0, 0, 50, 100), image.Rect(0, 0, 150, 300)},
		{"large enough", image.Rect(0, 0, 200, 160), image.Rect(0, 0, 200, 160)},
		{"empty", image.Rect(0, 0, 0, 0), image.Rect(0, 0, 0, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EnsureMinSize(image.NewRGBA(tt.size), 150)
			if got.Bounds() != tt.want {
				t.Errorf("EnsureMinSize() bounds = %v, want %v", got.Bounds(), tt.want)
			}
		})
	}

	src := image.NewRGBA(image.Rect(0, 0, 200, 200))
	if EnsureMinSize(src, 150) != src {
		t.Error("EnsureMinSize should return large images unchanged")
	}
}
