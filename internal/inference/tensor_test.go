package inference

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func twoPixels() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.SetRGBA(0, 0, color.RGBA{R: 255, G: 0, B: 51, A: 255})
	img.SetRGBA(1, 0, color.RGBA{R: 0, G: 102, B: 255, A: 255})
	return img
}

func TestPackUint8InterleavesRGB(t *testing.T) {
	dst := make([]uint8, 6)
	packUint8(dst, twoPixels())

	want := []uint8{255, 0, 51, 0, 102, 255}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("byte %d: expected %d, got %d (%v)", i, want[i], dst[i], dst)
		}
	}
}

func TestPackFloat32ScalesToUnitRange(t *testing.T) {
	dst := make([]float32, 6)
	packFloat32(dst, twoPixels())

	want := []float32{1, 0, 0.2, 0, 0.4, 1}
	for i := range want {
		if math.Abs(float64(dst[i]-want[i])) > 1e-6 {
			t.Fatalf("value %d: expected %v, got %v (%v)", i, want[i], dst[i], dst)
		}
	}
}

func TestPackHonorsSubImageOrigin(t *testing.T) {
	full := image.NewRGBA(image.Rect(0, 0, 3, 1))
	full.SetRGBA(2, 0, color.RGBA{R: 7, G: 8, B: 9, A: 255})
	sub := full.SubImage(image.Rect(2, 0, 3, 1)).(*image.RGBA)

	dst := make([]uint8, 3)
	packUint8(dst, sub)
	if dst[0] != 7 || dst[1] != 8 || dst[2] != 9 {
		t.Fatalf("unexpected bytes %v", dst)
	}
}

func TestDequantize(t *testing.T) {
	got := dequantize([]uint8{0, 128, 255}, 1.0/256, 0)

	want := []float32{0, 0.5, 255.0 / 256}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Fatalf("score %d: expected %v, got %v", i, want[i], got[i])
		}
	}

	shifted := dequantize([]uint8{10}, 0.5, 10)
	if shifted[0] != 0 {
		t.Fatalf("zero point not applied: %v", shifted)
	}
}
