package inference

import "image"

// packUint8 writes img as interleaved RGB bytes into dst, row-major.
func packUint8(dst []uint8, img *image.RGBA) {
	b := img.Bounds()
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			px := img.RGBAAt(x, y)
			dst[i], dst[i+1], dst[i+2] = px.R, px.G, px.B
			i += 3
		}
	}
}

// packFloat32 writes img as interleaved RGB values scaled to [0,1].
func packFloat32(dst []float32, img *image.RGBA) {
	b := img.Bounds()
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			px := img.RGBAAt(x, y)
			dst[i] = float32(px.R) / 255
			dst[i+1] = float32(px.G) / 255
			dst[i+2] = float32(px.B) / 255
			i += 3
		}
	}
}

// dequantize maps quantized output scores back to real values.
func dequantize(raw []uint8, scale float64, zeroPoint int) []float32 {
	out := make([]float32, len(raw))
	for i, v := range raw {
		out[i] = float32(scale * float64(int(v)-zeroPoint))
	}
	return out
}
