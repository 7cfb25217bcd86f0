// Package source produces frames for the CLI: decoded image files, a
// directory watcher that reports image changes, and a synthetic camera
// pattern.
package source

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/Swind/go-display-runner/core"
)

// Decode reads a PNG or JPEG image and returns it as an RGB24 frame.
func Decode(r io.Reader) (*core.Frame, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	frame := FrameFromImage(img)
	if frame.Width == 0 || frame.Height == 0 {
		return nil, fmt.Errorf("decode %s: empty image", format)
	}
	return frame, nil
}

// FrameFromImage converts any image to a packed RGB24 frame, dropping alpha.
func FrameFromImage(img image.Image) *core.Frame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Rect.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, w, h))
		draw.Draw(rgba, rgba.Rect, img, b.Min, draw.Src)
	}

	pix := make([]byte, w*h*3)
	for y := 0; y < h; y++ {
		row := rgba.Pix[y*rgba.Stride : y*rgba.Stride+w*4]
		out := pix[y*w*3 : (y+1)*w*3]
		for x := 0; x < w; x++ {
			out[x*3+0] = row[x*4+0]
			out[x*3+1] = row[x*4+1]
			out[x*3+2] = row[x*4+2]
		}
	}
	return &core.Frame{Width: w, Height: h, Format: core.FormatRGB24, Pix: pix}
}
