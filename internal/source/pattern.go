package source

import "github.com/Swind/go-display-runner/core"

// barColors are the classic eight colour bars, RGB.
var barColors = [8][3]byte{
	{255, 255, 255},
	{255, 255, 0},
	{0, 255, 255},
	{0, 255, 0},
	{255, 0, 255},
	{255, 0, 0},
	{0, 0, 255},
	{0, 0, 0},
}

// TestPattern generates synthetic camera frames: colour bars shifted by the
// camera index, with a bright sweep line that moves one step per frame.
type TestPattern struct {
	Width  int
	Height int
	Camera int
}

// Frame returns frame number n as a new RGB24 buffer.
func (p TestPattern) Frame(n int) *core.Frame {
	w, h := p.Width, p.Height
	pix := make([]byte, w*h*3)

	sweep := 0
	if h > 0 {
		sweep = n % h
	}
	for y := 0; y < h; y++ {
		row := pix[y*w*3 : (y+1)*w*3]
		for x := 0; x < w; x++ {
			c := barColors[(x*len(barColors)/w+p.Camera)%len(barColors)]
			if y == sweep {
				c = [3]byte{255, 255, 255}
			}
			copy(row[x*3:x*3+3], c[:])
		}
	}
	return &core.Frame{Width: w, Height: h, Format: core.FormatRGB24, Pix: pix}
}
