package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
)

// putImageOverhead is the fixed part of a PutImage request, in bytes.
const putImageOverhead = 24

// PutImage carries the width as a uint16 and the row offset as an int16.
const (
	maxImageWidth  = 1<<16 - 1
	maxImageHeight = 1<<15 - 1
)

// supports32bpp reports whether images of depth are stored 32 bits per pixel,
// which is the only ZPixmap layout bgrToBGRX produces.
func supports32bpp(setup *xproto.SetupInfo, depth byte) bool {
	if depth != 24 && depth != 32 {
		return false
	}
	for _, f := range setup.PixmapFormats {
		if f.Depth == depth {
			return f.BitsPerPixel == 32
		}
	}
	return false
}

// bgrToBGRX expands packed BGR24 into little-endian BGRX, reusing dst when it
// is large enough.
func bgrToBGRX(dst, src []byte) []byte {
	n := len(src) / 3
	if cap(dst) < n*4 {
		dst = make([]byte, n*4)
	}
	dst = dst[:n*4]
	for i := 0; i < n; i++ {
		dst[i*4+0] = src[i*3+0]
		dst[i*4+1] = src[i*3+1]
		dst[i*4+2] = src[i*3+2]
		dst[i*4+3] = 0
	}
	return dst
}

// rowsPerRequest returns how many rows of stride bytes fit in one PutImage
// under a maximum request size of maxRequest bytes, 0 if not even one does.
func rowsPerRequest(maxRequest, stride int) int {
	if stride <= 0 {
		return 1
	}
	rows := (maxRequest - putImageOverhead) / stride
	if rows < 1 {
		return 0
	}
	return rows
}

// checkGeometry returns an error if a width x height image cannot be painted
// with PutImage under maxRequest.
func checkGeometry(width, height, maxRequest int) error {
	if width <= 0 || height <= 0 || width > maxImageWidth || height > maxImageHeight {
		return fmt.Errorf("frame %dx%d outside the %dx%d PutImage range", width, height, maxImageWidth, maxImageHeight)
	}
	if rowsPerRequest(maxRequest, width*4) == 0 {
		return fmt.Errorf("a %d pixel row exceeds the %d byte request limit", width, maxRequest)
	}
	return nil
}
