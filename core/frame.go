package core

import "fmt"

// PixelFormat tags the channel layout of a Frame buffer.
type PixelFormat int

const (
	// FormatRGB24 is interleaved R,G,B with 8 bits per channel. It is the only
	// format callers may submit.
	FormatRGB24 PixelFormat = iota

	// FormatBGR24 is interleaved B,G,R with 8 bits per channel. Frames reaching
	// the Display are always in this layout.
	FormatBGR24

	// FormatRGBA32 is interleaved R,G,B,A.
	FormatRGBA32

	// FormatGray8 is a single 8 bit luminance channel.
	FormatGray8

	// FormatYCbCr420 is planar 4:2:0 YCbCr.
	FormatYCbCr420
)

func (f PixelFormat) String() string {
	switch f {
	case FormatRGB24:
		return "rgb24"
	case FormatBGR24:
		return "bgr24"
	case FormatRGBA32:
		return "rgba32"
	case FormatGray8:
		return "gray8"
	case FormatYCbCr420:
		return "ycbcr420"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// Channels returns bytes per pixel for interleaved formats, 0 otherwise.
func (f PixelFormat) Channels() int {
	switch f {
	case FormatRGB24, FormatBGR24:
		return 3
	case FormatRGBA32:
		return 4
	case FormatGray8:
		return 1
	default:
		return 0
	}
}

// MaxFrameDimension bounds Frame width and height. X11 addresses rows with a
// signed 16 bit offset, the tightest limit of the bundled backends.
const MaxFrameDimension = 1<<15 - 1

// Frame is one image. Pix holds Height rows of Width pixels, tightly packed.
type Frame struct {
	Width  int
	Height int
	Format PixelFormat
	Pix    []byte
}

// Size returns the buffer length in bytes.
func (f *Frame) Size() int {
	return len(f.Pix)
}

// validate checks the frame is an accepted caller frame.
func (f *Frame) validate() error {
	if f == nil {
		return fmt.Errorf("%w: nil frame", ErrInvalidFrame)
	}
	if f.Format != FormatRGB24 {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, f.Format)
	}
	if f.Width <= 0 || f.Height <= 0 || f.Width > MaxFrameDimension || f.Height > MaxFrameDimension {
		return fmt.Errorf("%w: dimensions %dx%d", ErrInvalidFrame, f.Width, f.Height)
	}
	if want := uint64(f.Width) * uint64(f.Height) * uint64(f.Format.Channels()); uint64(len(f.Pix)) != want {
		return fmt.Errorf("%w: buffer is %d bytes, want %d", ErrInvalidFrame, len(f.Pix), want)
	}
	return nil
}

// toDisplayLayout returns a new BGR24 frame with its own buffer. The receiver
// is not modified and may be reused by the caller immediately.
func (f *Frame) toDisplayLayout() *Frame {
	out := &Frame{
		Width:  f.Width,
		Height: f.Height,
		Format: FormatBGR24,
		Pix:    make([]byte, len(f.Pix)),
	}
	src, dst := f.Pix, out.Pix
	for i := 0; i+2 < len(src); i += 3 {
		dst[i] = src[i+2]
		dst[i+1] = src[i+1]
		dst[i+2] = src[i]
	}
	return out
}
