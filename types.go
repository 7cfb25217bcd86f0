package displayrunner

import "github.com/Swind/go-display-runner/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the displayrunner package for most use cases.

// Service coordinates every window of one display connection
type Service = core.Service

// Handle owns at most one window
type Handle = core.Handle

// Window is the read side of a Handle
type Window = core.Window

// Display is the backend contract driven by the event loop
type Display = core.Display

// Frame is an image to show
type Frame = core.Frame

// PixelFormat describes Frame.Pix
type PixelFormat = core.PixelFormat

// Config configures a Service
type Config = core.Config

// LoopStats is a point-in-time view of a Service
type LoopStats = core.LoopStats

// Pixel formats. Handle.Show accepts FormatRGB24; displays receive FormatBGR24
const (
	FormatRGB24    PixelFormat = core.FormatRGB24
	FormatBGR24    PixelFormat = core.FormatBGR24
	FormatRGBA32   PixelFormat = core.FormatRGBA32
	FormatGray8    PixelFormat = core.FormatGray8
	FormatYCbCr420 PixelFormat = core.FormatYCbCr420
)

// Errors returned by Handle and Service methods
var (
	ErrEmptyName          = core.ErrEmptyName
	ErrDuplicateName      = core.ErrDuplicateName
	ErrDuplicateOwner     = core.ErrDuplicateOwner
	ErrUnknownOwner       = core.ErrUnknownOwner
	ErrUnsupportedFormat  = core.ErrUnsupportedFormat
	ErrInvalidFrame       = core.ErrInvalidFrame
	ErrShutdownInProgress = core.ErrShutdownInProgress
)

// DefaultConfig returns a config with default handlers
var DefaultConfig = core.DefaultConfig

// NewService creates a Service driving display.
// This is re-exported for users who want more than one display connection.
func NewService(display Display, cfg *Config) *Service {
	return core.NewService(display, cfg)
}
