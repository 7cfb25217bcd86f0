package displayrunner

import (
	"sync"

	"github.com/Swind/go-display-runner/core"
)

// =============================================================================
// Default Service Helper (Singleton)
// =============================================================================

var (
	defaultService *core.Service
	defaultMu      sync.Mutex
)

// InitDefault initializes the default service around display.
// The event loop starts on the first Create.
func InitDefault(display Display, cfg *Config) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultService != nil {
		return // Already initialized
	}

	defaultService = core.NewService(display, cfg)
}

// Default returns the default service instance.
// It panics if InitDefault has not been called.
func Default() *Service {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultService == nil {
		panic("default display service not initialized. Call InitDefault() first.")
	}
	return defaultService
}

// ShutdownDefault stops the default service, destroying every window it
// still holds. A later InitDefault may install a new one.
func ShutdownDefault() {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultService != nil {
		defaultService.Stop()
		defaultService = nil
	}
}

// Create opens a window called name on the default service.
// This is the recommended way to get a new Handle.
func Create(name string) (*Handle, error) {
	return Default().Create(name)
}
