package codec

import (
	"sync"

	"imgpress/internal/logging"

	"github.com/davidbyttow/govips/v2/vips"
)

var (
	vipsInitMutex   sync.Mutex
	vipsInitialized bool
	vipsAvailable   bool
)

// InitVips initializes libvips. Call once at startup; safe to call again.
func InitVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return
	}

	// Bridge vips logging into ours, filtered by our level. Configure the
	// handler before Startup so early messages are captured.
	var vipsLevel vips.LogLevel
	if logging.IsDebugEnabled() {
		vipsLevel = vips.LogLevelInfo
	} else {
		vipsLevel = vips.LogLevelWarning
	}
	vips.LoggingSettings(func(domain string, level vips.LogLevel, msg string) {
		switch level {
		case vips.LogLevelError, vips.LogLevelCritical:
			logging.Error("[%s] %s", domain, msg)
		case vips.LogLevelWarning:
			logging.Warn("[%s] %s", domain, msg)
		default:
			logging.Debug("[%s] %s", domain, msg)
		}
	}, vipsLevel)

	vips.Startup(&vips.Config{
		// Each worker drives its own encodes; keep vips' internal pool
		// small so the two tiers don't multiply.
		ConcurrencyLevel: 1,
		MaxCacheMem:      64 * 1024 * 1024,
		MaxCacheSize:     100,
		ReportLeaks:      false,
	})

	vipsInitialized = true
	vipsAvailable = true
	logging.Info("libvips initialized (version: %s)", vips.Version)
}

// ShutdownVips releases libvips resources.
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable reports whether the libvips path is active. When false the
// pure-Go fallback codec handles JPEG and PNG only.
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}
