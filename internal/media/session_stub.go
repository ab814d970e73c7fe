//go:build !linux

package media

import "fmt"

// NewPlatform is the fallback for platforms without a session bus.
func NewPlatform(opts PlatformOptions) (Platform, error) {
	return nil, fmt.Errorf("media sessions not supported on this platform")
}
