//go:build !linux && !darwin

package listener

import "errors"

func desktopAvailable() bool {
	return false
}

func launchSettings(path string) error {
	return errors.New("opening settings not supported on this platform")
}
