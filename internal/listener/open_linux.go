//go:build linux

package listener

import (
	"os"
	"os/exec"
)

func desktopAvailable() bool {
	return os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != ""
}

// launchSettings uses xdg-open, which most Linux desktops provide
func launchSettings(path string) error {
	cmd := exec.Command("xdg-open", path)
	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait()
	return nil
}
