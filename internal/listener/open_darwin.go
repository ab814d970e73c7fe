//go:build darwin

package listener

import "os/exec"

func desktopAvailable() bool {
	return true
}

func launchSettings(path string) error {
	cmd := exec.Command("open", "-t", path)
	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait()
	return nil
}
