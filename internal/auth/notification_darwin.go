//go:build darwin

package auth

import (
	"fmt"
	"os/exec"
	"strings"
)

// ShowPairingNotification announces a pairing through AppleScript
func ShowPairingNotification(clientName string) error {
	name := strings.ReplaceAll(clientName, `"`, `'`)
	script := fmt.Sprintf(`display notification "%s can now control your media players" with title "Media session pairing"`, name)

	if err := exec.Command("osascript", "-e", script).Run(); err != nil {
		return fmt.Errorf("osascript failed: %w", err)
	}

	log.Debugf("Showed pairing notification for %s", clientName)
	return nil
}
