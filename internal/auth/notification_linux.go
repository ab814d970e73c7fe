//go:build linux

package auth

import (
	"fmt"
	"os/exec"
)

// ShowPairingNotification announces a pairing through notify-send
func ShowPairingNotification(clientName string) error {
	cmd := exec.Command("notify-send",
		"Media session pairing",
		fmt.Sprintf("'%s' can now control your media players. Revoke it from the daemon if you did not expect this.", clientName),
		"--urgency=critical",
		"--icon=multimedia-player",
	)

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("notify-send failed: %w", err)
	}

	log.Debugf("Showed pairing notification for %s", clientName)
	return nil
}
