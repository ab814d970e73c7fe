//go:build !linux && !darwin

package auth

// ShowPairingNotification only logs on platforms without a notifier
func ShowPairingNotification(clientName string) error {
	log.Infof("Client %q paired (no desktop notifier on this platform)", clientName)
	return nil
}
