package main

import (
	"fmt"
	"io"
	"time"

	"github.com/austinkregel/local-media/mediasessiond/internal/auth"
)

// listClients prints the paired clients, oldest first.
func listClients(w io.Writer, authManager *auth.Manager) error {
	clients := authManager.ListClients()
	if len(clients) == 0 {
		_, err := fmt.Fprintln(w, "No paired clients")
		return err
	}
	for _, c := range clients {
		if _, err := fmt.Fprintf(w, "%s  %s  %s\n", c.ID, c.CreatedAt.Format(time.RFC3339), c.Name); err != nil {
			return err
		}
	}
	return nil
}

// revokeClient removes the client with the given id.
func revokeClient(w io.Writer, authManager *auth.Manager, id string) error {
	if err := authManager.RevokeClient(id); err != nil {
		return fmt.Errorf("failed to revoke %s: %w", id, err)
	}
	_, err := fmt.Fprintf(w, "Revoked %s\n", id)
	return err
}
