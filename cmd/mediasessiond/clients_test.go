package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/austinkregel/local-media/mediasessiond/internal/auth"
)

func testAuthManager(t *testing.T) *auth.Manager {
	t.Helper()
	store, err := auth.NewStore(filepath.Join(t.TempDir(), "clients.json"))
	require.NoError(t, err)
	return auth.NewManager(store, true)
}

func TestListClients(t *testing.T) {
	m := testAuthManager(t)

	var out bytes.Buffer
	require.NoError(t, listClients(&out, m))
	assert.Equal(t, "No paired clients\n", out.String())

	p, err := m.Pair("laptop browser")
	require.NoError(t, err)

	out.Reset()
	require.NoError(t, listClients(&out, m))
	assert.Contains(t, out.String(), p.ClientID)
	assert.Contains(t, out.String(), "laptop browser")
}

func TestRevokeClient(t *testing.T) {
	m := testAuthManager(t)
	p, err := m.Pair("phone")
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, revokeClient(&out, m, p.ClientID))
	assert.Equal(t, "Revoked "+p.ClientID+"\n", out.String())
	assert.False(t, m.ValidateToken(p.Token))
	assert.Empty(t, m.ListClients())

	err = revokeClient(&out, m, "missing")
	assert.ErrorIs(t, err, auth.ErrClientNotFound)
}
