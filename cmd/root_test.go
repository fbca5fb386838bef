package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yakoovad/hackreg/internal/auth"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("HACKREG_AUTH_SECRET", "cli-secret")

	out, err := execute(t, "token", "--subject", "ops", "--ttl", "2h")
	require.NoError(t, err)

	signer, err := auth.NewSigner("cli-secret", time.Hour)
	require.NoError(t, err)

	claims, err := signer.VerifyToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, auth.TokenTypeAdmin, claims.Type)
	assert.Equal(t, "ops", claims.Subject)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestTokenCommand_RequiresSecret(t *testing.T) {
	t.Setenv("HACKREG_AUTH_SECRET", "")

	_, err := execute(t, "token")

	assert.ErrorIs(t, err, auth.ErrMissingSecret)
}

func TestMigrateCommand_RejectsUnknownDirection(t *testing.T) {
	_, err := execute(t, "migrate", "sideways")
	assert.Error(t, err)

	_, err = execute(t, "migrate")
	assert.Error(t, err)
}

func TestRootCommand_InvalidConfig(t *testing.T) {
	t.Setenv("HACKREG_REGISTRATION_PERSONAL_EMAIL", "sometimes")

	_, err := execute(t, "token")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "personal_email")
}
