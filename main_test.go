package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moob/fakebackend"
)

func runCLI(t *testing.T, args ...string) (int, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String()
}

func TestCLIEndToEnd(t *testing.T) {
	t.Setenv("MOOB_DATA_DIR", t.TempDir())
	t.Setenv("LOG_LEVEL", "error")

	server := fakebackend.Start()
	t.Cleanup(server.Close)
	server.AddUser("alice", "alice@example.com", "secret12")

	code, out := runCLI(t, "-server", server.URL(), "whoami")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "not logged in")

	code, out = runCLI(t, "-server", server.URL(), "send", "-content", "hi", "-to", "@a")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "moob login")

	code, out = runCLI(t, "-server", server.URL(), "login", "-email", "alice@example.com", "-password", "wrong")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "Invalid credentials")

	code, out = runCLI(t, "-server", server.URL(), "login", "-email", "alice@example.com", "-password", "secret12")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "alice")

	code, out = runCLI(t, "-server", server.URL(), "whoami")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "alice@example.com")

	attachment := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(attachment, []byte("%PDF-1.4"), 0o600))

	code, out = runCLI(t, "-server", server.URL(), "send",
		"-platform", "slack", "-content", "deploy finished", "-to", "#ops, @dana",
		"-file", attachment, "-redirect-delay", "10ms")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "message sent successfully")
	assert.Contains(t, out, "Sent messages")
	assert.Contains(t, out, "deploy finished")

	code, out = runCLI(t, "-server", server.URL(), "send", "-content", "", "-to", "@a")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "message content is required")

	code, out = runCLI(t, "-server", server.URL(), "journal")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "deploy finished")

	code, out = runCLI(t, "-server", server.URL(), "stats")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "total 1")

	server.RevokeTokens()
	code, out = runCLI(t, "-server", server.URL(), "sent")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "moob login")

	code, out = runCLI(t, "-server", server.URL(), "whoami")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "not logged in")
}

func TestCLIUsage(t *testing.T) {
	code, _ := runCLI(t)
	assert.Equal(t, 2, code)

	t.Setenv("MOOB_DATA_DIR", t.TempDir())
	code, _ = runCLI(t, "bogus")
	assert.Equal(t, 2, code)
}
