// Copyright (c) 2025 K. Morrow
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmorrow/chatloom/internal/config"
	"github.com/kmorrow/chatloom/internal/storage"
)

// seedStore creates an isolated state dir with one saved session and
// points CHATLOOM_HOME at it.
func seedStore(t *testing.T) int64 {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CHATLOOM_HOME", dir)

	stateDir, err := config.Dir()
	require.NoError(t, err)
	store, err := storage.Open(filepath.Join(stateDir, "chats.db"))
	require.NoError(t, err)
	defer store.Close()

	id, err := store.Save("test conversation", []storage.StoredMessage{
		{Content: "hello there", IsUser: true},
		{Content: "hi yourself", IsUser: false},
	})
	require.NoError(t, err)
	return id
}

// runCommand executes the root command with args, capturing output.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestSessionsList(t *testing.T) {
	seedStore(t)

	out, err := runCommand(t, "sessions", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "test conversation")
}

func TestSessionsSearch(t *testing.T) {
	seedStore(t)

	out, err := runCommand(t, "sessions", "search", "yourself")
	require.NoError(t, err)
	assert.Contains(t, out, "test conversation")

	out, err = runCommand(t, "sessions", "search", "absent")
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions.")
}

func TestSessionsDelete(t *testing.T) {
	id := seedStore(t)

	_, err := runCommand(t, "sessions", "delete", "1")
	require.NoError(t, err)

	out, err := runCommand(t, "sessions", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions.")
	_ = id
}

func TestSessionsClearRequiresConfirmation(t *testing.T) {
	seedStore(t)

	_, err := runCommand(t, "sessions", "clear")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")

	out, listErr := runCommand(t, "sessions", "list")
	require.NoError(t, listErr)
	assert.Contains(t, out, "test conversation")
}

func TestExportText(t *testing.T) {
	id := seedStore(t)
	outDir := t.TempDir()

	out, err := runCommand(t, "export",
		"1", "--format", "txt", "--out", outDir)
	require.NoError(t, err)

	path := strings.TrimSpace(out)
	assert.True(t, strings.HasSuffix(path, ".txt"), "path %q", path)
	_ = id
}

func TestExportUnknownFormat(t *testing.T) {
	seedStore(t)

	_, err := runCommand(t, "export", "1", "--format", "pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func TestConfigPath(t *testing.T) {
	t.Setenv("CHATLOOM_HOME", t.TempDir())

	out, err := runCommand(t, "config", "path")
	require.NoError(t, err)
	assert.Contains(t, out, "config.json")
}

func TestConfigSetPersists(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CHATLOOM_HOME", dir)

	_, err := runCommand(t, "config", "set", "model", "mistral:7b")
	require.NoError(t, err)

	// The change survives a fresh load.
	settings, loadErr := config.Load(dir)
	require.NoError(t, loadErr)
	assert.Equal(t, "mistral:7b", settings.Model)

	out, err := runCommand(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "mistral:7b")
}

func TestConfigSetRejectsBadInput(t *testing.T) {
	t.Setenv("CHATLOOM_HOME", t.TempDir())

	_, err := runCommand(t, "config", "set", "no_such_key", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown setting")

	_, err = runCommand(t, "config", "set", "temperature", "hot")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a number")
}

func TestImportRoundTrip(t *testing.T) {
	seedStore(t)
	outDir := t.TempDir()

	out, err := runCommand(t, "export", "1", "--format", "json", "--out", outDir)
	require.NoError(t, err)
	path := strings.TrimSpace(out)

	out, err = runCommand(t, "import", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported session 2")

	// Both the original and the imported copy list; the import derives
	// its title from the first user message.
	out, err = runCommand(t, "sessions", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "test conversation")
	assert.Contains(t, out, "hello there")
}

func TestImportMissingFile(t *testing.T) {
	t.Setenv("CHATLOOM_HOME", t.TempDir())

	_, err := runCommand(t, "import", filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}
