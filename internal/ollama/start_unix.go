// Copyright (c) 2025 K. Morrow
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !windows

package ollama

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"
)

// findEngineExecutable locates the ollama binary, preferring PATH.
func findEngineExecutable() (string, error) {
	if path, err := exec.LookPath("ollama"); err == nil {
		return path, nil
	}

	candidates := []string{
		"/usr/local/bin/ollama",
		"/usr/bin/ollama",
		"/opt/ollama/ollama",
		"/Applications/Ollama.app/Contents/Resources/ollama",
	}
	if home := os.Getenv("HOME"); home != "" {
		candidates = append(candidates,
			filepath.Join(home, ".local", "bin", "ollama"),
			filepath.Join(home, "bin", "ollama"),
		)
	}

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("ollama not found in PATH or common install locations")
}

// startEngineProcess launches `ollama serve` detached and waits for it to
// answer health checks, polling for up to 10 seconds.
func (c *Client) startEngineProcess(ctx context.Context) error {
	path, err := findEngineExecutable()
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to find Ollama executable", Cause: err}
	}

	cmd := exec.Command(path, "serve")
	cmd.Env = os.Environ()
	// New process group so the engine survives our exit.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to start Ollama", Cause: err}
	}
	if cmd.Process != nil {
		cmd.Process.Release()
	}

	deadline := time.Now().Add(10 * time.Second)
	var lastErr error
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return &ClientError{Type: ErrTypeConnection, Message: "engine startup cancelled", Cause: ctx.Err()}
		default:
		}

		checkCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		lastErr = c.CheckRunning(checkCtx)
		cancel()
		if lastErr == nil {
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}

	return &ClientError{
		Type:    ErrTypeConnection,
		Message: "Ollama started but not responding after 10 seconds",
		Cause:   lastErr,
	}
}
