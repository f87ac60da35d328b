// Copyright (c) 2025 K. Morrow
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build windows

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

// findEngineExecutable locates ollama.exe, preferring PATH.
func findEngineExecutable() (string, error) {
	if path, err := exec.LookPath("ollama"); err == nil {
		return path, nil
	}

	var candidates []string
	if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
		candidates = append(candidates,
			filepath.Join(localAppData, "Programs", "Ollama", "ollama.exe"))
	}
	if programFiles := os.Getenv("ProgramFiles"); programFiles != "" {
		candidates = append(candidates,
			filepath.Join(programFiles, "Ollama", "ollama.exe"))
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
	// Detached, no console window.
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP | 0x08000000, // CREATE_NO_WINDOW
	}

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
