// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"github.com/matrix-warden/warden/lib/config"
	"github.com/matrix-warden/warden/messaging"
)

// performLogin obtains a fresh access token with a password login and
// stores it at the configured token file. The password comes from
// passwordFile when set, otherwise from an interactive prompt.
func performLogin(ctx context.Context, client *messaging.Client, cfg *config.Config, passwordFile string) error {
	if cfg.Homeserver.UserID == "" {
		return fmt.Errorf("homeserver.user_id is required for --login")
	}

	password, err := readPassword(passwordFile)
	if err != nil {
		return err
	}

	session, err := client.Login(ctx, cfg.Homeserver.UserID, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	if err := writeToken(cfg.Homeserver.TokenFile, session.AccessToken()); err != nil {
		return err
	}
	fmt.Printf("logged in as %s, token stored at %s\n", session.UserID(), cfg.Homeserver.TokenFile)
	return nil
}

func readPassword(passwordFile string) (string, error) {
	if passwordFile != "" {
		data, err := os.ReadFile(passwordFile)
		if err != nil {
			return "", fmt.Errorf("reading password file: %w", err)
		}
		password := strings.TrimSpace(string(data))
		if password == "" {
			return "", fmt.Errorf("password file %s is empty", passwordFile)
		}
		return password, nil
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("stdin is not a terminal; use --password-file")
	}
	fmt.Fprint(os.Stderr, "password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	if len(password) == 0 {
		return "", fmt.Errorf("empty password")
	}
	return string(password), nil
}

// writeToken stores the access token readable only by the current
// user, creating the parent directory if needed.
func writeToken(path, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	return nil
}
