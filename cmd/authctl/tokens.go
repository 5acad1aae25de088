package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mrkeshav-05/learning-backend/auth"
)

var errNoSession = errors.New("no saved session; run login first")

func defaultTokenPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".authctl.json"
	}
	return filepath.Join(dir, "authctl", "tokens.json")
}

func loadTokens(path string) (auth.TokenPair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return auth.TokenPair{}, errNoSession
		}
		return auth.TokenPair{}, fmt.Errorf("reading %s: %w", path, err)
	}
	var pair auth.TokenPair
	if err := json.Unmarshal(data, &pair); err != nil {
		return auth.TokenPair{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	if pair.AccessToken == "" && pair.RefreshToken == "" {
		return auth.TokenPair{}, errNoSession
	}
	return pair, nil
}

// saveTokens writes through a temp file so a crash never leaves a torn pair.
func saveTokens(path string, pair auth.TokenPair) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating token dir: %w", err)
	}
	data, err := json.MarshalIndent(pair, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tokens-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func clearTokens(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
