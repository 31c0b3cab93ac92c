// Package auth finds and validates the Gemini API key.
package auth

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	credentialDir  = ".minipaint"
	credentialFile = "credentials.gpg"
)

// ErrNoAPIKey is returned when no source yields a key.
var ErrNoAPIKey = errors.New("API key not found: set GEMINI_API_KEY, add apiKey to the config file or create ~/.minipaint/credentials.gpg")

// GetAPIKey retrieves the Gemini API key. Priority order:
//  1. GEMINI_API_KEY environment variable
//  2. configured, the apiKey value of the config file
//  3. GPG-encrypted file at ~/.minipaint/credentials.gpg
func GetAPIKey(configured string) (string, error) {
	if key := strings.TrimSpace(os.Getenv("GEMINI_API_KEY")); key != "" {
		log.Debug().Msg("Using API key from environment variable")
		return key, nil
	}
	if key := strings.TrimSpace(configured); key != "" {
		log.Debug().Msg("Using API key from config file")
		return key, nil
	}

	key, err := getFromGPG()
	if err == nil && key != "" {
		log.Debug().Msg("Using API key from GPG encrypted file")
		return key, nil
	}

	log.Debug().Err(err).Msg("No API key source available")
	return "", ErrNoAPIKey
}

// getFromGPG decrypts the key with the gpg binary. A passphrase file at
// ~/.minipaint/.gpg-passphrase enables non-interactive use; it is ignored
// unless only its owner can read it.
func getFromGPG() (string, error) {
	credPath, err := getCredentialPath()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(credPath); os.IsNotExist(err) {
		return "", fmt.Errorf("GPG credentials file not found at %s", credPath)
	}

	args := []string{"--decrypt", "--quiet"}
	passphrasePath := filepath.Join(filepath.Dir(credPath), ".gpg-passphrase")
	if fi, err := os.Stat(passphrasePath); err == nil {
		if mode := fi.Mode().Perm(); mode&0o077 != 0 {
			log.Warn().
				Str("passphrase_file", passphrasePath).
				Str("permissions", fmt.Sprintf("%04o", mode)).
				Msg("Passphrase file has insecure permissions (should be 0600); skipping")
		} else {
			args = append(args, "--pinentry-mode", "loopback", "--passphrase-file", passphrasePath)
		}
	}
	args = append(args, credPath)

	log.Debug().Str("file", credPath).Msg("Decrypting GPG credentials")
	output, err := exec.Command("gpg", args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("GPG decryption failed: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("GPG decryption failed: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

func getCredentialPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, credentialDir, credentialFile), nil
}
