package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// secretBytes is the amount of randomness in a generated secret.
const secretBytes = 32

// LoadOrCreateSecret returns the signing secret stored at path. When the
// file does not exist (or is blank) a new hex-encoded secret is
// generated and written with owner-only permissions, so sessions stay
// valid across restarts.
func LoadOrCreateSecret(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if s := strings.TrimSpace(string(b)); s != "" {
			return []byte(s), nil
		}
		return writeSecret(path, os.O_WRONLY|os.O_TRUNC)
	case errors.Is(err, fs.ErrNotExist):
		secret, werr := writeSecret(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL)
		if errors.Is(werr, fs.ErrExist) {
			// Another process created it between our read and write.
			return LoadOrCreateSecret(path)
		}
		return secret, werr
	default:
		return nil, fmt.Errorf("read secret file: %w", err)
	}
}

func writeSecret(path string, flag int) ([]byte, error) {
	raw := make([]byte, secretBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}
	secret := []byte(hex.EncodeToString(raw))

	f, err := os.OpenFile(path, flag, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create secret file: %w", err)
	}
	if _, err := f.Write(secret); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write secret file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close secret file: %w", err)
	}
	return secret, nil
}
