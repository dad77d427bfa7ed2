// Package credentials holds the read-only account list of the service.
//
// Accounts come from a flat file with one "email password" pair per
// line. Passwords are SHA-256 digested and then bcrypt-hashed while
// loading, so length is not limited by bcrypt; the plaintext is not
// retained. The Store is immutable after Load and safe for concurrent use.
package credentials

import (
	"bufio"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when the email is unknown so that
// Verify costs one bcrypt comparison either way.
var dummyHash, _ = bcrypt.GenerateFromPassword(prehash("share-drop-dummy-password"), bcrypt.DefaultCost)

// maxLineBytes bounds a credential line; longer lines are skipped.
const maxLineBytes = 64 << 10

// Store maps email addresses to bcrypt password hashes.
type Store struct {
	hashes map[string][]byte
	cost   int
}

// Load reads the credential file at path. A missing file yields an empty
// store; malformed lines are skipped with a warning.
func Load(path string, logger *zap.Logger) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("credential file not found, no users loaded", zap.String("path", path))
			return &Store{hashes: map[string][]byte{}, cost: bcrypt.DefaultCost}, nil
		}
		return nil, fmt.Errorf("open credential file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Parse(f, bcrypt.DefaultCost, logger.With(zap.String("path", path)))
}

// Parse builds a store from r, hashing each password with the given
// bcrypt cost.
func Parse(r io.Reader, cost int, logger *zap.Logger) (*Store, error) {
	s := &Store{hashes: make(map[string][]byte), cost: cost}

	br := bufio.NewReaderSize(r, maxLineBytes)
	lineNo := 0
	for {
		raw, tooLong, err := readLine(br)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read credential file: %w", err)
		}
		if raw != "" || tooLong {
			lineNo++
			if tooLong {
				logger.Warn("overlong credential line skipped", zap.Int("line", lineNo))
			} else {
				s.add(strings.TrimSpace(raw), lineNo, logger)
			}
		}
		if err != nil {
			break
		}
	}

	return s, nil
}

// readLine returns the next line including its newline. A line that
// does not fit the reader's buffer is consumed and reported as tooLong.
func readLine(br *bufio.Reader) (line string, tooLong bool, err error) {
	b, err := br.ReadSlice('\n')
	for errors.Is(err, bufio.ErrBufferFull) {
		tooLong = true
		_, err = br.ReadSlice('\n')
	}
	if tooLong {
		return "", true, err
	}
	return string(b), false, err
}

func (s *Store) add(line string, lineNo int, logger *zap.Logger) {
	if line == "" {
		return
	}

	email, password, ok := splitLine(line)
	if !ok {
		logger.Warn("invalid credential line skipped", zap.Int("line", lineNo))
		return
	}

	hash, err := bcrypt.GenerateFromPassword(prehash(password), s.cost)
	if err != nil {
		logger.Warn("credential skipped", zap.Int("line", lineNo), zap.String("email", email), zap.Error(err))
		return
	}
	s.hashes[email] = hash
	logger.Info("loaded user", zap.String("email", email))
}

// prehash maps a password of any length onto 44 bytes, below bcrypt's
// 72-byte input limit.
func prehash(password string) []byte {
	sum := sha256.Sum256([]byte(password))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

// splitLine splits "email<whitespace>password" on the first whitespace
// run. The password may itself contain inner spaces.
func splitLine(line string) (email, password string, ok bool) {
	idx := strings.IndexFunc(line, isSpace)
	if idx <= 0 {
		return "", "", false
	}
	email = line[:idx]
	password = strings.TrimSpace(line[idx:])
	if email == "" || password == "" {
		return "", "", false
	}
	return email, password, true
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\v' || r == '\f' || r == '\r'
}

// Verify reports whether password matches the stored hash for email.
func (s *Store) Verify(email, password string) bool {
	hash, ok := s.hashes[email]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(dummyHash, prehash(password))
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, prehash(password)) == nil
}

// Has reports whether email is a known account.
func (s *Store) Has(email string) bool {
	_, ok := s.hashes[email]
	return ok
}

// Len returns the number of loaded accounts.
func (s *Store) Len() int {
	return len(s.hashes)
}
