// Package crypt encrypts configuration files with an age scrypt passphrase
// and names their encrypted copies.
package crypt

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"path"

	"filippo.io/age"
)

// Extension is appended to every encrypted copy.
const Extension = ".age"

// DefaultWorkFactor is the scrypt log2(N) used for new files.
const DefaultWorkFactor = 18

var (
	// ErrWrongKey is returned when the passphrase does not open the file.
	ErrWrongKey = errors.New("wrong passphrase")
	// ErrCorrupt is returned when the ciphertext is not a valid age file.
	ErrCorrupt = errors.New("encrypted file is corrupt")
	// ErrEmptyPassphrase is returned for an empty passphrase.
	ErrEmptyPassphrase = errors.New("passphrase cannot be empty")
)

// Cipher encrypts and decrypts with a passphrase.
type Cipher struct {
	// WorkFactor is the scrypt log2(N); zero means DefaultWorkFactor.
	WorkFactor int
}

// Encrypt returns data encrypted to passphrase.
func (c Cipher) Encrypt(data []byte, passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating recipient: %w", err)
	}
	recipient.SetWorkFactor(c.workFactor())

	var out bytes.Buffer
	w, err := age.Encrypt(&out, recipient)
	if err != nil {
		return nil, fmt.Errorf("starting encryption: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("encrypting: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finishing encryption: %w", err)
	}
	return out.Bytes(), nil
}

// Decrypt opens data with passphrase.
func (c Cipher) Decrypt(data []byte, passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating identity: %w", err)
	}
	identity.SetMaxWorkFactor(max(c.workFactor(), DefaultWorkFactor) + 4)

	r, err := age.Decrypt(bytes.NewReader(data), identity)
	if err != nil {
		var noMatch *age.NoIdentityMatchError
		if errors.As(err, &noMatch) {
			return nil, ErrWrongKey
		}
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	plain, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return plain, nil
}

func (c Cipher) workFactor() int {
	if c.WorkFactor <= 0 {
		return DefaultWorkFactor
	}
	return c.WorkFactor
}

// HashName returns a deterministic, filesystem-safe digest of name.
func HashName(name string) string {
	sum := sha256.Sum256([]byte(name))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// EncryptedPath returns the stored relative path for sourcePath. With
// hideNames the parent directory and the full path are hashed so neither is
// readable in the backup.
func EncryptedPath(sourcePath string, hideNames bool) string {
	if !hideNames {
		return sourcePath + Extension
	}
	name := HashName(sourcePath) + Extension
	if parent := path.Dir(sourcePath); parent != "." && parent != "/" {
		return path.Join(HashName(parent), name)
	}
	return name
}
