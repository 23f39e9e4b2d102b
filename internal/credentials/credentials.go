// Package credentials stores and resolves the FMOS API login.
//
// The store keeps two base64 encoded lines (identity, secret). When a
// passphrase is configured the same payload is wrapped in an armored age
// file using a scrypt recipient.
package credentials

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
	"filippo.io/age/armor"
)

var (
	// ErrNotFound is returned when no credential is stored.
	ErrNotFound = errors.New("no stored credentials")
	// ErrPassphraseRequired is returned when the store is encrypted and no
	// passphrase was configured.
	ErrPassphraseRequired = errors.New("credential store is encrypted; set LOADAVG_CREDS_PASSPHRASE")
)

// scryptWorkFactor is the log2 scrypt cost used for encrypted stores.
var scryptWorkFactor = 15

const armorHeader = "-----BEGIN AGE ENCRYPTED FILE-----"

// Credential is an API identity and its secret.
type Credential struct {
	Username string
	Password string
}

// Valid reports whether both halves are present.
func (c Credential) Valid() bool {
	return c.Username != "" && c.Password != ""
}

// Source names where a resolved credential came from.
type Source string

const (
	SourceEnvironment Source = "environment"
	SourceStored      Source = "stored"
	SourceNone        Source = "none"
)

// Store is the on-disk credential file.
type Store struct {
	Path       string
	Passphrase string
}

// Exists reports whether the store file is present.
func (s Store) Exists() bool {
	_, err := os.Stat(s.Path)
	return err == nil
}

// Load reads the stored credential.
func (s Store) Load() (Credential, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Credential{}, ErrNotFound
		}
		return Credential{}, fmt.Errorf("read credentials %s: %w", s.Path, err)
	}

	if bytes.HasPrefix(bytes.TrimSpace(data), []byte(armorHeader)) {
		if s.Passphrase == "" {
			return Credential{}, ErrPassphraseRequired
		}
		data, err = s.decrypt(data)
		if err != nil {
			return Credential{}, fmt.Errorf("decrypt credentials %s: %w", s.Path, err)
		}
	}

	cred, err := decode(data)
	if err != nil {
		return Credential{}, fmt.Errorf("parse credentials %s: %w", s.Path, err)
	}
	return cred, nil
}

// Save writes cred with the given permissions. The file is made readable
// by other identities when the backup hook (a different identity) must
// read it later.
func (s Store) Save(cred Credential, perm os.FileMode) error {
	if !cred.Valid() {
		return errors.New("refusing to store an incomplete credential")
	}
	payload := encode(cred)
	if s.Passphrase != "" {
		var err error
		payload, err = s.encrypt(payload)
		if err != nil {
			return fmt.Errorf("encrypt credentials: %w", err)
		}
	}

	dir := filepath.Dir(s.Path)
	tmp, err := os.CreateTemp(dir, ".fmos_api_creds.tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close credentials: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path); err != nil {
		return fmt.Errorf("install credentials %s: %w", s.Path, err)
	}
	return nil
}

// Remove deletes the store. A missing file is not an error.
func (s Store) Remove() error {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove credentials %s: %w", s.Path, err)
	}
	return nil
}

// Resolve applies the lookup priority: environment, then store. A missing
// credential is reported as SourceNone with a nil error; the caller
// decides whether to prompt or proceed unauthenticated.
func Resolve(env Credential, store Store) (Credential, Source, error) {
	if env.Valid() {
		return env, SourceEnvironment, nil
	}
	cred, err := store.Load()
	switch {
	case err == nil && cred.Valid():
		return cred, SourceStored, nil
	case err == nil, errors.Is(err, ErrNotFound):
		return Credential{}, SourceNone, nil
	default:
		return Credential{}, SourceNone, err
	}
}

// PermFor returns the store permissions for a writer. Elevated writers
// (and the hook that later reads as root) keep the original widened mode
// so both identities can read it.
func PermFor(elevated bool) os.FileMode {
	if elevated {
		return 0o644
	}
	return 0o600
}

func encode(c Credential) []byte {
	var buf bytes.Buffer
	buf.WriteString(base64.StdEncoding.EncodeToString([]byte(c.Username)))
	buf.WriteByte('\n')
	buf.WriteString(base64.StdEncoding.EncodeToString([]byte(c.Password)))
	buf.WriteByte('\n')
	return buf.Bytes()
}

func decode(data []byte) (Credential, error) {
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) < 2 {
		return Credential{}, errors.New("expected two lines")
	}
	user, err := base64.StdEncoding.DecodeString(strings.TrimSpace(lines[0]))
	if err != nil {
		return Credential{}, fmt.Errorf("decode identity: %w", err)
	}
	pass, err := base64.StdEncoding.DecodeString(strings.TrimSpace(lines[1]))
	if err != nil {
		return Credential{}, fmt.Errorf("decode secret: %w", err)
	}
	return Credential{Username: string(user), Password: string(pass)}, nil
}

func (s Store) encrypt(plain []byte) ([]byte, error) {
	recipient, err := age.NewScryptRecipient(s.Passphrase)
	if err != nil {
		return nil, err
	}
	recipient.SetWorkFactor(scryptWorkFactor)

	var buf bytes.Buffer
	aw := armor.NewWriter(&buf)
	w, err := age.Encrypt(aw, recipient)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(plain); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	if err := aw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s Store) decrypt(data []byte) ([]byte, error) {
	identity, err := age.NewScryptIdentity(s.Passphrase)
	if err != nil {
		return nil, err
	}
	r, err := age.Decrypt(armor.NewReader(bytes.NewReader(data)), identity)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}
