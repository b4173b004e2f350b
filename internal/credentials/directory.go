// Package credentials is a file-backed [goGuard.Verifier]: a YAML list of
// identities with Argon2id hashes, loaded into memory and swappable at
// runtime.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/password"
	"gopkg.in/yaml.v3"
)

// ErrDuplicateIdentity is returned when two entries normalize to the same identity.
var ErrDuplicateIdentity = errors.New("duplicate identity in credential file")

// Entry is one account in the credential file.
type Entry struct {
	Identity   string            `yaml:"identity"`
	ID         string            `yaml:"id"`
	Hash       string            `yaml:"hash"`
	Attributes map[string]string `yaml:"attributes,omitempty"`
}

type file struct {
	Users []Entry `yaml:"users"`
}

// Directory verifies secrets against an in-memory credential set.
type Directory struct {
	hasher  *password.Argon2
	path    string
	entries atomic.Pointer[map[string]Entry]
}

var _ goGuard.Verifier = (*Directory)(nil)

// Load reads the credential file at path.
func Load(path string, hasher *password.Argon2) (*Directory, error) {
	d := &Directory{hasher: hasher, path: path}
	if err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

// Parse builds a Directory from YAML read from r. The result cannot be
// reloaded.
func Parse(r io.Reader, hasher *password.Argon2) (*Directory, error) {
	entries, err := decode(r)
	if err != nil {
		return nil, err
	}
	d := &Directory{hasher: hasher}
	d.entries.Store(&entries)
	return d, nil
}

// Reload re-reads the file the Directory was loaded from. On error the
// previous entries stay in effect.
func (d *Directory) Reload() error {
	if d.path == "" {
		return errors.New("credential directory has no backing file")
	}
	f, err := os.Open(d.path)
	if err != nil {
		return fmt.Errorf("open credential file: %w", err)
	}
	defer f.Close()

	entries, err := decode(f)
	if err != nil {
		return err
	}
	d.entries.Store(&entries)
	return nil
}

// Len returns the number of loaded identities.
func (d *Directory) Len() int {
	return len(*d.entries.Load())
}

// Verify implements [goGuard.Verifier]. Unknown identities cost one dummy
// hash so they cannot be told apart by timing.
func (d *Directory) Verify(ctx context.Context, identity, secret string) (*goGuard.Principal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entry, ok := (*d.entries.Load())[identity]
	if !ok {
		d.hasher.VerifyDummy(secret)
		return nil, nil
	}

	match, err := d.hasher.Verify(secret, entry.Hash)
	if err != nil {
		return nil, fmt.Errorf("verify %q: %w", identity, err)
	}
	if !match {
		return nil, nil
	}

	id := entry.ID
	if id == "" {
		id = identity
	}
	return &goGuard.Principal{ID: id, Attributes: entry.Attributes}, nil
}

func decode(r io.Reader) (map[string]Entry, error) {
	var doc file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse credential file: %w", err)
	}

	entries := make(map[string]Entry, len(doc.Users))
	for i, e := range doc.Users {
		key, ok := goGuard.NormalizeIdentity(e.Identity)
		if !ok {
			return nil, fmt.Errorf("entry %d: invalid identity %q", i, e.Identity)
		}
		if e.Hash == "" {
			return nil, fmt.Errorf("entry %d (%s): missing hash", i, key)
		}
		if _, dup := entries[key]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateIdentity, key)
		}
		entries[key] = e
	}
	return entries, nil
}
