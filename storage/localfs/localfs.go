// Package localfs is a filesystem-backed CAS.
package localfs

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ipfs/go-cid"

	"ckbecs.dev/ecs/cidutil"
	"ckbecs.dev/ecs/storage"
)

const tmpDir = ".tmp"

// CAS stores each object in its own read-only file, sharded by the first two
// characters of the CID string.
//
// Objects are written to a temporary file and hard-linked into place, so a
// reader never observes a partial object and an existing object is never
// replaced.
type CAS struct {
	root string
}

var _ storage.CAS = (*CAS)(nil)

// New constructs a filesystem CAS rooted at root, creating it if needed.
func New(root string) (*CAS, error) {
	if root == "" {
		return nil, errors.New("localfs: root directory is required")
	}
	if err := os.MkdirAll(filepath.Join(root, tmpDir), 0o755); err != nil {
		return nil, err
	}
	return &CAS{root: root}, nil
}

// Root returns the store directory.
func (c *CAS) Root() string { return c.root }

func (c *CAS) Put(b []byte) (cid.Cid, error) {
	id, err := cidutil.CIDv1RawSHA256CID(b)
	if err != nil {
		return cid.Undef, err
	}
	path := c.pathFor(id)
	if _, err := os.Stat(path); err == nil {
		return id, c.checkExisting(id, b)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return cid.Undef, err
	}

	tmp, err := os.CreateTemp(filepath.Join(c.root, tmpDir), "put-*")
	if err != nil {
		return cid.Undef, err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return cid.Undef, err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return cid.Undef, err
	}
	if err := tmp.Close(); err != nil {
		return cid.Undef, err
	}
	if err := os.Chmod(tmp.Name(), 0o444); err != nil {
		return cid.Undef, err
	}
	if err := os.Link(tmp.Name(), path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			// Lost a race with a concurrent Put of the same object.
			return id, c.checkExisting(id, b)
		}
		return cid.Undef, err
	}
	return id, nil
}

// checkExisting reports ErrImmutable unless the stored object is intact and
// equal to b.
func (c *CAS) checkExisting(id cid.Cid, b []byte) error {
	existing, err := c.Get(id)
	if err != nil || !bytes.Equal(existing, b) {
		return storage.ErrImmutable
	}
	return nil
}

func (c *CAS) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	b, err := os.ReadFile(c.pathFor(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	got, err := cidutil.CIDv1RawSHA256CID(b)
	if err != nil {
		return nil, err
	}
	if got != id {
		return nil, storage.ErrCIDMismatch
	}
	return b, nil
}

func (c *CAS) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	_, err := os.Stat(c.pathFor(id))
	return err == nil
}

// List calls fn for every stored CID in lexical order of the shard layout.
// Files whose names do not parse as CIDs are skipped.
func (c *CAS) List(fn func(cid.Cid) error) error {
	return filepath.WalkDir(c.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == tmpDir {
				return filepath.SkipDir
			}
			return nil
		}
		id, perr := cid.Decode(d.Name())
		if perr != nil {
			return nil
		}
		return fn(id)
	})
}

func (c *CAS) pathFor(id cid.Cid) string {
	s := id.String()
	if len(s) < 2 {
		return filepath.Join(c.root, s)
	}
	return filepath.Join(c.root, s[:2], s)
}
