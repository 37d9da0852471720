package storage

import (
	"fmt"

	"github.com/ipfs/go-cid"

	"ckbecs.dev/ecs/cidutil"
)

// NamedCAS associates a CAS with a stable backend name.
type NamedCAS struct {
	Name string
	CAS  CAS
}

// WritePolicy selects which backends a MultiCAS writes to.
type WritePolicy string

const (
	// WriteFirst writes to the first backend only.
	WriteFirst WritePolicy = "first"
	// WriteAll writes to every backend and requires all of them to agree on
	// the CID.
	WriteAll WritePolicy = "all"
)

// ParseWritePolicy accepts "", "first" and "all". The empty string means
// WriteFirst.
func ParseWritePolicy(s string) (WritePolicy, error) {
	switch WritePolicy(s) {
	case "", WriteFirst:
		return WriteFirst, nil
	case WriteAll:
		return WriteAll, nil
	default:
		return "", fmt.Errorf("storage: unknown write policy %q", s)
	}
}

// MultiCAS provides deterministic, ordered fallback across several backends.
//
// Reads try Backends in slice order; callers MUST supply a fixed order.
// Writes follow Policy.
type MultiCAS struct {
	Backends []NamedCAS
	Policy   WritePolicy
}

var _ CAS = MultiCAS{}

func (m MultiCAS) Put(bytes []byte) (cid.Cid, error) {
	id, _, err := m.PutAll(bytes)
	return id, err
}

// PutAll writes bytes according to the policy and returns the canonical CID
// together with what each written backend returned. A backend returning a
// different CID yields ErrCIDMismatch.
func (m MultiCAS) PutAll(bytes []byte) (cid.Cid, map[string]cid.Cid, error) {
	if len(m.Backends) == 0 {
		return cid.Undef, nil, ErrNoBackends
	}
	want, err := cidutil.CIDv1RawSHA256CID(bytes)
	if err != nil {
		return cid.Undef, nil, err
	}

	targets := m.Backends[:1]
	if m.Policy == WriteAll {
		targets = m.Backends
	}
	out := make(map[string]cid.Cid, len(targets))
	for _, b := range targets {
		if b.CAS == nil {
			return cid.Undef, out, fmt.Errorf("storage: nil CAS for backend %q", b.Name)
		}
		got, err := b.CAS.Put(bytes)
		if err != nil {
			return cid.Undef, out, fmt.Errorf("storage: backend %q: %w", b.Name, err)
		}
		out[b.Name] = got
		if got != want {
			return cid.Undef, out, fmt.Errorf("%w: backend %q returned %s, want %s", ErrCIDMismatch, b.Name, got, want)
		}
	}
	return want, out, nil
}

// Get returns the first hit. A backend error other than ErrNotFound stops
// the search.
func (m MultiCAS) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, ErrInvalidCID
	}
	for _, b := range m.Backends {
		if b.CAS == nil {
			continue
		}
		out, err := b.CAS.Get(id)
		if err == nil {
			return out, nil
		}
		if IsNotFound(err) {
			continue
		}
		return nil, fmt.Errorf("storage: backend %q: %w", b.Name, err)
	}
	return nil, ErrNotFound
}

func (m MultiCAS) Has(id cid.Cid) bool {
	for _, b := range m.Backends {
		if b.CAS != nil && b.CAS.Has(id) {
			return true
		}
	}
	return false
}
