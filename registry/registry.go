// Package registry publishes component definitions off-ledger.
//
// A definition record is stored as its exact encoded bytes, so the CID of a
// record and the data hash of the cell carrying it commit to the same
// content. The metadata a definition's info_hash names is stored alongside:
// info_hash is the sha2-256 digest of the metadata, which is also the
// multihash inside the metadata's CID.
package registry

import (
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/rs/zerolog"

	"ckbecs.dev/ecs/cidutil"
	"ckbecs.dev/ecs/schema"
	"ckbecs.dev/ecs/storage"
)

type Registry struct {
	CAS    storage.CAS
	Logger *zerolog.Logger
}

// New returns a Registry over cas. A nil logger disables logging.
func New(cas storage.CAS, logger *zerolog.Logger) *Registry {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &Registry{CAS: cas, Logger: logger}
}

// PutDefinition stores the encoding of def.
func (r *Registry) PutDefinition(def schema.ComponentDefinition) (cid.Cid, error) {
	return r.PutDefinitionBytes(def.Bytes())
}

// PutDefinitionBytes stores an encoded record after validating it strictly,
// the same check the definition cell's type verifier applies.
func (r *Registry) PutDefinitionBytes(b []byte) (cid.Cid, error) {
	if err := schema.Verify(b, schema.Strict); err != nil {
		return cid.Undef, fmt.Errorf("%w: %v", storage.ErrInvalidRecord, err)
	}
	id, err := r.CAS.Put(b)
	if err != nil {
		return cid.Undef, err
	}
	r.Logger.Debug().Str("cid", id.String()).Int("bytes", len(b)).Msg("definition stored")
	return id, nil
}

// GetDefinition fetches and decodes a record. Records written by newer
// schema versions are accepted, as a dispatching verifier would.
func (r *Registry) GetDefinition(id cid.Cid) (schema.ComponentDefinition, error) {
	b, err := r.CAS.Get(id)
	if err != nil {
		return schema.ComponentDefinition{}, err
	}
	def, err := schema.Decode(b, schema.Compatible)
	if err != nil {
		return schema.ComponentDefinition{}, fmt.Errorf("%w: %s: %v", storage.ErrInvalidRecord, id, err)
	}
	return def, nil
}

// PutInfo stores component metadata and returns the info_hash that commits
// to it.
func (r *Registry) PutInfo(metadata []byte) ([32]byte, cid.Cid, error) {
	id, err := r.CAS.Put(metadata)
	if err != nil {
		return [32]byte{}, cid.Undef, err
	}
	infoHash, err := cidutil.Digest(id)
	if err != nil {
		return [32]byte{}, cid.Undef, err
	}
	r.Logger.Debug().Str("cid", id.String()).Hex("info_hash", infoHash[:]).Msg("metadata stored")
	return infoHash, id, nil
}

// InfoCID returns the CID under which def's metadata is stored.
func InfoCID(def schema.ComponentDefinition) (cid.Cid, error) {
	v1, ok := def.V1()
	if !ok {
		return cid.Undef, fmt.Errorf("registry: definition variant %d has no info hash", def.Variant())
	}
	return cidutil.FromDigest(v1.InfoHash)
}

// Info fetches the metadata def commits to.
func (r *Registry) Info(def schema.ComponentDefinition) ([]byte, error) {
	id, err := InfoCID(def)
	if err != nil {
		return nil, err
	}
	return r.CAS.Get(id)
}
