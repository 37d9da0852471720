// Package cidutil names off-ledger objects.
//
// Objects are addressed by CIDv1 with the "raw" multicodec and a sha2-256
// multihash. A definition's info_hash is the bare sha2-256 digest of its
// metadata, so an info_hash and the metadata CID convert losslessly.
package cidutil

import (
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// DigestSize is the length of a sha2-256 digest.
const DigestSize = 32

// CIDv1RawSHA256CID returns a CIDv1 (raw + sha2-256) derived from data.
func CIDv1RawSHA256CID(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// FromDigest returns the CID of the object whose sha2-256 digest is d.
func FromDigest(d [DigestSize]byte) (cid.Cid, error) {
	mh, err := multihash.Encode(d[:], multihash.SHA2_256)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, mh), nil
}

// Digest is the inverse of FromDigest. It rejects CIDs that are not
// raw + sha2-256.
func Digest(id cid.Cid) ([DigestSize]byte, error) {
	var out [DigestSize]byte
	if !id.Defined() {
		return out, fmt.Errorf("cidutil: undefined cid")
	}
	if id.Version() != 1 || id.Type() != cid.Raw {
		return out, fmt.Errorf("cidutil: %s is not a CIDv1 raw cid", id)
	}
	dm, err := multihash.Decode(id.Hash())
	if err != nil {
		return out, err
	}
	if dm.Code != multihash.SHA2_256 || len(dm.Digest) != DigestSize {
		return out, fmt.Errorf("cidutil: %s is not sha2-256 (%s)", id, dm.Name)
	}
	copy(out[:], dm.Digest)
	return out, nil
}
