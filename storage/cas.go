// Package storage is the content-addressed store behind the off-ledger
// definition registry: encoded definition records and the metadata their
// info_hash commits to.
package storage

import "github.com/ipfs/go-cid"

// CAS is a minimal content-addressable storage interface.
//
// Contract:
// - Put MUST be idempotent.
// - Stored objects MUST be immutable.
// - The CID MUST be cidutil.CIDv1RawSHA256CID of the bytes written.
// - Get MUST return ErrNotFound when the CID is absent and MUST NOT return
//   bytes that do not hash to the requested CID.
type CAS interface {
	Put(bytes []byte) (cid.Cid, error)
	Get(id cid.Cid) ([]byte, error)
	Has(id cid.Cid) bool
}
