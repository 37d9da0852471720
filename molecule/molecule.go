// Package molecule implements the offset-table binary layout used to persist
// and transmit component records.
//
// Layout summary (all numbers are little-endian uint32):
//
//	array   : fixed-size bytes, no header
//	fixvec  : item_count | items...
//	table   : total_size | offset_0 .. offset_{n-1} | field_0 .. field_{n-1}
//	union   : item_id | inner
//
// A table's field count is implied by its first offset. Readers in compatible
// mode accept tables carrying more fields than they know about; strict readers
// reject them.
package molecule

import (
	"encoding/binary"
	"fmt"
)

// NumberSize is the width of every header number.
const NumberSize = 4

// PackNumber encodes n as a little-endian uint32.
func PackNumber(n uint32) []byte {
	var b [NumberSize]byte
	binary.LittleEndian.PutUint32(b[:], n)
	return b[:]
}

// UnpackNumber decodes the leading little-endian uint32 of b.
// Callers must ensure len(b) >= NumberSize.
func UnpackNumber(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}

// VerifyArray checks that b is exactly size bytes.
func VerifyArray(typ string, b []byte, size int) error {
	if len(b) != size {
		return mismatch(typ, KindTotalSizeNotMatch, size, len(b))
	}
	return nil
}

// VerifyFixVec checks the item-count header of a fixed-item vector.
func VerifyFixVec(typ string, b []byte, itemSize int) error {
	if len(b) < NumberSize {
		return mismatch(typ, KindHeaderIsBroken, NumberSize, len(b))
	}
	count := int(UnpackNumber(b))
	want := NumberSize + itemSize*count
	if len(b) != want {
		return mismatch(typ, KindTotalSizeNotMatch, want, len(b))
	}
	return nil
}

// PackBytes encodes raw as a byte fixvec.
func PackBytes(raw []byte) []byte {
	out := make([]byte, 0, NumberSize+len(raw))
	out = append(out, PackNumber(uint32(len(raw)))...)
	return append(out, raw...)
}

// UnpackBytes verifies and returns the payload of a byte fixvec.
func UnpackBytes(typ string, b []byte) ([]byte, error) {
	if err := VerifyFixVec(typ, b, 1); err != nil {
		return nil, err
	}
	return b[NumberSize:], nil
}

// VerifyTable checks a table header and returns the field boundaries: the
// returned slice has one entry per field plus a final entry equal to the
// total size, so field i spans [offsets[i], offsets[i+1]).
//
// fieldCount is the number of fields the caller's schema defines. With
// compatible set, tables carrying additional trailing fields are accepted.
func VerifyTable(typ string, b []byte, fieldCount int, compatible bool) ([]int, error) {
	n := len(b)
	if n < NumberSize {
		return nil, mismatch(typ, KindHeaderIsBroken, NumberSize, n)
	}
	total := int(UnpackNumber(b))
	if n != total {
		return nil, mismatch(typ, KindTotalSizeNotMatch, total, n)
	}
	if n == NumberSize {
		if fieldCount != 0 {
			return nil, mismatch(typ, KindFieldCountNotMatch, fieldCount, 0)
		}
		return []int{NumberSize}, nil
	}
	if n < NumberSize*2 {
		return nil, mismatch(typ, KindHeaderIsBroken, NumberSize*2, n)
	}
	first := int(UnpackNumber(b[NumberSize:]))
	if first%NumberSize != 0 || first < NumberSize*2 {
		return nil, newError(typ, KindOffsetsNotMatch, fmt.Sprintf("first offset %d", first))
	}
	if n < first {
		return nil, mismatch(typ, KindHeaderIsBroken, first, n)
	}
	count := first/NumberSize - 1
	if count < fieldCount || (!compatible && count > fieldCount) {
		return nil, mismatch(typ, KindFieldCountNotMatch, fieldCount, count)
	}
	offsets := make([]int, 0, count+1)
	for i := 0; i < count; i++ {
		pos := NumberSize * (i + 1)
		offsets = append(offsets, int(UnpackNumber(b[pos:])))
	}
	offsets = append(offsets, total)
	for i := 1; i < len(offsets); i++ {
		if offsets[i-1] > offsets[i] {
			return nil, newError(typ, KindOffsetsNotMatch, fmt.Sprintf("offset %d (%d) exceeds offset %d (%d)", i-1, offsets[i-1], i, offsets[i]))
		}
	}
	return offsets, nil
}

// Fields slices b by offsets returned from VerifyTable.
func Fields(b []byte, offsets []int) [][]byte {
	if len(offsets) == 0 {
		return nil
	}
	out := make([][]byte, 0, len(offsets)-1)
	for i := 0; i+1 < len(offsets); i++ {
		out = append(out, b[offsets[i]:offsets[i+1]])
	}
	return out
}

// BuildTable serialises already-encoded fields into a table.
func BuildTable(fields ...[]byte) []byte {
	header := NumberSize * (len(fields) + 1)
	total := header
	for _, f := range fields {
		total += len(f)
	}
	out := make([]byte, 0, total)
	out = append(out, PackNumber(uint32(total))...)
	offset := header
	for _, f := range fields {
		out = append(out, PackNumber(uint32(offset))...)
		offset += len(f)
	}
	for _, f := range fields {
		out = append(out, f...)
	}
	return out
}

// SplitUnion returns the item id and inner bytes of a union.
func SplitUnion(typ string, b []byte) (uint32, []byte, error) {
	if len(b) < NumberSize {
		return 0, nil, mismatch(typ, KindHeaderIsBroken, NumberSize, len(b))
	}
	return UnpackNumber(b), b[NumberSize:], nil
}

// BuildUnion prefixes inner with its item id.
func BuildUnion(itemID uint32, inner []byte) []byte {
	out := make([]byte, 0, NumberSize+len(inner))
	out = append(out, PackNumber(itemID)...)
	return append(out, inner...)
}
