package molecule

import (
	"bytes"
	"testing"
)

func TestBuildTable_VerifyTableRoundTrip(t *testing.T) {
	fields := [][]byte{PackBytes([]byte("abc")), bytes.Repeat([]byte{7}, 32), {1}}
	b := BuildTable(fields...)

	offsets, err := VerifyTable("T", b, 3, false)
	if err != nil {
		t.Fatalf("VerifyTable: %v", err)
	}
	got := Fields(b, offsets)
	if len(got) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(got))
	}
	for i := range fields {
		if !bytes.Equal(got[i], fields[i]) {
			t.Fatalf("field %d mismatch", i)
		}
	}
}

func TestVerifyTable_FieldCount(t *testing.T) {
	b := BuildTable([]byte{1}, []byte{2}, []byte{3}, []byte{4})

	if _, err := VerifyTable("T", b, 3, false); !IsKind(err, KindFieldCountNotMatch) {
		t.Fatalf("strict: expected FieldCountNotMatch, got %v", err)
	}
	offsets, err := VerifyTable("T", b, 3, true)
	if err != nil {
		t.Fatalf("compatible: %v", err)
	}
	if len(offsets) != 5 {
		t.Fatalf("expected 4 fields + total, got %v", offsets)
	}
	if _, err := VerifyTable("T", b, 5, true); !IsKind(err, KindFieldCountNotMatch) {
		t.Fatalf("too few fields: expected FieldCountNotMatch, got %v", err)
	}
}

func TestVerifyTable_RejectsBrokenHeaders(t *testing.T) {
	good := BuildTable([]byte{1}, []byte{2})

	if _, err := VerifyTable("T", good[:3], 2, false); !IsKind(err, KindHeaderIsBroken) {
		t.Fatalf("short: expected HeaderIsBroken, got %v", err)
	}
	if _, err := VerifyTable("T", good[:len(good)-1], 2, false); !IsKind(err, KindTotalSizeNotMatch) {
		t.Fatalf("truncated: expected TotalSizeNotMatch, got %v", err)
	}

	misaligned := append([]byte(nil), good...)
	copy(misaligned[4:], PackNumber(13))
	if _, err := VerifyTable("T", misaligned, 2, false); !IsKind(err, KindOffsetsNotMatch) {
		t.Fatalf("misaligned: expected OffsetsNotMatch, got %v", err)
	}

	decreasing := append([]byte(nil), good...)
	copy(decreasing[8:], PackNumber(uint32(len(good)+1)))
	if _, err := VerifyTable("T", decreasing, 2, false); !IsKind(err, KindOffsetsNotMatch) {
		t.Fatalf("decreasing: expected OffsetsNotMatch, got %v", err)
	}
}

func TestVerifyTable_NeverPanicsOnTruncation(t *testing.T) {
	b := BuildTable(PackBytes([]byte("component")), bytes.Repeat([]byte{1}, 32), []byte{0})
	for i := 0; i < len(b); i++ {
		if _, err := VerifyTable("T", b[:i], 3, true); err == nil {
			t.Fatalf("prefix %d: expected error", i)
		}
	}
}

func TestEmptyTable(t *testing.T) {
	b := BuildTable()
	if !bytes.Equal(b, []byte{4, 0, 0, 0}) {
		t.Fatalf("unexpected empty table encoding %x", b)
	}
	if _, err := VerifyTable("T", b, 0, false); err != nil {
		t.Fatalf("VerifyTable: %v", err)
	}
	if _, err := VerifyTable("T", b, 1, true); !IsKind(err, KindFieldCountNotMatch) {
		t.Fatalf("expected FieldCountNotMatch, got %v", err)
	}
}

func TestFixVec(t *testing.T) {
	b := PackBytes([]byte{9, 8, 7})
	raw, err := UnpackBytes("Bytes", b)
	if err != nil {
		t.Fatalf("UnpackBytes: %v", err)
	}
	if !bytes.Equal(raw, []byte{9, 8, 7}) {
		t.Fatalf("payload mismatch: %x", raw)
	}
	if _, err := UnpackBytes("Bytes", b[:5]); !IsKind(err, KindTotalSizeNotMatch) {
		t.Fatalf("expected TotalSizeNotMatch, got %v", err)
	}
	if _, err := UnpackBytes("Bytes", b[:2]); !IsKind(err, KindHeaderIsBroken) {
		t.Fatalf("expected HeaderIsBroken, got %v", err)
	}
}

func TestUnion(t *testing.T) {
	b := BuildUnion(3, []byte{1, 2})
	id, inner, err := SplitUnion("U", b)
	if err != nil {
		t.Fatalf("SplitUnion: %v", err)
	}
	if id != 3 || !bytes.Equal(inner, []byte{1, 2}) {
		t.Fatalf("unexpected union parts id=%d inner=%x", id, inner)
	}
	if _, _, err := SplitUnion("U", []byte{1}); !IsKind(err, KindHeaderIsBroken) {
		t.Fatalf("expected HeaderIsBroken, got %v", err)
	}
}
