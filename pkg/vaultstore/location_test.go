package vaultstore

import "testing"

func TestLocationResolveIsDeterministic(t *testing.T) {
	loc := NewLocation("db1", "record1")
	vid1, rid1 := loc.Resolve()
	vid2, rid2 := loc.Resolve()
	if vid1 != vid2 || rid1 != rid2 {
		t.Fatalf("Resolve() not deterministic: (%x,%x) vs (%x,%x)", vid1, rid1, vid2, rid2)
	}
}

func TestLocationResolveDiffersByPath(t *testing.T) {
	vid1, rid1 := NewLocation("db1", "record1").Resolve()
	vid2, rid2 := NewLocation("db2", "record1").Resolve()
	if vid1 == vid2 {
		t.Errorf("different vault paths produced the same VaultId")
	}
	vid3, rid3 := NewLocation("db1", "record2").Resolve()
	if vid1 != vid3 {
		t.Errorf("same vault path produced different VaultId across records")
	}
	if rid1 != rid2 {
		t.Errorf("same record path produced different RecordId across vaults")
	}
	if rid1 == rid3 {
		t.Errorf("different record paths produced the same RecordId")
	}
}

func TestDeriveClientIdMatchesH24(t *testing.T) {
	path := []byte("client-a")
	cid := DeriveClientId(path)
	want := H24(path)
	if cid != ClientId(want) {
		t.Errorf("DeriveClientId diverges from H24")
	}
}

func TestRecordHintRoundTripsThroughString(t *testing.T) {
	h := NewRecordHint("ssh-key")
	if got := h.String(); got != "ssh-key" {
		t.Errorf("String() = %q, want %q", got, "ssh-key")
	}
}

func TestRecordHintTruncatesLongStrings(t *testing.T) {
	long := "this-hint-is-definitely-longer-than-24-bytes"
	h := NewRecordHint(long)
	if got := h.String(); got != long[:24] {
		t.Errorf("String() = %q, want %q", got, long[:24])
	}
}
