package snapshot

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/cuemby/vault/pkg/vaultstore"
)

func newHostVault(t *testing.T) *vaultstore.Vault {
	t.Helper()
	return vaultstore.NewVault()
}

func TestSnapshotWriteReadRoundTrip(t *testing.T) {
	host := newHostVault(t)
	clientID := vaultstore.DeriveClientId([]byte("client-a"))

	v := vaultstore.NewVault()
	vid, rid := vaultstore.NewLocation("db1", "rec1").Resolve()
	if err := v.CreateKey(vid); err != nil {
		t.Fatalf("CreateKey() error = %v", err)
	}
	if err := v.Write(vid, rid, []byte("top secret"), vaultstore.NewRecordHint("note")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	snap := New()
	if err := snap.AddData(clientID, v.Keys(), v.DB(), []byte("non-secret-metadata"), host); err != nil {
		t.Fatalf("AddData() error = %v", err)
	}
	if !snap.HasData(clientID) {
		t.Fatalf("HasData() = false after AddData()")
	}

	master := bytes.Repeat([]byte{0x42}, masterKeySize)
	path := filepath.Join(t.TempDir(), "snap.bin")
	if err := snap.Write(path, LiteralKey(master), host); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	loaded, err := Read(path, LiteralKey(master), host)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !loaded.HasData(clientID) {
		t.Fatalf("HasData() = false after Read()")
	}

	keys, records, storeBytes, err := loaded.GetState(clientID, host)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if string(storeBytes) != "non-secret-metadata" {
		t.Errorf("GetState() storeBytes = %q, want %q", storeBytes, "non-secret-metadata")
	}

	restored := vaultstore.RestoreVault(keys, records)
	var got []byte
	err = restored.GetGuard(vid, rid, func(pt []byte) error {
		got = append([]byte(nil), pt...)
		return nil
	})
	if err != nil {
		t.Fatalf("GetGuard() on restored vault error = %v", err)
	}
	if string(got) != "top secret" {
		t.Errorf("restored vault secret = %q, want %q", got, "top secret")
	}
}

func TestSnapshotPathNamedResolvesUnderHomeDir(t *testing.T) {
	home := t.TempDir()
	sp, err := Named(home, "vault.snapshot")
	if err != nil {
		t.Fatalf("Named() error = %v", err)
	}
	want := filepath.Join(home, "vault.snapshot")
	if sp.String() != want {
		t.Errorf("Named() = %q, want %q", sp.String(), want)
	}

	if _, err := Named(home, filepath.Join(home, "vault.snapshot")); err == nil {
		t.Errorf("Named() with an absolute name succeeded, want error")
	}
}

func TestSnapshotPathFromAbsolutePathRejectsRelative(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "vault.snapshot")
	sp, err := FromAbsolutePath(abs)
	if err != nil {
		t.Fatalf("FromAbsolutePath() error = %v", err)
	}
	if sp.String() != abs {
		t.Errorf("FromAbsolutePath() = %q, want %q", sp.String(), abs)
	}

	if _, err := FromAbsolutePath("relative/path"); err == nil {
		t.Errorf("FromAbsolutePath() with a relative path succeeded, want error")
	}
}

func TestSnapshotGetStateWithoutDataFails(t *testing.T) {
	host := newHostVault(t)
	snap := New()
	_, _, _, err := snap.GetState(vaultstore.DeriveClientId([]byte("nobody")), host)
	if err == nil {
		t.Fatalf("GetState() on an unknown client succeeded, want error")
	}
}

func TestSnapshotReadRejectsWrongMasterKey(t *testing.T) {
	host := newHostVault(t)
	clientID := vaultstore.DeriveClientId([]byte("client-a"))
	v := vaultstore.NewVault()
	if err := v.CreateKey(vaultstore.H24([]byte("db1"))); err != nil {
		t.Fatalf("CreateKey() error = %v", err)
	}

	snap := New()
	if err := snap.AddData(clientID, v.Keys(), v.DB(), nil, host); err != nil {
		t.Fatalf("AddData() error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "snap.bin")
	good := bytes.Repeat([]byte{0x11}, masterKeySize)
	if err := snap.Write(path, LiteralKey(good), host); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	bad := bytes.Repeat([]byte{0x22}, masterKeySize)
	if _, err := Read(path, LiteralKey(bad), host); err == nil {
		t.Fatalf("Read() with the wrong master key succeeded, want error")
	}
}

func TestSnapshotIndependentClientsDecryptSeparately(t *testing.T) {
	host := newHostVault(t)
	clientA := vaultstore.DeriveClientId([]byte("client-a"))
	clientB := vaultstore.DeriveClientId([]byte("client-b"))

	vA := vaultstore.NewVault()
	vidA, ridA := vaultstore.NewLocation("a-db", "a-rec").Resolve()
	if err := vA.CreateKey(vidA); err != nil {
		t.Fatalf("CreateKey(A) error = %v", err)
	}
	if err := vA.Write(vidA, ridA, []byte("alice secret"), vaultstore.NewRecordHint("")); err != nil {
		t.Fatalf("Write(A) error = %v", err)
	}

	vB := vaultstore.NewVault()
	vidB, ridB := vaultstore.NewLocation("b-db", "b-rec").Resolve()
	if err := vB.CreateKey(vidB); err != nil {
		t.Fatalf("CreateKey(B) error = %v", err)
	}
	if err := vB.Write(vidB, ridB, []byte("bob secret"), vaultstore.NewRecordHint("")); err != nil {
		t.Fatalf("Write(B) error = %v", err)
	}

	snap := New()
	if err := snap.AddData(clientA, vA.Keys(), vA.DB(), nil, host); err != nil {
		t.Fatalf("AddData(A) error = %v", err)
	}
	if err := snap.AddData(clientB, vB.Keys(), vB.DB(), nil, host); err != nil {
		t.Fatalf("AddData(B) error = %v", err)
	}

	keysA, recordsA, _, err := snap.GetState(clientA, host)
	if err != nil {
		t.Fatalf("GetState(A) error = %v", err)
	}
	restoredA := vaultstore.RestoreVault(keysA, recordsA)
	var gotA []byte
	err = restoredA.GetGuard(vidA, ridA, func(pt []byte) error {
		gotA = append([]byte(nil), pt...)
		return nil
	})
	if err != nil {
		t.Fatalf("GetGuard(A) error = %v", err)
	}
	if string(gotA) != "alice secret" {
		t.Errorf("client A secret = %q, want %q", gotA, "alice secret")
	}

	if restoredA.ContainsRecord(vidB, ridB) {
		t.Errorf("client A's restored vault unexpectedly contains client B's record")
	}
}
