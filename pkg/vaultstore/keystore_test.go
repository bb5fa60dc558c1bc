package vaultstore

import (
	"errors"
	"testing"
)

func vidFor(s string) VaultId {
	return H24([]byte(s))
}

func TestKeyStoreCreateRejectsDuplicate(t *testing.T) {
	ks := NewKeyStore()
	vid := vidFor("v1")
	if _, err := ks.Create(vid); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := ks.Create(vid); err == nil {
		t.Fatalf("Create() on an existing vault id succeeded, want error")
	}
}

func TestKeyStoreTakeInsertBalance(t *testing.T) {
	ks := NewKeyStore()
	vid := vidFor("v1")
	if _, err := ks.Create(vid); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	key, err := ks.Take(vid)
	if err != nil {
		t.Fatalf("Take() error = %v", err)
	}
	if _, err := ks.Take(vid); err == nil {
		t.Fatalf("second Take() on an already-taken key succeeded, want error")
	}
	if err := ks.Insert(vid, key); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if _, err := ks.Take(vid); err != nil {
		t.Fatalf("Take() after Insert() error = %v", err)
	}
}

func TestKeyStoreInsertWithoutTakeFails(t *testing.T) {
	ks := NewKeyStore()
	vid := vidFor("v1")
	key, err := ks.Create(vid)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := ks.Insert(vid, key); err == nil {
		t.Fatalf("Insert() without a prior Take() succeeded, want error")
	}
}

func TestKeyStoreUseKeepsBalanceOnError(t *testing.T) {
	ks := NewKeyStore()
	vid := vidFor("v1")
	if _, err := ks.Create(vid); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	wantErr := errors.New("boom")
	err := ks.Use(vid, func(*Key) error { return wantErr })
	if err != wantErr {
		t.Fatalf("Use() error = %v, want %v", err, wantErr)
	}
	// balance restored even though f failed
	if _, err := ks.Take(vid); err != nil {
		t.Fatalf("Take() after failed Use() error = %v", err)
	}
}

func TestKeyStoreContains(t *testing.T) {
	ks := NewKeyStore()
	vid := vidFor("v1")
	if ks.Contains(vid) {
		t.Errorf("Contains() = true before Create()")
	}
	if _, err := ks.Create(vid); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !ks.Contains(vid) {
		t.Errorf("Contains() = false after Create()")
	}
}
