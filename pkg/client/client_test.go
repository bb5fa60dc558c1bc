package client

import (
	"bytes"
	"testing"
	"time"

	"github.com/cuemby/vault/pkg/procedure"
	"github.com/cuemby/vault/pkg/vaultstore"
)

func TestClientWriteAndReadSecretGuarded(t *testing.T) {
	c := New("client-a")
	if err := c.CreateVault("db1"); err != nil {
		t.Fatalf("CreateVault() error = %v", err)
	}
	loc := vaultstore.NewLocation("db1", "rec1")
	if err := c.WriteSecret(loc, []byte("hunter2"), "password"); err != nil {
		t.Fatalf("WriteSecret() error = %v", err)
	}

	var got []byte
	err := c.ReadSecretGuarded(loc, func(pt []byte) error {
		got = append([]byte(nil), pt...)
		return nil
	})
	if err != nil {
		t.Fatalf("ReadSecretGuarded() error = %v", err)
	}
	if !bytes.Equal(got, []byte("hunter2")) {
		t.Errorf("ReadSecretGuarded() = %q, want %q", got, "hunter2")
	}
}

func TestClientRevokeThenGC(t *testing.T) {
	c := New("client-a")
	if err := c.CreateVault("db1"); err != nil {
		t.Fatalf("CreateVault() error = %v", err)
	}
	loc := vaultstore.NewLocation("db1", "rec1")
	if err := c.WriteSecret(loc, []byte("secret"), ""); err != nil {
		t.Fatalf("WriteSecret() error = %v", err)
	}
	c.Revoke(loc)
	c.GC("db1")

	vid, rid := loc.Resolve()
	if c.Vault().ContainsRecord(vid, rid) {
		t.Errorf("ContainsRecord() = true after Revoke()+GC()")
	}
}

func TestClientStoreRoundTrip(t *testing.T) {
	c := New("client-a")
	c.StoreInsert([]byte("k"), []byte("v"), time.Minute)
	got, ok := c.StoreGet([]byte("k"))
	if !ok || string(got) != "v" {
		t.Fatalf("StoreGet() = (%q, %v), want (%q, true)", got, ok, "v")
	}
	c.StoreRemove([]byte("k"))
	if _, ok := c.StoreGet([]byte("k")); ok {
		t.Errorf("StoreGet() after StoreRemove() ok = true")
	}
}

func TestClientExecuteProcedureChained(t *testing.T) {
	c := New("client-a")
	loc := vaultstore.NewLocation("db1", "secret")
	write := procedure.WriteVault{Data: []byte("abc"), Location: loc}
	digestStep := procedure.Sha2Hash{Variant: procedure.Sha256, Input: procedure.LiteralInput([]byte("abc")), OutputKey: "digest"}
	outputs, err := c.ExecuteProcedureChained([]procedure.Procedure{write, digestStep})
	if err != nil {
		t.Fatalf("ExecuteProcedureChained() error = %v", err)
	}
	if len(outputs) != 2 || len(outputs[1].Value) == 0 {
		t.Fatalf("ExecuteProcedureChained() outputs = %+v", outputs)
	}
}

func TestClientIDDerivedFromPath(t *testing.T) {
	c1 := New("same-path")
	c2 := New("same-path")
	if c1.ID() != c2.ID() {
		t.Errorf("ID() not deterministic across instances for the same path")
	}
	c3 := New("different-path")
	if c1.ID() == c3.ID() {
		t.Errorf("ID() collided for different paths")
	}
}
