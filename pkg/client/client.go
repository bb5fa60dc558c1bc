/*
Package client implements the per-caller aggregate that owns a vault's
KeyStore, record map, and non-secret Store, and exposes the vault core's
surface: create_vault, write_secret, read_secret_guarded, revoke, gc,
store access, and procedure execution. It is the one exported entry point
meant for the external collaborators named in spec.md §1 (actor shells,
CLI, policy engines) to call into — this package does not implement those
shells itself, only the surface they call.

A Client is single-goroutine: the concurrency model treats each client as
an actor observing its own total order of operations. The Store and the
KeyStore lock internally; the vault's record map has no locking.
*/
package client

import (
	"encoding/hex"
	"time"

	"github.com/cuemby/vault/pkg/log"
	"github.com/cuemby/vault/pkg/procedure"
	"github.com/cuemby/vault/pkg/store"
	"github.com/cuemby/vault/pkg/vaultstore"
)

// Client owns one caller's vault state: its KeyStore+records (via Vault),
// and its non-secret metadata Store.
type Client struct {
	id    vaultstore.ClientId
	vault *vaultstore.Vault
	store *store.Store
}

// New creates a Client identified by deriving its ClientId from path.
func New(path string) *Client {
	return &Client{
		id:    vaultstore.DeriveClientId([]byte(path)),
		vault: vaultstore.NewVault(),
		store: store.New(),
	}
}

// ID returns the client's derived identifier.
func (c *Client) ID() vaultstore.ClientId {
	return c.id
}

// CreateVault generates a fresh key for the vault identified by vaultPath.
func (c *Client) CreateVault(vaultPath string) error {
	vid := vaultstore.H24([]byte(vaultPath))
	err := c.vault.CreateKey(vid)
	if err == nil {
		log.WithClientID(hex.EncodeToString(c.id[:])).Info().Str("vault_id", hex.EncodeToString(vid[:])).Msg("vault created")
	}
	return err
}

// WriteSecret encrypts plaintext under loc's vault key and stores it with
// hint.
func (c *Client) WriteSecret(loc vaultstore.Location, plaintext []byte, hint string) error {
	vid, rid := loc.Resolve()
	return c.vault.Write(vid, rid, plaintext, vaultstore.NewRecordHint(hint))
}

// ReadSecretGuarded unlocks the record at loc and passes its plaintext to
// f; the plaintext never leaves this call.
func (c *Client) ReadSecretGuarded(loc vaultstore.Location, f func([]byte) error) error {
	vid, rid := loc.Resolve()
	return c.vault.GetGuard(vid, rid, f)
}

// Revoke tombstones the record at loc.
func (c *Client) Revoke(loc vaultstore.Location) {
	vid, rid := loc.Resolve()
	c.vault.Revoke(vid, rid)
}

// GC drops tombstoned records in the vault identified by vaultPath.
func (c *Client) GC(vaultPath string) {
	c.vault.GC(vaultstore.H24([]byte(vaultPath)))
}

// ExecuteProcedure runs a single procedure against the client's vault.
func (c *Client) ExecuteProcedure(p procedure.Procedure) (procedure.Output, error) {
	results, err := procedure.Run(c.vault, []procedure.Procedure{p})
	if err != nil {
		return procedure.Output{}, err
	}
	if len(results) == 0 {
		return procedure.Output{}, nil
	}
	return results[0], nil
}

// ExecuteProcedureChained runs a sequence of procedures in order, threading
// outputs through a shared state table; on any failure every temp record
// written during the run is revoked and non-temp records are kept.
func (c *Client) ExecuteProcedureChained(ps []procedure.Procedure) ([]procedure.Output, error) {
	return procedure.Run(c.vault, ps)
}

// StoreInsert places a non-secret value in the client's TTL store.
func (c *Client) StoreInsert(key, value []byte, ttl time.Duration) {
	c.store.Insert(key, value, ttl)
}

// StoreGet retrieves a non-secret value from the client's TTL store.
func (c *Client) StoreGet(key []byte) ([]byte, bool) {
	return c.store.Get(key)
}

// StoreRemove deletes a key from the client's TTL store.
func (c *Client) StoreRemove(key []byte) {
	c.store.Remove(key)
}

// Vault exposes the underlying Vault for callers that need direct access
// (e.g. pkg/snapshot's KeyResolver).
func (c *Client) Vault() *vaultstore.Vault {
	return c.vault
}

// Store exposes the underlying non-secret Store.
func (c *Client) Store() *store.Store {
	return c.store
}
