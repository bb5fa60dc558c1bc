/*
Package procedure implements the cryptographic procedure runner: a small
set of typed step descriptors (key generation, Diffie-Hellman, KDF, AES key
wrap, hashing, signing, SLIP-10 and BIP-39 derivation) evaluated
sequentially against a vault, with an undo log that rolls back every
temporary record written during a failed run.

Steps move secrets only through the vault's guarded operations; the
runner's state table carries non-secret outputs (public keys, hashes,
signatures, ciphertexts) between steps by key.
*/
package procedure

import (
	"fmt"

	"github.com/cuemby/vault/pkg/log"
	"github.com/cuemby/vault/pkg/vaulterr"
	"github.com/cuemby/vault/pkg/vaultstore"
)

// Output is one step's published non-secret result, empty if the step
// wrote only a secret to the vault.
type Output struct {
	Key   string
	Value []byte
}

// Procedure is one typed step in a chain. Concrete types implementing it
// are defined across kind_*.go.
type Procedure interface {
	run(rt *runtime) (Output, error)
}

// undoEntry records one secret write made during a run, so it can be
// revoked if the run later fails.
type undoEntry struct {
	vid vaultstore.VaultId
	rid vaultstore.RecordId
}

// runtime is the shared, per-Run state threaded through every step: the
// vault being operated on, the table of published non-secret outputs
// (keyed by each step's output key), and the undo log.
type runtime struct {
	vault *vaultstore.Vault
	state map[string][]byte
	undo  []undoEntry
}

func newRuntime(v *vaultstore.Vault) *runtime {
	return &runtime{vault: v, state: make(map[string][]byte)}
}

// recordWrite appends (vid, rid) to the undo log unless permanent is true,
// in which case the caller has explicitly promoted it and it survives a
// rollback.
func (rt *runtime) recordWrite(vid vaultstore.VaultId, rid vaultstore.RecordId, permanent bool) {
	if permanent {
		return
	}
	rt.undo = append(rt.undo, undoEntry{vid: vid, rid: rid})
}

// publish stores a step's non-secret output for later steps to reference,
// and returns the Output for the caller.
func (rt *runtime) publish(key string, value []byte) Output {
	if key != "" {
		rt.state[key] = value
	}
	return Output{Key: key, Value: value}
}

// resolveInput returns literal bytes as-is, or looks up a prior step's
// published output by key.
func (rt *runtime) resolveInput(in Input) ([]byte, error) {
	if in.Literal != nil {
		return in.Literal, nil
	}
	v, ok := rt.state[in.Key]
	if !ok {
		return nil, vaulterr.New(vaulterr.KindMissingInput, "procedure.resolve_input",
			fmt.Errorf("missing input %q", in.Key))
	}
	return v, nil
}

// Input is either literal bytes or a reference to a prior step's output.
type Input struct {
	Literal []byte
	Key     string
}

// LiteralInput wraps raw bytes as a step Input.
func LiteralInput(b []byte) Input { return Input{Literal: b} }

// KeyInput references a prior step's output key as a step Input.
func KeyInput(key string) Input { return Input{Key: key} }

// Run evaluates procedures sequentially against vault. On success it
// returns each step's Output in order. On any failure, every secret
// written during this run (that was not explicitly promoted permanent) is
// revoked and the error is returned.
func Run(vault *vaultstore.Vault, procedures []Procedure) ([]Output, error) {
	rt := newRuntime(vault)
	outputs := make([]Output, 0, len(procedures))

	for i, p := range procedures {
		out, err := p.run(rt)
		if err != nil {
			log.Logger.Error().Int("step", i).Int("of", len(procedures)).Err(err).Msg("procedure step failed, rolling back")
			rollback(rt)
			return nil, err
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}

func rollback(rt *runtime) {
	for _, e := range rt.undo {
		rt.vault.Revoke(e.vid, e.rid)
	}
}
