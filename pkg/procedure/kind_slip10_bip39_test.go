package procedure

import (
	"bytes"
	"testing"

	"github.com/cuemby/vault/pkg/vaultstore"
)

func TestBip39GenerateThenRecoverYieldSameSeed(t *testing.T) {
	v := vaultstore.NewVault()
	gen := Bip39Generate{EntropyBits: 128, MnemonicKey: "mnemonic", Output: loc("seed")}
	out, err := Run(v, []Procedure{gen})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	mnemonic := string(out[0].Value)
	seed := readSecret(t, v, loc("seed"))

	recoverStep := Bip39Recover{Mnemonic: mnemonic, Output: loc("recovered-seed")}
	if _, err := Run(v, []Procedure{recoverStep}); err != nil {
		t.Fatalf("Run() recover error = %v", err)
	}
	recoveredSeed := readSecret(t, v, loc("recovered-seed"))

	if !bytes.Equal(seed, recoveredSeed) {
		t.Errorf("recovered seed differs from generated seed")
	}
}

func TestBip39RecoverRejectsInvalidMnemonic(t *testing.T) {
	v := vaultstore.NewVault()
	recoverStep := Bip39Recover{Mnemonic: "not a valid mnemonic at all", Output: loc("seed")}
	if _, err := Run(v, []Procedure{recoverStep}); err == nil {
		t.Fatalf("Run() with an invalid mnemonic succeeded, want error")
	}
}

func TestSlip10GenerateThenDeriveHardenedChild(t *testing.T) {
	v := vaultstore.NewVault()
	seedWrite := WriteVault{Data: bytes.Repeat([]byte{0x2a}, 32), Location: loc("bip39-seed")}
	master := Slip10Generate{Type: Ed25519, Seed: loc("bip39-seed"), Output: loc("master")}

	if _, err := Run(v, []Procedure{seedWrite, master}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	masterNode := readSecret(t, v, loc("master"))
	if len(masterNode) != slip10NodeSize {
		t.Fatalf("master node length = %d, want %d", len(masterNode), slip10NodeSize)
	}

	derive := Slip10Derive{
		Type:   Ed25519,
		Chain:  []uint32{hardenedOffset, hardenedOffset + 1},
		Parent: loc("master"),
		Output: loc("child"),
	}
	if _, err := Run(v, []Procedure{derive}); err != nil {
		t.Fatalf("Run() derive error = %v", err)
	}
	childNode := readSecret(t, v, loc("child"))
	if len(childNode) != slip10NodeSize {
		t.Fatalf("child node length = %d, want %d", len(childNode), slip10NodeSize)
	}
	if bytes.Equal(childNode, masterNode) {
		t.Errorf("derived child node equals the master node")
	}
}

func TestSlip10Ed25519RejectsNonHardenedDerivation(t *testing.T) {
	v := vaultstore.NewVault()
	seedWrite := WriteVault{Data: bytes.Repeat([]byte{0x11}, 32), Location: loc("bip39-seed")}
	master := Slip10Generate{Type: Ed25519, Seed: loc("bip39-seed"), Output: loc("master")}
	if _, err := Run(v, []Procedure{seedWrite, master}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	derive := Slip10Derive{Type: Ed25519, Chain: []uint32{0}, Parent: loc("master"), Output: loc("child")}
	if _, err := Run(v, []Procedure{derive}); err == nil {
		t.Fatalf("Run() with non-hardened ed25519 derivation succeeded, want error")
	}
}
