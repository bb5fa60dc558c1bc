package procedure

import (
	"crypto/ed25519"
	"fmt"

	"github.com/tyler-smith/go-bip39"

	"github.com/cuemby/vault/pkg/vaulterr"
	"github.com/cuemby/vault/pkg/vaultstore"
)

// Bip39Generate generates a fresh mnemonic of the given entropy size
// (128, 160, 192, 224, or 256 bits), publishes the mnemonic phrase
// (non-secret, meant to be shown to the user once) under MnemonicKey, and
// stores the derived seed at Output.
type Bip39Generate struct {
	EntropyBits int
	Passphrase  string
	MnemonicKey string
	Output      vaultstore.Location
	Hint        string
	Promote     bool
}

func (p Bip39Generate) run(rt *runtime) (Output, error) {
	entropy, err := bip39.NewEntropy(p.EntropyBits)
	if err != nil {
		return Output{}, vaulterr.New(vaulterr.KindInvalidInput, "procedure.bip39_generate", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return Output{}, vaulterr.New(vaulterr.KindFatalProcedure, "procedure.bip39_generate", err)
	}

	seed := bip39.NewSeed(mnemonic, p.Passphrase)
	defer zero(seed)
	if err := writeBip39Seed(rt, seed, p.Output, p.Hint, p.Promote); err != nil {
		return Output{}, err
	}
	return rt.publish(p.MnemonicKey, []byte(mnemonic)), nil
}

// Bip39Recover derives a seed from a caller-supplied Mnemonic and
// Passphrase and stores it at Output. Fails with InvalidInput if the
// mnemonic's checksum does not verify.
type Bip39Recover struct {
	Mnemonic   string
	Passphrase string
	Output     vaultstore.Location
	Hint       string
	Promote    bool
}

func (p Bip39Recover) run(rt *runtime) (Output, error) {
	if !bip39.IsMnemonicValid(p.Mnemonic) {
		return Output{}, vaulterr.New(vaulterr.KindInvalidInput, "procedure.bip39_recover",
			fmt.Errorf("invalid mnemonic checksum"))
	}
	seed := bip39.NewSeed(p.Mnemonic, p.Passphrase)
	defer zero(seed)
	if err := writeBip39Seed(rt, seed, p.Output, p.Hint, p.Promote); err != nil {
		return Output{}, err
	}
	return Output{}, nil
}

func writeBip39Seed(rt *runtime, seed []byte, loc vaultstore.Location, hint string, promote bool) error {
	vid, rid := loc.Resolve()
	if !rt.vault.KeyExists(vid) {
		if err := rt.vault.CreateKey(vid); err != nil {
			return err
		}
	}
	if err := rt.vault.Write(vid, rid, seed, vaultstore.NewRecordHint(hint)); err != nil {
		return err
	}
	rt.recordWrite(vid, rid, promote)
	return nil
}

// Ed25519Sign signs Message with the Ed25519 private key at PrivateKey and
// publishes the 64-byte signature (non-secret) under OutputKey.
type Ed25519Sign struct {
	PrivateKey vaultstore.Location
	Message    Input
	OutputKey  string
}

func (p Ed25519Sign) run(rt *runtime) (Output, error) {
	msg, err := rt.resolveInput(p.Message)
	if err != nil {
		return Output{}, err
	}

	vid, rid := p.PrivateKey.Resolve()
	var sig []byte
	err = rt.vault.GetGuard(vid, rid, func(seed []byte) error {
		if len(seed) != ed25519.SeedSize {
			return vaulterr.New(vaulterr.KindInvalidInput, "procedure.ed25519_sign",
				fmt.Errorf("private key must be a %d-byte seed", ed25519.SeedSize))
		}
		priv := ed25519.NewKeyFromSeed(seed)
		sig = ed25519.Sign(priv, msg)
		return nil
	})
	if err != nil {
		return Output{}, err
	}
	return rt.publish(p.OutputKey, sig), nil
}
