package procedure

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/curve25519"

	"github.com/cuemby/vault/pkg/vaulterr"
	"github.com/cuemby/vault/pkg/vaultstore"
)

// WriteVault writes Data as a secret at Location. Promote controls whether
// the write survives a chain rollback.
type WriteVault struct {
	Data     []byte
	Location vaultstore.Location
	Hint     string
	Promote  bool
}

func (p WriteVault) run(rt *runtime) (Output, error) {
	vid, rid := p.Location.Resolve()
	if !rt.vault.KeyExists(vid) {
		if err := rt.vault.CreateKey(vid); err != nil {
			return Output{}, err
		}
	}
	if err := rt.vault.Write(vid, rid, p.Data, vaultstore.NewRecordHint(p.Hint)); err != nil {
		return Output{}, err
	}
	rt.recordWrite(vid, rid, p.Promote)
	return Output{}, nil
}

// CopyRecord re-encrypts the secret at Source under Target's vault key.
type CopyRecord struct {
	Source  vaultstore.Location
	Target  vaultstore.Location
	Hint    string
	Promote bool
}

func (p CopyRecord) run(rt *runtime) (Output, error) {
	srcVid, srcRid := p.Source.Resolve()
	dstVid, dstRid := p.Target.Resolve()
	if !rt.vault.KeyExists(dstVid) {
		if err := rt.vault.CreateKey(dstVid); err != nil {
			return Output{}, err
		}
	}
	err := rt.vault.Exec(srcVid, srcRid, dstVid, dstRid, vaultstore.NewRecordHint(p.Hint), func(pt []byte) ([]byte, error) {
		return append([]byte(nil), pt...), nil
	})
	if err != nil {
		return Output{}, err
	}
	rt.recordWrite(dstVid, dstRid, p.Promote)
	return Output{}, nil
}

// GenerateKey creates a fresh private key of Type and stores it at Output.
type GenerateKey struct {
	Type    KeyType
	Output  vaultstore.Location
	Hint    string
	Promote bool
}

func (p GenerateKey) run(rt *runtime) (Output, error) {
	priv, err := generatePrivateKey(p.Type)
	if err != nil {
		return Output{}, vaulterr.New(vaulterr.KindFatalProcedure, "procedure.generate_key", err)
	}
	defer zero(priv)

	vid, rid := p.Output.Resolve()
	if !rt.vault.KeyExists(vid) {
		if err := rt.vault.CreateKey(vid); err != nil {
			return Output{}, err
		}
	}
	if err := rt.vault.Write(vid, rid, priv, vaultstore.NewRecordHint(p.Hint)); err != nil {
		return Output{}, err
	}
	rt.recordWrite(vid, rid, p.Promote)
	return Output{}, nil
}

// PublicKey derives Type's public key from the private key at PrivateKey
// and publishes it (non-secret) under OutputKey.
type PublicKey struct {
	Type       KeyType
	PrivateKey vaultstore.Location
	OutputKey  string
}

func (p PublicKey) run(rt *runtime) (Output, error) {
	vid, rid := p.PrivateKey.Resolve()
	var pub []byte
	err := rt.vault.GetGuard(vid, rid, func(priv []byte) error {
		derived, derr := publicKeyFor(p.Type, priv)
		if derr != nil {
			return derr
		}
		pub = derived
		return nil
	})
	if err != nil {
		return Output{}, err
	}
	return rt.publish(p.OutputKey, pub), nil
}

// X25519DiffieHellman derives the 32-byte shared secret between the
// private key at PrivateKey and the raw PublicKey bytes, storing the
// result at SharedKey.
type X25519DiffieHellman struct {
	PrivateKey vaultstore.Location
	PublicKey  [32]byte
	SharedKey  vaultstore.Location
	Hint       string
	Promote    bool
}

func (p X25519DiffieHellman) run(rt *runtime) (Output, error) {
	vid, rid := p.PrivateKey.Resolve()
	var shared []byte
	err := rt.vault.GetGuard(vid, rid, func(priv []byte) error {
		if len(priv) != 32 {
			return vaulterr.New(vaulterr.KindInvalidInput, "procedure.x25519_dh",
				fmt.Errorf("private key must be 32 bytes, got %d", len(priv)))
		}
		s, derr := curve25519.X25519(priv, p.PublicKey[:])
		if derr != nil {
			return vaulterr.New(vaulterr.KindFatalProcedure, "procedure.x25519_dh", derr)
		}
		shared = s
		return nil
	})
	if err != nil {
		return Output{}, err
	}
	defer zero(shared)

	dstVid, dstRid := p.SharedKey.Resolve()
	if !rt.vault.KeyExists(dstVid) {
		if err := rt.vault.CreateKey(dstVid); err != nil {
			return Output{}, err
		}
	}
	if err := rt.vault.Write(dstVid, dstRid, shared, vaultstore.NewRecordHint(p.Hint)); err != nil {
		return Output{}, err
	}
	rt.recordWrite(dstVid, dstRid, p.Promote)
	return Output{}, nil
}

func generatePrivateKey(t KeyType) ([]byte, error) {
	switch t {
	case Ed25519:
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		return priv.Seed(), nil
	case X25519:
		priv := make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, priv); err != nil {
			return nil, err
		}
		priv[0] &= 248
		priv[31] &= 127
		priv[31] |= 64
		return priv, nil
	case Secp256k1:
		priv, err := secp256k1.GeneratePrivateKey()
		if err != nil {
			return nil, err
		}
		return priv.Serialize(), nil
	default:
		return nil, fmt.Errorf("unsupported key type %v", t)
	}
}

func publicKeyFor(t KeyType, priv []byte) ([]byte, error) {
	switch t {
	case Ed25519:
		seed := ed25519.NewKeyFromSeed(priv)
		pub := seed.Public().(ed25519.PublicKey)
		return append([]byte(nil), pub...), nil
	case X25519:
		pub, err := curve25519.X25519(priv, curve25519.Basepoint)
		if err != nil {
			return nil, err
		}
		return pub, nil
	case Secp256k1:
		pk := secp256k1.PrivKeyFromBytes(priv)
		return pk.PubKey().SerializeCompressed(), nil
	default:
		return nil, fmt.Errorf("unsupported key type %v", t)
	}
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
