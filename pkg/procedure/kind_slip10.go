package procedure

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/cuemby/vault/pkg/vaulterr"
	"github.com/cuemby/vault/pkg/vaultstore"
)

// slip10NodeSize is the size of a derived SLIP-0010 node: a 32-byte key and its 32-byte
// chain code, stored concatenated (64 bytes) in the vault.
const slip10NodeSize = 64

// hardenedOffset is added to a path index to mark it hardened, per
// SLIP-0010 / BIP-32.
const hardenedOffset = uint32(0x80000000)

// slip10CurveSeed returns the HMAC-SHA512 key used for master-node
// generation, one per curve as specified by SLIP-0010.
func slip10CurveSeed(t KeyType) (string, error) {
	switch t {
	case Ed25519:
		return "ed25519 seed", nil
	case Secp256k1:
		return "Bitcoin seed", nil
	default:
		return "", fmt.Errorf("SLIP-10 does not support key type %v", t)
	}
}

// Slip10Generate derives a master node from a seed (e.g. a BIP-39 seed)
// per SLIP-0010 and stores the 64-byte (key || chain code) node at Output.
type Slip10Generate struct {
	Type    KeyType
	Seed    vaultstore.Location
	Output  vaultstore.Location
	Hint    string
	Promote bool
}

func (p Slip10Generate) run(rt *runtime) (Output, error) {
	curveSeed, err := slip10CurveSeed(p.Type)
	if err != nil {
		return Output{}, vaulterr.New(vaulterr.KindInvalidInput, "procedure.slip10_generate", err)
	}

	seedVid, seedRid := p.Seed.Resolve()
	var node []byte
	err = rt.vault.GetGuard(seedVid, seedRid, func(seed []byte) error {
		mac := hmac.New(sha512.New, []byte(curveSeed))
		mac.Write(seed)
		node = mac.Sum(nil)
		return nil
	})
	if err != nil {
		return Output{}, err
	}
	defer zero(node)

	return writeSlip10Node(rt, node, p.Output, p.Hint, p.Promote)
}

// Slip10Derive derives a child node from the node at Parent following
// Chain, a sequence of indices (values >= hardenedOffset are hardened),
// and stores the result at Output. Ed25519 SLIP-10 supports only
// hardened derivation.
type Slip10Derive struct {
	Type    KeyType
	Chain   []uint32
	Parent  vaultstore.Location
	Output  vaultstore.Location
	Hint    string
	Promote bool
}

func (p Slip10Derive) run(rt *runtime) (Output, error) {
	parentVid, parentRid := p.Parent.Resolve()
	var node []byte
	err := rt.vault.GetGuard(parentVid, parentRid, func(n []byte) error {
		node = append([]byte(nil), n...)
		return nil
	})
	if err != nil {
		return Output{}, err
	}
	defer zero(node)

	for _, index := range p.Chain {
		child, derr := slip10DeriveChild(p.Type, node, index)
		zero(node)
		if derr != nil {
			return Output{}, derr
		}
		node = child
	}
	defer zero(node)

	return writeSlip10Node(rt, node, p.Output, p.Hint, p.Promote)
}

func slip10DeriveChild(t KeyType, parent []byte, index uint32) ([]byte, error) {
	if len(parent) != slip10NodeSize {
		return nil, vaulterr.New(vaulterr.KindInvalidInput, "procedure.slip10_derive",
			fmt.Errorf("parent node must be %d bytes", slip10NodeSize))
	}
	key, chainCode := parent[:32], parent[32:]
	hardened := index >= hardenedOffset

	if t == Ed25519 && !hardened {
		return nil, vaulterr.New(vaulterr.KindInvalidInput, "procedure.slip10_derive",
			fmt.Errorf("ed25519 SLIP-10 only supports hardened derivation"))
	}

	var data []byte
	if hardened {
		data = make([]byte, 0, 1+32+4)
		data = append(data, 0x00)
		data = append(data, key...)
	} else {
		pub, err := publicKeyFor(Secp256k1, key)
		if err != nil {
			return nil, vaulterr.New(vaulterr.KindFatalProcedure, "procedure.slip10_derive", err)
		}
		data = append(data, pub...)
	}
	var idxBuf [4]byte
	binary.BigEndian.PutUint32(idxBuf[:], index)
	data = append(data, idxBuf[:]...)

	mac := hmac.New(sha512.New, chainCode)
	mac.Write(data)
	out := mac.Sum(nil)
	if t == Secp256k1 {
		var il, kpar secp256k1.ModNScalar
		overflow := il.SetByteSlice(out[:32])
		kpar.SetByteSlice(key)
		il.Add(&kpar)
		if overflow || il.IsZero() {
			return nil, vaulterr.New(vaulterr.KindFatalProcedure, "procedure.slip10_derive",
				fmt.Errorf("derived secp256k1 child key is invalid"))
		}
		childKey := il.Bytes()
		copy(out[:32], childKey[:])
	}
	return out, nil
}

func writeSlip10Node(rt *runtime, node []byte, loc vaultstore.Location, hint string, promote bool) (Output, error) {
	vid, rid := loc.Resolve()
	if !rt.vault.KeyExists(vid) {
		if err := rt.vault.CreateKey(vid); err != nil {
			return Output{}, err
		}
	}
	if err := rt.vault.Write(vid, rid, node, vaultstore.NewRecordHint(hint)); err != nil {
		return Output{}, err
	}
	rt.recordWrite(vid, rid, promote)
	return Output{}, nil
}
