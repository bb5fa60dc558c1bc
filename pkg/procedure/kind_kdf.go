package procedure

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"hash"

	"github.com/cuemby/vault/pkg/vaultstore"
)

// ConcatKdf implements NIST SP 800-56A's Concatenation Key Derivation
// Function (as profiled by RFC 7518 Appendix C for JWA ECDH-ES), deriving
// KeyLen bytes from the shared secret at SharedSecret and writing them to
// Output.
type ConcatKdf struct {
	Hash         Sha2Variant
	AlgorithmID  string
	SharedSecret vaultstore.Location
	KeyLen       int
	Apu, Apv     []byte
	PubInfo      []byte
	PrivInfo     []byte
	Output       vaultstore.Location
	Hint         string
	Promote      bool
}

func (p ConcatKdf) run(rt *runtime) (Output, error) {
	srcVid, srcRid := p.SharedSecret.Resolve()
	var derived []byte
	err := rt.vault.GetGuard(srcVid, srcRid, func(secret []byte) error {
		derived = concatKDF(newHash(p.Hash), secret, p.KeyLen, otherInfo(p.AlgorithmID, p.Apu, p.Apv, p.PubInfo, p.PrivInfo))
		return nil
	})
	if err != nil {
		return Output{}, err
	}
	defer zero(derived)

	dstVid, dstRid := p.Output.Resolve()
	if !rt.vault.KeyExists(dstVid) {
		if err := rt.vault.CreateKey(dstVid); err != nil {
			return Output{}, err
		}
	}
	if err := rt.vault.Write(dstVid, dstRid, derived, vaultstore.NewRecordHint(p.Hint)); err != nil {
		return Output{}, err
	}
	rt.recordWrite(dstVid, dstRid, p.Promote)
	return Output{}, nil
}

func newHash(v Sha2Variant) func() hash.Hash {
	if v == Sha512 {
		return sha512.New
	}
	return sha256.New
}

// otherInfo builds the AlgorithmID || PartyUInfo || PartyVInfo || SuppPubInfo
// || SuppPrivInfo OtherInfo structure from SP 800-56A, each length-prefixed
// component matching RFC 7518 Appendix C's Concat KDF profile.
func otherInfo(algorithmID string, apu, apv, pubInfo, privInfo []byte) []byte {
	var out []byte
	out = append(out, lengthPrefixed([]byte(algorithmID))...)
	out = append(out, lengthPrefixed(apu)...)
	out = append(out, lengthPrefixed(apv)...)
	out = append(out, pubInfo...)
	out = append(out, privInfo...)
	return out
}

func lengthPrefixed(b []byte) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	return append(lenBuf[:], b...)
}

// concatKDF is the single-round-counter Concat KDF from NIST SP 800-56A
// §5.8.1: for each 32-bit counter value starting at 1, hash counter ||
// sharedSecret || otherInfo, concatenating hash outputs until keyLen bytes
// are available.
func concatKDF(newH func() hash.Hash, sharedSecret []byte, keyLen int, otherInfo []byte) []byte {
	h := newH()
	hashLen := h.Size()
	rounds := (keyLen + hashLen - 1) / hashLen

	out := make([]byte, 0, rounds*hashLen)
	for counter := uint32(1); counter <= uint32(rounds); counter++ {
		h.Reset()
		var counterBuf [4]byte
		binary.BigEndian.PutUint32(counterBuf[:], counter)
		h.Write(counterBuf[:])
		h.Write(sharedSecret)
		h.Write(otherInfo)
		out = h.Sum(out)
	}
	return out[:keyLen]
}

// Sha2Hash hashes Input (literal bytes, or the prior output named by its Key) with
// Variant and publishes the digest (non-secret) under OutputKey.
type Sha2Hash struct {
	Variant   Sha2Variant
	Input     Input
	OutputKey string
}

func (p Sha2Hash) run(rt *runtime) (Output, error) {
	data, err := rt.resolveInput(p.Input)
	if err != nil {
		return Output{}, err
	}
	h := newHash(p.Variant)()
	h.Write(data)
	return rt.publish(p.OutputKey, h.Sum(nil)), nil
}
