package procedure

import (
	"crypto/aes"
	"encoding/binary"
	"fmt"

	"github.com/cuemby/vault/pkg/vaulterr"
	"github.com/cuemby/vault/pkg/vaultstore"
)

// aesKeyWrapDefaultIV is the RFC 3394 §2.2.3.1 default initial value.
var aesKeyWrapDefaultIV = [8]byte{0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6}

// AesKeyWrapEncrypt wraps the key at WrapKey under the key at
// EncryptionKey per RFC 3394 and publishes the wrapped bytes (non-secret)
// under OutputKey.
type AesKeyWrapEncrypt struct {
	Cipher        AesKeyWrapCipher
	EncryptionKey vaultstore.Location
	WrapKey       vaultstore.Location
	OutputKey     string
}

func (p AesKeyWrapEncrypt) run(rt *runtime) (Output, error) {
	encVid, encRid := p.EncryptionKey.Resolve()
	wrapVid, wrapRid := p.WrapKey.Resolve()

	var wrapped []byte
	err := rt.vault.GetGuard(encVid, encRid, func(kek []byte) error {
		if want := p.Cipher.KeySize(); len(kek) != want {
			return vaulterr.New(vaulterr.KindInvalidInput, "procedure.aes_key_wrap",
				fmt.Errorf("%v key must be %d bytes, got %d", p.Cipher, want, len(kek)))
		}
		return rt.vault.GetGuard(wrapVid, wrapRid, func(plaintext []byte) error {
			w, werr := aesKeyWrap(kek, plaintext)
			if werr != nil {
				return werr
			}
			wrapped = w
			return nil
		})
	})
	if err != nil {
		return Output{}, err
	}
	return rt.publish(p.OutputKey, wrapped), nil
}

// AesKeyWrapDecrypt unwraps WrappedKey under the key at DecryptionKey per
// RFC 3394 and stores the result at Output.
type AesKeyWrapDecrypt struct {
	Cipher        AesKeyWrapCipher
	DecryptionKey vaultstore.Location
	WrappedKey    []byte
	Output        vaultstore.Location
	Hint          string
	Promote       bool
}

func (p AesKeyWrapDecrypt) run(rt *runtime) (Output, error) {
	kekVid, kekRid := p.DecryptionKey.Resolve()
	var plaintext []byte
	err := rt.vault.GetGuard(kekVid, kekRid, func(kek []byte) error {
		if want := p.Cipher.KeySize(); len(kek) != want {
			return vaulterr.New(vaulterr.KindInvalidInput, "procedure.aes_key_unwrap",
				fmt.Errorf("%v key must be %d bytes, got %d", p.Cipher, want, len(kek)))
		}
		pt, uerr := aesKeyUnwrap(kek, p.WrappedKey)
		if uerr != nil {
			return uerr
		}
		plaintext = pt
		return nil
	})
	if err != nil {
		return Output{}, err
	}
	defer zero(plaintext)

	dstVid, dstRid := p.Output.Resolve()
	if !rt.vault.KeyExists(dstVid) {
		if err := rt.vault.CreateKey(dstVid); err != nil {
			return Output{}, err
		}
	}
	if err := rt.vault.Write(dstVid, dstRid, plaintext, vaultstore.NewRecordHint(p.Hint)); err != nil {
		return Output{}, err
	}
	rt.recordWrite(dstVid, dstRid, p.Promote)
	return Output{}, nil
}

// aesKeyWrap implements RFC 3394 key wrap. plaintext's length must be a
// multiple of 8 bytes and at least 16.
func aesKeyWrap(kek, plaintext []byte) ([]byte, error) {
	if len(plaintext)%8 != 0 || len(plaintext) < 16 {
		return nil, vaulterr.New(vaulterr.KindInvalidInput, "procedure.aes_key_wrap",
			fmt.Errorf("plaintext length %d is not a multiple of 8 bytes (>= 16)", len(plaintext)))
	}
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, vaulterr.New(vaulterr.KindFatalProcedure, "procedure.aes_key_wrap", err)
	}

	n := len(plaintext) / 8
	r := make([][8]byte, n+1)
	for i := 0; i < n; i++ {
		copy(r[i+1][:], plaintext[i*8:(i+1)*8])
	}
	var a [8]byte
	copy(a[:], aesKeyWrapDefaultIV[:])

	buf := make([]byte, 16)
	for j := 0; j <= 5; j++ {
		for i := 1; i <= n; i++ {
			copy(buf[:8], a[:])
			copy(buf[8:], r[i][:])
			block.Encrypt(buf, buf)
			t := uint64(n*j + i)
			var tBuf [8]byte
			binary.BigEndian.PutUint64(tBuf[:], t)
			copy(a[:], buf[:8])
			for k := range a {
				a[k] ^= tBuf[k]
			}
			copy(r[i][:], buf[8:])
		}
	}

	out := make([]byte, (n+1)*8)
	copy(out[:8], a[:])
	for i := 1; i <= n; i++ {
		copy(out[i*8:(i+1)*8], r[i][:])
	}
	return out, nil
}

// aesKeyUnwrap implements RFC 3394 key unwrap, verifying the default IV.
func aesKeyUnwrap(kek, ciphertext []byte) ([]byte, error) {
	if len(ciphertext)%8 != 0 || len(ciphertext) < 24 {
		return nil, vaulterr.New(vaulterr.KindInvalidInput, "procedure.aes_key_unwrap",
			fmt.Errorf("ciphertext length %d is not a multiple of 8 bytes (>= 24)", len(ciphertext)))
	}
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, vaulterr.New(vaulterr.KindFatalProcedure, "procedure.aes_key_unwrap", err)
	}

	n := len(ciphertext)/8 - 1
	var a [8]byte
	copy(a[:], ciphertext[:8])
	r := make([][8]byte, n+1)
	for i := 1; i <= n; i++ {
		copy(r[i][:], ciphertext[i*8:(i+1)*8])
	}

	buf := make([]byte, 16)
	for j := 5; j >= 0; j-- {
		for i := n; i >= 1; i-- {
			t := uint64(n*j + i)
			var tBuf [8]byte
			binary.BigEndian.PutUint64(tBuf[:], t)
			var aXorT [8]byte
			copy(aXorT[:], a[:])
			for k := range aXorT {
				aXorT[k] ^= tBuf[k]
			}
			copy(buf[:8], aXorT[:])
			copy(buf[8:], r[i][:])
			block.Decrypt(buf, buf)
			copy(a[:], buf[:8])
			copy(r[i][:], buf[8:])
		}
	}

	if a != aesKeyWrapDefaultIV {
		return nil, vaulterr.New(vaulterr.KindDecryption, "procedure.aes_key_unwrap",
			fmt.Errorf("integrity check failed: unexpected IV"))
	}
	out := make([]byte, n*8)
	for i := 1; i <= n; i++ {
		copy(out[(i-1)*8:i*8], r[i][:])
	}
	return out, nil
}
