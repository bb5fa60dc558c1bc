package procedure

// KeyType names the asymmetric key algorithm a GenerateKey/PublicKey step
// operates on.
type KeyType int

const (
	Ed25519 KeyType = iota
	X25519
	Secp256k1
)

func (t KeyType) String() string {
	switch t {
	case Ed25519:
		return "Ed25519"
	case X25519:
		return "X25519"
	case Secp256k1:
		return "Secp256k1"
	default:
		return "unknown"
	}
}

// Sha2Variant selects the hash function for Sha2Hash and ConcatKdf steps.
type Sha2Variant int

const (
	Sha256 Sha2Variant = iota
	Sha512
)

// AesKeyWrapCipher selects the wrapping key size for RFC 3394 steps.
type AesKeyWrapCipher int

const (
	Aes128 AesKeyWrapCipher = iota
	Aes256
)

// KeySize returns the expected KEK length in bytes for c.
func (c AesKeyWrapCipher) KeySize() int {
	switch c {
	case Aes128:
		return 16
	case Aes256:
		return 32
	default:
		return 0
	}
}

func (c AesKeyWrapCipher) String() string {
	switch c {
	case Aes128:
		return "Aes128"
	case Aes256:
		return "Aes256"
	default:
		return "unknown"
	}
}
