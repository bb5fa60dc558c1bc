package memory

// LockedMemory is the contract shared by RamEncrypted, File, and
// NonContiguous: each accepts a payload and a configuration and returns an
// opaque handle; only Unlock produces a Buffer.
type LockedMemory interface {
	// Lock re-encrypts payload into this handle, replacing its prior
	// contents. Used to rotate a locked memory in place.
	Lock(payload []byte) error

	// Unlock decrypts the held payload into a fresh Buffer. The caller must
	// Destroy the Buffer (or let its scope end) promptly.
	Unlock() (*Buffer, error)

	// Destroy zeroizes all storage backing this handle (RAM and, for File,
	// the backing tempfile). Safe to call more than once.
	Destroy()
}

// Config carries the allocation parameters LockedMemory variants accept at
// construction time. Size is the plaintext payload length in bytes.
type Config struct {
	Size int
}
