package memory

// Buffer is an ephemeral guarded wrapper over a Boxed region. It is produced
// exclusively by unlocking a LockedMemory and exposes only a read-only
// borrow; it is never serializable, cloneable, or printable in any way that
// leaks its contents.
type Buffer struct {
	box *Boxed
}

// newBuffer wraps box as a Buffer. box is owned by the returned Buffer and
// destroyed when the Buffer is destroyed.
func newBuffer(box *Boxed) *Buffer {
	return &Buffer{box: box}
}

// Borrow hands f a read-only view of the plaintext. The slice must not
// outlive the call.
func (b *Buffer) Borrow(f func([]byte) error) error {
	return b.box.Borrow(ReadOnly, f)
}

// Len returns the number of plaintext bytes held.
func (b *Buffer) Len() int {
	return b.box.Len()
}

// Destroy zeroizes the underlying region. Safe to call more than once.
func (b *Buffer) Destroy() {
	b.box.Destroy()
}

// String never reveals Buffer contents, matching the "hidden" debug output
// mandated for every secret-carrying type in this package.
func (b *Buffer) String() string {
	return "hidden"
}

// GoString mirrors String for %#v formatting.
func (b *Buffer) GoString() string {
	return "hidden"
}
