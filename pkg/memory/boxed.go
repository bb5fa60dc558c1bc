package memory

import (
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/cuemby/vault/pkg/vaulterr"
)

// AccessMode is a page protection level a Boxed region can be switched to.
type AccessMode int

const (
	NoAccess AccessMode = iota
	ReadOnly
	ReadWrite
)

func (m AccessMode) prot() int {
	switch m {
	case ReadOnly:
		return unix.PROT_READ
	case ReadWrite:
		return unix.PROT_READ | unix.PROT_WRITE
	default:
		return unix.PROT_NONE
	}
}

// Boxed is a single mmap'd allocation of exactly n bytes whose pages can be
// switched between no-access, read-only and read-write at runtime. It is
// zeroed before the mapping is released.
type Boxed struct {
	mu   sync.Mutex
	data []byte
	n    int
	mode AccessMode
	dead bool
}

// NewBoxed allocates a zero-initialized region of n bytes, starting in
// no-access mode. n must be greater than zero.
func NewBoxed(n int) (*Boxed, error) {
	if n <= 0 {
		return nil, vaulterr.New(vaulterr.KindZeroSized, "memory.boxed.new", fmt.Errorf("size must be > 0"))
	}
	data, err := unix.Mmap(-1, 0, n, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, vaulterr.New(vaulterr.KindFilesystemError, "memory.boxed.new", err)
	}
	b := &Boxed{data: data, n: n, mode: NoAccess}
	runtime.SetFinalizer(b, (*Boxed).finalize)
	return b, nil
}

// Len returns the region's fixed size.
func (b *Boxed) Len() int { return b.n }

// Write copies slice into the region. slice must be exactly Len() bytes.
// The region is transiently set read-write for the copy and restored to
// no-access afterwards.
func (b *Boxed) Write(slice []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dead {
		return vaulterr.New(vaulterr.KindFilesystemError, "memory.boxed.write", fmt.Errorf("region already destroyed"))
	}
	if len(slice) != b.n {
		return vaulterr.New(vaulterr.KindSizeMismatch, "memory.boxed.write",
			fmt.Errorf("expected %d bytes, got %d", b.n, len(slice)))
	}
	if err := b.setMode(ReadWrite); err != nil {
		return err
	}
	copy(b.data, slice)
	return b.setMode(NoAccess)
}

// Borrow transiently switches the region to mode, invokes f with a view of
// the backing bytes, restores no-access, and returns f's result. The slice
// passed to f must not be retained past the call.
func (b *Boxed) Borrow(mode AccessMode, f func([]byte) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dead {
		return vaulterr.New(vaulterr.KindFilesystemError, "memory.boxed.borrow", fmt.Errorf("region already destroyed"))
	}
	if mode == NoAccess {
		return vaulterr.New(vaulterr.KindConfigurationNotAllowed, "memory.boxed.borrow",
			fmt.Errorf("borrow requires read-only or read-write"))
	}
	if err := b.setMode(mode); err != nil {
		return err
	}
	ferr := f(b.data)
	if err := b.setMode(NoAccess); err != nil && ferr == nil {
		ferr = err
	}
	return ferr
}

// setMode must be called with mu held.
func (b *Boxed) setMode(mode AccessMode) error {
	if b.mode == mode {
		return nil
	}
	if err := unix.Mprotect(b.data, mode.prot()); err != nil {
		return vaulterr.New(vaulterr.KindFilesystemError, "memory.boxed.mprotect", err)
	}
	b.mode = mode
	return nil
}

// Destroy zeroizes and releases the mapping. Safe to call more than once.
func (b *Boxed) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dead {
		return
	}
	b.zeroLocked()
	_ = unix.Munmap(b.data)
	b.dead = true
	runtime.SetFinalizer(b, nil)
}

func (b *Boxed) zeroLocked() {
	if b.mode != ReadWrite {
		_ = unix.Mprotect(b.data, unix.PROT_READ|unix.PROT_WRITE)
	}
	for i := range b.data {
		b.data[i] = 0
	}
	_ = unix.Mprotect(b.data, unix.PROT_NONE)
	b.mode = NoAccess
}

func (b *Boxed) finalize() {
	b.Destroy()
}
