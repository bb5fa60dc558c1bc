package memory

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/cuemby/vault/pkg/vaulterr"
)

// NCDataSize is the fixed payload size NonContiguous supports. Fixed at 32
// bytes because the supported signing/DH primitives all use 32-byte keys;
// relaxing this requires a length-expanding PRF instead of SHA-256 XOR.
const NCDataSize = 32

// ShardMode selects where NonContiguous's second shard lives.
type ShardMode int

const (
	RamOnly ShardMode = iota
	RamAndFile
)

// NonContiguous splits a 32-byte secret across two shards so that neither
// shard alone reveals it: shard1 holds a random mask r, shard2 holds
// SHA-256(r) XOR payload. Unlock recomputes SHA-256(shard1) XOR shard2.
type NonContiguous struct {
	shard1     *Buffer
	shard2Ram  *Buffer
	shard2File *File
	mode       ShardMode
	dir        string
}

// NewNonContiguous allocates shards for payload, which must be exactly
// NCDataSize bytes.
func NewNonContiguous(payload []byte, mode ShardMode, dir string) (*NonContiguous, error) {
	if len(payload) != NCDataSize {
		return nil, vaulterr.New(vaulterr.KindSizeMismatch, "memory.noncontiguous.new",
			fmt.Errorf("non-contiguous memory only supports %d-byte payloads, got %d", NCDataSize, len(payload)))
	}

	r := make([]byte, NCDataSize)
	if _, err := io.ReadFull(rand.Reader, r); err != nil {
		return nil, vaulterr.New(vaulterr.KindEncryption, "memory.noncontiguous.new", err)
	}
	shard2data := xorBytes(hash256(r), payload)

	box1, err := NewBoxed(NCDataSize)
	if err != nil {
		return nil, err
	}
	if err := box1.Write(r); err != nil {
		box1.Destroy()
		return nil, err
	}

	nc := &NonContiguous{shard1: newBuffer(box1), mode: mode, dir: dir}

	switch mode {
	case RamOnly:
		box2, err := NewBoxed(NCDataSize)
		if err != nil {
			nc.shard1.Destroy()
			return nil, err
		}
		if err := box2.Write(shard2data); err != nil {
			nc.shard1.Destroy()
			box2.Destroy()
			return nil, err
		}
		nc.shard2Ram = newBuffer(box2)
	case RamAndFile:
		f, err := NewFile(shard2data, Config{Size: NCDataSize}, dir)
		if err != nil {
			nc.shard1.Destroy()
			return nil, err
		}
		nc.shard2File = f
	default:
		nc.shard1.Destroy()
		return nil, vaulterr.New(vaulterr.KindConfigurationNotAllowed, "memory.noncontiguous.new",
			fmt.Errorf("unknown shard mode %v", mode))
	}

	return nc, nil
}

// Lock reallocates both shards for a new payload, replacing the prior
// contents.
func (nc *NonContiguous) Lock(payload []byte) error {
	fresh, err := NewNonContiguous(payload, nc.mode, nc.dir)
	if err != nil {
		return err
	}
	nc.Destroy()
	*nc = *fresh
	return nil
}

// Unlock recomputes the payload from the two shards into a fresh Buffer.
func (nc *NonContiguous) Unlock() (*Buffer, error) {
	r, err := nc.readShard1()
	if err != nil {
		return nil, err
	}
	defer zero(r)

	shard2, err := nc.readShard2()
	if err != nil {
		return nil, err
	}
	defer zero(shard2)

	payload := xorBytes(hash256(r), shard2)
	defer zero(payload)

	box, err := NewBoxed(len(payload))
	if err != nil {
		return nil, err
	}
	if err := box.Write(payload); err != nil {
		box.Destroy()
		return nil, err
	}
	return newBuffer(box), nil
}

// Refresh re-randomizes shard1's mask without ever materializing the
// decoded payload: r' = r XOR ρ, shard2' = shard2 XOR H(r) XOR H(r').
func (nc *NonContiguous) Refresh() error {
	oldR, err := nc.readShard1()
	if err != nil {
		return err
	}
	defer zero(oldR)

	rho := make([]byte, NCDataSize)
	if _, err := io.ReadFull(rand.Reader, rho); err != nil {
		return vaulterr.New(vaulterr.KindEncryption, "memory.noncontiguous.refresh", err)
	}
	newR := xorBytes(oldR, rho)
	defer zero(newR)

	hOld := hash256(oldR)
	hNew := hash256(newR)

	oldShard2, err := nc.readShard2()
	if err != nil {
		return err
	}
	newShard2 := xorBytes(xorBytes(oldShard2, hOld), hNew)
	zero(oldShard2)
	defer zero(newShard2)

	newBox1, err := NewBoxed(NCDataSize)
	if err != nil {
		return err
	}
	if err := newBox1.Write(newR); err != nil {
		newBox1.Destroy()
		return err
	}

	switch nc.mode {
	case RamOnly:
		if err := nc.shard2Ram.box.Write(newShard2); err != nil {
			newBox1.Destroy()
			return err
		}
	case RamAndFile:
		if err := nc.shard2File.Lock(newShard2); err != nil {
			newBox1.Destroy()
			return err
		}
	}

	nc.shard1.Destroy()
	nc.shard1 = newBuffer(newBox1)
	return nil
}

// Destroy zeroizes both shards.
func (nc *NonContiguous) Destroy() {
	if nc.shard1 != nil {
		nc.shard1.Destroy()
	}
	if nc.shard2Ram != nil {
		nc.shard2Ram.Destroy()
	}
	if nc.shard2File != nil {
		nc.shard2File.Destroy()
	}
}

func (nc *NonContiguous) readShard1() ([]byte, error) {
	var out []byte
	err := nc.shard1.Borrow(func(b []byte) error {
		out = append([]byte(nil), b...)
		return nil
	})
	return out, err
}

func (nc *NonContiguous) readShard2() ([]byte, error) {
	switch nc.mode {
	case RamOnly:
		var out []byte
		err := nc.shard2Ram.Borrow(func(b []byte) error {
			out = append([]byte(nil), b...)
			return nil
		})
		return out, err
	case RamAndFile:
		buf, err := nc.shard2File.Unlock()
		if err != nil {
			return nil, err
		}
		defer buf.Destroy()
		var out []byte
		err = buf.Borrow(func(b []byte) error {
			out = append([]byte(nil), b...)
			return nil
		})
		return out, err
	default:
		return nil, vaulterr.New(vaulterr.KindConfigurationNotAllowed, "memory.noncontiguous.shard2",
			fmt.Errorf("unknown shard mode %v", nc.mode))
	}
}

func hash256(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}

func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range out {
		out[i] = a[i] ^ b[i]
	}
	return out
}
