package memory

import (
	"bytes"
	"crypto/rand"
	"os"
	"testing"
)

func borrowAll(t *testing.T, buf *Buffer) []byte {
	t.Helper()
	var out []byte
	if err := buf.Borrow(func(b []byte) error {
		out = append([]byte(nil), b...)
		return nil
	}); err != nil {
		t.Fatalf("Borrow() error = %v", err)
	}
	return out
}

func TestRamEncryptedRoundTrip(t *testing.T) {
	payload := make([]byte, 48)
	if _, err := rand.Read(payload); err != nil {
		t.Fatalf("rand.Read() error = %v", err)
	}

	re, err := NewRamEncrypted(payload, Config{Size: 48})
	if err != nil {
		t.Fatalf("NewRamEncrypted() error = %v", err)
	}
	defer re.Destroy()

	buf, err := re.Unlock()
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	defer buf.Destroy()

	if got := borrowAll(t, buf); !bytes.Equal(got, payload) {
		t.Errorf("Unlock() = %x, want %x", got, payload)
	}
}

func TestRamEncryptedLockReplacesContents(t *testing.T) {
	re, err := NewRamEncrypted([]byte("first-secret-value"), Config{})
	if err != nil {
		t.Fatalf("NewRamEncrypted() error = %v", err)
	}
	defer re.Destroy()

	if err := re.Lock([]byte("second-secret-value")); err != nil {
		t.Fatalf("Lock() error = %v", err)
	}

	buf, err := re.Unlock()
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	defer buf.Destroy()

	if got := borrowAll(t, buf); string(got) != "second-secret-value" {
		t.Errorf("Unlock() after Lock() = %q, want %q", got, "second-secret-value")
	}
}

func TestFileRoundTrip(t *testing.T) {
	payload := []byte("persisted-to-a-tempfile")
	f, err := NewFile(payload, Config{}, t.TempDir())
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}
	defer f.Destroy()

	buf, err := f.Unlock()
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	defer buf.Destroy()

	if got := borrowAll(t, buf); !bytes.Equal(got, payload) {
		t.Errorf("Unlock() = %q, want %q", got, payload)
	}
}

func TestFileDestroyRemovesBackingFile(t *testing.T) {
	f, err := NewFile([]byte("gone-after-destroy"), Config{}, t.TempDir())
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}
	path := f.path
	f.Destroy()

	if _, err := os.Stat(path); err == nil {
		t.Errorf("backing file %s should be removed after Destroy()", path)
	}
}
