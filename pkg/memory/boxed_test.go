package memory

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func TestBoxedRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		n    int
	}{
		{"single byte", 1},
		{"32 bytes", 32},
		{"4096 bytes", 4096},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := make([]byte, tt.n)
			if _, err := rand.Read(payload); err != nil {
				t.Fatalf("rand.Read() error = %v", err)
			}

			box, err := NewBoxed(tt.n)
			if err != nil {
				t.Fatalf("NewBoxed() error = %v", err)
			}
			defer box.Destroy()

			if err := box.Write(payload); err != nil {
				t.Fatalf("Write() error = %v", err)
			}

			var got []byte
			err = box.Borrow(ReadOnly, func(b []byte) error {
				got = append([]byte(nil), b...)
				return nil
			})
			if err != nil {
				t.Fatalf("Borrow() error = %v", err)
			}
			if !bytes.Equal(got, payload) {
				t.Errorf("Borrow() = %x, want %x", got, payload)
			}
		})
	}
}

func TestBoxedWriteSizeMismatch(t *testing.T) {
	box, err := NewBoxed(16)
	if err != nil {
		t.Fatalf("NewBoxed() error = %v", err)
	}
	defer box.Destroy()

	if err := box.Write(make([]byte, 8)); err == nil {
		t.Error("Write() with wrong size should fail")
	}
}

func TestBoxedZeroSizeRejected(t *testing.T) {
	if _, err := NewBoxed(0); err == nil {
		t.Error("NewBoxed(0) should fail")
	}
}

func TestBoxedDestroyIsRepeatableAndDisablesBorrow(t *testing.T) {
	box, err := NewBoxed(16)
	if err != nil {
		t.Fatalf("NewBoxed() error = %v", err)
	}
	payload := bytes.Repeat([]byte{0xAB}, 16)
	if err := box.Write(payload); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	box.Destroy()
	box.Destroy() // must not panic on repeat call

	if err := box.Borrow(ReadOnly, func(b []byte) error { return nil }); err == nil {
		t.Error("Borrow() after Destroy() should fail")
	}
}
