/*
Package memory implements the protected-memory primitives the vault core is
built on: a page-guarded boxed region, the ephemeral Buffer borrowed out of
it, and the three LockedMemory variants (RamEncrypted, File, NonContiguous)
that hold secrets at rest between guarded accesses.

# Architecture

	┌────────────────────── PROTECTED MEMORY ───────────────────────┐
	│                                                                  │
	│  ┌───────────────┐   unlock()   ┌──────────────┐                │
	│  │ LockedMemory  │ ───────────▶ │    Buffer     │                │
	│  │ RamEncrypted  │              │ (borrow-only) │                │
	│  │ File          │ ◀─────────── │  zeroized on  │                │
	│  │ NonContiguous │   lock()     │  scope exit   │                │
	│  └───────┬───────┘              └──────┬───────┘                │
	│          │                              │                        │
	│          ▼                              ▼                        │
	│  ┌────────────────────────────────────────────┐                 │
	│  │              Boxed Region                    │                │
	│  │  mmap'd page, mode ∈ {no-access, ro, rw}    │                │
	│  │  zeroized before munmap                      │                │
	│  └────────────────────────────────────────────┘                 │
	└──────────────────────────────────────────────────────────────────┘

A Buffer never outlives the callback it is handed to; a LockedMemory never
exposes plaintext except through unlock's returned Buffer. Every type in
this package zeroizes its storage when Destroy is called. Boxed carries a
runtime finalizer as a backstop for callers who forget to call it; the
other types have none, and a File's tempfile is removed only by Destroy.

# Zeroization

Destroy must never panic — it is called from defer and from finalizers,
neither of which can usefully propagate an error. Errors from the
protection and unmap calls made while zeroing are silently discarded.
*/
package memory
