package iostore

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// PageSize is the allocator's smallest tier (spec §5: "page-allocated (4
// KiB)").
const PageSize = 4 << 10

// hugePageTiers is the fallback sequence spec §5 names: "Huge-page
// allocation falls back through the sequence {1 GiB, 2 MiB, 4 KiB} unless
// strictness is requested." Go's runtime exposes no real huge-page
// reservation API without cgo, so each tier above PageSize is simulated
// as an anonymous mmap with the matching madvise hint rather than a
// genuine hugetlbfs mapping — see DESIGN.md's Open Question decision.
var hugePageTiers = []int{1 << 30, 2 << 20, PageSize}

// Allocator is the type-erased owning storage abstraction spec §5 calls
// for: something that owns a byte buffer of a requested size and can
// release it.
type Allocator interface {
	// Allocate returns a freshly owned, zero-filled buffer of n bytes.
	Allocate(n int) ([]byte, error)
	// Release gives back a buffer previously returned by Allocate.
	Release(buf []byte) error
}

// HeapAllocator is the plain Go-heap backing; used for small or
// short-lived datasets/graphs where mmap's syscall overhead isn't worth
// it.
type HeapAllocator struct{}

func (HeapAllocator) Allocate(n int) ([]byte, error) { return make([]byte, n), nil }
func (HeapAllocator) Release([]byte) error           { return nil }

// HugePageAllocator backs allocations with an anonymous mmap, requesting
// the largest tier in hugePageTiers that n fits a whole number of times
// into (falling back toward PageSize), and advises the kernel with
// MADV_HUGEPAGE for every tier above PageSize. Strict callers that must
// fail rather than silently fall back to a smaller tier set Strict.
type HugePageAllocator struct {
	Strict bool
}

func (a HugePageAllocator) Allocate(n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("iostore: allocation size must be positive, got %d", n)
	}
	tier, err := a.selectTier(n)
	if err != nil {
		return nil, err
	}
	size := roundUp(n, tier)
	buf, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANONYMOUS|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("iostore: mmap %d bytes: %w", size, err)
	}
	if tier > PageSize {
		_ = unix.Madvise(buf, unix.MADV_HUGEPAGE)
	}
	return buf[:n:n], nil
}

func (a HugePageAllocator) selectTier(n int) (int, error) {
	for _, tier := range hugePageTiers {
		if tier == PageSize {
			break
		}
		if n >= tier {
			return tier, nil
		}
	}
	if a.Strict {
		return 0, fmt.Errorf("iostore: no huge-page tier fits %d bytes under strict allocation", n)
	}
	return PageSize, nil
}

func (HugePageAllocator) Release(buf []byte) error {
	if cap(buf) == 0 {
		return nil
	}
	full := buf[:cap(buf)]
	if err := unix.Munmap(full); err != nil {
		return fmt.Errorf("iostore: munmap: %w", err)
	}
	return nil
}

func roundUp(n, tier int) int {
	if n%tier == 0 {
		return n
	}
	return (n/tier + 1) * tier
}

// FileMode selects the existing-vs-must-create policy spec §5 requires
// for file-backed allocation.
type FileMode int

const (
	// MustCreate fails if the file already exists.
	MustCreate FileMode = iota
	// MustExist fails if the file does not already exist.
	MustExist
	// OpenOrCreate opens the file if present, creating it otherwise.
	OpenOrCreate
)

// FileAllocator memory-maps a file on disk, sized to the requested
// allocation, enforcing mode's existing-vs-must-create policy.
type FileAllocator struct {
	Path string
	Mode FileMode
}

func (a FileAllocator) Allocate(n int) ([]byte, error) {
	flags := os.O_RDWR
	switch a.Mode {
	case MustCreate:
		flags |= os.O_CREATE | os.O_EXCL
	case MustExist:
		// no O_CREATE: os.OpenFile fails with ENOENT if absent.
	case OpenOrCreate:
		flags |= os.O_CREATE
	}
	f, err := os.OpenFile(a.Path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("iostore: opening %s: %w", a.Path, err)
	}
	defer f.Close()

	if err := f.Truncate(int64(n)); err != nil {
		return nil, fmt.Errorf("iostore: sizing %s to %d bytes: %w", a.Path, n, err)
	}
	buf, err := unix.Mmap(int(f.Fd()), 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("iostore: mmap %s: %w", a.Path, err)
	}
	return buf, nil
}

func (FileAllocator) Release(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	if err := unix.Munmap(buf); err != nil {
		return fmt.Errorf("iostore: munmap: %w", err)
	}
	return nil
}
