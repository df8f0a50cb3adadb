package dataset

// DefaultTargetBlockBytes is the default target byte-size for one block,
// chosen so a block lands near 1 GiB (spec §3).
const DefaultTargetBlockBytes = 1 << 30

// Blocked is a dense dataset backed by a sequence of equal-sized blocks so
// it can grow (and shrink) by appending/dropping whole blocks instead of
// reallocating one giant buffer. Row i lives at block i/blockSize, offset
// i%blockSize (spec §3).
type Blocked struct {
	dims        int
	blockSize   uint64 // rows per block, a power of two
	n           uint64 // logical row count
	blocks      [][]float32
	targetBytes int
}

// blockSizeForTarget returns the largest power-of-two row count whose
// byte footprint (rows * dims * 4 bytes) does not exceed targetBytes.
func blockSizeForTarget(dims int, targetBytes int) uint64 {
	rowBytes := dims * 4
	if rowBytes <= 0 {
		return 1
	}
	maxRows := targetBytes / rowBytes
	if maxRows < 1 {
		return 1
	}
	size := uint64(1)
	for size*2 <= uint64(maxRows) {
		size *= 2
	}
	return size
}

// NewBlocked allocates a blocked dataset with n logical rows. targetBytes
// <= 0 selects DefaultTargetBlockBytes.
func NewBlocked(n uint64, dims int, targetBytes int) *Blocked {
	if targetBytes <= 0 {
		targetBytes = DefaultTargetBlockBytes
	}
	b := &Blocked{
		dims:        dims,
		blockSize:   blockSizeForTarget(dims, targetBytes),
		targetBytes: targetBytes,
	}
	b.Resize(n)
	return b
}

func (b *Blocked) Size() uint64      { return b.n }
func (b *Blocked) Dimensions() int   { return b.dims }
func (b *Blocked) BlockSize() uint64 { return b.blockSize }
func (b *Blocked) NumBlocks() int    { return len(b.blocks) }

func (b *Blocked) Prefetch(id uint64) {
	// No-op for heap-backed blocks; pkg/iostore's mmap-backed allocator
	// wires madvise(WILLNEED) for the disk-resident analogue.
}

func (b *Blocked) locate(id uint64) (blockIdx int, offset uint64) {
	return int(id / b.blockSize), id % b.blockSize
}

// Resize grows or shrinks the dataset to n rows, allocating or dropping
// whole blocks as needed. Existing rows below min(oldN, n) are preserved
// (spec §3 / §8 scenario 4).
func (b *Blocked) Resize(n uint64) {
	wantBlocks := int((n + b.blockSize - 1) / b.blockSize)
	if n == 0 {
		wantBlocks = 0
	}
	for len(b.blocks) < wantBlocks {
		b.blocks = append(b.blocks, make([]float32, b.blockSize*uint64(b.dims)))
	}
	if len(b.blocks) > wantBlocks {
		b.blocks = b.blocks[:wantBlocks]
	}
	b.n = n
}

func (b *Blocked) Get(id uint64) ([]float32, error) {
	if id >= b.n {
		return nil, ErrOutOfRange{Id: id, Size: b.n}
	}
	blk, off := b.locate(id)
	start := int(off) * b.dims
	return b.blocks[blk][start : start+b.dims : start+b.dims], nil
}

func (b *Blocked) Set(id uint64, v []float32) error {
	if len(v) != b.dims {
		return ErrDimensionMismatch{Want: b.dims, Got: len(v)}
	}
	if id >= b.n {
		return ErrOutOfRange{Id: id, Size: b.n}
	}
	blk, off := b.locate(id)
	start := int(off) * b.dims
	copy(b.blocks[blk][start:start+b.dims], v)
	return nil
}

// Append grows the dataset by one row and returns its id, appending a new
// block first if the current last block is full. Used by dynamic Vamana
// insert (spec §4.6).
func (b *Blocked) Append(v []float32) (uint64, error) {
	if len(v) != b.dims {
		return 0, ErrDimensionMismatch{Want: b.dims, Got: len(v)}
	}
	id := b.n
	b.Resize(b.n + 1)
	_ = b.Set(id, v)
	return id, nil
}

// CopyRow copies the row at src to dst within the same dataset, used by
// compact() to move live rows into a contiguous prefix.
func (b *Blocked) CopyRow(dst, src uint64) error {
	sv, err := b.Get(src)
	if err != nil {
		return err
	}
	buf := make([]float32, len(sv))
	copy(buf, sv)
	return b.Set(dst, buf)
}
