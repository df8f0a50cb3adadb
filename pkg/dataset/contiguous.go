package dataset

// Contiguous is a fixed-size N×d matrix laid out row-major in one
// allocation. Size is fixed at construction; there is no per-slot
// liveness tracking (spec §3).
type Contiguous struct {
	dims int
	n    uint64
	data []float32
}

// NewContiguous allocates a zero-filled contiguous dataset of n rows with
// the given dimensionality.
func NewContiguous(n uint64, dims int) *Contiguous {
	return &Contiguous{
		dims: dims,
		n:    n,
		data: make([]float32, n*uint64(dims)),
	}
}

// WrapContiguous adopts an existing flat row-major buffer without copying,
// used by loaders (pkg/vecfile) that already have the data in memory.
func WrapContiguous(data []float32, n uint64, dims int) (*Contiguous, error) {
	if uint64(len(data)) != n*uint64(dims) {
		return nil, ErrDimensionMismatch{Want: int(n) * dims, Got: len(data)}
	}
	return &Contiguous{dims: dims, n: n, data: data}, nil
}

func (c *Contiguous) Size() uint64      { return c.n }
func (c *Contiguous) Dimensions() int   { return c.dims }
func (c *Contiguous) Prefetch(id uint64) {
	// A pure in-memory contiguous slice needs no explicit prefetch; reading
	// the row triggers the CPU prefetcher. Kept as a no-op to satisfy the
	// Dataset interface uniformly across backings.
}

func (c *Contiguous) row(id uint64) (int, int, error) {
	if id >= c.n {
		return 0, 0, ErrOutOfRange{Id: id, Size: c.n}
	}
	start := int(id) * c.dims
	return start, start + c.dims, nil
}

// Get returns a slice aliasing the backing array; callers must copy before
// the dataset is mutated again if they need to retain it.
func (c *Contiguous) Get(id uint64) ([]float32, error) {
	start, end, err := c.row(id)
	if err != nil {
		return nil, err
	}
	return c.data[start:end:end], nil
}

func (c *Contiguous) Set(id uint64, v []float32) error {
	if len(v) != c.dims {
		return ErrDimensionMismatch{Want: c.dims, Got: len(v)}
	}
	start, end, err := c.row(id)
	if err != nil {
		return err
	}
	copy(c.data[start:end], v)
	return nil
}

// Raw exposes the backing slice for bulk operations such as save/load and
// GEMM-friendly batch distance computation (pkg/kmeans, pkg/ivf).
func (c *Contiguous) Raw() []float32 { return c.data }
