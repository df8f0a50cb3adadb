package ivf

import "github.com/vsearch/svs/pkg/quantization"

// Cluster holds one inverted list's members: the local-to-global id table
// plus their quantized codes, laid out per the index's configured Layout
// (spec §4.7: "sparse ... and dense ... layouts").
type Cluster struct {
	layout  Layout
	codeDim int
	ids     []uint64
	// dense holds every member's code back-to-back in one growing
	// allocation (codeDim bytes per member); used when layout == Dense so
	// a scan walks one contiguous buffer.
	dense []int8
	// sparse holds one independently allocated code slice per member;
	// used when layout == Sparse, trading scan locality for not having to
	// pre-size or reshuffle a shared buffer as the cluster grows.
	sparse [][]int8
}

func newCluster(layout Layout, codeDim int) *Cluster {
	return &Cluster{layout: layout, codeDim: codeDim}
}

// Len returns the number of members currently in the cluster.
func (c *Cluster) Len() int { return len(c.ids) }

// Add appends a member's global id and quantized code to the cluster.
func (c *Cluster) Add(globalID uint64, code []int8) {
	c.ids = append(c.ids, globalID)
	if c.layout == Dense {
		c.dense = append(c.dense, code...)
		return
	}
	cp := make([]int8, len(code))
	copy(cp, code)
	c.sparse = append(c.sparse, cp)
}

func (c *Cluster) code(i int) []int8 {
	if c.layout == Dense {
		start := i * c.codeDim
		return c.dense[start : start+c.codeDim]
	}
	return c.sparse[i]
}

// Scan computes the quantized distance from query to every member and
// invokes insert(globalID, score) in member order.
func (c *Cluster) Scan(q *quantization.Scalar, query []int8, insert func(globalID uint64, score float32)) {
	for i, id := range c.ids {
		insert(id, q.Distance(query, c.code(i)))
	}
}
