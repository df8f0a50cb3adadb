package graph

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// EncodeAdjacency writes n vertices' adjacency lists to w as the graph
// binary artifact spec §6 describes (the "graph/" subdirectory's binary
// under a Vamana index directory): for each vertex in ascending id order,
// a uint32 degree followed by that many little-endian uint64 neighbour
// ids. get fetches one vertex's list at a time so the same codec serves
// both Contiguous and Blocked graphs without either needing to expose its
// backing storage shape.
//
// New code: no example repo in the retrieval pack persists a graph, so
// the framing follows vecfile's stdlib-only (encoding/binary) style for
// the sibling vector-file formats rather than any third-party codec.
func EncodeAdjacency(w io.Writer, n uint64, get func(v uint64) ([]uint64, error)) error {
	bw := bufio.NewWriter(w)
	var degreeBuf [4]byte
	var idBuf [8]byte
	for v := uint64(0); v < n; v++ {
		adj, err := get(v)
		if err != nil {
			return fmt.Errorf("graph: reading adjacency for vertex %d: %w", v, err)
		}
		binary.LittleEndian.PutUint32(degreeBuf[:], uint32(len(adj)))
		if _, err := bw.Write(degreeBuf[:]); err != nil {
			return fmt.Errorf("graph: writing degree for vertex %d: %w", v, err)
		}
		for _, id := range adj {
			binary.LittleEndian.PutUint64(idBuf[:], id)
			if _, err := bw.Write(idBuf[:]); err != nil {
				return fmt.Errorf("graph: writing neighbour for vertex %d: %w", v, err)
			}
		}
	}
	return bw.Flush()
}

// DecodeAdjacency reads n vertices' adjacency lists from r (the format
// EncodeAdjacency writes) and hands each one to set, in ascending id
// order.
func DecodeAdjacency(r io.Reader, n uint64, set func(v uint64, neighbours []uint64) error) error {
	br := bufio.NewReader(r)
	var degreeBuf [4]byte
	var idBuf [8]byte
	for v := uint64(0); v < n; v++ {
		if _, err := io.ReadFull(br, degreeBuf[:]); err != nil {
			return fmt.Errorf("graph: reading degree for vertex %d: %w", v, err)
		}
		degree := binary.LittleEndian.Uint32(degreeBuf[:])
		adj := make([]uint64, degree)
		for i := range adj {
			if _, err := io.ReadFull(br, idBuf[:]); err != nil {
				return fmt.Errorf("graph: reading neighbour %d of vertex %d: %w", i, v, err)
			}
			adj[i] = binary.LittleEndian.Uint64(idBuf[:])
		}
		if err := set(v, adj); err != nil {
			return fmt.Errorf("graph: %w", err)
		}
	}
	return nil
}

// EncodeAdjacencyFile is a convenience wrapper opening path for
// EncodeAdjacency.
func EncodeAdjacencyFile(path string, n uint64, get func(v uint64) ([]uint64, error)) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("graph: creating %s: %w", path, err)
	}
	defer f.Close()
	return EncodeAdjacency(f, n, get)
}

// DecodeAdjacencyFile is a convenience wrapper opening path for
// DecodeAdjacency.
func DecodeAdjacencyFile(path string, n uint64, set func(v uint64, neighbours []uint64) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("graph: opening %s: %w", path, err)
	}
	defer f.Close()
	return DecodeAdjacency(f, n, set)
}

// Encode writes g's full adjacency table to path via EncodeAdjacencyFile.
func (g *Contiguous) Encode(path string) error {
	return EncodeAdjacencyFile(path, g.Size(), g.Adjacency)
}

// DecodeContiguous reads a graph previously written by (*Contiguous).Encode
// into a freshly allocated Contiguous graph of n vertices and the given
// degree bound.
func DecodeContiguous(path string, n uint64, maxDegree int) (*Contiguous, error) {
	g := NewContiguous(n, maxDegree)
	if err := DecodeAdjacencyFile(path, n, g.SetAdjacency); err != nil {
		return nil, err
	}
	return g, nil
}

// Encode writes g's full adjacency table to path via EncodeAdjacencyFile.
func (g *Blocked) Encode(path string) error {
	return EncodeAdjacencyFile(path, g.Size(), g.Adjacency)
}

// DecodeBlocked reads a graph previously written by (*Blocked).Encode into
// a freshly allocated Blocked graph of n vertices and the given degree
// bound.
func DecodeBlocked(path string, n uint64, maxDegree int) (*Blocked, error) {
	g := NewBlocked(maxDegree, 0)
	g.Resize(n)
	if err := DecodeAdjacencyFile(path, n, g.SetAdjacency); err != nil {
		return nil, err
	}
	return g, nil
}
