package vecfile

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFvecs(t *testing.T, path string, rows [][]float32) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	for _, row := range rows {
		var dimBuf [4]byte
		binary.LittleEndian.PutUint32(dimBuf[:], uint32(len(row)))
		_, err := f.Write(dimBuf[:])
		require.NoError(t, err)
		for _, x := range row {
			var buf [4]byte
			binary.LittleEndian.PutUint32(buf[:], math.Float32bits(x))
			_, err := f.Write(buf[:])
			require.NoError(t, err)
		}
	}
}

func TestReadVecsRoundTripsFloat32Records(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.fvecs")
	rows := [][]float32{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}}
	writeFvecs(t, path, rows)

	data, n, dims, err := ReadVecs(path, Float32Kind)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)
	assert.Equal(t, 3, dims)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9}, data)
}

func TestReadVecsRejectsInconsistentDims(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.fvecs")
	writeFvecs(t, path, [][]float32{{1, 2}, {3, 4, 5}})

	_, _, _, err := ReadVecs(path, Float32Kind)
	assert.Error(t, err)
}

func TestKindFromExtCoversEveryLegacyExtension(t *testing.T) {
	cases := map[string]Kind{
		".fvecs": Float32Kind,
		".bvecs": ByteKind,
		".ivecs": Int32Kind,
		".hvecs": HalfKind,
	}
	for ext, want := range cases {
		got, err := KindFromExt(ext)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := KindFromExt(".txt")
	assert.Error(t, err)
}

func TestSVSWriteThenReadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.svs")
	data := []float32{1.5, -2.5, 3.25, 0, 100.125, -0.001}

	require.NoError(t, WriteSVS(path, data))
	got, err := ReadSVS(path, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestFloat16ToFloat32HandlesZeroOneAndInfinity(t *testing.T) {
	assert.Equal(t, float32(0), float16ToFloat32(0x0000))
	assert.InDelta(t, float32(1.0), float16ToFloat32(0x3c00), 1e-6)
	assert.True(t, math.IsInf(float64(float16ToFloat32(0x7c00)), 1))
}
