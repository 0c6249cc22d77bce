package mount

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockframe/blockframe/pkg/erasure"
	"github.com/blockframe/blockframe/pkg/hashx"
	"github.com/blockframe/blockframe/pkg/manifest"
	"github.com/blockframe/blockframe/pkg/merkle"
	"github.com/blockframe/blockframe/pkg/segcache"
)

// fakeSource is an in-memory SegmentSource used to exercise the read
// path without touching disk or the network.
type fakeSource struct {
	manifests map[string]*manifest.Manifest
	data      map[string][]byte // key: name
	segments  map[string][]byte // key: name + "#" + segIndex
	parity    map[string][]byte // key: name + "#" + segIndex/blockIndex + ":" + parityID
	writes    map[string][]byte
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		manifests: map[string]*manifest.Manifest{},
		data:      map[string][]byte{},
		segments:  map[string][]byte{},
		parity:    map[string][]byte{},
		writes:    map[string][]byte{},
	}
}

func (s *fakeSource) ListFiles(context.Context) ([]string, error) {
	names := make([]string, 0, len(s.manifests))
	for n := range s.manifests {
		names = append(names, n)
	}

	return names, nil
}

func (s *fakeSource) GetManifest(_ context.Context, name string) (*manifest.Manifest, error) {
	return s.manifests[name], nil
}

func (s *fakeSource) ReadSegment(_ context.Context, name string, segmentID int) ([]byte, error) {
	return s.segments[name+"#"+strconv.Itoa(segmentID)], nil
}

func (s *fakeSource) ReadBlockSegment(_ context.Context, name string, _, segmentID int) ([]byte, error) {
	return s.segments[name+"#"+strconv.Itoa(segmentID)], nil
}

func (s *fakeSource) ReadParity(_ context.Context, name string, segmentID, parityID int, blockID *int) ([]byte, error) {
	key := name + "#"
	if blockID != nil {
		key += strconv.Itoa(*blockID)
	} else {
		key += strconv.Itoa(segmentID)
	}

	key += ":" + strconv.Itoa(parityID)

	return s.parity[key], nil
}

func (s *fakeSource) ReadData(_ context.Context, name string) ([]byte, error) {
	return s.data[name], nil
}

func (s *fakeSource) WriteSegment(_ context.Context, name string, segmentID int, data []byte) error {
	s.writes[name+"#"+strconv.Itoa(segmentID)] = data

	return nil
}

func tier1Manifest(name string, content []byte) *manifest.Manifest {
	leafHash := hashx.HashBytes(content)

	return &manifest.Manifest{
		Name:        name,
		Size:        int64(len(content)),
		Tier:        manifest.TierTiny,
		SegmentSize: int64(len(content)),
		MerkleTree: manifest.MerkleView{
			Root:   merkle.FromHashes([]string{leafHash}).Root(),
			Leaves: map[string]string{"0": leafHash},
		},
	}
}

func TestReadRangeTier1HealthyPath(t *testing.T) {
	t.Parallel()

	content := []byte("the quick brown fox jumps over the lazy dog")
	src := newFakeSource()
	src.data["f.txt"] = content
	m := tier1Manifest("f.txt", content)

	cache, err := segcache.New(1 << 20)
	require.NoError(t, err)
	defer cache.Close()

	got, err := readRange(context.Background(), src, cache, "f.txt", m, 4, 5)
	require.NoError(t, err)
	require.Equal(t, content[4:9], got)
}

func TestReadRangeTier1RecoversFromCorruption(t *testing.T) {
	t.Parallel()

	content := []byte("tier 1 payload that gets corrupted on disk but protected by parity")
	src := newFakeSource()
	src.data["f.bin"] = []byte("garbage-on-disk-does-not-match-the-leaf-hash!!!")

	padded := erasure.PadToAlignment(content)
	parity, err := erasure.Encode([][]byte{padded}, erasure.ParityShards)
	require.NoError(t, err)

	for i, p := range parity {
		src.parity["f.bin#0:"+strconv.Itoa(i)] = p
	}

	m := tier1Manifest("f.bin", content)

	cache, err := segcache.New(1 << 20)
	require.NoError(t, err)
	defer cache.Close()

	got, err := readRange(context.Background(), src, cache, "f.bin", m, 0, len(content))
	require.NoError(t, err)
	require.Equal(t, content, got)
	require.Equal(t, content, src.writes["f.bin#0"])
}

func segmentedManifestFixture(name string, segmentSize int64, segments [][]byte) *manifest.Manifest {
	leaves := make(map[string]string, len(segments))
	hashes := make([]string, len(segments))

	for i, s := range segments {
		h := hashx.HashBytes(s)
		leaves[strconv.Itoa(i)] = h
		hashes[i] = h
	}

	var size int64
	for _, s := range segments {
		size += int64(len(s))
	}

	return &manifest.Manifest{
		Name:        name,
		Size:        size,
		Tier:        manifest.TierSegmented,
		SegmentSize: segmentSize,
		MerkleTree: manifest.MerkleView{
			Root:   merkle.FromHashes(hashes).Root(),
			Leaves: leaves,
		},
	}
}

func TestReadRangeTier2SpansMultipleSegments(t *testing.T) {
	t.Parallel()

	const segmentSize = 8

	segments := [][]byte{
		[]byte("AAAAAAAA"),
		[]byte("BBBBBBBB"),
		[]byte("CCCC"),
	}

	src := newFakeSource()
	for i, s := range segments {
		src.segments["spanned.bin#"+strconv.Itoa(i)] = s
	}

	m := segmentedManifestFixture("spanned.bin", segmentSize, segments)

	cache, err := segcache.New(1 << 20)
	require.NoError(t, err)
	defer cache.Close()

	got, err := readRange(context.Background(), src, cache, "spanned.bin", m, 5, 12)
	require.NoError(t, err)
	require.Equal(t, []byte("AAABBBBBBBBC"), got)
}

func TestReadRangeTier2RecoversCorruptSegment(t *testing.T) {
	t.Parallel()

	const segmentSize = 16

	good := []byte("good-segment-16B")
	corrupted := []byte("this-is-the-orig")

	src := newFakeSource()
	src.segments["rec.bin#0"] = good
	src.segments["rec.bin#1"] = []byte("tampered-bytes!!")

	padded := erasure.PadToAlignment(corrupted)
	parity, err := erasure.Encode([][]byte{padded}, erasure.ParityShards)
	require.NoError(t, err)

	for i, p := range parity {
		src.parity["rec.bin#1:"+strconv.Itoa(i)] = p
	}

	m := segmentedManifestFixture("rec.bin", segmentSize, [][]byte{good, corrupted})

	cache, err := segcache.New(1 << 20)
	require.NoError(t, err)
	defer cache.Close()

	got, err := readRange(context.Background(), src, cache, "rec.bin", m, segmentSize, len(corrupted))
	require.NoError(t, err)
	require.Equal(t, corrupted, got)
	require.Equal(t, corrupted, src.writes["rec.bin#1"])
}

func TestReadRangeTier3RecoversRaggedBlock(t *testing.T) {
	t.Parallel()

	const segmentSize = 8

	seg0 := []byte("segment0")
	seg1 := []byte("segment1")
	seg2 := []byte("segment2")

	padded := [][]byte{erasure.PadToAlignment(seg0), erasure.PadToAlignment(seg1), erasure.PadToAlignment(seg2)}

	parity, err := erasure.Encode(padded, erasure.ParityShards)
	require.NoError(t, err)

	src := newFakeSource()
	src.segments["blocked.bin#0"] = seg0
	src.segments["blocked.bin#1"] = []byte("corrupted") // wrong length and content
	src.segments["blocked.bin#2"] = seg2

	for i, p := range parity {
		src.parity["blocked.bin#0:"+strconv.Itoa(i)] = p
	}

	segments := [][]byte{seg0, seg1, seg2}
	leaves := map[string]string{}
	hashes := make([]string, len(segments))

	for i, s := range segments {
		h := hashx.HashBytes(s)
		leaves[strconv.Itoa(i)] = h
		hashes[i] = h
	}

	m := &manifest.Manifest{
		Name:        "blocked.bin",
		Size:        int64(len(seg0) + len(seg1) + len(seg2)),
		Tier:        manifest.TierBlocked,
		SegmentSize: segmentSize,
		MerkleTree: manifest.MerkleView{
			Root:   merkle.FromHashes(hashes).Root(),
			Leaves: leaves,
			Blocks: map[string]manifest.BlockInfo{
				"0": {
					BlockRoot:     merkle.FromHashes(append(append([]string(nil), hashes...), "p0", "p1", "p2")).Root(),
					SegmentHashes: hashes,
					ParityHashes:  []string{"p0", "p1", "p2"},
				},
			},
		},
	}

	cache, err := segcache.New(1 << 20)
	require.NoError(t, err)
	defer cache.Close()

	got, err := readRange(context.Background(), src, cache, "blocked.bin", m, segmentSize, len(seg1))
	require.NoError(t, err)
	require.Equal(t, seg1, got)
}
