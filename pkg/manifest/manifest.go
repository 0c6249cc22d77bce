// Package manifest defines the typed, JSON-persisted record that binds a
// committed file's identity, tier, erasure-coding parameters, and Merkle
// tree view. A manifest is written once at commit time and never mutated;
// repair rewrites shard bytes but never manifest fields.
package manifest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/blockframe/blockframe/pkg/errs"
	"github.com/blockframe/blockframe/pkg/hashx"
	"github.com/blockframe/blockframe/pkg/merkle"
)

// FileName is the manifest's fixed file name inside an archive directory.
const FileName = "manifest.json"

// hashHexLen is the digest length, in hex characters, of the hash used
// throughout the archive.
const hashHexLen = 64

// Tier identifies which storage strategy a committed file uses.
type Tier int

const (
	// TierTiny stores the whole file as a single RS(1,3) unit.
	TierTiny Tier = 1
	// TierSegmented stores the file as independently RS(1,3)-protected
	// segments.
	TierSegmented Tier = 2
	// TierBlocked groups segments into RS(30,3)-protected blocks.
	TierBlocked Tier = 3
)

// ErasureCoding records the erasure-coding parameters used to protect
// every unit in the file.
type ErasureCoding struct {
	Algorithm    string `json:"algorithm"`
	DataShards   int    `json:"data_shards"`
	ParityShards int    `json:"parity_shards"`
}

// BlockInfo describes one Tier 3 protection unit: the segment hashes it
// covers (30, or fewer for a ragged final block), its 3 parity hashes, and the local Merkle root binding them.
type BlockInfo struct {
	BlockRoot     string   `json:"block_root"`
	SegmentHashes []string `json:"segment_hashes"`
	ParityHashes  []string `json:"parity_hashes"`
}

// MerkleView is the manifest's serialized Merkle tree: Leaves holds every
// segment hash in file order (the basis of the overall root, and of
// VerifyAgainstChunks for every tier); Blocks is populated only for Tier 3
// and carries the additional per-block detail.
type MerkleView struct {
	Root   string               `json:"root"`
	Leaves map[string]string    `json:"leaves"`
	Blocks map[string]BlockInfo `json:"blocks,omitempty"`
}

// Manifest is the per-file archive record.
type Manifest struct {
	Name          string        `json:"name"`
	ContentHash   string        `json:"content_hash"`
	TruncatedHash string        `json:"truncated_hash"`
	Size          int64         `json:"size"`
	Tier          Tier          `json:"tier"`
	SegmentSize   int64         `json:"segment_size"`
	CreatedAt     time.Time     `json:"created_at"`
	ErasureCoding ErasureCoding `json:"erasure_coding"`
	MerkleTree    MerkleView    `json:"merkle_tree"`
}

// FromFile parses the manifest JSON document at path.
func FromFile(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Wrap(errs.NotFound, fmt.Sprintf("manifest %q", path), err)
		}

		return nil, errs.Wrap(errs.PermanentIO, fmt.Sprintf("opening manifest %q", path), err)
	}
	defer f.Close()

	var m Manifest
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return nil, errs.Wrap(errs.ParseError, fmt.Sprintf("decoding manifest %q", path), err)
	}

	return &m, nil
}

// WriteFile serializes m as JSON to path via a buffered writer, flushing
// before returning.
func (m *Manifest) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrap(errs.PermanentIO, fmt.Sprintf("creating manifest %q", path), err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(m); err != nil {
		return errs.Wrap(errs.PermanentIO, fmt.Sprintf("encoding manifest %q", path), err)
	}

	return w.Flush()
}

// Validate checks that the manifest's structural invariants hold: the
// root and every leaf are 64-character hex strings, the leaves map is
// non-empty, and leaf indices form the contiguous range {0..n-1}.
func (m *Manifest) Validate() error {
	if !hashx.IsValidHex(m.MerkleTree.Root, hashHexLen) {
		return errs.Wrap(errs.ParseError, "manifest root is not a 64-character hex string", nil)
	}

	if len(m.MerkleTree.Leaves) == 0 {
		return errs.Wrap(errs.ParseError, "manifest leaves map is empty", nil)
	}

	indices := make([]int, 0, len(m.MerkleTree.Leaves))

	for k, v := range m.MerkleTree.Leaves {
		idx, err := strconv.Atoi(k)
		if err != nil {
			return errs.Wrap(errs.ParseError, fmt.Sprintf("leaf index %q is not an integer", k), err)
		}

		if !hashx.IsValidHex(v, hashHexLen) {
			return errs.Wrap(errs.ParseError, fmt.Sprintf("leaf %d is not a 64-character hex string", idx), nil)
		}

		indices = append(indices, idx)
	}

	sort.Ints(indices)

	for expected, actual := range indices {
		if expected != actual {
			return errs.Wrap(errs.ParseError, "leaf indices are not contiguous", nil)
		}
	}

	if m.Tier == TierBlocked {
		return m.validateBlocks()
	}

	return nil
}

func (m *Manifest) validateBlocks() error {
	if len(m.MerkleTree.Blocks) == 0 {
		return errs.Wrap(errs.ParseError, "tier 3 manifest has no blocks", nil)
	}

	for k, b := range m.MerkleTree.Blocks {
		if !hashx.IsValidHex(b.BlockRoot, hashHexLen) {
			return errs.Wrap(errs.ParseError, fmt.Sprintf("block %s root is not a 64-character hex string", k), nil)
		}

		if len(b.ParityHashes) != 3 {
			return errs.Wrap(errs.ParseError, fmt.Sprintf("block %s does not have exactly 3 parity hashes", k), nil)
		}
	}

	return nil
}

// VerifyAgainstChunks hashes each of chunks and checks it against the
// corresponding manifest leaf, then rebuilds the Merkle root over all of
// chunks and checks it against the stored root.
func (m *Manifest) VerifyAgainstChunks(chunks [][]byte) (bool, error) {
	if len(chunks) != len(m.MerkleTree.Leaves) {
		return false, nil
	}

	hashes := make([]string, len(chunks))

	for i, c := range chunks {
		expected, ok := m.MerkleTree.Leaves[strconv.Itoa(i)]
		if !ok {
			return false, nil
		}

		actual := hashx.HashBytes(c)
		if actual != expected {
			return false, nil
		}

		hashes[i] = actual
	}

	tree := merkle.FromHashes(hashes)

	return tree.Root() == m.MerkleTree.Root, nil
}
