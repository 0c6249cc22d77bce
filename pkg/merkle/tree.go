// Package merkle builds binary Merkle trees over segment hashes, exposes
// inclusion proofs, and verifies them. Leaves are duplicated to the
// nearest even count at every level; a parent's hash is the content hash
// of its children's hex digests concatenated in order.
//
// The tree is represented as a flat, level-by-level slice of hex hashes
// rather than a recursive node graph: externally only the root and the
// ordered leaf hashes are observable, so the flat form avoids pointer
// chasing for trees with many segments (Tier 3 files can have thousands
// of leaves).
package merkle

import (
	"fmt"

	"github.com/blockframe/blockframe/pkg/hashx"
)

// Tree is an immutable Merkle tree built from an ordered list of leaf
// hashes.
type Tree struct {
	// levels[0] is the leaf level as given (an odd last leaf is paired
	// with itself only when building the parent level); the last level
	// holds exactly one hash, the root.
	levels [][]string
}

// New builds a tree over the hashes of the given leaf byte blobs, in
// order.
func New(leaves [][]byte) *Tree {
	hashes := make([]string, len(leaves))
	for i, l := range leaves {
		hashes[i] = hashx.HashBytes(l)
	}

	return FromHashes(hashes)
}

// FromHashes builds a tree directly over pre-computed leaf hashes.
func FromHashes(hashes []string) *Tree {
	level := append([]string(nil), hashes...)
	if len(level) == 0 {
		return &Tree{levels: [][]string{{}}}
	}

	levels := [][]string{level}

	for len(level) > 1 {
		level = nextLevel(level)
		levels = append(levels, level)
	}

	return &Tree{levels: levels}
}

// nextLevel duplicates the last node if the level has odd cardinality,
// then hashes each adjacent pair into the parent level.
func nextLevel(level []string) []string {
	if len(level)%2 == 1 {
		level = append(level, level[len(level)-1])
	}

	parents := make([]string, 0, len(level)/2)
	for i := 0; i < len(level); i += 2 {
		parents = append(parents, parentHash(level[i], level[i+1]))
	}

	return parents
}

func parentHash(left, right string) string {
	return hashx.HashBytes([]byte(left + right))
}

// Root returns the hex-encoded digest at the top of the tree.
func (t *Tree) Root() string {
	top := t.levels[len(t.levels)-1]
	if len(top) == 0 {
		return ""
	}

	return top[0]
}

// Leaves returns the ordered leaf hashes as given; the duplicate used to
// pair an odd last leaf is not included.
func (t *Tree) Leaves() []string {
	return append([]string(nil), t.levels[0]...)
}

// GetProof returns the sibling hashes from leaf i up to (but not
// including) the root.
func (t *Tree) GetProof(i int) ([]string, error) {
	if i < 0 || i >= len(t.levels[0]) {
		return nil, fmt.Errorf("leaf index %d out of range [0,%d)", i, len(t.levels[0]))
	}

	proof := make([]string, 0, len(t.levels)-1)
	index := i

	for level := 0; level < len(t.levels)-1; level++ {
		nodes := t.levels[level]

		siblingIndex := index ^ 1
		if siblingIndex >= len(nodes) {
			siblingIndex = index
		}

		proof = append(proof, nodes[siblingIndex])
		index /= 2
	}

	return proof, nil
}

// VerifyProof recomputes the path from leaf bytes up to root using proof
// and reports whether it reaches the given root hash.
func VerifyProof(leaf []byte, index int, proof []string, root string) bool {
	current := hashx.HashBytes(leaf)

	for _, sibling := range proof {
		if index%2 == 0 {
			current = parentHash(current, sibling)
		} else {
			current = parentHash(sibling, current)
		}

		index /= 2
	}

	return current == root
}
