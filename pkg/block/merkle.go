package block

import (
	"fmt"

	"github.com/quantachain/quanta/pkg/crypto"
	"github.com/quantachain/quanta/pkg/types"
)

// ComputeMerkleRoot calculates the merkle root of transaction hashes.
//
// Algorithm:
//   - 0 hashes: returns zero hash
//   - 1 hash: returns that hash
//   - Otherwise: pairwise hash, duplicating the last element if odd count,
//     then recurse on the resulting layer until one hash remains.
func ComputeMerkleRoot(txHashes []types.Hash) types.Hash {
	if len(txHashes) == 0 {
		return types.Hash{}
	}
	if len(txHashes) == 1 {
		return txHashes[0]
	}

	// Work on a copy so we don't mutate the caller's slice.
	level := make([]types.Hash, len(txHashes))
	copy(level, txHashes)

	for len(level) > 1 {
		// If odd, duplicate the last element.
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}

		next := make([]types.Hash, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next[i/2] = crypto.HashConcat(level[i], level[i+1])
		}
		level = next
	}

	return level[0]
}

// MerkleProofStep is one sibling hash in an inclusion proof, paired with
// which side of the running hash it combines on.
type MerkleProofStep struct {
	Sibling types.Hash `json:"sibling"`
	Right   bool       `json:"right"` // true if Sibling is the right operand
}

// ComputeMerkleProof returns the inclusion proof for txHashes[index]: one
// sibling hash per tree level, from leaf to root. Mirrors the pairing and
// odd-duplication rules of ComputeMerkleRoot exactly, so the two always
// agree on the same tree.
func ComputeMerkleProof(txHashes []types.Hash, index int) ([]MerkleProofStep, error) {
	if index < 0 || index >= len(txHashes) {
		return nil, fmt.Errorf("index %d out of range for %d hashes", index, len(txHashes))
	}
	if len(txHashes) == 1 {
		return nil, nil
	}

	level := make([]types.Hash, len(txHashes))
	copy(level, txHashes)

	var proof []MerkleProofStep
	idx := index
	for len(level) > 1 {
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}

		if idx%2 == 0 {
			proof = append(proof, MerkleProofStep{Sibling: level[idx+1], Right: true})
		} else {
			proof = append(proof, MerkleProofStep{Sibling: level[idx-1], Right: false})
		}

		next := make([]types.Hash, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next[i/2] = crypto.HashConcat(level[i], level[i+1])
		}
		level = next
		idx /= 2
	}
	return proof, nil
}

// VerifyMerkleProof recomputes the root from leaf and proof and reports
// whether it matches root.
func VerifyMerkleProof(root types.Hash, proof []MerkleProofStep, leaf types.Hash) bool {
	h := leaf
	for _, step := range proof {
		if step.Right {
			h = crypto.HashConcat(h, step.Sibling)
		} else {
			h = crypto.HashConcat(step.Sibling, h)
		}
	}
	return h == root
}
