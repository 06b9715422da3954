package seeds

import (
	"bytes"
	"math/bits"
	"sort"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// insertResult adds rec to level keeping it sorted by order.
func insertResult(level []ResultHash, rec ResultHash) ([]ResultHash, error) {
	i := sort.Search(len(level), func(i int) bool {
		return bytes.Compare(level[i].Order, rec.Order) >= 0
	})
	if i < len(level) && bytes.Equal(level[i].Order, rec.Order) {
		return nil, ErrDuplicateOrder
	}
	level = append(level, ResultHash{})
	copy(level[i+1:], level[i:])
	level[i] = rec
	return level, nil
}

// insertPath adds p to paths keeping them sorted by node sequence.
func insertPath(paths []PathRecord, p PathRecord) ([]PathRecord, error) {
	key := p.key()
	i := sort.Search(len(paths), func(i int) bool {
		return bytes.Compare(paths[i].key(), key) >= 0
	})
	if i < len(paths) && bytes.Equal(paths[i].key(), key) {
		return nil, ErrDuplicatePath
	}
	paths = append(paths, PathRecord{})
	copy(paths[i+1:], paths[i:])
	paths[i] = p
	return paths, nil
}

// LevelDigest is the commitment to a hash level: records sorted by order,
// duplicates rejected, RLP encoded and hashed with Keccak256.
func LevelDigest(level []ResultHash) ([32]byte, error) {
	sorted := make([]ResultHash, 0, len(level))
	var err error
	for _, rec := range level {
		if sorted, err = insertResult(sorted, rec); err != nil {
			return [32]byte{}, err
		}
	}
	return digest(sorted)
}

// PathsDigest is the commitment to a bucket's path set, built like
// LevelDigest with paths sorted by node sequence.
func PathsDigest(paths []PathRecord) ([32]byte, error) {
	sorted := make([]PathRecord, 0, len(paths))
	var err error
	for _, p := range paths {
		if sorted, err = insertPath(sorted, p); err != nil {
			return [32]byte{}, err
		}
	}
	return digest(sorted)
}

func digest(v interface{}) ([32]byte, error) {
	encoded, err := rlp.EncodeToBytes(v)
	if err != nil {
		return [32]byte{}, err
	}
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256(encoded))
	return out, nil
}

func levelScore(level []ResultHash) (uint64, error) {
	var sum uint64
	for _, rec := range level {
		var carry uint64
		sum, carry = bits.Add64(sum, rec.Score, 0)
		if carry != 0 {
			return 0, ErrScoreOverflow
		}
	}
	return sum, nil
}

// PathContribution is the betweenness share of one path in hundredths.
func PathContribution(total uint32) uint64 {
	if total == 0 {
		return 0
	}
	return 100 / uint64(total)
}

func pathsScore(paths []PathRecord) uint64 {
	var sum uint64
	for _, p := range paths {
		sum += PathContribution(p.Total)
	}
	return sum
}
