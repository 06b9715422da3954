package trust

import (
	"errors"
	"fmt"
)

// storage abstracts the subset of state manager functionality required by the
// trust graph and the seed registry.
type storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
	KVAppend(key []byte, value []byte) error
	KVRemove(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

var (
	edgePrefix     = []byte("trust/edge/")
	outgoingPrefix = []byte("trust/out/")
	seedPrefix     = []byte("trust/seed/")
	seedListKey    = []byte("trust/seeds")
)

var (
	// ErrSelfEdge is returned when an account tries to trust itself.
	ErrSelfEdge = errors.New("trust: self edge not allowed")
	// ErrZeroAccount is returned for edges touching the zero account.
	ErrZeroAccount = errors.New("trust: zero account")
)

func edgeKey(from, to [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x/%x", edgePrefix, from, to))
}

func outgoingKey(from [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", outgoingPrefix, from))
}

func seedKey(account [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", seedPrefix, account))
}

// Graph stores directed trust edges. An edge from A to B means A vouches for
// B.
type Graph struct {
	store storage
}

// NewGraph constructs a graph bound to the provided storage backend.
func NewGraph(store storage) *Graph {
	return &Graph{store: store}
}

// AddEdge records that from trusts to. Adding an existing edge is a no-op.
func (g *Graph) AddEdge(from, to [20]byte) error {
	if from == to {
		return ErrSelfEdge
	}
	if from == ([20]byte{}) || to == ([20]byte{}) {
		return ErrZeroAccount
	}
	if err := g.store.KVPut(edgeKey(from, to), true); err != nil {
		return err
	}
	return g.store.KVAppend(outgoingKey(from), to[:])
}

// RemoveEdge drops the edge from -> to if present.
func (g *Graph) RemoveEdge(from, to [20]byte) error {
	if err := g.store.KVDelete(edgeKey(from, to)); err != nil {
		return err
	}
	return g.store.KVRemove(outgoingKey(from), to[:])
}

// IsEdgeValid reports whether from currently trusts to.
func (g *Graph) IsEdgeValid(from, to [20]byte) (bool, error) {
	var present bool
	ok, err := g.store.KVGet(edgeKey(from, to), &present)
	if err != nil {
		return false, err
	}
	return ok && present, nil
}

// IsValidWalk reports whether every consecutive pair of nodes is joined by a
// trust edge. Walks shorter than two nodes are never valid.
func (g *Graph) IsValidWalk(nodes [][20]byte) (bool, error) {
	if len(nodes) < 2 {
		return false, nil
	}
	for i := 0; i+1 < len(nodes); i++ {
		ok, err := g.IsEdgeValid(nodes[i], nodes[i+1])
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Outgoing lists the accounts trusted by from.
func (g *Graph) Outgoing(from [20]byte) ([][20]byte, error) {
	var raw [][]byte
	if err := g.store.KVGetList(outgoingKey(from), &raw); err != nil {
		return nil, err
	}
	out := make([][20]byte, 0, len(raw))
	for _, item := range raw {
		var addr [20]byte
		copy(addr[:], item)
		out = append(out, addr)
	}
	return out, nil
}
