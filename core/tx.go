package core

import (
	"errors"
	"fmt"
	"log/slog"

	"seedchain/core/events"
	"seedchain/native/seeds"
	"seedchain/observability/logging"
)

// Op names a transaction kind.
type Op string

const (
	OpAdd               Op = "seeds.add"
	OpChallenge         Op = "seeds.challenge"
	OpExamine           Op = "seeds.examine"
	OpReplyHash         Op = "seeds.replyHash"
	OpReplyHashNext     Op = "seeds.replyHashNext"
	OpReplyPath         Op = "seeds.replyPath"
	OpReplyPathNext     Op = "seeds.replyPathNext"
	OpReplyNum          Op = "seeds.replyNum"
	OpMissedInHashs     Op = "seeds.missedInHashs"
	OpMissedInPaths     Op = "seeds.missedInPaths"
	OpEvidenceOfShorter Op = "seeds.evidenceOfShorter"
	OpNumberTooLow      Op = "seeds.numberTooLow"
	OpNumberTooLowNext  Op = "seeds.numberTooLowNext"
	OpInvalidEvidence   Op = "seeds.invalidEvidence"
	OpHarvestChallenge  Op = "seeds.harvestChallenge"
	OpHarvestSeed       Op = "seeds.harvestSeed"
	OpAddEdge           Op = "trust.addEdge"
	OpRemoveEdge        Op = "trust.removeEdge"
)

// ErrUnknownOp is returned for transactions naming no known operation.
var ErrUnknownOp = errors.New("node: unknown operation")

// Tx is a signed-off call into the native modules. Only the fields used by
// Op are read.
type Tx struct {
	Op       Op
	Caller   [20]byte
	Target   [20]byte
	Score    uint64
	Index    uint32
	Total    uint32
	Hashes   []seeds.ResultHash
	Paths    []seeds.PathRecord
	Nodes    [][20]byte
	MidPaths [][][20]byte
}

// Apply executes tx as one transaction.
func (n *Node) Apply(tx Tx) ([]events.Event, error) {
	attrs := []slog.Attr{logging.Account("caller", tx.Caller), logging.Account("target", tx.Target)}
	return n.execute(string(tx.Op), attrs, func(m *Modules) error {
		return dispatch(m, tx)
	})
}

func dispatch(m *Modules, tx Tx) error {
	switch tx.Op {
	case OpAddEdge:
		return m.Graph.AddEdge(tx.Caller, tx.Target)
	case OpRemoveEdge:
		return m.Graph.RemoveEdge(tx.Caller, tx.Target)
	}

	ctx, err := m.Context(tx.Caller)
	if err != nil {
		return err
	}
	e := m.Seeds
	switch tx.Op {
	case OpAdd:
		return e.Add(ctx, tx.Target, tx.Score)
	case OpChallenge:
		return e.Challenge(ctx, tx.Target, tx.Score)
	case OpExamine:
		return e.Examine(ctx, tx.Target, tx.Index)
	case OpReplyHash:
		return e.ReplyHash(ctx, tx.Target, tx.Hashes, tx.Total)
	case OpReplyHashNext:
		return e.ReplyHashNext(ctx, tx.Target, tx.Hashes)
	case OpReplyPath:
		return e.ReplyPath(ctx, tx.Target, tx.Paths, tx.Total)
	case OpReplyPathNext:
		return e.ReplyPathNext(ctx, tx.Target, tx.Paths)
	case OpReplyNum:
		return e.ReplyNum(ctx, tx.Target, tx.MidPaths)
	case OpMissedInHashs:
		return e.MissedInHashs(ctx, tx.Target, tx.Nodes, tx.Index)
	case OpMissedInPaths:
		return e.MissedInPaths(ctx, tx.Target, tx.Nodes, tx.Index)
	case OpEvidenceOfShorter:
		return e.EvidenceOfShorter(ctx, tx.Target, tx.Index, tx.Nodes)
	case OpNumberTooLow:
		return e.NumberTooLow(ctx, tx.Target, tx.Index, tx.MidPaths)
	case OpNumberTooLowNext:
		return e.NumberTooLowNext(ctx, tx.Target, tx.MidPaths)
	case OpInvalidEvidence:
		return e.InvalidEvidence(ctx, tx.Target, tx.Nodes, tx.Score)
	case OpHarvestChallenge:
		_, err := e.HarvestChallenge(ctx, tx.Target)
		return err
	case OpHarvestSeed:
		_, err := e.HarvestSeed(ctx, tx.Target)
		return err
	}
	return fmt.Errorf("%w: %q", ErrUnknownOp, tx.Op)
}
