package seeds

import (
	"bytes"
	"fmt"

	"seedchain/native/challenge"
)

func (e *Engine) checkWalk(nodes [][20]byte) error {
	ok, err := e.graph.IsValidWalk(nodes)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidWalk
	}
	return nil
}

// checkPath validates a path claimed to run through target.
func (e *Engine) checkPath(target [20]byte, nodes [][20]byte) error {
	if len(nodes) < 3 {
		return ErrPathTooShort
	}
	inside := false
	for _, n := range nodes[1 : len(nodes)-1] {
		if n == target {
			inside = true
			break
		}
	}
	if !inside {
		return ErrTargetNotInPath
	}
	return e.checkWalk(nodes)
}

func (e *Engine) orderAt(d *Dispute, depth uint32) (PackedOrder, error) {
	return OrderFromUint64(d.Order, int(depth*e.params.Range))
}

// parentOf returns the score and, below the first level, the digest that
// level depth must reproduce. remark is the bucket the challenger selected
// at depth-1.
func (e *Engine) parentOf(target [20]byte, cand *Candidate, depth uint32, remark uint32) (ResultHash, bool, error) {
	if depth <= 1 {
		return ResultHash{Score: cand.Score}, false, nil
	}
	parent, err := e.Level(target, depth-1)
	if err != nil {
		return ResultHash{}, false, err
	}
	if int(remark) >= len(parent) {
		return ResultHash{}, false, ErrIndexRange
	}
	return parent[remark], true, nil
}

func (e *Engine) appendLevel(level []ResultHash, records []ResultHash) ([]ResultHash, error) {
	var err error
	for _, rec := range records {
		if uint32(len(rec.Order)) != e.params.Range {
			return nil, ErrOrderWidth
		}
		rec.Order = append([]byte(nil), rec.Order...)
		if level, err = insertResult(level, rec); err != nil {
			return nil, err
		}
	}
	return level, nil
}

func verifyLevel(level []ResultHash, parent ResultHash, checkDigest bool) error {
	sum, err := levelScore(level)
	if err != nil {
		return err
	}
	if sum != parent.Score {
		return fmt.Errorf("%w: level sums to %d, parent committed %d", ErrScoreMismatch, sum, parent.Score)
	}
	if !checkDigest {
		return nil
	}
	got, err := LevelDigest(level)
	if err != nil {
		return err
	}
	if got != parent.Digest {
		return ErrDigestMismatch
	}
	return nil
}

// Examine selects the bucket of the newest hash level, or the path to
// dispute once paths are uploaded.
func (e *Engine) Examine(ctx Context, target [20]byte, index uint32) error {
	if err := e.ready(); err != nil {
		return err
	}
	d, err := e.Dispute(target)
	if err != nil {
		return err
	}
	switch d.Stage {
	case StageHashes:
		if d.Depth == 0 {
			return ErrStage
		}
		level, err := e.Level(target, d.Depth)
		if err != nil {
			return err
		}
		if int(index) >= len(level) {
			return ErrIndexRange
		}
	case StagePaths:
		paths, err := e.Paths(target)
		if err != nil {
			return err
		}
		if int(index) >= len(paths) {
			return ErrIndexRange
		}
	default:
		return ErrStage
	}
	if err := e.game.Examine(AppID, ctx.Caller, target, index); err != nil {
		return err
	}
	if d.Stage == StagePaths {
		d.Stage = StageCount
		d.Index = index
		return e.storeDispute(target, d)
	}
	return nil
}

// ReplyHash answers an examination with the next hash level. total is the
// size of the level; records carries its first part.
func (e *Engine) ReplyHash(ctx Context, target [20]byte, records []ResultHash, total uint32) error {
	if err := e.ready(); err != nil {
		return err
	}
	if len(records) == 0 {
		return ErrEmptyUpload
	}
	d, err := e.Dispute(target)
	if err != nil {
		return err
	}
	if d.Stage != StageHashes {
		return ErrStage
	}
	if d.Depth >= e.params.Deep {
		return ErrDepth
	}
	cand, err := e.loadCandidate(target)
	if err != nil {
		return err
	}
	depth := d.Depth + 1
	verifier := challenge.UploadFunc(func(score uint64, remark uint32, done bool) (uint64, uint32, error) {
		parent, hasParent, err := e.parentOf(target, cand, depth, remark)
		if err != nil {
			return 0, 0, err
		}
		var order PackedOrder
		if hasParent {
			prev, err := e.orderAt(d, depth-2)
			if err != nil {
				return 0, 0, err
			}
			order = prev.Append(parent.Order)
		}
		packed, err := order.ToUint64()
		if err != nil {
			return 0, 0, err
		}
		level, err := e.appendLevel(nil, records)
		if err != nil {
			return 0, 0, err
		}
		if done {
			if err := verifyLevel(level, parent, hasParent); err != nil {
				return 0, 0, err
			}
		}
		if err := e.state.KVPut(levelKey(target, depth), level); err != nil {
			return 0, 0, err
		}
		d.Depth = depth
		d.Order = packed
		if err := e.storeDispute(target, d); err != nil {
			return 0, 0, err
		}
		return score, remark, nil
	})
	return e.game.Reply(AppID, ctx.Caller, target, total, uint32(len(records)), verifier)
}

// ReplyHashNext continues an incomplete hash level upload.
func (e *Engine) ReplyHashNext(ctx Context, target [20]byte, records []ResultHash) error {
	if err := e.ready(); err != nil {
		return err
	}
	if len(records) == 0 {
		return ErrEmptyUpload
	}
	d, err := e.Dispute(target)
	if err != nil {
		return err
	}
	if d.Stage != StageHashes || d.Depth == 0 {
		return ErrStage
	}
	cand, err := e.loadCandidate(target)
	if err != nil {
		return err
	}
	verifier := challenge.UploadFunc(func(score uint64, remark uint32, done bool) (uint64, uint32, error) {
		level, err := e.Level(target, d.Depth)
		if err != nil {
			return 0, 0, err
		}
		if level, err = e.appendLevel(level, records); err != nil {
			return 0, 0, err
		}
		if done {
			parent, hasParent, err := e.parentOf(target, cand, d.Depth, remark)
			if err != nil {
				return 0, 0, err
			}
			if err := verifyLevel(level, parent, hasParent); err != nil {
				return 0, 0, err
			}
		}
		if err := e.state.KVPut(levelKey(target, d.Depth), level); err != nil {
			return 0, 0, err
		}
		return score, remark, nil
	})
	return e.game.Next(AppID, ctx.Caller, target, uint32(len(records)), verifier)
}

func (e *Engine) appendPaths(target [20]byte, existing []PathRecord, paths []PathRecord, full PackedOrder) ([]PathRecord, error) {
	var err error
	for _, p := range paths {
		if err := e.checkPath(target, p.Nodes); err != nil {
			return nil, err
		}
		if p.Total == 0 || p.Total > e.params.MaxShortestPath {
			return nil, ErrPathTotal
		}
		start, stop := p.Endpoints()
		hash := EndpointHash(start, stop)
		if !full.HasPrefixOf(hash[:]) {
			return nil, ErrOrderMismatch
		}
		record := PathRecord{Nodes: append([][20]byte(nil), p.Nodes...), Total: p.Total}
		if existing, err = insertPath(existing, record); err != nil {
			return nil, err
		}
	}
	return existing, nil
}

func verifyPaths(paths []PathRecord, leaf ResultHash) error {
	if got := pathsScore(paths); got != leaf.Score {
		return fmt.Errorf("%w: paths sum to %d, leaf committed %d", ErrScoreMismatch, got, leaf.Score)
	}
	got, err := PathsDigest(paths)
	if err != nil {
		return err
	}
	if got != leaf.Digest {
		return ErrDigestMismatch
	}
	return nil
}

func (e *Engine) leaf(target [20]byte, remark uint32) (ResultHash, error) {
	level, err := e.Level(target, e.params.Deep)
	if err != nil {
		return ResultHash{}, err
	}
	if int(remark) >= len(level) {
		return ResultHash{}, ErrIndexRange
	}
	return level[remark], nil
}

// ReplyPath answers the examination of a leaf bucket with the concrete
// paths in it. quantity is the size of the path set.
func (e *Engine) ReplyPath(ctx Context, target [20]byte, paths []PathRecord, quantity uint32) error {
	if err := e.ready(); err != nil {
		return err
	}
	if len(paths) == 0 {
		return ErrEmptyUpload
	}
	d, err := e.Dispute(target)
	if err != nil {
		return err
	}
	if d.Stage != StageHashes || d.Depth != e.params.Deep {
		return ErrStage
	}
	verifier := challenge.UploadFunc(func(score uint64, remark uint32, done bool) (uint64, uint32, error) {
		leaf, err := e.leaf(target, remark)
		if err != nil {
			return 0, 0, err
		}
		prev, err := e.orderAt(d, d.Depth-1)
		if err != nil {
			return 0, 0, err
		}
		full := prev.Append(leaf.Order)
		packed, err := full.ToUint64()
		if err != nil {
			return 0, 0, err
		}
		stored, err := e.appendPaths(target, nil, paths, full)
		if err != nil {
			return 0, 0, err
		}
		if done {
			if err := verifyPaths(stored, leaf); err != nil {
				return 0, 0, err
			}
		}
		if err := e.state.KVPut(pathsKey(target), stored); err != nil {
			return 0, 0, err
		}
		d.Stage = StagePaths
		d.Order = packed
		if err := e.storeDispute(target, d); err != nil {
			return 0, 0, err
		}
		return score, remark, nil
	})
	return e.game.Reply(AppID, ctx.Caller, target, quantity, uint32(len(paths)), verifier)
}

// ReplyPathNext continues an incomplete path upload.
func (e *Engine) ReplyPathNext(ctx Context, target [20]byte, paths []PathRecord) error {
	if err := e.ready(); err != nil {
		return err
	}
	if len(paths) == 0 {
		return ErrEmptyUpload
	}
	d, err := e.Dispute(target)
	if err != nil {
		return err
	}
	if d.Stage != StagePaths {
		return ErrStage
	}
	verifier := challenge.UploadFunc(func(score uint64, remark uint32, done bool) (uint64, uint32, error) {
		full, err := e.orderAt(d, d.Depth)
		if err != nil {
			return 0, 0, err
		}
		existing, err := e.Paths(target)
		if err != nil {
			return 0, 0, err
		}
		stored, err := e.appendPaths(target, existing, paths, full)
		if err != nil {
			return 0, 0, err
		}
		if done {
			leaf, err := e.leaf(target, remark)
			if err != nil {
				return 0, 0, err
			}
			if err := verifyPaths(stored, leaf); err != nil {
				return 0, 0, err
			}
		}
		if err := e.state.KVPut(pathsKey(target), stored); err != nil {
			return 0, 0, err
		}
		return score, remark, nil
	})
	return e.game.Next(AppID, ctx.Caller, target, uint32(len(paths)), verifier)
}

func (e *Engine) disputedPath(target [20]byte, index uint32) (PathRecord, error) {
	paths, err := e.Paths(target)
	if err != nil {
		return PathRecord{}, err
	}
	if int(index) >= len(paths) {
		return PathRecord{}, ErrIndexRange
	}
	return paths[index], nil
}

// sameLengthWalks validates mids as distinct walks between the endpoints of
// disputed with the same number of interior nodes, appending them to seen.
func (e *Engine) sameLengthWalks(disputed PathRecord, seen []PathRecord, mids [][][20]byte) ([]PathRecord, error) {
	start, stop := disputed.Endpoints()
	want := len(disputed.Mid())
	var err error
	for _, mid := range mids {
		if len(mid) != want {
			return nil, ErrPathLength
		}
		nodes := withEndpoints(start, mid, stop)
		if err := e.checkWalk(nodes); err != nil {
			return nil, err
		}
		if seen, err = insertPath(seen, PathRecord{Nodes: nodes}); err != nil {
			return nil, err
		}
	}
	return seen, nil
}

// ReplyNum answers the examination of a path by enumerating every shortest
// path between its endpoints.
func (e *Engine) ReplyNum(ctx Context, target [20]byte, midPaths [][][20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	d, err := e.Dispute(target)
	if err != nil {
		return err
	}
	if d.Stage != StageCount {
		return ErrStage
	}
	disputed, err := e.disputedPath(target, d.Index)
	if err != nil {
		return err
	}
	if uint32(len(midPaths)) != disputed.Total {
		return ErrPathCount
	}
	count := uint32(len(midPaths))
	verifier := challenge.UploadFunc(func(score uint64, remark uint32, done bool) (uint64, uint32, error) {
		walks, err := e.sameLengthWalks(disputed, nil, midPaths)
		if err != nil {
			return 0, 0, err
		}
		key := disputed.key()
		for _, w := range walks {
			if bytes.Equal(w.key(), key) {
				return score, remark, nil
			}
		}
		return 0, 0, ErrDisputedMissing
	})
	return e.game.Reply(AppID, ctx.Caller, target, count, count, verifier)
}

func escalate(score uint64, _ uint32, _ bool) (challenge.EvidenceOutcome, error) {
	return challenge.EvidenceOutcome{Arbitral: true, Transfer: true, Score: score}, nil
}

// MissedInHashs proves that a path through target falls into a bucket the
// newest hash level omits. index is where the bucket would sort in the level.
func (e *Engine) MissedInHashs(ctx Context, target [20]byte, nodes [][20]byte, index uint32) error {
	if err := e.ready(); err != nil {
		return err
	}
	d, err := e.Dispute(target)
	if err != nil {
		return err
	}
	if d.Stage != StageHashes || d.Depth == 0 {
		return ErrStage
	}
	if err := e.checkPath(target, nodes); err != nil {
		return err
	}
	prefix, err := e.orderAt(d, d.Depth-1)
	if err != nil {
		return err
	}
	hash := EndpointHash(nodes[0], nodes[len(nodes)-1])
	if !prefix.HasPrefixOf(hash[:]) {
		return ErrOrderMismatch
	}
	bucket := hash[len(prefix) : len(prefix)+int(e.params.Range)]
	level, err := e.Level(target, d.Depth)
	if err != nil {
		return err
	}
	if !absentAt(len(level), int(index), func(i int) int { return bytes.Compare(level[i].Order, bucket) }) {
		return ErrNotMissing
	}
	return e.missing(ctx, target, d, nodes)
}

// MissedInPaths proves that a path in the disputed bucket is missing from the
// uploaded path set. index is where it would sort in the set.
func (e *Engine) MissedInPaths(ctx Context, target [20]byte, nodes [][20]byte, index uint32) error {
	if err := e.ready(); err != nil {
		return err
	}
	d, err := e.Dispute(target)
	if err != nil {
		return err
	}
	if d.Stage != StagePaths && d.Stage != StageCount {
		return ErrStage
	}
	if err := e.checkPath(target, nodes); err != nil {
		return err
	}
	full, err := e.orderAt(d, d.Depth)
	if err != nil {
		return err
	}
	hash := EndpointHash(nodes[0], nodes[len(nodes)-1])
	if !full.HasPrefixOf(hash[:]) {
		return ErrOrderMismatch
	}
	paths, err := e.Paths(target)
	if err != nil {
		return err
	}
	key := PathRecord{Nodes: nodes}.key()
	if !absentAt(len(paths), int(index), func(i int) int { return bytes.Compare(paths[i].key(), key) }) {
		return ErrNotMissing
	}
	return e.missing(ctx, target, d, nodes)
}

// absentAt reports whether an item sorting at index is absent from a sorted
// sequence of length n. cmp compares element i with the item.
func absentAt(n, index int, cmp func(i int) int) bool {
	if index < 0 || index > n {
		return false
	}
	if index > 0 && cmp(index-1) >= 0 {
		return false
	}
	if index < n && cmp(index) <= 0 {
		return false
	}
	return true
}

func (e *Engine) missing(ctx Context, target [20]byte, d *Dispute, nodes [][20]byte) error {
	verifier := challenge.EvidenceFunc(func(score uint64, remark uint32, done bool) (challenge.EvidenceOutcome, error) {
		d.Stage = StageMissing
		d.Missing = append([][20]byte(nil), nodes...)
		if err := e.storeDispute(target, d); err != nil {
			return challenge.EvidenceOutcome{}, err
		}
		return escalate(score, remark, done)
	})
	return e.game.Evidence(AppID, ctx.Caller, target, 1, 1, verifier)
}

// EvidenceOfShorter refutes the path at index with a strictly shorter walk
// between the same endpoints. The challenger takes over the claim.
func (e *Engine) EvidenceOfShorter(ctx Context, target [20]byte, index uint32, midPath [][20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	d, err := e.Dispute(target)
	if err != nil {
		return err
	}
	if d.Stage != StagePaths && d.Stage != StageCount {
		return ErrStage
	}
	disputed, err := e.disputedPath(target, index)
	if err != nil {
		return err
	}
	if len(midPath) >= len(disputed.Mid()) {
		return ErrNotShorter
	}
	start, stop := disputed.Endpoints()
	if err := e.checkWalk(withEndpoints(start, midPath, stop)); err != nil {
		return err
	}
	verifier := challenge.EvidenceFunc(func(score uint64, _ uint32, _ bool) (challenge.EvidenceOutcome, error) {
		return challenge.EvidenceOutcome{Transfer: true, Score: score}, nil
	})
	if err := e.game.Evidence(AppID, ctx.Caller, target, 1, 1, verifier); err != nil {
		return err
	}
	return e.syncRestart(target)
}

func (e *Engine) requiredWalks(disputed PathRecord) uint32 {
	limit := e.params.MaxShortestPath + 1
	if disputed.Total+1 < limit {
		return disputed.Total + 1
	}
	return limit
}

// NumberTooLow refutes the shortest path count claimed for the path at index
// by presenting more distinct walks of the same length. Evidence larger than
// one call continues with NumberTooLowNext.
func (e *Engine) NumberTooLow(ctx Context, target [20]byte, index uint32, midPaths [][][20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	if len(midPaths) == 0 {
		return ErrEmptyUpload
	}
	d, err := e.Dispute(target)
	if err != nil {
		return err
	}
	if d.Stage != StagePaths && d.Stage != StageCount {
		return ErrStage
	}
	disputed, err := e.disputedPath(target, index)
	if err != nil {
		return err
	}
	required := e.requiredWalks(disputed)
	verifier := challenge.EvidenceFunc(func(score uint64, _ uint32, _ bool) (challenge.EvidenceOutcome, error) {
		walks, err := e.sameLengthWalks(disputed, nil, midPaths)
		if err != nil {
			return challenge.EvidenceOutcome{}, err
		}
		d.Stage = StageTooLow
		d.Index = index
		d.Evidence = walks
		if err := e.storeDispute(target, d); err != nil {
			return challenge.EvidenceOutcome{}, err
		}
		return challenge.EvidenceOutcome{Transfer: true, Score: score}, nil
	})
	if err := e.game.Evidence(AppID, ctx.Caller, target, required, uint32(len(midPaths)), verifier); err != nil {
		return err
	}
	return e.syncRestart(target)
}

// NumberTooLowNext continues an incomplete NumberTooLow upload.
func (e *Engine) NumberTooLowNext(ctx Context, target [20]byte, midPaths [][][20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	if len(midPaths) == 0 {
		return ErrEmptyUpload
	}
	d, err := e.Dispute(target)
	if err != nil {
		return err
	}
	if d.Stage != StageTooLow {
		return ErrStage
	}
	disputed, err := e.disputedPath(target, d.Index)
	if err != nil {
		return err
	}
	verifier := challenge.UploadFunc(func(score uint64, remark uint32, _ bool) (uint64, uint32, error) {
		walks, err := e.sameLengthWalks(disputed, d.Evidence, midPaths)
		if err != nil {
			return 0, 0, err
		}
		d.Evidence = walks
		if err := e.storeDispute(target, d); err != nil {
			return 0, 0, err
		}
		return score, remark, nil
	})
	return e.game.Next(AppID, ctx.Caller, target, uint32(len(midPaths)), verifier)
}

// InvalidEvidence rebuts a missing path claim with a strictly shorter walk
// between the missing path's endpoints. A walk through target upholds the
// claim and hands it to the caller with score; any other walk refutes it and
// makes the caller a joint beneficiary.
func (e *Engine) InvalidEvidence(ctx Context, target [20]byte, midPath [][20]byte, score uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	d, err := e.Dispute(target)
	if err != nil {
		return err
	}
	if d.Stage != StageMissing || len(d.Missing) < 3 {
		return ErrStage
	}
	if len(midPath) >= len(d.Missing)-2 {
		return ErrNotShorter
	}
	start, stop := d.Missing[0], d.Missing[len(d.Missing)-1]
	if err := e.checkWalk(withEndpoints(start, midPath, stop)); err != nil {
		return err
	}
	through := false
	for _, n := range midPath {
		if n == target {
			through = true
			break
		}
	}
	verifier := challenge.ArbitralFunc(func(uint64, uint32) (challenge.ArbitralOutcome, error) {
		if through {
			return challenge.ArbitralOutcome{Restart: true, Score: score}, nil
		}
		return challenge.ArbitralOutcome{JointBenefits: true, Score: score}, nil
	})
	if err := e.game.Arbitral(AppID, ctx.Caller, target, verifier); err != nil {
		return err
	}
	return e.syncRestart(target)
}
