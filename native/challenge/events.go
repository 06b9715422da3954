package challenge

import (
	"encoding/hex"
	"strconv"

	"seedchain/core/types"
)

const (
	EventTypeLaunched  = "challenge.launched"
	EventTypeUploaded  = "challenge.uploaded"
	EventTypeExamined  = "challenge.examined"
	EventTypeReplied   = "challenge.replied"
	EventTypeEvidence  = "challenge.evidence"
	EventTypeArbitral  = "challenge.arbitral"
	EventTypeRestarted = "challenge.restarted"
	EventTypeHarvested = "challenge.harvested"
)

// NewLaunchedEvent returns the canonical payload for a newly opened dispute.
func NewLaunchedEvent(app AppID, target [20]byte, r *Record) *types.Event {
	return newRecordEvent(EventTypeLaunched, app, target, r)
}

// NewUploadedEvent is emitted after every resumed upload step.
func NewUploadedEvent(app AppID, target [20]byte, r *Record) *types.Event {
	return newRecordEvent(EventTypeUploaded, app, target, r)
}

// NewExaminedEvent is emitted when the challenger selects the next index.
func NewExaminedEvent(app AppID, target [20]byte, r *Record) *types.Event {
	return newRecordEvent(EventTypeExamined, app, target, r)
}

// NewRepliedEvent is emitted when the pathfinder starts a new reply.
func NewRepliedEvent(app AppID, target [20]byte, r *Record) *types.Event {
	return newRecordEvent(EventTypeReplied, app, target, r)
}

// NewEvidenceEvent is emitted when evidence moves the record to Evidence or
// Arbitral.
func NewEvidenceEvent(app AppID, target [20]byte, r *Record) *types.Event {
	return newRecordEvent(EventTypeEvidence, app, target, r)
}

// NewArbitralEvent is emitted after an arbitration step that keeps the
// dispute open.
func NewArbitralEvent(app AppID, target [20]byte, r *Record) *types.Event {
	return newRecordEvent(EventTypeArbitral, app, target, r)
}

// NewRestartedEvent is emitted when a dispute resolves back to Free.
func NewRestartedEvent(app AppID, target [20]byte, r *Record) *types.Event {
	return newRecordEvent(EventTypeRestarted, app, target, r)
}

// NewHarvestedEvent describes the payout of a removed record.
func NewHarvestedEvent(app AppID, target [20]byte, caller [20]byte, p *Payout) *types.Event {
	attrs := map[string]string{
		"app":    string(app),
		"target": hex.EncodeToString(target[:]),
		"caller": hex.EncodeToString(caller[:]),
	}
	if p != nil {
		attrs["beneficiary"] = p.Beneficiary.String()
		attrs["total"] = p.Total.Dec()
		attrs["sweeperFee"] = p.SweeperFee.Dec()
		attrs["status"] = p.Status.String()
		if p.HasScore {
			attrs["score"] = strconv.FormatUint(p.Score, 10)
		}
	}
	return &types.Event{Type: EventTypeHarvested, Attributes: attrs}
}

func newRecordEvent(kind string, app AppID, target [20]byte, r *Record) *types.Event {
	attrs := map[string]string{
		"app":    string(app),
		"target": hex.EncodeToString(target[:]),
	}
	if r != nil {
		attrs["status"] = r.Status.String()
		attrs["pathfinder"] = hex.EncodeToString(r.Pathfinder[:])
		attrs["challenger"] = hex.EncodeToString(r.Challenger[:])
		attrs["score"] = strconv.FormatUint(r.Score, 10)
		attrs["remark"] = strconv.FormatUint(uint64(r.Remark), 10)
		attrs["progress"] = strconv.FormatUint(uint64(r.Progress.Done), 10) + "/" + strconv.FormatUint(uint64(r.Progress.Total), 10)
		attrs["staking"] = cloneAmount(r.Pool.Staking).Dec()
		if r.JointBenefits {
			attrs["jointBenefits"] = "true"
		}
	}
	return &types.Event{Type: kind, Attributes: attrs}
}
