package challenge

// UploadVerifier validates one upload step. It receives the record's current
// score and remark and whether the announced upload is now complete, and
// returns the score and remark to persist. Returning an error aborts the
// whole operation.
type UploadVerifier interface {
	VerifyUpload(score uint64, remark uint32, allDone bool) (uint64, uint32, error)
}

// UploadFunc adapts a function to UploadVerifier.
type UploadFunc func(score uint64, remark uint32, allDone bool) (uint64, uint32, error)

// VerifyUpload implements UploadVerifier.
func (f UploadFunc) VerifyUpload(score uint64, remark uint32, allDone bool) (uint64, uint32, error) {
	return f(score, remark, allDone)
}

// EvidenceOutcome tells the engine how to continue after a challenger
// presented evidence.
type EvidenceOutcome struct {
	// Arbitral escalates the dispute instead of resolving it.
	Arbitral bool
	// Transfer hands the pathfinder role to the challenger.
	Transfer bool
	Score    uint64
}

// EvidenceVerifier validates challenger evidence.
type EvidenceVerifier interface {
	VerifyEvidence(score uint64, remark uint32, allDone bool) (EvidenceOutcome, error)
}

// EvidenceFunc adapts a function to EvidenceVerifier.
type EvidenceFunc func(score uint64, remark uint32, allDone bool) (EvidenceOutcome, error)

// VerifyEvidence implements EvidenceVerifier.
func (f EvidenceFunc) VerifyEvidence(score uint64, remark uint32, allDone bool) (EvidenceOutcome, error) {
	return f(score, remark, allDone)
}

// ArbitralOutcome tells the engine how an arbitration step resolved.
type ArbitralOutcome struct {
	// JointBenefits makes the caller a co-beneficiary with the pathfinder.
	JointBenefits bool
	// Restart resolves the dispute with the caller as the new pathfinder.
	Restart bool
	Score   uint64
}

// ArbitralVerifier validates an arbitration submission.
type ArbitralVerifier interface {
	VerifyArbitral(score uint64, remark uint32) (ArbitralOutcome, error)
}

// ArbitralFunc adapts a function to ArbitralVerifier.
type ArbitralFunc func(score uint64, remark uint32) (ArbitralOutcome, error)

// VerifyArbitral implements ArbitralVerifier.
func (f ArbitralFunc) VerifyArbitral(score uint64, remark uint32) (ArbitralOutcome, error) {
	return f(score, remark)
}
