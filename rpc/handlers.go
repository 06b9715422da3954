package rpc

import (
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"

	"seedchain/core"
	"seedchain/crypto"
	"seedchain/native/reputation"
	"seedchain/native/seeds"
	"seedchain/services/indexer"
)

type candidateJSON struct {
	Target       string `json:"target"`
	Score        uint64 `json:"score"`
	Pathfinder   string `json:"pathfinder"`
	Staker       string `json:"staker"`
	HasChallenge bool   `json:"hasChallenge"`
	AddAt        uint64 `json:"addAt"`
	Pledge       string `json:"pledge"`
}

type recordJSON struct {
	Status        string `json:"status"`
	Pathfinder    string `json:"pathfinder"`
	Challenger    string `json:"challenger"`
	Score         uint64 `json:"score"`
	Remark        uint32 `json:"remark"`
	ProgressDone  uint32 `json:"progressDone"`
	ProgressTotal uint32 `json:"progressTotal"`
	LastUpdate    uint64 `json:"lastUpdate"`
	Staking       string `json:"staking"`
	Earnings      string `json:"earnings"`
	JointBenefits bool   `json:"jointBenefits"`
}

type levelJSON struct {
	Order  string `json:"order"`
	Score  uint64 `json:"score"`
	Digest string `json:"digest"`
}

type disputeJSON struct {
	Depth  uint32        `json:"depth"`
	Order  uint64        `json:"order"`
	Stage  string        `json:"stage"`
	Index  uint32        `json:"index"`
	Levels [][]levelJSON `json:"levels"`
	Paths  int           `json:"paths"`
	Record *recordJSON   `json:"record,omitempty"`
}

type accountJSON struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

func account(a [20]byte) string {
	return crypto.FromAccount(a).String()
}

func amount(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func toCandidateJSON(target [20]byte, c *seeds.Candidate) candidateJSON {
	return candidateJSON{
		Target:       account(target),
		Score:        c.Score,
		Pathfinder:   account(c.Pathfinder),
		Staker:       account(c.Staker),
		HasChallenge: c.HasChallenge,
		AddAt:        c.AddAt,
		Pledge:       amount(c.Pledge),
	}
}

func (s *Server) view(w http.ResponseWriter, fn func(*core.Modules) (interface{}, error)) {
	var payload interface{}
	err := s.node.View(func(m *core.Modules) error {
		var err error
		payload, err = fn(m)
		return err
	})
	switch {
	case errors.Is(err, seeds.ErrCandidateNotFound), errors.Is(err, reputation.ErrSeedNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		s.logger.Error("view failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	default:
		writeJSON(w, http.StatusOK, payload)
	}
}

func pathAccount(w http.ResponseWriter, r *http.Request, key string) ([20]byte, bool) {
	a, err := crypto.ParseAccount(chi.URLParam(r, key))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return a, false
	}
	return a, true
}

func (s *Server) handleHeight(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]uint64{"height": s.node.Height()})
}

func (s *Server) handleRound(w http.ResponseWriter, r *http.Request) {
	s.view(w, func(m *core.Modules) (interface{}, error) {
		return m.Reputation.Round()
	})
}

func (s *Server) handleScores(w http.ResponseWriter, r *http.Request) {
	s.view(w, func(m *core.Modules) (interface{}, error) {
		return m.Seeds.Scores()
	})
}

func (s *Server) handleSeeds(w http.ResponseWriter, r *http.Request) {
	s.view(w, func(m *core.Modules) (interface{}, error) {
		list, err := m.Registry.Seeds()
		if err != nil {
			return nil, err
		}
		out := make([]string, 0, len(list))
		for _, a := range list {
			out = append(out, account(a))
		}
		return out, nil
	})
}

func (s *Server) handleSeedScore(w http.ResponseWriter, r *http.Request) {
	target, ok := pathAccount(w, r, "account")
	if !ok {
		return
	}
	s.view(w, func(m *core.Modules) (interface{}, error) {
		score, err := m.Reputation.Ledger().Seed(target)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"account":     account(score.Account),
			"round":       score.Round,
			"score":       score.Score,
			"confirmedAt": score.ConfirmedAt,
		}, nil
	})
}

func (s *Server) handleCandidates(w http.ResponseWriter, r *http.Request) {
	s.view(w, func(m *core.Modules) (interface{}, error) {
		targets, err := m.Seeds.Candidates()
		if err != nil {
			return nil, err
		}
		out := make([]candidateJSON, 0, len(targets))
		for _, t := range targets {
			c, ok, err := m.Seeds.Candidate(t)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, toCandidateJSON(t, c))
			}
		}
		return out, nil
	})
}

func (s *Server) handleCandidate(w http.ResponseWriter, r *http.Request) {
	target, ok := pathAccount(w, r, "target")
	if !ok {
		return
	}
	s.view(w, func(m *core.Modules) (interface{}, error) {
		c, ok, err := m.Seeds.Candidate(target)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, seeds.ErrCandidateNotFound
		}
		return toCandidateJSON(target, c), nil
	})
}

func (s *Server) handleDispute(w http.ResponseWriter, r *http.Request) {
	target, ok := pathAccount(w, r, "target")
	if !ok {
		return
	}
	s.view(w, func(m *core.Modules) (interface{}, error) {
		if _, ok, err := m.Seeds.Candidate(target); err != nil {
			return nil, err
		} else if !ok {
			return nil, seeds.ErrCandidateNotFound
		}
		d, err := m.Seeds.Dispute(target)
		if err != nil {
			return nil, err
		}
		out := disputeJSON{Depth: d.Depth, Order: d.Order, Stage: d.Stage.String(), Index: d.Index}
		for depth := uint32(1); depth <= d.Depth; depth++ {
			level, err := m.Seeds.Level(target, depth)
			if err != nil {
				return nil, err
			}
			rows := make([]levelJSON, 0, len(level))
			for _, h := range level {
				rows = append(rows, levelJSON{Order: hex.EncodeToString(h.Order), Score: h.Score, Digest: hex.EncodeToString(h.Digest[:])})
			}
			out.Levels = append(out.Levels, rows)
		}
		paths, err := m.Seeds.Paths(target)
		if err != nil {
			return nil, err
		}
		out.Paths = len(paths)
		rec, ok, err := m.Challenge.Get(seeds.AppID, target)
		if err != nil {
			return nil, err
		}
		if ok {
			out.Record = &recordJSON{
				Status:        rec.Status.String(),
				Pathfinder:    account(rec.Pathfinder),
				Challenger:    account(rec.Challenger),
				Score:         rec.Score,
				Remark:        rec.Remark,
				ProgressDone:  rec.Progress.Done,
				ProgressTotal: rec.Progress.Total,
				LastUpdate:    rec.LastUpdate,
				Staking:       amount(rec.Pool.Staking),
				Earnings:      amount(rec.Pool.Earnings),
				JointBenefits: rec.JointBenefits,
			}
		}
		return out, nil
	})
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAccount(w, r, "account")
	if !ok {
		return
	}
	s.view(w, func(m *core.Modules) (interface{}, error) {
		bal, err := m.Bank.Balance(addr)
		if err != nil {
			return nil, err
		}
		return accountJSON{Address: account(addr), Balance: amount(bal)}, nil
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusServiceUnavailable, "indexer disabled")
		return
	}
	q := r.URL.Query()
	query := indexer.Query{Type: q.Get("type")}
	if raw := q.Get("target"); raw != "" {
		target, err := crypto.ParseAccount(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		query.Target = hex.EncodeToString(target[:])
	}
	if raw := q.Get("after"); raw != "" {
		after, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid after")
			return
		}
		query.After = after
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		query.Limit = limit
	}
	rows, err := s.journal.Events(r.Context(), query)
	if err != nil {
		s.logger.Error("journal query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}
