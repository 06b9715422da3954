package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"seedchain/core"
	"seedchain/crypto"
	"seedchain/native/seeds"
)

// Script is a YAML list of steps applied in order.
type Script struct {
	Steps []Step `yaml:"steps"`
}

// Step is either a transaction or a height advance.
type Step struct {
	Op       string     `yaml:"op"`
	Advance  uint64     `yaml:"advance"`
	Caller   string     `yaml:"caller"`
	Target   string     `yaml:"target"`
	Score    uint64     `yaml:"score"`
	Index    uint32     `yaml:"index"`
	Total    uint32     `yaml:"total"`
	Hashes   []hashStep `yaml:"hashes"`
	Paths    []pathStep `yaml:"paths"`
	Nodes    []string   `yaml:"nodes"`
	MidPaths [][]string `yaml:"midPaths"`
	Expect   string     `yaml:"expect"`
}

type hashStep struct {
	Order  string `yaml:"order"`
	Score  uint64 `yaml:"score"`
	Digest string `yaml:"digest"`
}

type pathStep struct {
	Nodes []string `yaml:"nodes"`
	Total uint32   `yaml:"total"`
}

// ParseScript decodes a YAML script.
func ParseScript(r io.Reader) (*Script, error) {
	var s Script
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode script: %w", err)
	}
	return &s, nil
}

func parseAccounts(values []string) ([][20]byte, error) {
	out := make([][20]byte, 0, len(values))
	for _, v := range values {
		a, err := crypto.ParseAccount(v)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
}

// Tx converts a transaction step.
func (s Step) Tx() (core.Tx, error) {
	tx := core.Tx{Op: core.Op(s.Op), Score: s.Score, Index: s.Index, Total: s.Total}
	var err error
	if tx.Caller, err = crypto.ParseAccount(s.Caller); err != nil {
		return tx, fmt.Errorf("caller: %w", err)
	}
	if s.Target != "" {
		if tx.Target, err = crypto.ParseAccount(s.Target); err != nil {
			return tx, fmt.Errorf("target: %w", err)
		}
	}
	for i, h := range s.Hashes {
		order, err := decodeHex(h.Order)
		if err != nil {
			return tx, fmt.Errorf("hashes[%d].order: %w", i, err)
		}
		digest, err := decodeHex(h.Digest)
		if err != nil || len(digest) != 32 {
			return tx, fmt.Errorf("hashes[%d].digest: want 32 hex bytes", i)
		}
		rec := seeds.ResultHash{Order: order, Score: h.Score}
		copy(rec.Digest[:], digest)
		tx.Hashes = append(tx.Hashes, rec)
	}
	for i, p := range s.Paths {
		nodes, err := parseAccounts(p.Nodes)
		if err != nil {
			return tx, fmt.Errorf("paths[%d]: %w", i, err)
		}
		tx.Paths = append(tx.Paths, seeds.PathRecord{Nodes: nodes, Total: p.Total})
	}
	if tx.Nodes, err = parseAccounts(s.Nodes); err != nil {
		return tx, fmt.Errorf("nodes: %w", err)
	}
	for i, mid := range s.MidPaths {
		nodes, err := parseAccounts(mid)
		if err != nil {
			return tx, fmt.Errorf("midPaths[%d]: %w", i, err)
		}
		tx.MidPaths = append(tx.MidPaths, nodes)
	}
	return tx, nil
}

// Result is the outcome of one step.
type Result struct {
	Step   int
	Op     string
	Height uint64
	Events int
	Err    error
}

// Run applies the script to node. A step with Expect set must fail with an
// error containing that text. Run stops at the first unexpected outcome.
func (s *Script) Run(node *core.Node) ([]Result, error) {
	results := make([]Result, 0, len(s.Steps))
	for i, step := range s.Steps {
		if step.Op == "" {
			if _, err := node.Advance(step.Advance); err != nil {
				return results, fmt.Errorf("step %d: %w", i, err)
			}
			results = append(results, Result{Step: i, Op: "advance", Height: node.Height()})
			continue
		}
		tx, err := step.Tx()
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i, err)
		}
		evts, err := node.Apply(tx)
		res := Result{Step: i, Op: step.Op, Height: node.Height(), Events: len(evts), Err: err}
		results = append(results, res)
		switch {
		case step.Expect == "" && err != nil:
			return results, fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		case step.Expect != "" && err == nil:
			return results, fmt.Errorf("step %d (%s): expected failure %q", i, step.Op, step.Expect)
		case step.Expect != "" && !strings.Contains(err.Error(), step.Expect):
			return results, fmt.Errorf("step %d (%s): got %v, want %q", i, step.Op, err, step.Expect)
		}
	}
	return results, nil
}
