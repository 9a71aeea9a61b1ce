package model

import (
	"math/big"
	"time"
)

// TradeCandidate is the optimizer's answer for one ordered pool pair.
type TradeCandidate struct {
	Source      string  `json:"source"`
	Target      string  `json:"target"`
	AmountIn    float64 `json:"amount_in"`
	NetProfit   float64 `json:"net_profit"`
	Method      string  `json:"method"`
	Generations int     `json:"generations,omitempty"`
	Evaluations int     `json:"evaluations,omitempty"`
	Converged   bool    `json:"converged"`
}

// PairResult is the outcome of evaluating one ordered pair: exactly one of
// Candidate and Err is set.
type PairResult struct {
	Source    string
	Target    string
	Candidate *TradeCandidate
	Err       error
	Duration  time.Duration
}

// OK reports whether the pair produced a candidate.
func (r PairResult) OK() bool {
	return r.Err == nil && r.Candidate != nil
}

// Probe is an exact integer round trip at one trade size.
type Probe struct {
	Factor    float64  `json:"factor"`
	AmountIn  *big.Int `json:"amount_in"`
	AmountOut *big.Int `json:"amount_out"`
	Profit    *big.Int `json:"profit"`
}

// Warning marks an accepted opportunity whose exact quotes disagree with the estimate.
type Warning string

const (
	WarningQuantizationMismatch Warning = "quantization_mismatch"
	WarningProbeNotConcave      Warning = "probe_not_concave"
)

// Opportunity groups the three validation probes of one accepted pair.
type Opportunity struct {
	ScanID   string         `json:"scan_id"`
	Source   string         `json:"source"`
	Target   string         `json:"target"`
	Estimate TradeCandidate `json:"estimate"`
	Probes   [3]Probe       `json:"probes"`
	Warnings []Warning      `json:"warnings,omitempty"`
}

// Best returns the probe at the optimizer's own solution.
func (o Opportunity) Best() Probe {
	return o.Probes[1]
}

// Profitable reports whether the exact quote at the solution is positive.
func (o Opportunity) Profitable() bool {
	p := o.Best().Profit
	return p != nil && p.Sign() > 0
}

// HasWarning reports whether w was raised.
func (o Opportunity) HasWarning(w Warning) bool {
	for _, existing := range o.Warnings {
		if existing == w {
			return true
		}
	}
	return false
}

// ValidatedOpportunity is one probe line of the output contract.
type ValidatedOpportunity struct {
	Source    string   `json:"source"`
	Target    string   `json:"target"`
	AmountIn  *big.Int `json:"amount_in"`
	AmountOut *big.Int `json:"amount_out"`
	Profit    *big.Int `json:"profit"`
}

// Flatten expands the opportunity into its 0.99x, 1x and 1.01x records.
func (o Opportunity) Flatten() []ValidatedOpportunity {
	out := make([]ValidatedOpportunity, 0, len(o.Probes))
	for _, probe := range o.Probes {
		out = append(out, ValidatedOpportunity{
			Source:    o.Source,
			Target:    o.Target,
			AmountIn:  probe.AmountIn,
			AmountOut: probe.AmountOut,
			Profit:    probe.Profit,
		})
	}
	return out
}

// Rejection records a pair reported as "no arbitrage".
type Rejection struct {
	Source   string  `json:"source"`
	Target   string  `json:"target"`
	AmountIn float64 `json:"amount_in"`
	Reason   string  `json:"reason"`
}

const (
	RejectBelowThreshold = "below_threshold"
	RejectNotProfitable  = "not_profitable"
)

// ScanReport is everything one scan pass produced.
type ScanReport struct {
	ScanID        string
	ChainID       uint64
	TokenIn       TokenMeta
	TokenOut      TokenMeta
	BlockNumber   uint64
	PoolCount     int
	StartedAt     time.Time
	Duration      time.Duration
	Pairs         []PairResult
	Opportunities []Opportunity
	Rejections    []Rejection
}

// Failed returns the pairs whose evaluation errored.
func (r ScanReport) Failed() []PairResult {
	var out []PairResult
	for _, pair := range r.Pairs {
		if !pair.OK() {
			out = append(out, pair)
		}
	}
	return out
}

// ValidatedOpportunities flattens every accepted opportunity in rank order.
func (r ScanReport) ValidatedOpportunities() []ValidatedOpportunity {
	out := make([]ValidatedOpportunity, 0, len(r.Opportunities)*3)
	for _, opp := range r.Opportunities {
		out = append(out, opp.Flatten()...)
	}
	return out
}
