package storage

import (
	"math/big"
	"time"

	"arbscope/internal/model"
)

// OpportunityRecord is the flat, string-encoded form of an accepted
// opportunity. Token amounts are decimal strings so no precision is lost.
type OpportunityRecord struct {
	ScanID      string        `json:"scan_id"`
	Rank        int           `json:"rank"`
	BlockNumber uint64        `json:"block_number"`
	TokenIn     string        `json:"token_in"`
	TokenOut    string        `json:"token_out"`
	Source      string        `json:"source"`
	Target      string        `json:"target"`
	Method      string        `json:"method"`
	Estimate    float64       `json:"estimated_amount_in"`
	EstProfit   float64       `json:"estimated_profit"`
	Probes      []ProbeRecord `json:"probes"`
	Warnings    []string      `json:"warnings,omitempty"`
	RecordedAt  time.Time     `json:"recorded_at"`
}

// ProbeRecord is one exact quote.
type ProbeRecord struct {
	Factor    float64 `json:"factor"`
	AmountIn  string  `json:"amount_in"`
	AmountOut string  `json:"amount_out"`
	Profit    string  `json:"profit"`
}

// Records converts a report's opportunities in rank order.
func Records(report model.ScanReport) []OpportunityRecord {
	records := make([]OpportunityRecord, 0, len(report.Opportunities))
	for i, opp := range report.Opportunities {
		record := OpportunityRecord{
			ScanID:      report.ScanID,
			Rank:        i + 1,
			BlockNumber: report.BlockNumber,
			TokenIn:     report.TokenIn.Address,
			TokenOut:    report.TokenOut.Address,
			Source:      opp.Source,
			Target:      opp.Target,
			Method:      opp.Estimate.Method,
			Estimate:    opp.Estimate.AmountIn,
			EstProfit:   opp.Estimate.NetProfit,
			Probes:      make([]ProbeRecord, 0, len(opp.Probes)),
			RecordedAt:  report.StartedAt,
		}
		for _, probe := range opp.Probes {
			record.Probes = append(record.Probes, ProbeRecord{
				Factor:    probe.Factor,
				AmountIn:  amountString(probe.AmountIn),
				AmountOut: amountString(probe.AmountOut),
				Profit:    amountString(probe.Profit),
			})
		}
		for _, w := range opp.Warnings {
			record.Warnings = append(record.Warnings, string(w))
		}
		records = append(records, record)
	}
	return records
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
