package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"arbscope/internal/model"
)

func sampleReport() model.ScanReport {
	probe := func(factor float64, in, out int64) model.Probe {
		return model.Probe{
			Factor:    factor,
			AmountIn:  big.NewInt(in),
			AmountOut: big.NewInt(out),
			Profit:    big.NewInt(out - in),
		}
	}
	return model.ScanReport{
		ScanID:      "6f1c1a52-8a51-4d43-9a8e-2d8ef1a5e0c1",
		BlockNumber: 19_000_000,
		PoolCount:   3,
		TokenIn:     model.TokenMeta{Address: "0x6B175474E89094C44Da98b954EedeAC495271d0F", Decimals: 18, Symbol: "DAI"},
		TokenOut:    model.TokenMeta{Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Decimals: 18, Symbol: "WETH"},
		StartedAt:   time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Opportunities: []model.Opportunity{
			{
				ScanID:   "6f1c1a52-8a51-4d43-9a8e-2d8ef1a5e0c1",
				Source:   "a",
				Target:   "b",
				Estimate: model.TradeCandidate{Source: "a", Target: "b", AmountIn: 2000, NetProfit: 90, Method: "optimizer"},
				Probes:   [3]model.Probe{probe(0.99, 1980, 2069), probe(1, 2000, 2090), probe(1.01, 2020, 2108)},
			},
			{
				ScanID:   "6f1c1a52-8a51-4d43-9a8e-2d8ef1a5e0c1",
				Source:   "c",
				Target:   "b",
				Estimate: model.TradeCandidate{Source: "c", Target: "b", AmountIn: 22, NetProfit: 1, Method: "optimizer"},
				Probes:   [3]model.Probe{probe(0.99, 21, 21), probe(1, 22, 22), probe(1.01, 22, 22)},
				Warnings: []model.Warning{model.WarningQuantizationMismatch},
			},
		},
	}
}

func TestRecordsKeepRankAndPrecision(t *testing.T) {
	report := sampleReport()
	huge, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	report.Opportunities[0].Probes[1].AmountOut = huge

	records := Records(report)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Rank != 1 || records[1].Rank != 2 {
		t.Fatalf("rank mismatch: %d %d", records[0].Rank, records[1].Rank)
	}
	if records[0].Probes[1].AmountOut != huge.String() {
		t.Fatalf("amount_out mismatch: %s", records[0].Probes[1].AmountOut)
	}
	if len(records[1].Warnings) != 1 || records[1].Warnings[0] != "quantization_mismatch" {
		t.Fatalf("warnings mismatch: %v", records[1].Warnings)
	}
	if records[0].TokenIn != report.TokenIn.Address {
		t.Fatalf("token_in mismatch: %s", records[0].TokenIn)
	}
}

func TestJsonlStorageAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "opportunities.jsonl")
	sink := NewJsonlStorage(path)

	if err := sink.PutReport(context.Background(), sampleReport()); err != nil {
		t.Fatalf("put report: %v", err)
	}
	if err := sink.PutReport(context.Background(), sampleReport()); err != nil {
		t.Fatalf("put report: %v", err)
	}
	if err := sink.PutReport(context.Background(), model.ScanReport{ScanID: "empty"}); err != nil {
		t.Fatalf("put empty report: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	var lines []OpportunityRecord
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var record OpportunityRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		lines = append(lines, record)
	}
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(lines))
	}
	if lines[0].Source != "a" || lines[0].Probes[1].Profit != "90" {
		t.Fatalf("unexpected first line: %+v", lines[0])
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	reserve, _ := new(big.Int).SetString("98765432109876543210987654321", 10)
	a, err := model.NewPoolState("0xA478c2975Ab1Ea89e8196811F51A7B7Ade33eB11", reserve, big.NewInt(5))
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	snap := model.Snapshot{
		ChainID:     1,
		BlockNumber: 42,
		TokenIn:     model.TokenMeta{Address: "0xin", Decimals: 6, Symbol: "USDC"},
		TokenOut:    model.TokenMeta{Address: "0xout", Decimals: 18},
		Pools:       []model.PoolState{a, model.MustPoolState("b", 7, 9)},
	}

	path := filepath.Join(t.TempDir(), "snap", "snapshot.json")
	if err := SaveSnapshot(path, snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.BlockNumber != 42 || got.TokenIn.Symbol != "USDC" || len(got.Pools) != 2 {
		t.Fatalf("snapshot mismatch: %+v", got)
	}
	if got.Pools[0].ReserveIn().Cmp(reserve) != 0 {
		t.Fatalf("reserve mismatch: %s", got.Pools[0].ReserveIn())
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp file left behind: %d entries", len(entries))
	}
}

func TestLoadSnapshotRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	payload := `{"pools":[{"id":"a","reserve_in":"1","reserve_out":"1"},{"id":"A","reserve_in":"2","reserve_out":"2"}]}`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := LoadSnapshot(path)
	if !errors.Is(err, model.ErrDuplicatePool) {
		t.Fatalf("expected duplicate pool error, got %v", err)
	}

	if _, err := LoadSnapshot(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

type failingSink struct{ calls *int }

func (f failingSink) PutReport(context.Context, model.ScanReport) error {
	*f.calls++
	return errors.New("disk full")
}

func TestMultiStopsAtFirstError(t *testing.T) {
	calls := 0
	multi := Multi{nil, failingSink{&calls}, failingSink{&calls}}
	if err := multi.PutReport(context.Background(), sampleReport()); err == nil {
		t.Fatalf("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}
