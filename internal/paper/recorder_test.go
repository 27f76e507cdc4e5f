package paper

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	sig "github.com/Devon-ODell/quant/internal/signal"
)

func TestJSONLRecorderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledgers", "trades.jsonl")

	recorder, err := NewJSONLRecorder(path)
	if err != nil {
		t.Fatalf("NewJSONLRecorder error: %v", err)
	}
	book := NewBook(d(10000), recorder)
	steps := []struct {
		dir sig.Direction
		qty float64
		px  float64
	}{
		{sig.Long, 1.5, 100.25},
		{sig.Short, 0.5, 101},
		{sig.Short, 2, 99.5},
	}
	for i, s := range steps {
		if _, err := book.ApplyTrade("XBTUSD", s.dir, d(s.qty), d(s.px), t0.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("ApplyTrade %d: %v", i, err)
		}
	}
	if err := recorder.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	decoded, err := ReadJSONLFile(path)
	if err != nil {
		t.Fatalf("ReadJSONLFile error: %v", err)
	}
	original := book.Trades()
	if len(decoded) != len(original) {
		t.Fatalf("expected %d trades, got %d", len(original), len(decoded))
	}
	for i := range original {
		if decoded[i].ID != original[i].ID || decoded[i].Direction != original[i].Direction {
			t.Fatalf("trade %d out of order or altered: %+v vs %+v", i, decoded[i], original[i])
		}
		if !decoded[i].Time.Equal(original[i].Time) {
			t.Fatalf("trade %d time changed", i)
		}
	}
	if !TotalNotional(decoded).Equal(TotalNotional(original)) {
		t.Fatalf("notional changed: %s vs %s", TotalNotional(decoded), TotalNotional(original))
	}
}

func TestWriteReadJSONL(t *testing.T) {
	trades := []Trade{
		trade("XBTUSD", sig.Long, 1, 100, 0),
		trade("XBTUSD", sig.Short, 1, 110, time.Hour),
	}
	var buf bytes.Buffer
	if err := WriteJSONL(&buf, trades); err != nil {
		t.Fatalf("WriteJSONL error: %v", err)
	}
	buf.WriteString("\n")
	decoded, err := ReadJSONL(&buf)
	if err != nil {
		t.Fatalf("ReadJSONL error: %v", err)
	}
	if len(decoded) != 2 || decoded[1].Direction != sig.Short {
		t.Fatalf("unexpected decoded ledger %+v", decoded)
	}
}

func TestReadJSONLReportsLine(t *testing.T) {
	_, err := ReadJSONL(bytes.NewBufferString("{\"instrument\":\"X\"}\nnot-json\n"))
	if err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestCreateJSONLRecorderTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	for run := 0; run < 2; run++ {
		recorder, err := CreateJSONLRecorder(path)
		if err != nil {
			t.Fatalf("CreateJSONLRecorder error: %v", err)
		}
		book := NewBook(d(1000), recorder)
		if _, err := book.ApplyTrade("XBTUSD", sig.Long, d(1), d(100), t0); err != nil {
			t.Fatalf("ApplyTrade error: %v", err)
		}
		if err := recorder.Close(); err != nil {
			t.Fatalf("Close error: %v", err)
		}
	}
	trades, err := ReadJSONLFile(path)
	if err != nil {
		t.Fatalf("ReadJSONLFile error: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("expected only the last run's trade, got %d", len(trades))
	}
}
