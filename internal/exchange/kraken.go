package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	sig "github.com/Devon-ODell/quant/internal/signal"
)

// krakenOHLCResponse mirrors /0/public/OHLC. Result holds one bar array keyed by the pair name
// plus a "last" cursor.
type krakenOHLCResponse struct {
	Error  []string                   `json:"error"`
	Result map[string]json.RawMessage `json:"result"`
}

func (f *Feed) fetchKraken(ctx context.Context, instrument string, tf sig.Timeframe) (sig.Series, error) {
	minutes := int(tf.Duration() / time.Minute)
	if minutes <= 0 {
		return sig.Series{}, fmt.Errorf("kraken %s: timeframe %s is below one minute", instrument, tf)
	}
	if err := f.throttle.Wait(ctx); err != nil {
		return sig.Series{}, err
	}

	q := url.Values{}
	q.Set("pair", instrument)
	q.Set("interval", strconv.Itoa(minutes))
	endpoint := fmt.Sprintf("%s/0/public/OHLC?%s", f.krakenBase, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return sig.Series{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "quant/1.0 (paper)")
	resp, err := f.client.Do(req)
	if err != nil {
		return sig.Series{}, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return sig.Series{}, fmt.Errorf("kraken %s: unexpected status %d", instrument, resp.StatusCode)
	}

	var payload krakenOHLCResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return sig.Series{}, fmt.Errorf("decode response: %w", err)
	}
	if len(payload.Error) > 0 {
		return sig.Series{}, fmt.Errorf("kraken %s: %s", instrument, strings.Join(payload.Error, "; "))
	}
	bars, err := parseKrakenBars(payload.Result)
	if err != nil {
		return sig.Series{}, fmt.Errorf("kraken %s: %w", instrument, err)
	}
	// The final row is the frame still forming.
	if len(bars) > 0 {
		bars = bars[:len(bars)-1]
	}
	if len(bars) == 0 {
		return sig.Series{}, fmt.Errorf("kraken %s %s: %w", instrument, tf, ErrNotFound)
	}
	return sig.NewSeries(instrument, tf, bars)
}

func parseKrakenBars(result map[string]json.RawMessage) ([]sig.Bar, error) {
	for key, raw := range result {
		if key == "last" {
			continue
		}
		var rows [][]json.RawMessage
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, fmt.Errorf("pair %s: %w", key, err)
		}
		bars := make([]sig.Bar, 0, len(rows))
		for i, row := range rows {
			bar, err := parseKrakenRow(row)
			if err != nil {
				return nil, fmt.Errorf("pair %s row %d: %w", key, i, err)
			}
			bars = append(bars, bar)
		}
		return bars, nil
	}
	return nil, ErrNotFound
}

// parseKrakenRow reads [time, open, high, low, close, vwap, volume, count].
func parseKrakenRow(row []json.RawMessage) (sig.Bar, error) {
	if len(row) < 7 {
		return sig.Bar{}, fmt.Errorf("want 8 fields, got %d", len(row))
	}
	var ts json.Number
	if err := json.Unmarshal(row[0], &ts); err != nil {
		return sig.Bar{}, fmt.Errorf("time: %w", err)
	}
	secs, err := ts.Int64()
	if err != nil {
		return sig.Bar{}, fmt.Errorf("time: %w", err)
	}
	values := make([]decimal.Decimal, 0, 5)
	for _, idx := range []int{1, 2, 3, 4, 6} {
		var s string
		if err := json.Unmarshal(row[idx], &s); err != nil {
			return sig.Bar{}, fmt.Errorf("field %d: %w", idx, err)
		}
		v, err := decimal.NewFromString(s)
		if err != nil {
			return sig.Bar{}, fmt.Errorf("field %d: %w", idx, err)
		}
		values = append(values, v)
	}
	return sig.Bar{
		Time:   time.Unix(secs, 0).UTC(),
		Open:   values[0],
		High:   values[1],
		Low:    values[2],
		Close:  values[3],
		Volume: values[4],
	}, nil
}
