package signal

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Timeframe names a bar resolution such as 1h or the Kraken-style minute count 240.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

// DefaultTimeframes is the resolution set confirmed by default.
var DefaultTimeframes = []Timeframe{TF1h, TF4h, TF1d}

// Duration returns the bar length, or zero when the timeframe is not recognised.
func (tf Timeframe) Duration() time.Duration {
	s := strings.ToLower(strings.TrimSpace(string(tf)))
	if s == "" {
		return 0
	}
	if minutes, err := strconv.Atoi(s); err == nil {
		if minutes <= 0 {
			return 0
		}
		return time.Duration(minutes) * time.Minute
	}
	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil || days <= 0 {
			return 0
		}
		return time.Duration(days) * 24 * time.Hour
	}
	if strings.HasSuffix(s, "w") {
		weeks, err := strconv.Atoi(strings.TrimSuffix(s, "w"))
		if err != nil || weeks <= 0 {
			return 0
		}
		return time.Duration(weeks) * 7 * 24 * time.Hour
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0
	}
	return d
}

// ParseTimeframe validates user input and returns the timeframe.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(strings.ToLower(strings.TrimSpace(s)))
	if tf.Duration() <= 0 {
		return "", fmt.Errorf("unknown timeframe %q", s)
	}
	return tf, nil
}

// ParseTimeframes validates a list, dropping duplicates while keeping order.
func ParseTimeframes(values []string) ([]Timeframe, error) {
	out := make([]Timeframe, 0, len(values))
	seen := make(map[time.Duration]struct{}, len(values))
	for _, v := range values {
		tf, err := ParseTimeframe(v)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[tf.Duration()]; dup {
			continue
		}
		seen[tf.Duration()] = struct{}{}
		out = append(out, tf)
	}
	return out, nil
}
