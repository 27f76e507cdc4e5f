package signal

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Key addresses one series in the Store.
type Key struct {
	Instrument string
	Timeframe  Timeframe
}

// Store keeps ordered series per instrument and timeframe. Ingestion writes, the core only reads.
type Store struct {
	mu     sync.RWMutex
	series map[Key]Series
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{series: make(map[Key]Series)}
}

// Put replaces the series stored under its instrument and timeframe after validation.
func (st *Store) Put(s Series) error {
	s.Instrument = strings.TrimSpace(s.Instrument)
	if s.Instrument == "" {
		return fmt.Errorf("series instrument is empty")
	}
	if s.Timeframe.Duration() <= 0 {
		return fmt.Errorf("series %s: unknown timeframe %q", s.Instrument, s.Timeframe)
	}
	if err := s.Validate(); err != nil {
		return err
	}
	bars := make([]Bar, len(s.Bars))
	copy(bars, s.Bars)
	s.Bars = bars

	st.mu.Lock()
	defer st.mu.Unlock()
	st.series[Key{Instrument: s.Instrument, Timeframe: s.Timeframe}] = s
	return nil
}

// Append adds newer bars to an existing series, creating it when absent.
func (st *Store) Append(instrument string, tf Timeframe, bars ...Bar) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	key := Key{Instrument: instrument, Timeframe: tf}
	current := st.series[key]
	merged := make([]Bar, 0, len(current.Bars)+len(bars))
	merged = append(merged, current.Bars...)
	merged = append(merged, bars...)
	next, err := NewSeries(instrument, tf, merged)
	if err != nil {
		return err
	}
	st.series[key] = next
	return nil
}

// Get returns the stored series. The returned bars must not be modified.
func (st *Store) Get(instrument string, tf Timeframe) (Series, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.series[Key{Instrument: instrument, Timeframe: tf}]
	return s, ok
}

// Instruments lists stored instruments, sorted for determinism.
func (st *Store) Instruments() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	unique := make(map[string]struct{}, len(st.series))
	for k := range st.series {
		unique[k.Instrument] = struct{}{}
	}
	out := make([]string, 0, len(unique))
	for inst := range unique {
		out = append(out, inst)
	}
	sort.Strings(out)
	return out
}

// Timeframes lists the resolutions stored for an instrument, finest first.
func (st *Store) Timeframes(instrument string) []Timeframe {
	st.mu.RLock()
	defer st.mu.RUnlock()
	var out []Timeframe
	for k := range st.series {
		if k.Instrument == instrument {
			out = append(out, k.Timeframe)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Duration() < out[j].Duration() })
	return out
}
