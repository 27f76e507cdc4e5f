package paper

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// JSONLRecorder appends trades as JSON lines for later analysis.
type JSONLRecorder struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
	err  error
}

// NewJSONLRecorder creates/opens the target file and returns a recorder appending to it.
func NewJSONLRecorder(path string) (*JSONLRecorder, error) {
	return openJSONL(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND)
}

// CreateJSONLRecorder truncates the target file so it holds a single run's ledger.
func CreateJSONLRecorder(path string) (*JSONLRecorder, error) {
	return openJSONL(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC)
}

func openJSONL(path string, flag int) (*JSONLRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, err
	}
	return &JSONLRecorder{
		file: file,
		enc:  json.NewEncoder(file),
	}, nil
}

// Record writes a single trade. The first write failure is kept and returned by Close.
func (r *JSONLRecorder) Record(trade Trade) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil || r.err != nil {
		return
	}
	if err := r.enc.Encode(trade); err != nil {
		r.err = fmt.Errorf("record trade %s: %w", trade.ID, err)
	}
}

// Close flushes and closes the file handle.
func (r *JSONLRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return r.err
	}
	err := r.file.Close()
	r.file = nil
	if r.err != nil {
		return r.err
	}
	return err
}

// WriteJSONL encodes trades one per line.
func WriteJSONL(w io.Writer, trades []Trade) error {
	enc := json.NewEncoder(w)
	for _, t := range trades {
		if err := enc.Encode(t); err != nil {
			return err
		}
	}
	return nil
}

// ReadJSONL reconstructs a ledger written by JSONLRecorder or WriteJSONL. Blank lines are skipped.
func ReadJSONL(r io.Reader) ([]Trade, error) {
	var trades []Trade
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var t Trade
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("ledger line %d: %w", line, err)
		}
		trades = append(trades, t)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return trades, nil
}

// ReadJSONLFile opens path and reads it with ReadJSONL.
func ReadJSONLFile(path string) ([]Trade, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadJSONL(f)
}
