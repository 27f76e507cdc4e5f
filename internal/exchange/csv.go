package exchange

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	sig "github.com/Devon-ODell/quant/internal/signal"
)

// CSVName is the file the csv provider expects for instrument at tf.
func CSVName(instrument string, tf sig.Timeframe) string {
	return fmt.Sprintf("%s_%s.csv", instrument, tf)
}

// LoadCSVFile opens path and parses it with LoadCSV. A missing file is ErrNotFound.
func LoadCSVFile(path, instrument string, tf sig.Timeframe) (sig.Series, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return sig.Series{}, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return sig.Series{}, err
	}
	defer file.Close()
	return LoadCSV(file, instrument, tf)
}

// LoadCSV parses timestamp,open,high,low,close[,volume] rows. A non-numeric first row is treated as a
// header. Timestamps are epoch seconds, epoch milliseconds or RFC3339.
func LoadCSV(r io.Reader, instrument string, tf sig.Timeframe) (sig.Series, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var bars []sig.Bar
	row := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sig.Series{}, fmt.Errorf("%s csv: %w", instrument, err)
		}
		row++
		if row == 1 && len(record) > 0 {
			record[0] = strings.TrimPrefix(record[0], "\ufeff")
			if isHeader(record) {
				continue
			}
		}
		if len(record) < 5 {
			return sig.Series{}, fmt.Errorf("%s csv row %d: want at least 5 columns, got %d", instrument, row, len(record))
		}
		bar, err := parseRow(record)
		if err != nil {
			return sig.Series{}, fmt.Errorf("%s csv row %d: %w", instrument, row, err)
		}
		bars = append(bars, bar)
	}
	return sig.NewSeries(instrument, tf, bars)
}

func isHeader(record []string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(record[0]), 64)
	if err == nil {
		return false
	}
	_, err = time.Parse(time.RFC3339, strings.TrimSpace(record[0]))
	return err != nil
}

func parseRow(record []string) (sig.Bar, error) {
	ts, err := parseTimestamp(record[0])
	if err != nil {
		return sig.Bar{}, err
	}
	fields := make([]decimal.Decimal, 5)
	for i := 1; i < len(record) && i <= 5; i++ {
		raw := strings.TrimSpace(record[i])
		if raw == "" && i == 5 {
			continue
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return sig.Bar{}, fmt.Errorf("column %d %q: %w", i, raw, err)
		}
		fields[i-1] = v
	}
	return sig.Bar{Time: ts, Open: fields[0], High: fields[1], Low: fields[2], Close: fields[3], Volume: fields[4]}, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Unix(int64(f), 0).UTC(), nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: %w", raw, err)
	}
	return ts.UTC(), nil
}

// WriteCSV writes s with a header row and epoch-second timestamps, the format LoadCSV reads back.
func WriteCSV(w io.Writer, s sig.Series) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"timestamp", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}
	for _, b := range s.Bars {
		row := []string{
			strconv.FormatInt(b.Time.Unix(), 10),
			b.Open.String(),
			b.High.String(),
			b.Low.String(),
			b.Close.String(),
			b.Volume.String(),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// SaveCSV writes s to <dir>/<instrument>_<timeframe>.csv, creating dir when needed.
func SaveCSV(dir string, s sig.Series) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	path := filepath.Join(dir, CSVName(s.Instrument, s.Timeframe))
	file, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := WriteCSV(file, s); err != nil {
		file.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, file.Close()
}
