package feed

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"
)

// ErrNoMoreTicks signals that a tick source is exhausted. It is the sole
// loop-termination condition for the backtest loop, never an error state.
var ErrNoMoreTicks = errors.New("no more ticks available")

// Source yields ticks in timestamp order until exhaustion.
type Source interface {
	// Next returns the next tick, or ErrNoMoreTicks once the underlying
	// data runs out. Any other error is a data-access failure.
	Next() (Tick, error)
}

// YearMonth identifies one monthly data file.
type YearMonth struct {
	Year  int
	Month int
}

// MonthRange expands an inclusive start/end year-month range into the
// ordered sequence of months it covers.
func MonthRange(yearStart, yearEnd, monthStart, monthEnd int) ([]YearMonth, error) {
	if monthStart < 1 || monthStart > 12 {
		return nil, fmt.Errorf("feed: month_start must be between 1 and 12, got %d", monthStart)
	}
	if monthEnd < 1 || monthEnd > 12 {
		return nil, fmt.Errorf("feed: month_end must be between 1 and 12, got %d", monthEnd)
	}
	if yearStart > yearEnd || (yearStart == yearEnd && monthStart > monthEnd) {
		return nil, errors.New("feed: start year/month must not be after end year/month")
	}

	var months []YearMonth
	for year := yearStart; year <= yearEnd; year++ {
		first, last := 1, 12
		if year == yearStart {
			first = monthStart
		}
		if year == yearEnd {
			last = monthEnd
		}
		for month := first; month <= last; month++ {
			months = append(months, YearMonth{Year: year, Month: month})
		}
	}
	return months, nil
}

// CSVFeed streams ticks for one pair from month-partitioned CSV files
// laid out as <base>/<PAIR>/<PAIR>_<YYYY>-<MM>.csv with a
// timestamp_ns,bid,ask header row. Files are opened lazily, one at a
// time, in month order.
type CSVFeed struct {
	Pair string

	paths     []string
	fileIndex int
	file      *os.File
	reader    *csv.Reader
	logger    *zap.Logger
}

// NewCSVFeed validates that every monthly file in the range exists and
// returns a feed positioned before the first tick.
func NewCSVFeed(basePath, pair string, yearStart, yearEnd, monthStart, monthEnd int, logger *zap.Logger) (*CSVFeed, error) {
	months, err := MonthRange(yearStart, yearEnd, monthStart, monthEnd)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(months))
	for _, ym := range months {
		path := filepath.Join(basePath, pair, fmt.Sprintf("%s_%d-%02d.csv", pair, ym.Year, ym.Month))
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("feed: missing data file %s: %w", path, err)
		}
		paths = append(paths, path)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSVFeed{
		Pair:      pair,
		paths:     paths,
		fileIndex: -1,
		logger:    logger,
	}, nil
}

// Next implements Source.
func (f *CSVFeed) Next() (Tick, error) {
	for {
		if f.reader == nil {
			if !f.advanceFile() {
				return Tick{}, ErrNoMoreTicks
			}
		}

		row, err := f.reader.Read()
		if errors.Is(err, io.EOF) {
			f.closeCurrent()
			continue
		}
		if err != nil {
			path := f.paths[f.fileIndex]
			f.closeCurrent()
			return Tick{}, fmt.Errorf("feed: failed reading %s: %w", path, err)
		}

		tick, err := parseRow(row)
		if err != nil {
			path := f.paths[f.fileIndex]
			f.closeCurrent()
			return Tick{}, fmt.Errorf("feed: bad row in %s: %w", path, err)
		}
		return tick, nil
	}
}

// Close releases the currently open file, if any.
func (f *CSVFeed) Close() error {
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	f.reader = nil
	return err
}

func (f *CSVFeed) advanceFile() bool {
	f.fileIndex++
	if f.fileIndex >= len(f.paths) {
		return false
	}

	path := f.paths[f.fileIndex]
	file, err := os.Open(path)
	if err != nil {
		// Existence was checked at construction; treat a race here as
		// exhaustion of the remaining files.
		f.logger.Error("failed to open data file",
			zap.String("pair", f.Pair),
			zap.String("path", path),
			zap.Error(err),
		)
		return false
	}

	f.logger.Info("processing data file",
		zap.String("pair", f.Pair),
		zap.String("path", filepath.Base(path)),
		zap.Int("file_index", f.fileIndex+1),
		zap.Int("file_total", len(f.paths)),
	)

	f.file = file
	reader := csv.NewReader(bufio.NewReaderSize(file, 1<<20))
	reader.FieldsPerRecord = 3
	reader.ReuseRecord = true

	// Skip the header row.
	if _, err := reader.Read(); err != nil {
		f.logger.Error("failed to read header", zap.String("path", path), zap.Error(err))
		f.closeCurrent()
		return f.advanceFile()
	}

	f.reader = reader
	return true
}

func (f *CSVFeed) closeCurrent() {
	if f.file != nil {
		_ = f.file.Close()
		f.file = nil
	}
	f.reader = nil
}

func parseRow(row []string) (Tick, error) {
	if len(row) != 3 {
		return Tick{}, fmt.Errorf("expected 3 columns, got %d", len(row))
	}
	tsNS, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return Tick{}, fmt.Errorf("timestamp_ns: %w", err)
	}
	bid, err := strconv.ParseFloat(row[1], 64)
	if err != nil {
		return Tick{}, fmt.Errorf("bid: %w", err)
	}
	ask, err := strconv.ParseFloat(row[2], 64)
	if err != nil {
		return Tick{}, fmt.Errorf("ask: %w", err)
	}
	return NewTick(tsNS, bid, ask), nil
}
