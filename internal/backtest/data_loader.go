package backtest

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"pattern-bot/internal/storage"
	"pattern-bot/internal/symbol"

	"github.com/rs/zerolog/log"
)

// ErrNoData is returned when a source yields no symbols.
var ErrNoData = errors.New("no symbols loaded")

// DataLoader holds a symbol stream and serves it in order.
type DataLoader struct {
	data   []symbol.Symbol
	index  int
	Source string
}

// NewDataLoader creates an empty data loader
func NewDataLoader() *DataLoader {
	return &DataLoader{data: make([]symbol.Symbol, 0)}
}

// LoadText reads single-character symbols (B, W, 0, 1 in any case).
// Whitespace and commas are separators and are skipped.
func (dl *DataLoader) LoadText(r io.Reader) error {
	br := bufio.NewReader(r)
	line, col := 1, 0
	for {
		ch, _, err := br.ReadRune()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read symbols: %w", err)
		}
		col++
		if ch == '\n' {
			line++
			col = 0
			continue
		}
		if ch == ',' || unicode.IsSpace(ch) {
			continue
		}
		s, err := symbol.Parse(string(ch))
		if err != nil {
			return fmt.Errorf("line %d column %d: %w", line, col, err)
		}
		dl.data = append(dl.data, s)
	}
}

// LoadFromFile loads a text stream from path
func (dl *DataLoader) LoadFromFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open symbol file: %w", err)
	}
	defer file.Close()

	if err := dl.LoadText(file); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	dl.Source = path

	log.Info().Str("file", path).Int("symbols", len(dl.data)).Msg("Symbol file loaded")
	return nil
}

// LoadFromCSV loads the named column of a CSV file with a header row.
// Each cell is parsed with symbol.Parse, so "black" and "W" both work.
func (dl *DataLoader) LoadFromCSV(path, column string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}
	idx := -1
	for i, col := range header {
		if strings.EqualFold(strings.TrimSpace(col), column) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("column %q not found in %s", column, path)
	}

	row := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			return fmt.Errorf("row %d: %w", row, err)
		}
		if idx >= len(record) {
			return fmt.Errorf("row %d: missing column %q", row, column)
		}
		s, err := symbol.Parse(record[idx])
		if err != nil {
			return fmt.Errorf("row %d: %w", row, err)
		}
		dl.data = append(dl.data, s)
	}
	dl.Source = path + "#" + column

	log.Info().Str("file", path).Str("column", column).Int("symbols", len(dl.data)).Msg("CSV data loaded successfully")
	return nil
}

// LoadFromJournal loads the symbols one session pushed, in push order.
func (dl *DataLoader) LoadFromJournal(store *storage.Store, sessionID string) error {
	obs, err := store.GetObservations(sessionID)
	if err != nil {
		return fmt.Errorf("failed to load observations for %s: %w", sessionID, err)
	}
	for _, o := range obs {
		dl.data = append(dl.data, o.Input)
	}
	dl.Source = "journal:" + sessionID

	log.Info().Str("session", sessionID).Int("symbols", len(obs)).Msg("Journal data loaded")
	return nil
}

// Len returns the number of loaded symbols
func (dl *DataLoader) Len() int { return len(dl.data) }

// HasNext returns true if there are more symbols to serve
func (dl *DataLoader) HasNext() bool { return dl.index < len(dl.data) }

// Next returns the next symbol
func (dl *DataLoader) Next() symbol.Symbol {
	s := dl.data[dl.index]
	dl.index++
	return s
}

// Reset rewinds the loader to the first symbol
func (dl *DataLoader) Reset() { dl.index = 0 }
