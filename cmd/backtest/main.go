package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"pattern-bot/internal/backtest"
	"pattern-bot/internal/cfg"
	"pattern-bot/internal/common"
	"pattern-bot/internal/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		dataPath   = flag.String("data", "", "Symbol file, CSV file or journal database")
		dataFormat = flag.String("format", "auto", "Data format: auto, text, csv, journal")
		column     = flag.String("column", "input", "CSV column holding the symbols")
		sessionID  = flag.String("session", "", "Journal session to replay (default: all sessions)")
		sizes      = flag.String("sizes", "", "Comma-separated context sizes to compare (default: config)")
		outputPath = flag.String("output", "", "Output directory for JSON and CSV reports")
		logLevel   = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	config, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	contextSizes, err := parseSizes(*sizes, config.ContextSize)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid context sizes")
	}

	if *dataPath == "" {
		if config.DataPath == "" {
			log.Fatal().Msg("No data given: pass -data or set DATA_PATH")
		}
		*dataPath = filepath.Join(config.DataPath, common.JournalFile)
	}

	format := *dataFormat
	if format == "auto" {
		format = detectFormat(*dataPath)
	}

	var loaders []*backtest.DataLoader
	switch format {
	case "text":
		loader := backtest.NewDataLoader()
		err = loader.LoadFromFile(*dataPath)
		loaders = append(loaders, loader)
	case "csv":
		loader := backtest.NewDataLoader()
		err = loader.LoadFromCSV(*dataPath, *column)
		loaders = append(loaders, loader)
	case "journal":
		loaders, err = loadJournal(*dataPath, *sessionID)
	default:
		log.Fatal().Str("format", format).Msg("Unknown data format")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load data")
	}

	var results []*backtest.Results
	for _, loader := range loaders {
		if loader.Len() == 0 {
			log.Warn().Str("source", loader.Source).Msg("Skipping empty stream")
			continue
		}
		res, err := backtest.Compare(loader, contextSizes)
		if err != nil {
			log.Fatal().Err(err).Str("source", loader.Source).Msg("Backtest failed")
		}
		results = append(results, res...)
	}
	if len(results) == 0 {
		log.Fatal().Err(backtest.ErrNoData).Msg("Nothing to replay")
	}

	reporter := backtest.NewReporter(results...)
	reporter.PrintSummary(os.Stdout)

	if *outputPath != "" {
		if err := reporter.WriteJSON(filepath.Join(*outputPath, "backtest_results.json")); err != nil {
			log.Error().Err(err).Msg("Failed to write JSON report")
		}
		if err := reporter.WriteCSV(filepath.Join(*outputPath, "backtest_results.csv")); err != nil {
			log.Error().Err(err).Msg("Failed to write CSV report")
		}
	}

	log.Info().Int("runs", len(results)).Msg("Backtest completed successfully")
}

// loadJournal loads one stream per journaled session, or just sessionID.
func loadJournal(path, sessionID string) ([]*backtest.DataLoader, error) {
	store, err := storage.New(path)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	ids := []string{sessionID}
	if sessionID == "" {
		if ids, err = store.Sessions(); err != nil {
			return nil, err
		}
	}

	loaders := make([]*backtest.DataLoader, 0, len(ids))
	for _, id := range ids {
		loader := backtest.NewDataLoader()
		if err := loader.LoadFromJournal(store, id); err != nil {
			return nil, err
		}
		loaders = append(loaders, loader)
	}
	return loaders, nil
}

func detectFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return "csv"
	case ".db", ".bolt":
		return "journal"
	default:
		return "text"
	}
}

func parseSizes(s string, fallback int) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return []int{fallback}, nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("context size %q: %w", part, err)
		}
		out = append(out, n)
	}
	return out, nil
}
