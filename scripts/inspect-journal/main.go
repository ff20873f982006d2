package main

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"

	"pattern-bot/internal/common"
	"pattern-bot/internal/storage"
)

func main() {
	var (
		dataPath = flag.String("data", "./data", "Data directory path")
		session  = flag.String("session", "", "Print every observation of this session")
	)
	flag.Parse()

	path := filepath.Join(*dataPath, common.JournalFile)
	fmt.Printf("Inspecting journal: %s\n", path)

	store, err := storage.New(path)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	if *session != "" {
		obs, err := store.GetObservations(*session)
		if err != nil {
			log.Fatalf("Failed to fetch observations: %v", err)
		}
		for _, o := range obs {
			predicted := "-"
			if o.Predicted != nil {
				predicted = o.Predicted.String()
			}
			fmt.Printf("%6d  %s  input=%-5s predicted=%-5s correct=%v\n",
				o.Seq, o.Timestamp.Format("2006-01-02 15:04:05"), o.Input, predicted, o.Correct)
		}
		return
	}

	ids, err := store.Sessions()
	if err != nil {
		log.Fatalf("Failed to list sessions: %v", err)
	}
	fmt.Printf("\nJournaled sessions: %d\n", len(ids))
	for _, id := range ids {
		obs, err := store.GetObservations(id)
		if err != nil {
			log.Fatalf("Failed to fetch observations for %s: %v", id, err)
		}
		fmt.Printf("  %s  %d observations\n", id, len(obs))
	}

	summaries, err := store.Summaries()
	if err != nil {
		log.Fatalf("Failed to list summaries: %v", err)
	}
	fmt.Printf("\nClosed sessions: %d\n", len(summaries))
	for _, s := range summaries {
		ratio := 0.0
		if s.Predictions > 0 {
			ratio = float64(s.Correct) / float64(s.Predictions) * 100
		}
		fmt.Printf("  %s  n=%d inputs=%d correct=%d/%d (%.1f%%) contexts=%d reason=%s\n",
			s.SessionID, s.ContextSize, s.Inputs, s.Correct, s.Predictions, ratio, s.Contexts, s.Reason)
	}
}
