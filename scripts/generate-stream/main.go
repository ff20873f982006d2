package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"strings"
)

func main() {
	var (
		output  = flag.String("output", "stream.txt", "File to write the symbol stream to")
		pattern = flag.String("pattern", "BBWBW", "Repeating symbol pattern (B/W)")
		length  = flag.Int("length", 1000, "Number of symbols to generate")
		noise   = flag.Float64("noise", 0.05, "Probability of flipping each symbol")
		seed    = flag.Uint64("seed", 1, "Random seed")
		width   = flag.Int("width", 60, "Symbols per line")
	)
	flag.Parse()

	pat := strings.ToUpper(strings.TrimSpace(*pattern))
	if pat == "" || strings.Trim(pat, "BW") != "" {
		log.Fatalf("Pattern must be a non-empty string of B and W: %q", *pattern)
	}
	if *noise < 0 || *noise > 1 {
		log.Fatalf("Noise must be within [0, 1]: %v", *noise)
	}

	fmt.Printf("Generating symbol stream...\n")
	fmt.Printf("  Pattern: %s\n", pat)
	fmt.Printf("  Length: %d\n", *length)
	fmt.Printf("  Noise: %.2f\n", *noise)

	file, err := os.Create(*output)
	if err != nil {
		log.Fatalf("Failed to create output: %v", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	flips := 0
	for i := 0; i < *length; i++ {
		c := pat[i%len(pat)]
		if rng.Float64() < *noise {
			flips++
			if c == 'B' {
				c = 'W'
			} else {
				c = 'B'
			}
		}
		w.WriteByte(c)
		if *width > 0 && (i+1)%*width == 0 {
			w.WriteByte('\n')
		}
	}
	w.WriteByte('\n')
	if err := w.Flush(); err != nil {
		log.Fatalf("Failed to write stream: %v", err)
	}

	fmt.Printf("✓ Wrote %d symbols (%d flipped) to %s\n", *length, flips, *output)
}
