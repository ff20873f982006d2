// Package symbol maps the two user-facing stream symbols onto the bits the
// pattern tracker learns from. White is true and Black is false.
package symbol

import (
	"errors"
	"fmt"
	"strings"
)

// Symbol is one of the two inputs a stream may carry.
type Symbol uint8

const (
	Black Symbol = iota
	White
)

// ErrUnknownSymbol is returned when text does not name Black or White.
var ErrUnknownSymbol = errors.New("unknown symbol")

// FromBool converts a tracker bit to a Symbol.
func FromBool(b bool) Symbol {
	if b {
		return White
	}
	return Black
}

// Bool converts s to the tracker's bit representation.
func (s Symbol) Bool() bool { return s == White }

func (s Symbol) String() string {
	if s == White {
		return "white"
	}
	return "black"
}

// Parse accepts "black"/"b"/"0" and "white"/"w"/"1", case-insensitively.
func Parse(text string) (Symbol, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "black", "b", "0":
		return Black, nil
	case "white", "w", "1":
		return White, nil
	}
	return Black, fmt.Errorf("%w: %q", ErrUnknownSymbol, text)
}

func (s Symbol) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Symbol) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
