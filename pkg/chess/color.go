package chess

import "fmt"

// Side is one of the two match participants
type Side string

// Possible sides in a match
const (
	White Side = "white"
	Black Side = "black"
)

// Opp returns the opposite side for the given side.
func (s Side) Opp() Side {
	if s == White {
		return Black
	}

	return White
}

// Valid reports whether s is white or black
func (s Side) Valid() bool {
	return s == White || s == Black
}

// ParseSide parses the wire representation of a side
func ParseSide(v string) (Side, error) {
	s := Side(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown side %q", v)
	}
	return s, nil
}
