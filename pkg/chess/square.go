package chess

import (
	"errors"
	"fmt"
)

// BoardSize is the number of rows and columns on the board
const BoardSize = 8

// Errors returned while translating board coordinates
var (
	ErrOutOfRange       = errors.New("coordinate out of range")
	ErrUnknownPromotion = errors.New("unknown promotion piece")
)

// Square is a (row, column) pair. Row 0 is rank 8 and column 0 is file a,
// which is how clients address the board they draw.
type Square [2]int

// Row returns the row component
func (sq Square) Row() int { return sq[0] }

// Col returns the column component
func (sq Square) Col() int { return sq[1] }

// Valid reports whether both components are within the board
func (sq Square) Valid() bool {
	return sq[0] >= 0 && sq[0] < BoardSize && sq[1] >= 0 && sq[1] < BoardSize
}

// UCI returns the square in coordinate notation, e.g. [6,4] -> "e2"
func (sq Square) UCI() (string, error) {
	if !sq.Valid() {
		return "", fmt.Errorf("%w: [%d,%d]", ErrOutOfRange, sq[0], sq[1])
	}

	return fmt.Sprintf("%c%d", 'a'+sq.Col(), BoardSize-sq.Row()), nil
}

// MoveUCI joins two squares and an optional promotion piece into a UCI move string
func MoveUCI(from, to Square, promotion string) (string, error) {
	src, err := from.UCI()
	if err != nil {
		return "", err
	}

	dst, err := to.UCI()
	if err != nil {
		return "", err
	}

	switch promotion {
	case "", "q", "r", "b", "n":
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPromotion, promotion)
	}

	return src + dst + promotion, nil
}

// ParseSquare reads coordinate notation back into a Square, e.g. "e2" -> [6,4]
func ParseSquare(s string) (Square, error) {
	if len(s) != 2 {
		return Square{}, fmt.Errorf("%w: %q", ErrOutOfRange, s)
	}

	sq := Square{BoardSize - int(s[1]-'0'), int(s[0] - 'a')}
	if s[0] < 'a' || s[1] < '0' || !sq.Valid() {
		return Square{}, fmt.Errorf("%w: %q", ErrOutOfRange, s)
	}

	return sq, nil
}
