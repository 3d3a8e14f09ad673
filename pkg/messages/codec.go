package messages

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/tecu23/duel-server/pkg/chess"
)

// MaxRecordSize bounds a single line on the wire
const MaxRecordSize = 64 * 1024

// Decoding errors. All of them mean the record is dropped and the connection kept.
var (
	ErrMalformed     = errors.New("malformed record")
	ErrUnknownKind   = errors.New("unknown record kind")
	ErrRecordTooLong = errors.New("record exceeds maximum size")
)

// Scanner splits a byte stream into records, buffering partial reads until a
// line separator arrives. Blank lines are skipped.
type Scanner struct {
	r *bufio.Reader
}

// NewScanner creates a scanner over r
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: bufio.NewReaderSize(r, MaxRecordSize)}
}

// Next returns the next record without its line separator. It returns io.EOF
// when the stream ends cleanly. A line longer than MaxRecordSize is consumed
// up to its separator and reported as ErrRecordTooLong; the scanner stays
// usable after it.
func (s *Scanner) Next() ([]byte, error) {
	for {
		line, err := s.r.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			if err := s.skipLine(); err != nil {
				return nil, err
			}
			return nil, ErrRecordTooLong
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}

		if rec := bytes.TrimSpace(line); len(rec) > 0 {
			out := make([]byte, len(rec))
			copy(out, rec)
			return out, nil
		}

		if err != nil {
			return nil, io.EOF
		}
	}
}

func (s *Scanner) skipLine() error {
	for {
		_, err := s.r.ReadSlice('\n')
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case err == nil, errors.Is(err, io.EOF):
			return nil
		default:
			return err
		}
	}
}

// Encode renders a record as one JSON line, discriminated by "type"
func Encode(msg interface{ Kind() Kind }) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Kind(), err)
	}

	head, err := json.Marshal(msg.Kind())
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Kind(), err)
	}

	var buf bytes.Buffer
	buf.Grow(len(body) + len(head) + 10)
	buf.WriteString(`{"type":`)
	buf.Write(head)
	if len(body) > 2 {
		buf.WriteByte(',')
		buf.Write(body[1 : len(body)-1])
	}
	buf.WriteString("}\n")

	return buf.Bytes(), nil
}

// Write encodes msg and writes it to w
func Write(w io.Writer, msg interface{ Kind() Kind }) error {
	data, err := Encode(msg)
	if err != nil {
		return err
	}

	_, err = w.Write(data)
	return err
}

func peekKind(line []byte) (Kind, error) {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(line, &head); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if head.Type == "" {
		return "", fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return head.Type, nil
}

// DecodeInbound parses a client record into one of the known variants
func DecodeInbound(line []byte) (Inbound, error) {
	kind, err := peekKind(line)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindReady:
		return Ready{}, nil

	case KindMove:
		var raw struct {
			From      []int   `json:"from"`
			To        []int   `json:"to"`
			Promotion string  `json:"promotion"`
			Timestamp float64 `json:"timestamp"`
		}
		if err := json.Unmarshal(line, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if len(raw.From) != 2 || len(raw.To) != 2 {
			return nil, fmt.Errorf("%w: move needs from and to as [row, col]", ErrMalformed)
		}

		return Move{
			From:      chess.Square{raw.From[0], raw.From[1]},
			To:        chess.Square{raw.To[0], raw.To[1]},
			Promotion: strings.ToLower(raw.Promotion),
			Timestamp: raw.Timestamp,
		}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// DecodeOutbound parses a server record into one of the known variants
func DecodeOutbound(line []byte) (Outbound, error) {
	kind, err := peekKind(line)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindJoinAccepted:
		return decodeAs[JoinAccepted](line)
	case KindJoinRejected:
		return decodeAs[JoinRejected](line)
	case KindGameStart:
		return decodeAs[GameStart](line)
	case KindMoveAccepted:
		return decodeAs[MoveAccepted](line)
	case KindIllegalMove:
		return decodeAs[IllegalMove](line)
	case KindGameOver:
		return decodeAs[GameOver](line)
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

func decodeAs[T Outbound](line []byte) (Outbound, error) {
	var msg T
	if err := json.Unmarshal(line, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return msg, nil
}

// Seconds converts a duration to the float seconds used on the wire
func Seconds(d time.Duration) float64 {
	return d.Seconds()
}

// Duration converts wire seconds back to a duration
func Duration(seconds float64) time.Duration {
	return time.Duration(math.Round(seconds * float64(time.Second)))
}

// Timestamp converts a wall-clock time to float Unix seconds
func Timestamp(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/float64(time.Second)
}

// Time converts float Unix seconds back to a wall-clock time
func Time(ts float64) time.Time {
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(math.Round(frac*float64(time.Second))))
}
