package captions

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/forPelevin/linerank/internal/types"
)

const timingSeparator = "-->"

// ParseError reports a caption block that could not be turned into a cue.
// Block is the 0-based position of the block in the raw text; the header is
// block 0.
type ParseError struct {
	Block int
	Raw   string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("caption block %d %q: %v", e.Block, firstLine(e.Raw), e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseTimestamp converts HH:MM:SS.mmm (or MM:SS.mmm) to whole seconds.
// The fractional part is discarded, never rounded. Minutes and seconds
// after the leading field must be below 60; the leading field has at most
// five digits.
func ParseTimestamp(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty timestamp")
	}
	whole, frac, hasFrac := strings.Cut(s, ".")
	if hasFrac && !isDigits(frac) {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}

	parts := strings.Split(whole, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	total := 0
	for i, p := range parts {
		if !isDigits(p) || len(p) > 5 {
			return 0, fmt.Errorf("invalid timestamp %q", s)
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
		if i > 0 && n > 59 {
			return 0, fmt.Errorf("invalid timestamp %q: field %q out of range", s, p)
		}
		total = total*60 + n
	}
	return total, nil
}

// Parse splits a WebVTT-style transcript into cues. The first block is the
// format header and is discarded.
func Parse(raw string) ([]types.Cue, error) {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.TrimRight(raw, "\n")
	blocks := strings.Split(raw, "\n\n")
	if len(blocks) < 2 {
		return nil, nil
	}

	cues := make([]types.Cue, 0, len(blocks)-1)
	for i := 1; i < len(blocks); i++ {
		block := blocks[i]
		if strings.TrimSpace(block) == "" {
			continue
		}
		timing, content, _ := strings.Cut(block, "\n")
		start, end, err := parseTiming(timing)
		if err != nil {
			return nil, &ParseError{Block: i, Raw: block, Err: err}
		}
		cues = append(cues, types.Cue{Start: start, End: end, Content: content})
	}
	return cues, nil
}

func parseTiming(line string) (int, int, error) {
	left, right, ok := strings.Cut(line, timingSeparator)
	if !ok {
		return 0, 0, fmt.Errorf("missing %q separator", timingSeparator)
	}
	// Cue settings such as "align:start" may follow the end timestamp.
	fields := strings.Fields(right)
	if len(fields) == 0 {
		return 0, 0, errors.New("missing end timestamp")
	}
	start, err := ParseTimestamp(left)
	if err != nil {
		return 0, 0, fmt.Errorf("start: %w", err)
	}
	end, err := ParseTimestamp(fields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("end: %w", err)
	}
	if end < start {
		return 0, 0, fmt.Errorf("end %d before start %d", end, start)
	}
	return start, end, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
