package captions

import (
	"strings"

	"github.com/forPelevin/linerank/internal/types"
)

// Segment parses raw caption text and merges its cues into spoken lines.
func Segment(raw string) ([]types.Line, error) {
	cues, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	return Merge(cues), nil
}

// Merge joins every cue that does not end a sentence with the cue right after
// it. The result is not re-checked, so a merged line may still end without
// punctuation. A trailing unfinished cue has nothing to join and is dropped.
func Merge(cues []types.Cue) []types.Line {
	out := make([]types.Line, 0, len(cues))
	for i := 0; i < len(cues); {
		cur := cues[i]
		if isComplete(cur.Content) {
			out = append(out, types.Line{Start: cur.Start, End: cur.End, Content: cur.Content, Index: len(out)})
			i++
			continue
		}
		if i+1 >= len(cues) {
			break
		}
		next := cues[i+1]
		out = append(out, types.Line{
			Start:   cur.Start,
			End:     next.End,
			Content: cur.Content + "\n" + next.Content,
			Index:   len(out),
		})
		i += 2
	}
	return out
}

func isComplete(content string) bool {
	return strings.HasSuffix(content, ".") ||
		strings.HasSuffix(content, ":") ||
		strings.HasSuffix(content, "?") ||
		strings.HasSuffix(content, "!")
}
