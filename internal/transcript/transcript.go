package transcript

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultChunkWindow is the nominal chunk duration.
const DefaultChunkWindow = 300 * time.Second

// Cue is one time-coded caption line.
type Cue struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// Chunk is a fixed-window slice of the transcript. Numbers are 1-based and
// contiguous; only the final chunk may be shorter than the nominal window.
type Chunk struct {
	Number int
	Start  time.Duration
	End    time.Duration
	Text   string
}

var timelineRe = regexp.MustCompile(`^(\d{2}):(\d{2}):(\d{2})[,.](\d{3})\s*-->\s*(\d{2}):(\d{2}):(\d{2})[,.](\d{3})`)

// ParseSRT reads SubRip cues. Index lines are optional, blank lines separate
// cues, and inline formatting tags are stripped. Cues with empty text are
// dropped.
func ParseSRT(r io.Reader) ([]Cue, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var cues []Cue
	var current *Cue
	var textLines []string

	flush := func() {
		if current == nil {
			return
		}
		text := strings.TrimSpace(strings.Join(textLines, " "))
		if text != "" {
			current.Text = text
			cues = append(cues, *current)
		}
		current = nil
		textLines = nil
	}

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		if line == "" {
			flush()
			continue
		}
		if m := timelineRe.FindStringSubmatch(line); m != nil {
			flush()
			start, err := timestampFromParts(m[1:5])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			end, err := timestampFromParts(m[5:9])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			current = &Cue{Start: start, End: end}
			continue
		}
		if current == nil {
			// Cue index or stray header line.
			continue
		}
		textLines = append(textLines, stripTags(line))
	}
	flush()
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	return cues, nil
}

func timestampFromParts(parts []string) (time.Duration, error) {
	values := make([]int, 4)
	for i, part := range parts {
		v, err := strconv.Atoi(part)
		if err != nil {
			return 0, fmt.Errorf("bad timestamp component %q", part)
		}
		values[i] = v
	}
	return time.Duration(values[0])*time.Hour +
		time.Duration(values[1])*time.Minute +
		time.Duration(values[2])*time.Second +
		time.Duration(values[3])*time.Millisecond, nil
}

var tagRe = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)

func stripTags(s string) string {
	return strings.TrimSpace(tagRe.ReplaceAllString(s, ""))
}

// ChunkCues groups cues into fixed windows. A cue belongs to the window
// containing its start time; text is concatenated in cue order with single
// spaces. Windows with no cues are dropped so numbering stays contiguous
// across silent gaps. The final chunk ends at the last cue's end. Empty input
// yields zero chunks. A non-positive window falls back to the default.
func ChunkCues(cues []Cue, window time.Duration) []Chunk {
	if len(cues) == 0 {
		return nil
	}
	if window <= 0 {
		window = DefaultChunkWindow
	}

	texts := map[int][]string{}
	maxIndex := 0
	lastEnd := time.Duration(0)
	for _, cue := range cues {
		idx := int(cue.Start / window)
		texts[idx] = append(texts[idx], cue.Text)
		if idx > maxIndex {
			maxIndex = idx
		}
		if cue.End > lastEnd {
			lastEnd = cue.End
		}
	}

	chunks := make([]Chunk, 0, len(texts))
	for idx := 0; idx <= maxIndex; idx++ {
		lines, ok := texts[idx]
		if !ok {
			continue
		}
		start := time.Duration(idx) * window
		end := start + window
		if idx == maxIndex {
			end = lastEnd
		}
		chunks = append(chunks, Chunk{
			Number: len(chunks) + 1,
			Start:  start,
			End:    end,
			Text:   strings.Join(lines, " "),
		})
	}
	return chunks
}
