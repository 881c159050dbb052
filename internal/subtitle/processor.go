package subtitle

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
)

// Processor cleans, validates, and converts subtitle content.
type Processor struct {
	maxFileSize int64
	log         *slog.Logger
}

// NewProcessor creates a processor enforcing the given size cap.
func NewProcessor(maxFileSize int64) *Processor {
	return &Processor{
		maxFileSize: maxFileSize,
		log:         slog.With("component", "subtitle-processor"),
	}
}

var (
	htmlTagRe   = regexp.MustCompile(`<[^>]+>`)
	styleTagRe  = regexp.MustCompile(`\{[^}]+\}`)
	blankRunsRe = regexp.MustCompile(`\n{3,}`)
	bareClockRe = regexp.MustCompile(`\d{2}:\d{2}:\d{2}`)
)

// mojibakeFixes repair UTF-8 punctuation that was decoded as cp1252
// somewhere upstream.
var mojibakeFixes = []struct{ old, new string }{
	{"\u00e2\u20ac\u2122", "'"},      // right single quote
	{"\u00e2\u20ac\u0153", "\""},     // left double quote
	{"\u00e2\u20ac\u00a6", "..."},    // ellipsis
	{"\u00e2\u20ac\u201d", "\u2014"}, // em dash
	{"\u00e2\u20ac\u201c", "\u2013"}, // en dash

	// Bare prefix last so it cannot eat the longer sequences above.
	{"\u00e2\u20ac", "\""}, // right double quote, trailing byte lost
}

// Clean normalizes subtitle text: BOM strip, LF line endings, collapsed
// blank runs, markup removal, and mojibake repair.
func (p *Processor) Clean(text string) string {
	text = strings.TrimPrefix(text, "\ufeff")

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = blankRunsRe.ReplaceAllString(text, "\n\n")

	text = htmlTagRe.ReplaceAllString(text, "")
	text = styleTagRe.ReplaceAllString(text, "")

	for _, fix := range mojibakeFixes {
		text = strings.ReplaceAll(text, fix.old, fix.new)
	}

	return strings.TrimSpace(text)
}

// Validate checks whether raw bytes plausibly hold a subtitle file.
// The reason string is human-readable and safe to return to API callers.
func (p *Processor) Validate(content []byte) (bool, string) {
	if int64(len(content)) > p.maxFileSize {
		return false, "subtitle file too large"
	}
	if len(content) == 0 {
		return false, "empty subtitle file"
	}

	text := DecodeText(content, DetectEncoding(content))

	if DetectFormat(text) != FormatUnknown {
		return true, "valid subtitle file"
	}
	// Some files are malformed but still carry timing lines.
	if len(bareClockRe.FindAllString(text, 3)) >= 3 {
		return true, "valid subtitle file"
	}

	return false, "invalid subtitle format"
}

// Process validates, decodes, cleans, and re-serializes raw subtitle bytes
// in the target format. On failure it returns empty output and the reason.
func (p *Processor) Process(content []byte, target Format) (string, string) {
	if ok, reason := p.Validate(content); !ok {
		return "", reason
	}

	encName := DetectEncoding(content)
	text := p.Clean(DecodeText(content, encName))

	cues, err := ParseCues(text)
	if err != nil || len(cues) == 0 {
		return "", "no subtitle entries found"
	}

	out, err := WriteCues(cues, target)
	if err != nil {
		return "", err.Error()
	}

	p.log.Debug("processed subtitle content",
		"entries", len(cues), "encoding", encName, "format", target)

	return p.Clean(out) + "\n", "success"
}

// ConvertFormat re-serializes subtitle text into the target format.
func (p *Processor) ConvertFormat(text string, target Format) (string, error) {
	cues, err := ParseCues(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse subtitle: %w", err)
	}
	if len(cues) == 0 {
		return "", fmt.Errorf("no subtitle entries found")
	}
	return WriteCues(cues, target)
}

// ShiftTiming moves every cue by the offset. Cues shifted before zero are
// clamped at zero. Output is SRT.
func (p *Processor) ShiftTiming(text string, offset time.Duration) (string, error) {
	cues, err := ParseCues(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse subtitle: %w", err)
	}
	if len(cues) == 0 {
		return "", fmt.Errorf("no subtitle entries found")
	}

	for i := range cues {
		cues[i].Start += offset
		cues[i].End += offset
		if cues[i].Start < 0 {
			cues[i].Start = 0
		}
		if cues[i].End < 0 {
			cues[i].End = 0
		}
	}

	return WriteCues(cues, FormatSRT)
}

// Merge combines several subtitle tracks into one SRT, ordered by start
// time with input order preserved for ties.
func (p *Processor) Merge(texts []string) (string, error) {
	var all []Cue
	for _, text := range texts {
		cues, err := ParseCues(text)
		if err != nil {
			return "", fmt.Errorf("failed to parse subtitle: %w", err)
		}
		all = append(all, cues...)
	}
	if len(all) == 0 {
		return "", fmt.Errorf("no subtitle entries found")
	}

	SortCues(all)
	return WriteCues(all, FormatSRT)
}

// Preview renders the first maxLines cues as "HH:MM:SS.mmm: text" lines.
func (p *Processor) Preview(text string, maxLines int) string {
	cues, err := ParseCues(text)
	if err != nil || len(cues) == 0 {
		return "Preview not available"
	}
	if maxLines <= 0 {
		maxLines = 5
	}

	var lines []string
	for i, c := range cues {
		if i >= maxLines {
			break
		}
		body := strings.ReplaceAll(c.Text, "\n", " ")
		lines = append(lines, fmt.Sprintf("%s: %s", vttTimestamp(c.Start), body))
	}
	if len(cues) > maxLines {
		lines = append(lines, fmt.Sprintf("... and %d more entries", len(cues)-maxLines))
	}

	return strings.Join(lines, "\n")
}
