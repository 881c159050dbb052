package subtitle

import (
	"regexp"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"
)

// Info is the metadata extracted from subtitle content.
type Info struct {
	Format     Format  `json:"format"`
	Entries    int     `json:"entries_count"`
	Duration   float64 `json:"duration_seconds"`
	Language   string  `json:"language,omitempty"`
	Title      string  `json:"title,omitempty"`
	Confidence float64 `json:"language_confidence,omitempty"`
}

var assTitleRe = regexp.MustCompile(`(?m)^Title:\s*(.+)$`)

// ExtractInfo inspects subtitle text for format, entry count, total
// duration, and the natural language of the dialogue.
func ExtractInfo(text string) Info {
	info := Info{Format: DetectFormat(text)}

	cues, err := ParseCues(text)
	if err != nil || len(cues) == 0 {
		return info
	}
	info.Entries = len(cues)

	var last time.Duration
	for _, c := range cues {
		if c.End > last {
			last = c.End
		}
	}
	info.Duration = last.Seconds()

	if info.Format == FormatASS {
		if m := assTitleRe.FindStringSubmatch(text); m != nil {
			info.Title = strings.TrimSpace(m[1])
		}
	}

	info.Language, info.Confidence = detectContentLanguage(cues)

	return info
}

// langSampleCues caps how much dialogue feeds language detection.
const langSampleCues = 50

func detectContentLanguage(cues []Cue) (string, float64) {
	var b strings.Builder
	for i, c := range cues {
		if i >= langSampleCues {
			break
		}
		b.WriteString(c.Text)
		b.WriteByte(' ')
	}

	sample := b.String()
	if strings.TrimSpace(sample) == "" {
		return "", 0
	}

	detection := whatlanggo.Detect(sample)
	if !detection.IsReliable() {
		return "", 0
	}

	return detection.Lang.Iso6391(), detection.Confidence
}
