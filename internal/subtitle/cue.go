// Package subtitle implements subtitle content processing: parsing,
// cleanup, format conversion, and metadata extraction.
package subtitle

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Format identifies a subtitle serialization format.
type Format string

const (
	FormatSRT     Format = "srt"
	FormatVTT     Format = "vtt"
	FormatASS     Format = "ass"
	FormatUnknown Format = "unknown"
)

// Cue is one timed text event.
type Cue struct {
	Index int
	Start time.Duration
	End   time.Duration
	Text  string
}

var (
	srtTimeRe = regexp.MustCompile(`^(\d{2}):(\d{2}):(\d{2})[,.](\d{3})\s*-->\s*(\d{2}):(\d{2}):(\d{2})[,.](\d{3})`)
	vttTimeRe = regexp.MustCompile(`^(?:(\d+):)?(\d{2}):(\d{2})\.(\d{3})\s*-->\s*(?:(\d+):)?(\d{2}):(\d{2})\.(\d{3})`)
	assTimeRe = regexp.MustCompile(`^(\d+):(\d{2}):(\d{2})\.(\d{2})$`)
)

// DetectFormat sniffs the serialization format of subtitle text.
func DetectFormat(text string) Format {
	head := text
	if len(head) > 100 {
		head = head[:100]
	}
	switch {
	case strings.Contains(head, "WEBVTT"):
		return FormatVTT
	case strings.Contains(text, "[Script Info]") || strings.Contains(text, "[V4+ Styles]"):
		return FormatASS
	case srtArrowRe.MatchString(text):
		return FormatSRT
	}
	return FormatUnknown
}

var srtArrowRe = regexp.MustCompile(`\d+\s*\n\d{2}:\d{2}:\d{2}[,.]\d{3}\s*-->\s*\d{2}:\d{2}:\d{2}[,.]\d{3}`)

// ParseCues parses subtitle text into cues, sniffing the format.
func ParseCues(text string) ([]Cue, error) {
	switch DetectFormat(text) {
	case FormatVTT:
		return parseVTT(text)
	case FormatASS:
		return parseASS(text)
	case FormatSRT:
		return parseSRT(text)
	}
	// Last resort: some files drop the index lines but keep SRT timing.
	cues, err := parseSRT(text)
	if err != nil || len(cues) == 0 {
		return nil, fmt.Errorf("unrecognized subtitle format")
	}
	return cues, nil
}

// srt parsing runs a small state machine over lines: hunt for a timestamp,
// collect text until a blank line, repeat.
type srtState int

const (
	stateSeeking srtState = iota
	stateText
)

func parseSRT(text string) ([]Cue, error) {
	var cues []Cue
	var cur Cue
	state := stateSeeking

	flush := func() {
		cur.Text = strings.TrimSpace(cur.Text)
		if cur.Text != "" {
			cur.Index = len(cues) + 1
			cues = append(cues, cur)
		}
		cur = Cue{}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")

		switch state {
		case stateSeeking:
			if m := srtTimeRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
				cur.Start = clockDuration(m[1], m[2], m[3], m[4])
				cur.End = clockDuration(m[5], m[6], m[7], m[8])
				state = stateText
			}
		case stateText:
			if strings.TrimSpace(line) == "" {
				flush()
				state = stateSeeking
				continue
			}
			if cur.Text != "" {
				cur.Text += "\n"
			}
			cur.Text += line
		}
	}
	if state == stateText {
		flush()
	}

	return cues, nil
}

func parseVTT(text string) ([]Cue, error) {
	var cues []Cue
	var cur Cue
	state := stateSeeking

	flush := func() {
		cur.Text = strings.TrimSpace(cur.Text)
		if cur.Text != "" {
			cur.Index = len(cues) + 1
			cues = append(cues, cur)
		}
		cur = Cue{}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)

		switch state {
		case stateSeeking:
			if m := vttTimeRe.FindStringSubmatch(trimmed); m != nil {
				cur.Start = vttDuration(m[1], m[2], m[3], m[4])
				cur.End = vttDuration(m[5], m[6], m[7], m[8])
				state = stateText
			}
		case stateText:
			if trimmed == "" {
				flush()
				state = stateSeeking
				continue
			}
			if cur.Text != "" {
				cur.Text += "\n"
			}
			cur.Text += line
		}
	}
	if state == stateText {
		flush()
	}

	return cues, nil
}

func parseASS(text string) ([]Cue, error) {
	var cues []Cue

	// Field order comes from the Format line preceding the events.
	startIdx, endIdx, textIdx := 1, 2, 9
	fieldCount := 10

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimRight(line, "\r"))

		if strings.HasPrefix(line, "Format:") && strings.Contains(line, "Start") {
			fields := strings.Split(strings.TrimPrefix(line, "Format:"), ",")
			fieldCount = len(fields)
			for i, f := range fields {
				switch strings.TrimSpace(f) {
				case "Start":
					startIdx = i
				case "End":
					endIdx = i
				case "Text":
					textIdx = i
				}
			}
			continue
		}

		if !strings.HasPrefix(line, "Dialogue:") {
			continue
		}

		fields := strings.SplitN(strings.TrimPrefix(line, "Dialogue:"), ",", fieldCount)
		if len(fields) <= textIdx || len(fields) <= startIdx || len(fields) <= endIdx {
			continue
		}

		start, ok1 := assDuration(strings.TrimSpace(fields[startIdx]))
		end, ok2 := assDuration(strings.TrimSpace(fields[endIdx]))
		if !ok1 || !ok2 {
			continue
		}

		body := strings.TrimSpace(fields[textIdx])
		body = strings.ReplaceAll(body, `\N`, "\n")
		body = strings.ReplaceAll(body, `\n`, "\n")
		if body == "" {
			continue
		}

		cues = append(cues, Cue{
			Index: len(cues) + 1,
			Start: start,
			End:   end,
			Text:  body,
		})
	}

	return cues, nil
}

func clockDuration(h, m, s, ms string) time.Duration {
	hh, _ := strconv.Atoi(h)
	mm, _ := strconv.Atoi(m)
	ss, _ := strconv.Atoi(s)
	mss, _ := strconv.Atoi(ms)
	return time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute +
		time.Duration(ss)*time.Second + time.Duration(mss)*time.Millisecond
}

// vttDuration tolerates the optional hours group.
func vttDuration(h, m, s, ms string) time.Duration {
	if h == "" {
		h = "0"
	}
	return clockDuration(h, m, s, ms)
}

func assDuration(v string) (time.Duration, bool) {
	m := assTimeRe.FindStringSubmatch(v)
	if m == nil {
		return 0, false
	}
	// ASS uses centiseconds.
	return clockDuration(m[1], m[2], m[3], m[4]+"0"), true
}

// WriteCues serializes cues into the target format.
func WriteCues(cues []Cue, target Format) (string, error) {
	switch target {
	case FormatSRT, "":
		return writeSRT(cues), nil
	case FormatVTT:
		return writeVTT(cues), nil
	case FormatASS, "ssa":
		return writeASS(cues), nil
	}
	return "", fmt.Errorf("unsupported target format %q", target)
}

func writeSRT(cues []Cue) string {
	var b strings.Builder
	for i, c := range cues {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			i+1, srtTimestamp(c.Start), srtTimestamp(c.End), c.Text)
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func writeVTT(cues []Cue) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for _, c := range cues {
		fmt.Fprintf(&b, "%s --> %s\n%s\n\n",
			vttTimestamp(c.Start), vttTimestamp(c.End), c.Text)
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func writeASS(cues []Cue) string {
	var b strings.Builder
	b.WriteString("[Script Info]\nScriptType: v4.00+\n\n")
	b.WriteString("[V4+ Styles]\nFormat: Name, Fontname, Fontsize, PrimaryColour, Bold, Italic, Alignment\n")
	b.WriteString("Style: Default,Arial,20,&H00FFFFFF,0,0,2\n\n")
	b.WriteString("[Events]\nFormat: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, c := range cues {
		text := strings.ReplaceAll(c.Text, "\n", `\N`)
		fmt.Fprintf(&b, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n",
			assTimestamp(c.Start), assTimestamp(c.End), text)
	}
	return b.String()
}

func srtTimestamp(d time.Duration) string {
	h, m, s, ms := splitDuration(d)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

func vttTimestamp(d time.Duration) string {
	h, m, s, ms := splitDuration(d)
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

func assTimestamp(d time.Duration) string {
	h, m, s, ms := splitDuration(d)
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, ms/10)
}

func splitDuration(d time.Duration) (h, m, s, ms int) {
	if d < 0 {
		d = 0
	}
	h = int(d / time.Hour)
	d -= time.Duration(h) * time.Hour
	m = int(d / time.Minute)
	d -= time.Duration(m) * time.Minute
	s = int(d / time.Second)
	d -= time.Duration(s) * time.Second
	ms = int(d / time.Millisecond)
	return
}

// SortCues orders cues by start time, keeping input order for ties.
func SortCues(cues []Cue) {
	sort.SliceStable(cues, func(i, j int) bool {
		return cues[i].Start < cues[j].Start
	})
	for i := range cues {
		cues[i].Index = i + 1
	}
}
