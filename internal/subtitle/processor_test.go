package subtitle

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSRT = `1
00:00:01,000 --> 00:00:02,500
Hello

2
00:00:03,000 --> 00:00:05,000
How are you?
Fine, thanks.
`

const sampleVTT = `WEBVTT

00:00:01.000 --> 00:00:02.500
Hello

00:00:03.000 --> 00:00:05.000
How are you?
Fine, thanks.
`

func newTestProcessor() *Processor {
	return NewProcessor(5 * 1024 * 1024)
}

func TestParseSRT(t *testing.T) {
	cues, err := ParseCues(sampleSRT)
	require.NoError(t, err)
	require.Len(t, cues, 2)

	assert.Equal(t, time.Second, cues[0].Start)
	assert.Equal(t, 2500*time.Millisecond, cues[0].End)
	assert.Equal(t, "Hello", cues[0].Text)
	assert.Equal(t, "How are you?\nFine, thanks.", cues[1].Text)
}

func TestParseVTTWithoutHours(t *testing.T) {
	vtt := "WEBVTT\n\n01:30.000 --> 01:32.000\nShort form\n"
	cues, err := ParseCues(vtt)
	require.NoError(t, err)
	require.Len(t, cues, 1)
	assert.Equal(t, 90*time.Second, cues[0].Start)
}

func TestParseASS(t *testing.T) {
	ass := `[Script Info]
Title: Test Track
ScriptType: v4.00+

[Events]
Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
Dialogue: 0,0:00:01.00,0:00:02.50,Default,,0,0,0,,Hello
Dialogue: 0,0:00:03.00,0:00:05.00,Default,,0,0,0,,Line one\NLine two
`
	cues, err := ParseCues(ass)
	require.NoError(t, err)
	require.Len(t, cues, 2)
	assert.Equal(t, time.Second, cues[0].Start)
	assert.Equal(t, "Line one\nLine two", cues[1].Text)
}

func TestConvertVTTToSRT(t *testing.T) {
	p := newTestProcessor()
	out, err := p.ConvertFormat(sampleVTT, FormatSRT)
	require.NoError(t, err)

	assert.Contains(t, out, "1\n00:00:01,000 --> 00:00:02,500\nHello")
	assert.NotContains(t, out, "WEBVTT")
}

func TestConvertRoundTrip(t *testing.T) {
	p := newTestProcessor()

	vtt, err := p.ConvertFormat(sampleSRT, FormatVTT)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(vtt, "WEBVTT"))

	back, err := p.ConvertFormat(vtt, FormatSRT)
	require.NoError(t, err)

	orig, _ := ParseCues(sampleSRT)
	got, _ := ParseCues(back)
	assert.Equal(t, orig, got)
}

func TestConvertToASS(t *testing.T) {
	p := newTestProcessor()
	out, err := p.ConvertFormat(sampleSRT, FormatASS)
	require.NoError(t, err)
	assert.Contains(t, out, "[Script Info]")
	assert.Contains(t, out, "Dialogue: 0,0:00:01.00,0:00:02.50,Default,,0,0,0,,Hello")
}

func TestCleanStripsMarkupAndMojibake(t *testing.T) {
	p := newTestProcessor()

	in := "\uFEFF<i>Hello</i> {\\an8}there\r\nItâ€™s fine\n\n\n\nEnd"
	out := p.Clean(in)

	assert.Equal(t, "Hello there\nIt's fine\n\nEnd", out)
}

func TestValidate(t *testing.T) {
	p := newTestProcessor()

	tests := []struct {
		name    string
		content []byte
		valid   bool
	}{
		{"srt content", []byte(sampleSRT), true},
		{"vtt content", []byte(sampleVTT), true},
		{"empty", nil, false},
		{"garbage", []byte("not a subtitle at all"), false},
		{"bare timing lines", []byte("00:00:01 intro\n00:00:05 middle\n00:00:09 end\n"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := p.Validate(tt.content)
			assert.Equal(t, tt.valid, ok, reason)
		})
	}
}

func TestValidateRejectsOversize(t *testing.T) {
	p := NewProcessor(16)
	ok, reason := p.Validate([]byte(sampleSRT))
	assert.False(t, ok)
	assert.Equal(t, "subtitle file too large", reason)
}

func TestProcessVTTToSRT(t *testing.T) {
	p := newTestProcessor()

	out, status := p.Process([]byte(sampleVTT), FormatSRT)
	require.Equal(t, "success", status)
	assert.Contains(t, out, "00:00:01,000 --> 00:00:02,500")
	assert.Contains(t, out, "Hello")
}

func TestProcessRejectsEmptyCues(t *testing.T) {
	p := newTestProcessor()

	// Valid-looking header with no actual events.
	out, status := p.Process([]byte("WEBVTT\n\n"), FormatSRT)
	assert.Empty(t, out)
	assert.Equal(t, "no subtitle entries found", status)
}

func TestShiftTiming(t *testing.T) {
	p := newTestProcessor()

	out, err := p.ShiftTiming(sampleSRT, 1500*time.Millisecond)
	require.NoError(t, err)
	assert.Contains(t, out, "00:00:02,500 --> 00:00:04,000")

	// Negative shifts clamp at zero.
	out, err = p.ShiftTiming(sampleSRT, -10*time.Second)
	require.NoError(t, err)
	assert.Contains(t, out, "00:00:00,000 --> 00:00:00,000")
}

func TestMergeSortsByStart(t *testing.T) {
	p := newTestProcessor()

	late := "1\n00:00:10,000 --> 00:00:11,000\nLate\n"
	early := "1\n00:00:01,000 --> 00:00:02,000\nEarly\n"

	out, err := p.Merge([]string{late, early})
	require.NoError(t, err)

	cues, err := ParseCues(out)
	require.NoError(t, err)
	require.Len(t, cues, 2)
	assert.Equal(t, "Early", cues[0].Text)
	assert.Equal(t, "Late", cues[1].Text)
}

func TestPreview(t *testing.T) {
	p := newTestProcessor()

	got := p.Preview(sampleSRT, 1)
	assert.Equal(t, "00:00:01.000: Hello\n... and 1 more entries", got)

	assert.Equal(t, "Preview not available", p.Preview("garbage", 5))
}

func TestDetectEncodingUTF8(t *testing.T) {
	// Plain ASCII with a confident detector result still maps to utf-8
	// or a compatible fallback.
	enc := DetectEncoding([]byte(sampleSRT))
	text := DecodeText([]byte(sampleSRT), enc)
	assert.Contains(t, text, "Hello")
}

func TestDecodeTextLatin1(t *testing.T) {
	// 0xE9 is é in latin-1 and invalid as standalone UTF-8.
	raw := []byte{'c', 'a', 'f', 0xE9}
	assert.Equal(t, "café", DecodeText(raw, "latin-1"))
}

func TestExtractInfo(t *testing.T) {
	english := `1
00:00:01,000 --> 00:00:04,000
The quick brown fox jumps over the lazy dog and then runs away.

2
00:00:05,000 --> 00:00:09,000
This is a longer passage of English text that should be recognized.
`
	info := ExtractInfo(english)

	assert.Equal(t, FormatSRT, info.Format)
	assert.Equal(t, 2, info.Entries)
	assert.InDelta(t, 9.0, info.Duration, 0.001)
}

func TestExtractInfoASSTitle(t *testing.T) {
	ass := `[Script Info]
Title: My Movie
ScriptType: v4.00+

[Events]
Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
Dialogue: 0,0:00:01.00,0:00:02.00,Default,,0,0,0,,Hello there
`
	info := ExtractInfo(ass)
	assert.Equal(t, FormatASS, info.Format)
	assert.Equal(t, "My Movie", info.Title)
}

func TestLanguageHelpers(t *testing.T) {
	assert.True(t, IsSupportedLanguage("en"))
	assert.True(t, IsSupportedLanguage("SI"))
	assert.False(t, IsSupportedLanguage("xx"))

	assert.Equal(t, "English", LanguageName("en"))
	assert.Equal(t, "xx", LanguageName("xx"))

	assert.Equal(t, "en", NormalizeLanguage("ENG"))
	assert.Equal(t, "de", NormalizeLanguage("german"))
	assert.Equal(t, "zz", NormalizeLanguage(" ZZ "))
}

func TestDetectFilenameLanguage(t *testing.T) {
	tests := []struct {
		filename string
		code     string
		ok       bool
	}{
		{"movie.en.srt", "en", true},
		{"movie.eng.srt", "en", true},
		{"movie.english.srt", "en", true},
		{"Movie.2010.FR.vtt", "fr", true},
		{"movie.fr.vtt", "fr", true},
		{"movie.srt", "", false},
	}

	for _, tt := range tests {
		code, ok := DetectFilenameLanguage(tt.filename)
		assert.Equal(t, tt.ok, ok, tt.filename)
		assert.Equal(t, tt.code, code, tt.filename)
	}
}
