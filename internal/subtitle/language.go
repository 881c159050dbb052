package subtitle

import (
	"regexp"
	"strings"
)

// Language pairs an ISO 639-1 code with its display name.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// supportedLanguages is the ordered catalog the retrieval surface accepts.
// Priority languages come first.
var supportedLanguages = []Language{
	{"en", "English"},
	{"es", "Spanish"},
	{"fr", "French"},
	{"de", "German"},
	{"hi", "Hindi"},
	{"ta", "Tamil"},
	{"si", "Sinhala"},
	{"ar", "Arabic"},
	{"ru", "Russian"},
	{"zh", "Chinese"},
	{"it", "Italian"},
	{"pt", "Portuguese"},
	{"ja", "Japanese"},
	{"ko", "Korean"},
	{"nl", "Dutch"},
	{"pl", "Polish"},
	{"tr", "Turkish"},
	{"sv", "Swedish"},
	{"da", "Danish"},
	{"fi", "Finnish"},
	{"no", "Norwegian"},
	{"cs", "Czech"},
	{"hu", "Hungarian"},
	{"ro", "Romanian"},
	{"el", "Greek"},
	{"he", "Hebrew"},
	{"th", "Thai"},
	{"vi", "Vietnamese"},
	{"id", "Indonesian"},
	{"uk", "Ukrainian"},
	{"bg", "Bulgarian"},
	{"hr", "Croatian"},
	{"sr", "Serbian"},
}

var languageByCode = func() map[string]Language {
	m := make(map[string]Language, len(supportedLanguages))
	for _, l := range supportedLanguages {
		m[l.Code] = l
	}
	return m
}()

// aliasToCode maps ISO 639-2 codes and English language names to 639-1.
var aliasToCode = map[string]string{
	"eng": "en", "english": "en",
	"spa": "es", "spanish": "es",
	"fra": "fr", "fre": "fr", "french": "fr",
	"deu": "de", "ger": "de", "german": "de",
	"hin": "hi", "hindi": "hi",
	"tam": "ta", "tamil": "ta",
	"sin": "si", "sinhala": "si",
	"ara": "ar", "arabic": "ar",
	"rus": "ru", "russian": "ru",
	"zho": "zh", "chi": "zh", "chinese": "zh",
	"ita": "it", "italian": "it",
	"por": "pt", "portuguese": "pt",
	"jpn": "ja", "japanese": "ja",
	"kor": "ko", "korean": "ko",
	"nld": "nl", "dut": "nl", "dutch": "nl",
	"pol": "pl", "polish": "pl",
	"tur": "tr", "turkish": "tr",
	"swe": "sv", "swedish": "sv",
	"dan": "da", "danish": "da",
	"fin": "fi", "finnish": "fi",
	"nor": "no", "norwegian": "no",
	"ces": "cs", "cze": "cs", "czech": "cs",
	"hun": "hu", "hungarian": "hu",
	"ron": "ro", "rum": "ro", "romanian": "ro",
	"ell": "el", "gre": "el", "greek": "el",
	"heb": "he", "hebrew": "he",
	"tha": "th", "thai": "th",
	"vie": "vi", "vietnamese": "vi",
	"ind": "id", "indonesian": "id",
	"ukr": "uk", "ukrainian": "uk",
	"bul": "bg", "bulgarian": "bg",
	"hrv": "hr", "croatian": "hr",
	"srp": "sr", "serbian": "sr",
}

// SupportedLanguages returns the catalog in priority order.
func SupportedLanguages() []Language {
	out := make([]Language, len(supportedLanguages))
	copy(out, supportedLanguages)
	return out
}

// IsSupportedLanguage reports whether code is a known ISO 639-1 code.
func IsSupportedLanguage(code string) bool {
	_, ok := languageByCode[strings.ToLower(code)]
	return ok
}

// LanguageName returns the display name for a code, or the code itself
// when unknown.
func LanguageName(code string) string {
	if l, ok := languageByCode[strings.ToLower(code)]; ok {
		return l.Name
	}
	return code
}

// NormalizeLanguage resolves 639-2 codes and English names to 639-1.
// Unknown inputs come back lowercased and untouched.
func NormalizeLanguage(v string) string {
	lower := strings.ToLower(strings.TrimSpace(v))
	if _, ok := languageByCode[lower]; ok {
		return lower
	}
	if code, ok := aliasToCode[lower]; ok {
		return code
	}
	return lower
}

var filenameLangRe = regexp.MustCompile(`(?i)\.([a-z]{2,3}|[a-z]{4,12})\.(?:srt|sub|ass|ssa|vtt|idx|smi)$`)

// DetectFilenameLanguage pulls a language tag out of a subtitle filename,
// e.g. "movie.en.srt" or "movie.english.srt". Returns ("", false) when the
// filename carries no recognizable tag.
func DetectFilenameLanguage(filename string) (string, bool) {
	m := filenameLangRe.FindStringSubmatch(filename)
	if m == nil {
		return "", false
	}

	code := NormalizeLanguage(m[1])
	if _, ok := languageByCode[code]; ok {
		return code, true
	}
	return "", false
}
