package subtitle

import (
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// minDetectionConfidence is the chardet confidence below which the
// detector's answer is distrusted and common encodings are probed instead.
const minDetectionConfidence = 70

// fallbackEncodings are probed in order when statistical detection is not
// confident. The single-byte maps always decode, so utf-8 must come first.
var fallbackEncodings = []struct {
	name string
	enc  encoding.Encoding
}{
	{"utf-8", unicode.UTF8},
	{"latin-1", charmap.ISO8859_1},
	{"cp1252", charmap.Windows1252},
	{"iso-8859-1", charmap.ISO8859_1},
}

// DetectEncoding names the likely encoding of raw subtitle bytes.
func DetectEncoding(content []byte) string {
	detector := chardet.NewTextDetector()
	result, err := detector.DetectBest(content)

	if err == nil && result.Confidence >= minDetectionConfidence {
		return normalizeEncodingName(result.Charset)
	}

	for _, fb := range fallbackEncodings {
		if fb.name == "utf-8" {
			if utf8.Valid(content) {
				return fb.name
			}
			continue
		}
		if _, err := fb.enc.NewDecoder().Bytes(content); err == nil {
			return fb.name
		}
	}

	return "utf-8"
}

// DecodeText converts raw bytes to a UTF-8 string using the named
// encoding, replacing undecodable bytes rather than failing.
func DecodeText(content []byte, encodingName string) string {
	enc := encodingByName(encodingName)
	if enc == nil {
		return string(content)
	}
	decoded, err := enc.NewDecoder().Bytes(content)
	if err != nil {
		return string(content)
	}
	return string(decoded)
}

func encodingByName(name string) encoding.Encoding {
	switch normalizeEncodingName(name) {
	case "utf-8":
		return unicode.UTF8
	case "latin-1", "iso-8859-1":
		return charmap.ISO8859_1
	case "cp1252", "windows-1252":
		return charmap.Windows1252
	case "iso-8859-2":
		return charmap.ISO8859_2
	case "iso-8859-5":
		return charmap.ISO8859_5
	case "koi8-r":
		return charmap.KOI8R
	}
	return unicode.UTF8
}

func normalizeEncodingName(name string) string {
	switch name {
	case "UTF-8", "utf-8":
		return "utf-8"
	case "ISO-8859-1":
		return "iso-8859-1"
	case "windows-1252", "Windows-1252":
		return "cp1252"
	case "ISO-8859-2":
		return "iso-8859-2"
	case "ISO-8859-5":
		return "iso-8859-5"
	case "KOI8-R":
		return "koi8-r"
	}
	return name
}
