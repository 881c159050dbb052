// Package identify parses release names into structured video metadata.
package identify

import (
	"regexp"
	"strconv"
	"strings"
)

// ReleaseInfo is the metadata extracted from a release or file name.
type ReleaseInfo struct {
	Title    string `json:"title"`
	Year     int    `json:"year,omitempty"`
	Quality  string `json:"quality,omitempty"` // 2160p, 1080p, 720p, 480p
	Source   string `json:"source,omitempty"`  // BluRay, WEB-DL, WEBRip, HDTV, DVDRip
	Codec    string `json:"codec,omitempty"`   // HEVC, H.264, AV1
	HDR      bool   `json:"hdr,omitempty"`
	IsSeries bool   `json:"is_series,omitempty"`
	Season   int    `json:"season,omitempty"`
	Episode  int    `json:"episode,omitempty"`
}

// compiledPatterns holds the regexes used during parsing. Compiled once at
// package init.
type compiledPatterns struct {
	Year       *regexp.Regexp
	Resolution *regexp.Regexp
	Source     *regexp.Regexp
	Codec      *regexp.Regexp
	HDR        *regexp.Regexp
	SxxExx     *regexp.Regexp
	Extension  *regexp.Regexp
	Separators *regexp.Regexp
	Spaces     *regexp.Regexp
}

var patterns = &compiledPatterns{
	Year:       regexp.MustCompile(`\b(19|20)\d{2}\b`),
	Resolution: regexp.MustCompile(`(?i)\b(2160p|1080p|720p|480p|4K|UHD)\b`),
	Source:     regexp.MustCompile(`(?i)\b(BluRay|Blu-Ray|BDRip|BRRip|WEB-DL|WEBDL|WebRip|HDRip|HDTV|DVDRip|CAMRip)\b`),
	Codec:      regexp.MustCompile(`(?i)\b([xh]\.?26[45]|HEVC|AVC|AV1)\b`),
	HDR:        regexp.MustCompile(`(?i)\b(HDR10?\+?|DolbyVision|DV)\b`),
	SxxExx:     regexp.MustCompile(`[Ss](\d{1,2})[Ee](\d{1,2})`),
	Extension:  regexp.MustCompile(`(?i)\.(mkv|mp4|avi|wmv|mov|m4v|webm|ts|srt|sub|ass|ssa|vtt)$`),
	Separators: regexp.MustCompile(`[._\-\[\]()]`),
	Spaces:     regexp.MustCompile(`\s+`),
}

// Parse extracts release metadata from a file or release name. The cleaned
// title is whatever remains after stripping year, quality, source, codec,
// and episode markers.
func Parse(name string) ReleaseInfo {
	info := ReleaseInfo{}

	base := patterns.Extension.ReplaceAllString(name, "")

	if m := patterns.Year.FindString(base); m != "" {
		info.Year, _ = strconv.Atoi(m)
	}
	if m := patterns.Resolution.FindString(base); m != "" {
		info.Quality = normalizeResolution(m)
	}
	if m := patterns.Source.FindString(base); m != "" {
		info.Source = normalizeSource(m)
	}
	if m := patterns.Codec.FindString(base); m != "" {
		info.Codec = normalizeCodec(m)
	}
	info.HDR = patterns.HDR.MatchString(base)

	if m := patterns.SxxExx.FindStringSubmatch(base); m != nil {
		info.IsSeries = true
		info.Season, _ = strconv.Atoi(m[1])
		info.Episode, _ = strconv.Atoi(m[2])
	}

	info.Title = cleanTitle(base)

	return info
}

// cleanTitle strips release markers and separators, leaving a searchable
// title.
func cleanTitle(base string) string {
	title := base
	for _, re := range []*regexp.Regexp{
		patterns.SxxExx,
		patterns.Year,
		patterns.Resolution,
		patterns.Source,
		patterns.Codec,
		patterns.HDR,
	} {
		title = re.ReplaceAllString(title, "")
	}

	title = patterns.Separators.ReplaceAllString(title, " ")
	title = patterns.Spaces.ReplaceAllString(title, " ")

	return strings.TrimSpace(title)
}

// NormalizedTitle lowercases a cleaned title for lookup keys.
func NormalizedTitle(name string) string {
	return strings.ToLower(Parse(name).Title)
}

func normalizeResolution(match string) string {
	upper := strings.ToUpper(match)
	switch {
	case strings.Contains(upper, "2160") || upper == "4K" || upper == "UHD":
		return "2160p"
	case strings.Contains(upper, "1080"):
		return "1080p"
	case strings.Contains(upper, "720"):
		return "720p"
	case strings.Contains(upper, "480"):
		return "480p"
	}
	return match
}

func normalizeSource(match string) string {
	upper := strings.ToUpper(match)
	switch {
	case strings.Contains(upper, "BLURAY") || strings.Contains(upper, "BLU-RAY") ||
		strings.Contains(upper, "BDRIP") || strings.Contains(upper, "BRRIP"):
		return "BluRay"
	case strings.Contains(upper, "WEB-DL") || strings.Contains(upper, "WEBDL"):
		return "WEB-DL"
	case strings.Contains(upper, "WEBRIP"):
		return "WEBRip"
	case strings.Contains(upper, "HDTV"):
		return "HDTV"
	case strings.Contains(upper, "HDRIP"):
		return "HDRip"
	case strings.Contains(upper, "DVDRIP"):
		return "DVDRip"
	case strings.Contains(upper, "CAMRIP"):
		return "CAMRip"
	}
	return match
}

func normalizeCodec(match string) string {
	upper := strings.ToUpper(strings.ReplaceAll(match, ".", ""))
	switch {
	case strings.Contains(upper, "265") || strings.Contains(upper, "HEVC"):
		return "HEVC"
	case strings.Contains(upper, "264") || strings.Contains(upper, "AVC"):
		return "H.264"
	case strings.Contains(upper, "AV1"):
		return "AV1"
	}
	return match
}
