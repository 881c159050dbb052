package identify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMovieRelease(t *testing.T) {
	info := Parse("Inception.2010.1080p.BluRay.x264-SPARKS.mkv")

	assert.Equal(t, "Inception SPARKS", info.Title)
	assert.Equal(t, 2010, info.Year)
	assert.Equal(t, "1080p", info.Quality)
	assert.Equal(t, "BluRay", info.Source)
	assert.Equal(t, "H.264", info.Codec)
	assert.False(t, info.IsSeries)
}

func TestParseSeriesRelease(t *testing.T) {
	info := Parse("Breaking.Bad.S05E14.720p.HDTV.x265.mkv")

	assert.True(t, info.IsSeries)
	assert.Equal(t, 5, info.Season)
	assert.Equal(t, 14, info.Episode)
	assert.Equal(t, "720p", info.Quality)
	assert.Equal(t, "HDTV", info.Source)
	assert.Equal(t, "HEVC", info.Codec)
	assert.Equal(t, "Breaking Bad", info.Title)
}

func TestParseQualityVariants(t *testing.T) {
	tests := []struct {
		name    string
		quality string
	}{
		{"Movie.2160p.mkv", "2160p"},
		{"Movie.4K.mkv", "2160p"},
		{"Movie.UHD.mkv", "2160p"},
		{"Movie.480p.mkv", "480p"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.quality, Parse(tt.name).Quality, tt.name)
	}
}

func TestParseSourceVariants(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"Movie.BDRip.mkv", "BluRay"},
		{"Movie.BRRip.mkv", "BluRay"},
		{"Movie.WEB-DL.mkv", "WEB-DL"},
		{"Movie.WebRip.mkv", "WEBRip"},
		{"Movie.DVDRip.mkv", "DVDRip"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.source, Parse(tt.name).Source, tt.name)
	}
}

func TestParseHDR(t *testing.T) {
	assert.True(t, Parse("Movie.2160p.HDR10.mkv").HDR)
	assert.False(t, Parse("Movie.1080p.mkv").HDR)
}

func TestParsePlainTitle(t *testing.T) {
	info := Parse("Some Movie Title")
	assert.Equal(t, "Some Movie Title", info.Title)
	assert.Zero(t, info.Year)
	assert.Empty(t, info.Quality)
}

func TestNormalizedTitle(t *testing.T) {
	assert.Equal(t, "inception", NormalizedTitle("Inception.2010.1080p.BluRay.mkv"))
}
