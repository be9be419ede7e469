package timeparse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAcceptedFormats(t *testing.T) {
	utc := time.UTC
	tests := []struct {
		name  string
		value string
		want  time.Time
	}{
		{"rfc2822 with zone", "Mon, 23 Oct 2023 22:22:38 +0000", time.Date(2023, 10, 23, 22, 22, 38, 0, utc)},
		{"rfc2822 with utc comment", "Mon, 23 Oct 2023 22:22:38 +0000 (UTC)", time.Date(2023, 10, 23, 22, 22, 38, 0, utc)},
		{"iso with z", "2023-10-23T22:22:38Z", time.Date(2023, 10, 23, 22, 22, 38, 0, utc)},
		{"iso without z", "2023-10-23T22:22:38", time.Date(2023, 10, 23, 22, 22, 38, 0, utc)},
		{"iso minutes z", "2023-10-23T22:22Z", time.Date(2023, 10, 23, 22, 22, 0, 0, utc)},
		{"iso hours z", "2023-10-23T22Z", time.Date(2023, 10, 23, 22, 0, 0, 0, utc)},
		{"space separated", "2023-10-23 22:22:38", time.Date(2023, 10, 23, 22, 22, 38, 0, utc)},
		{"slash separated", "2023/10/23 22:22:38", time.Date(2023, 10, 23, 22, 22, 38, 0, utc)},
		{"local day first", "23/10/2023 22:22:38", time.Date(2023, 10, 23, 22, 22, 38, 0, utc)},
		{"date only", "2023-10-23", time.Date(2023, 10, 23, 0, 0, 0, 0, utc)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.value, utc)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %v got %v", tt.want, got)
		})
	}
}

func TestParseNormalizesZone(t *testing.T) {
	warsaw := Location("Europe/Warsaw")

	got, err := Parse("Mon, 23 Oct 2023 22:22:38 +0000", warsaw)
	require.NoError(t, err)
	assert.Equal(t, warsaw, got.Location())
	// Same instant, presented in the configured zone.
	utc, _ := Parse("2023-10-23T22:22:38Z", time.UTC)
	assert.True(t, got.Equal(utc))
}

func TestParseRejectsUnknownFormat(t *testing.T) {
	_, err := Parse("next tuesday-ish", time.UTC)
	assert.Error(t, err)

	_, err = Parse("", time.UTC)
	assert.Error(t, err)
}

func TestLocationFallback(t *testing.T) {
	assert.Equal(t, time.UTC, Location(""))
	assert.Equal(t, time.UTC, Location("Not/AZone"))
	assert.Equal(t, "Europe/Warsaw", Location("Europe/Warsaw").String())
}
