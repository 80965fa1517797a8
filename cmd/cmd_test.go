package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/cerberussg/historian/pkg/enricher"
	"github.com/cerberussg/historian/pkg/jobs"
	"github.com/stretchr/testify/assert"
)

func TestDisplayMasksSecrets(t *testing.T) {
	tests := []struct {
		key   string
		value interface{}
		want  interface{}
	}{
		{"spotify.client_secret", "abcdefgh", "****efgh"},
		{"spotify.token", "abc", "***"},
		{"api.ipinfo.token", "", ""},
		{"spotify.client_id", "visible", "visible"},
		{"pipeline.refresh_every", 5000, 5000},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, display(tt.key, tt.value))
		})
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable([]string{"Genre", "Count"}, [][]string{{"rock", "3"}, {"jazz"}}, []columnAlignment{alignLeft, alignRight})

	assert.Contains(t, out, "Genre")
	assert.Contains(t, out, "rock")
	assert.Contains(t, out, "jazz")
	assert.Equal(t, "", renderTable(nil, nil, nil))
}

func TestSummaryTable(t *testing.T) {
	reports := []jobs.Report{
		{
			RunID:   "run-1",
			Job:     "features",
			Subject: "001",
			Records: 4,
			Matched: 3,
			Stats:   enricher.Stats{Identifiers: 2, Found: 1, Missing: 1, RateLimited: 1, Elapsed: 1500 * time.Millisecond},
		},
		{RunID: "run-2", Job: "genres", Subject: "001", Skipped: true},
	}

	out := summaryTable(reports)

	assert.Contains(t, out, "3 (75.0%)")
	assert.Contains(t, out, "Throttled")
	assert.Contains(t, out, "skipped")
	assert.Contains(t, out, "run-2")
	assert.Equal(t, 1, strings.Count(out, "done"))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0.0, percent(1, 0))
	assert.Equal(t, 50.0, percent(1, 2))
}

func TestValidTimeRange(t *testing.T) {
	assert.NoError(t, validTimeRange("short_term"))
	assert.NoError(t, validTimeRange("long_term"))
	assert.Error(t, validTimeRange("forever"))
}
