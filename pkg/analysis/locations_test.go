package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocationCells(t *testing.T) {
	header := []string{"timestamp", "ip_addr", "lat", "lon", "city"}
	rows := [][]string{
		{"2021-03-02T08:00:00Z", "203.0.113.7", "52.5200", "13.4050", "Berlin"},
		{"2021-03-01T07:00:00Z", "203.0.113.8", "52.4900", "13.3700", "Berlin"},
		{"2021-03-03T08:00:00Z", "198.51.100.1", "48.1351", "11.5820", "Munich"},
		{"2021-03-04T08:00:00Z", "198.51.100.2", "-0.0400", "0.0100", "Null Island"},
		{"2021-03-05T08:00:00Z", "192.0.2.1", "", "", ""}, // lookup missed
	}

	cells, err := LocationCells(header, rows, 1)
	require.NoError(t, err)
	require.Len(t, cells, 3)

	berlin := cells[0]
	assert.Equal(t, 52.5, berlin.Lat)
	assert.Equal(t, 13.4, berlin.Lon)
	assert.Equal(t, 2, berlin.Streams)
	assert.Equal(t, time.Date(2021, 3, 1, 7, 0, 0, 0, time.UTC), berlin.FirstSeen)
	assert.Equal(t, time.Date(2021, 3, 2, 8, 0, 0, 0, time.UTC), berlin.LastSeen)

	// ties sort by latitude
	assert.Equal(t, 0.0, cells[1].Lat)
	assert.Equal(t, 48.1, cells[2].Lat)

	rendered := LocationCellRows(cells, 1)
	assert.Equal(t, []string{"52.5", "13.4", "2", "2021-03-01T07:00:00Z", "2021-03-02T08:00:00Z"}, rendered[0])
	assert.Equal(t, "0.0", rendered[1][0], "no negative zero")
}

func TestLocationCellsPrecision(t *testing.T) {
	header := []string{"timestamp", "lat", "lon"}
	rows := [][]string{
		{"2021-03-01T07:00:00Z", "52.31", "13.40"},
		{"2021-03-01T08:00:00Z", "52.49", "13.37"},
	}

	coarse, err := LocationCells(header, rows, 0)
	require.NoError(t, err)
	assert.Len(t, coarse, 1)

	fine, err := LocationCells(header, rows, 2)
	require.NoError(t, err)
	assert.Len(t, fine, 2)

	_, err = LocationCells(header, rows, -1)
	assert.Error(t, err)
}

func TestLocationCellsMissingColumn(t *testing.T) {
	_, err := LocationCells([]string{"timestamp", "lat"}, nil, 1)
	assert.ErrorIs(t, err, ErrMissingColumn)
}
