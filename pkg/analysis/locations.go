// pkg/analysis/locations.go - streams per approximate location

package analysis

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"
)

// DefaultPrecision rounds coordinates to one decimal, cells of roughly 10 km
const DefaultPrecision = 1

// LocationCell counts streams whose IP resolved into one rounded
// latitude/longitude cell
type LocationCell struct {
	Lat       float64
	Lon       float64
	Streams   int
	FirstSeen time.Time
	LastSeen  time.Time
}

// LocationCellHeader lists the CSV columns of LocationCell rows
var LocationCellHeader = []string{"lat", "lon", "streams", "first_seen", "last_seen"}

// LocationCells rounds the coordinates of a locations.csv to precision
// decimals and counts streams per cell, busiest cell first. Rows whose
// lookup missed are left out.
func LocationCells(header []string, rows [][]string, precision int) ([]LocationCell, error) {
	if precision < 0 {
		return nil, fmt.Errorf("precision %d: must not be negative", precision)
	}
	tsCol, err := column(header, "timestamp")
	if err != nil {
		return nil, err
	}
	latCol, err := column(header, "lat")
	if err != nil {
		return nil, err
	}
	lonCol, err := column(header, "lon")
	if err != nil {
		return nil, err
	}

	type cellKey struct{ lat, lon float64 }
	cells := make(map[cellKey]*LocationCell)
	for _, row := range rows {
		if len(row) != len(header) {
			continue
		}
		lat, err := strconv.ParseFloat(row[latCol], 64)
		if err != nil {
			continue
		}
		lon, err := strconv.ParseFloat(row[lonCol], 64)
		if err != nil {
			continue
		}
		key := cellKey{roundTo(lat, precision), roundTo(lon, precision)}
		c, ok := cells[key]
		if !ok {
			c = &LocationCell{Lat: key.lat, Lon: key.lon}
			cells[key] = c
		}
		c.Streams++

		ts, err := time.Parse(time.RFC3339, row[tsCol])
		if err != nil {
			continue
		}
		if c.FirstSeen.IsZero() || ts.Before(c.FirstSeen) {
			c.FirstSeen = ts
		}
		if ts.After(c.LastSeen) {
			c.LastSeen = ts
		}
	}

	out := make([]LocationCell, 0, len(cells))
	for _, c := range cells {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Streams != out[j].Streams {
			return out[i].Streams > out[j].Streams
		}
		if out[i].Lat != out[j].Lat {
			return out[i].Lat < out[j].Lat
		}
		return out[i].Lon < out[j].Lon
	})
	return out, nil
}

// LocationCellRows renders cells in LocationCellHeader order
func LocationCellRows(cells []LocationCell, precision int) [][]string {
	rows := make([][]string, len(cells))
	for i, c := range cells {
		rows[i] = []string{
			strconv.FormatFloat(c.Lat, 'f', precision, 64),
			strconv.FormatFloat(c.Lon, 'f', precision, 64),
			strconv.Itoa(c.Streams),
			formatTime(c.FirstSeen),
			formatTime(c.LastSeen),
		}
	}
	return rows
}

func roundTo(v float64, precision int) float64 {
	scale := math.Pow(10, float64(precision))
	r := math.Round(v*scale) / scale
	if r == 0 {
		// no negative zero cells
		return 0
	}
	return r
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
