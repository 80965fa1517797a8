// pkg/analysis/analysis.go - aggregations over enriched CSVs

package analysis

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/cerberussg/historian/pkg/enricher"
)

var (
	ErrMissingColumn = errors.New("missing column")
)

// MinPlayedMs is the playtime a stream needs to count towards the mood
const MinPlayedMs = 60000

// MoodFeatures are the audio features the mood is built from
var MoodFeatures = []string{
	"acousticness", "danceability", "energy", "instrumentalness", "key",
	"liveness", "loudness", "mode", "speechiness", "tempo", "valence",
}

// GenreCount is how many streams were attributed to a genre
type GenreCount struct {
	Genre string
	Count int
}

// GenreCountHeader lists the CSV columns of GenreCount rows
var GenreCountHeader = []string{"genre", "count"}

// GenreCounts explodes the genres column of a genres.csv and counts
// streams per genre, most streamed first. Ties sort by name.
func GenreCounts(header []string, rows [][]string) ([]GenreCount, error) {
	col, err := column(header, "genres")
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, row := range rows {
		if col >= len(row) || row[col] == "" {
			continue
		}
		for _, g := range strings.Split(row[col], enricher.ListSeparator) {
			if g = strings.TrimSpace(g); g != "" {
				counts[g]++
			}
		}
	}

	out := make([]GenreCount, 0, len(counts))
	for g, n := range counts {
		out = append(out, GenreCount{Genre: g, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Genre < out[j].Genre
	})
	return out, nil
}

// GenreCountRows renders counts in GenreCountHeader order
func GenreCountRows(counts []GenreCount) [][]string {
	rows := make([][]string, len(counts))
	for i, c := range counts {
		rows[i] = []string{c.Genre, strconv.Itoa(c.Count)}
	}
	return rows
}

// MonthMood holds the mean z-score of every mood feature within a month.
// NaN marks a feature with no usable value that month.
type MonthMood struct {
	Month   string
	Streams int
	ZScores []float64
}

// MonthlyMoodHeader lists the CSV columns of MonthMood rows
func MonthlyMoodHeader() []string {
	return zscoreHeader("month", "streams")
}

// MonthlyMood standardizes each feature over all streams played longer
// than MinPlayedMs and averages the z-scores per YYYY-MM month. Streams
// without features leave their cells empty and are skipped per feature.
// A feature without spread gets z-score 0.
func MonthlyMood(header []string, rows [][]string) ([]MonthMood, error) {
	tsCol, err := column(header, "timestamp")
	if err != nil {
		return nil, err
	}
	msCol, err := column(header, "ms_played")
	if err != nil {
		return nil, err
	}
	featureCols, err := featureColumns(header)
	if err != nil {
		return nil, err
	}

	var all [][]float64
	byMonth := make(map[string][][]float64)
	for _, row := range rows {
		if len(row) != len(header) {
			continue
		}
		ms, err := strconv.ParseFloat(row[msCol], 64)
		if err != nil || ms <= MinPlayedMs {
			continue
		}
		if len(row[tsCol]) < 7 {
			continue
		}
		values := parseFeatures(row, featureCols)
		month := row[tsCol][:7]
		byMonth[month] = append(byMonth[month], values)
		all = append(all, values)
	}

	means, stds := baseline(all)
	out := make([]MonthMood, 0, len(byMonth))
	for month, samples := range byMonth {
		out = append(out, MonthMood{
			Month:   month,
			Streams: len(samples),
			ZScores: meanZScores(samples, means, stds),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

// MonthlyMoodRows renders moods in MonthlyMoodHeader order
func MonthlyMoodRows(moods []MonthMood) [][]string {
	rows := make([][]string, len(moods))
	for i, m := range moods {
		rows[i] = append([]string{m.Month, strconv.Itoa(m.Streams)}, formatZScores(m.ZScores)...)
	}
	return rows
}

func zscoreHeader(lead ...string) []string {
	header := append([]string{}, lead...)
	for _, f := range MoodFeatures {
		header = append(header, f+"_zscore")
	}
	return header
}

func featureColumns(header []string) ([]int, error) {
	cols := make([]int, len(MoodFeatures))
	for i, f := range MoodFeatures {
		c, err := column(header, f)
		if err != nil {
			return nil, err
		}
		cols[i] = c
	}
	return cols, nil
}

// parseFeatures reads the mood features of row; empty or invalid cells are NaN
func parseFeatures(row []string, cols []int) []float64 {
	values := make([]float64, len(cols))
	for i, c := range cols {
		v, err := strconv.ParseFloat(row[c], 64)
		if err != nil {
			v = math.NaN()
		}
		values[i] = v
	}
	return values
}

// baseline returns per feature mean and sample standard deviation over
// the non-NaN values
func baseline(samples [][]float64) ([]float64, []float64) {
	means := make([]float64, len(MoodFeatures))
	stds := make([]float64, len(MoodFeatures))
	for i := range MoodFeatures {
		col := make([]float64, 0, len(samples))
		for _, s := range samples {
			if !math.IsNaN(s[i]) {
				col = append(col, s[i])
			}
		}
		means[i], stds[i] = meanStd(col)
	}
	return means, stds
}

// zscore is 0 for a feature without spread
func zscore(v, mean, std float64) float64 {
	if std <= 0 {
		return 0
	}
	return (v - mean) / std
}

// meanZScores averages the z-scores of samples per feature; NaN marks a
// feature no sample had a value for
func meanZScores(samples [][]float64, means, stds []float64) []float64 {
	out := make([]float64, len(MoodFeatures))
	for i := range MoodFeatures {
		var sum float64
		n := 0
		for _, s := range samples {
			if math.IsNaN(s[i]) {
				continue
			}
			sum += zscore(s[i], means[i], stds[i])
			n++
		}
		if n == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(n)
	}
	return out
}

func formatZScores(zs []float64) []string {
	out := make([]string, len(zs))
	for i, z := range zs {
		if !math.IsNaN(z) {
			out[i] = strconv.FormatFloat(z, 'f', 4, 64)
		}
	}
	return out
}

// meanStd returns the mean and sample standard deviation
func meanStd(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	if len(xs) < 2 {
		return mean, 0
	}
	var sq float64
	for _, x := range xs {
		sq += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(sq / float64(len(xs)-1))
}

func column(header []string, name string) (int, error) {
	for i, h := range header {
		if h == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%q: %w", name, ErrMissingColumn)
}
