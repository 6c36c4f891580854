package history

import (
	"math"
	"sort"
	"time"
)

// Stats summarizes a trailing window of daily unique-user counts.
type Stats struct {
	Mean    float64
	Median  float64
	StdDev  float64
	Max     int
	MaxDate time.Time
}

// Trend is the least-squares line over a series, indexed by day offset.
type Trend struct {
	Slope     float64
	Intercept float64
}

func Summarize(rows []Row) Stats {
	if len(rows) == 0 {
		return Stats{}
	}

	var sum float64
	stats := Stats{Max: rows[0].UniqueUsers, MaxDate: rows[0].Date}
	values := make([]float64, len(rows))
	for i, row := range rows {
		values[i] = float64(row.UniqueUsers)
		sum += values[i]
		if row.UniqueUsers > stats.Max {
			stats.Max = row.UniqueUsers
			stats.MaxDate = row.Date
		}
	}
	stats.Mean = sum / float64(len(rows))

	var sq float64
	for _, v := range values {
		d := v - stats.Mean
		sq += d * d
	}
	stats.StdDev = math.Sqrt(sq / float64(len(rows)))

	sort.Float64s(values)
	mid := len(values) / 2
	if len(values)%2 == 0 {
		stats.Median = (values[mid-1] + values[mid]) / 2
	} else {
		stats.Median = values[mid]
	}
	return stats
}

// FitTrend fits unique-user counts against row index. Fewer than two rows
// yield a flat line at the only value (or zero).
func FitTrend(rows []Row) Trend {
	n := len(rows)
	if n == 0 {
		return Trend{}
	}
	if n == 1 {
		return Trend{Intercept: float64(rows[0].UniqueUsers)}
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, row := range rows {
		x := float64(i)
		y := float64(row.UniqueUsers)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return Trend{Intercept: sumY / fn}
	}
	slope := (fn*sumXY - sumX*sumY) / denom
	return Trend{
		Slope:     slope,
		Intercept: (sumY - slope*sumX) / fn,
	}
}

// At evaluates the trend line at day offset x.
func (t Trend) At(x float64) float64 {
	return t.Intercept + t.Slope*x
}
