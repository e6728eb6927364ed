package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"ratehub/internal/rates"
)

// ExportOptions hold parameters for exporting a pair's rate history.
type ExportOptions struct {
	Pair      string
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

type exportPoint struct {
	at     time.Time
	rate   float64
	source string
}

// Export renders one pair's history as CSV and/or a PNG chart.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	pair := strings.ToUpper(strings.TrimSpace(opts.Pair))
	if _, _, err := rates.SplitKey(pair); err != nil {
		return fmt.Errorf("invalid --pair value %q: expected FROM_TO", opts.Pair)
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, err := a.openStore()
	if err != nil {
		return err
	}
	entries, err := store.ReadHistory()
	if err != nil {
		return err
	}

	points := make([]exportPoint, 0, len(entries))
	for _, entry := range entries {
		if rates.Key(entry.FromCurrency, entry.ToCurrency) != pair {
			continue
		}
		at, parseErr := rates.ParseTime(entry.Timestamp)
		if parseErr != nil {
			a.Logger.Warn().Str("id", entry.ID).Str("timestamp", entry.Timestamp).Msg("skipping entry with unparsable timestamp")
			continue
		}
		points = append(points, exportPoint{at: at, rate: entry.Rate, source: entry.Source})
	}
	if len(points) == 0 {
		a.Logger.Info().Str("pair", pair).Msg("no history entries found for export")
		return nil
	}

	sort.Slice(points, func(i, j int) bool { return points[i].at.Before(points[j].at) })
	downsampled := downsamplePoints(points, opts.MaxPoints)
	a.Logger.Info().Str("pair", pair).Int("total", len(points)).Int("exported", len(downsampled)).Msg("exporting history")

	if opts.CSVPath != "" {
		if err := writeHistoryCSV(opts.CSVPath, pair, downsampled); err != nil {
			return err
		}
	}
	if opts.PNGPath != "" {
		if err := writeHistoryPNG(opts.PNGPath, pair, downsampled); err != nil {
			return err
		}
	}
	return nil
}

func downsamplePoints(points []exportPoint, max int) []exportPoint {
	if max <= 0 || len(points) <= max {
		return points
	}

	result := make([]exportPoint, 0, max)
	step := float64(len(points)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(points) {
			idx = len(points) - 1
		}
		result = append(result, points[idx])
	}
	return result
}

func writeHistoryCSV(path, pair string, points []exportPoint) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"timestamp", "pair", "rate", "source"}); err != nil {
		return err
	}
	for _, point := range points {
		record := []string{
			point.at.UTC().Format(time.RFC3339),
			pair,
			strconv.FormatFloat(point.rate, 'f', -1, 64),
			point.source,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return writer.Error()
}

func writeHistoryPNG(path, pair string, points []exportPoint) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(points))
	y := make([]float64, len(points))
	for i, point := range points {
		x[i] = point.at
		y[i] = point.rate
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: fmt.Sprintf("Rate (%s)", pair),
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.4f")
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    pair,
				XValues: x,
				YValues: y,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
