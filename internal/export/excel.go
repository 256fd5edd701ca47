package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
	"call-outcomes-go/internal/logger"
	"call-outcomes-go/internal/types"
)

const (
	callsSheet = "Calls"
	statsSheet = "Stats"

	// excel refuses longer cell values
	maxCellChars = 32767
)

var callsHeader = []interface{}{
	"ID", "Name", "Phone", "Status", "Duration (s)", "Start Time",
	"Category", "Comment", "Confidence (%)", "Model", "Transcript",
}

// row fill per category
var categoryColors = map[types.Category]string{
	types.Lead:            "90EE90",
	types.Completed:       "32CD32",
	types.NotInterested:   "FFB6C1",
	types.NoAnswer:        "FFD700",
	types.Failed:          "FF6B6B",
	types.Hangup:          "FFA500",
	types.Voicemail:       "ADD8E6",
	types.WrongNumber:     "DDA0DD",
	types.Recall:          "98FB98",
	types.NonViableClient: "F0E68C",
}

type Options struct {
	MaxRows  int
	Location *time.Location
	Logger   *logger.Logger
}

// Exporter renders analysis results as an xlsx workbook.
type Exporter struct {
	maxRows int
	loc     *time.Location
	log     *logger.Logger
}

func New(opts Options) *Exporter {
	if opts.MaxRows <= 0 {
		opts.MaxRows = 10000
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	log := opts.Logger
	if log == nil {
		log = logger.New()
	}
	return &Exporter{maxRows: opts.MaxRows, loc: opts.Location, log: log.Component("export")}
}

// Meta describes the run being exported.
type Meta struct {
	StartDate   string
	EndDate     string
	GeneratedAt time.Time
}

// Filename is the suggested attachment name for a date range.
func Filename(startDate, endDate string) string {
	return fmt.Sprintf("call-analysis_%s_%s.xlsx", startDate, endDate)
}

// Write builds the workbook and streams it to w. Results beyond MaxRows are
// left out of the Calls sheet; stats always cover the full set.
func (e *Exporter) Write(w io.Writer, results []types.AnalysisResult, stats types.AnalysisStats, meta Meta) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", callsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(statsSheet); err != nil {
		return fmt.Errorf("create stats sheet: %w", err)
	}

	rows := results
	if len(rows) > e.maxRows {
		e.log.WithField("rows", len(rows)).WithField("max_rows", e.maxRows).Warn("export truncated")
		rows = rows[:e.maxRows]
	}
	if err := e.writeCalls(f, rows); err != nil {
		return err
	}
	if err := e.writeStats(f, stats, meta); err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func (e *Exporter) writeCalls(f *excelize.File, results []types.AnalysisResult) error {
	header, err := headerStyle(f)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(callsSheet, "A1", &callsHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := f.SetCellStyle(callsSheet, "A1", "K1", header); err != nil {
		return err
	}

	fills := map[types.Category]int{}
	for c, color := range categoryColors {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		})
		if err != nil {
			return fmt.Errorf("category style: %w", err)
		}
		fills[c] = id
	}

	for i, r := range results {
		row := i + 2
		start := ""
		if r.StartTime != nil {
			start = r.StartTime.In(e.loc).Format("2006-01-02 15:04:05")
		}
		values := []interface{}{
			r.ID, r.DisplayName, r.Phone, r.Status, r.DurationSeconds, start,
			r.Category.String(), r.Comment, r.Confidence, string(r.Model), clip(r.Transcript),
		}
		first, _ := excelize.CoordinatesToCellName(1, row)
		last, _ := excelize.CoordinatesToCellName(len(callsHeader), row)
		if err := f.SetSheetRow(callsSheet, first, &values); err != nil {
			return fmt.Errorf("write row %d: %w", row, err)
		}
		if style, ok := fills[r.Category]; ok {
			if err := f.SetCellStyle(callsSheet, first, last, style); err != nil {
				return err
			}
		}
	}

	_ = f.SetColWidth(callsSheet, "A", "G", 18)
	_ = f.SetColWidth(callsSheet, "H", "H", 50)
	_ = f.SetColWidth(callsSheet, "K", "K", 80)
	return nil
}

func (e *Exporter) writeStats(f *excelize.File, stats types.AnalysisStats, meta Meta) error {
	header, err := headerStyle(f)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(statsSheet, "A1", &[]interface{}{"Category", "Count", "Percentage"}); err != nil {
		return err
	}
	if err := f.SetCellStyle(statsSheet, "A1", "C1", header); err != nil {
		return err
	}

	total := stats.Total()
	row := 2
	for _, c := range types.Categories() {
		pct := 0.0
		if total > 0 {
			pct = float64(stats.Count(c)) / float64(total) * 100
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(statsSheet, cell, &[]interface{}{c.String(), stats.Count(c), fmt.Sprintf("%.1f%%", pct)}); err != nil {
			return err
		}
		row++
	}

	generated := meta.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	summary := [][]interface{}{
		{"Total", total},
		{"Average Confidence (%)", stats.AverageConfidence},
		{"Date Range", meta.StartDate + " to " + meta.EndDate},
		{"Generated At", generated.In(e.loc).Format(time.RFC3339)},
	}
	row++
	for _, s := range summary {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(statsSheet, cell, &s); err != nil {
			return err
		}
		row++
	}
	_ = f.SetColWidth(statsSheet, "A", "A", 26)
	return nil
}

func headerStyle(f *excelize.File) (int, error) {
	id, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})
	if err != nil {
		return 0, fmt.Errorf("header style: %w", err)
	}
	return id, nil
}

func clip(s string) string {
	r := []rune(s)
	if len(r) <= maxCellChars {
		return s
	}
	return string(r[:maxCellChars])
}
