// Package export renders downloaded daily records as CSV or spreadsheet files.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/i474232898/agri-weather-dashboard/internal/period"
	"github.com/i474232898/agri-weather-dashboard/internal/weather"
)

// ErrEmpty is returned instead of writing a header-only file.
var ErrEmpty = errors.New("nothing to export")

// Format is an output file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts "csv", "xlsx" and the legacy "excel" alias.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

func (f Format) Extension() string {
	return string(f)
}

func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

const sheetName = "weather"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var commonColumns = []string{"날짜", "평균기온", "최고기온", "최저기온", "평균습도", "평균풍속", "강수량", "일사량"}

// Columns returns the header row for an institution's export.
func Columns(inst weather.Institution) []string {
	id, name := "관측소코드", "관측소명"
	if inst == weather.InstitutionKMA {
		id, name = "지점ID", "지점명"
	}
	return append([]string{id, name}, commonColumns...)
}

// values returns one record's cells in column order; missing numbers are nil.
func values(r weather.DailyRecord) []any {
	cells := []any{r.StationID, r.StationName, period.FormatDate(r.Date)}
	for _, v := range []*float64{r.AvgTemp, r.MaxTemp, r.MinTemp, r.Humidity, r.WindSpeed, r.Rainfall, r.SolarRadiation} {
		if v == nil {
			cells = append(cells, nil)
			continue
		}
		cells = append(cells, *v)
	}
	return cells
}

// WriteCSV writes a UTF-8 CSV with a byte order mark so spreadsheet
// applications detect the encoding. Missing values are empty cells.
func WriteCSV(w io.Writer, inst weather.Institution, records []weather.DailyRecord) error {
	if len(records) == 0 {
		return ErrEmpty
	}
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Columns(inst)); err != nil {
		return err
	}
	row := make([]string, 0, len(Columns(inst)))
	for _, r := range records {
		row = row[:0]
		for _, c := range values(r) {
			switch v := c.(type) {
			case nil:
				row = append(row, "")
			case float64:
				row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
			default:
				row = append(row, fmt.Sprint(v))
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes a single-sheet workbook with a bold header row.
func WriteXLSX(w io.Writer, inst weather.Institution, records []weather.DailyRecord) (err error) {
	if len(records) == 0 {
		return ErrEmpty
	}

	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := Columns(inst)
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if err := f.SetRowStyle(sheetName, 1, 1, bold); err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := values(r)
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	last, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	if err := f.SetColWidth(sheetName, "A", last, 12); err != nil {
		return err
	}

	return f.Write(w)
}

// Write dispatches on format.
func Write(w io.Writer, format Format, inst weather.Institution, records []weather.DailyRecord) error {
	if format == FormatXLSX {
		return WriteXLSX(w, inst, records)
	}
	return WriteCSV(w, inst, records)
}

// Filename names a download: weather_<station>_<start>_<end>.<ext> for a
// range, or weather_<station>_전체기간.<ext> for the whole period.
func Filename(format Format, station string, w period.Window, all bool) string {
	label := strings.NewReplacer("/", "_", "\\", "_", " ", "_").Replace(strings.TrimSpace(station))
	if all {
		return fmt.Sprintf("weather_%s_전체기간.%s", label, format.Extension())
	}
	return fmt.Sprintf("weather_%s_%s_%s.%s", label, period.FormatDate(w.Start), period.FormatDate(w.End), format.Extension())
}
