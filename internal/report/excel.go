// Package report renders statistics results as spreadsheets.
package report

import (
	"fmt"
	"io"
	"time"

	"stockroom/internal/model"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	SheetSummary  = "Summary"
	SheetCreators = "Creators"
	SheetHistory  = "History"

	dateLayout = "2006-01-02 15:04:05"
)

// ContentType is the MIME type of WriteStatistics output
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

// WriteStatistics writes a workbook with a summary sheet, one row per creator and
// the filtered task history.
func WriteStatistics(w io.Writer, res model.AggregateResult) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("rename summary sheet: %w", err)
	}
	for _, name := range []string{SheetCreators, SheetHistory} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := writeSummary(f, res, bold); err != nil {
		return err
	}
	if err := writeCreators(f, res.CreatorStatistics, bold); err != nil {
		return err
	}
	if err := writeHistory(f, res.FilteredHistory, bold); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, res model.AggregateResult, bold int) error {
	rows := [][]interface{}{
		{"Metric", "Value"},
		{"Period start", formatTime(res.TimeRangeStartDate)},
		{"Period end", formatTime(res.TimeRangeEndDate)},
		{"Tasks", res.TaskCount},
		{"Shipped quantity", res.TotalShipments},
		{"Total sales", money(res.TotalSales)},
		{"Total profit", money(res.TotalProfit)},
	}
	if err := writeRows(f, SheetSummary, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetSummary, "A1", "B1", bold); err != nil {
		return err
	}
	return f.SetColWidth(SheetSummary, "A", "B", 22)
}

func writeCreators(f *excelize.File, stats []model.CreatorStatistic, bold int) error {
	rows := [][]interface{}{
		{"Creator", "Tasks", "Shipped", "Sales", "Profit", "Products", "Details"},
	}
	for _, s := range stats {
		rows = append(rows, []interface{}{
			s.CreatorName, s.TaskCount, s.TotalShipments,
			money(s.TotalSales), money(s.TotalProfit), s.ProductCount, s.ProductDetails,
		})
	}
	if err := writeRows(f, SheetCreators, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetCreators, "A1", "G1", bold); err != nil {
		return err
	}
	return f.SetColWidth(SheetCreators, "G", "G", 60)
}

func writeHistory(f *excelize.File, tasks []model.Task, bold int) error {
	rows := [][]interface{}{
		{"Task", "Status", "Creator", "Created", "Completed", "Items", "Quantity"},
	}
	for i := range tasks {
		t := &tasks[i]
		qty := 0
		for _, item := range t.Items {
			qty += item.Quantity
		}
		created := t.CreatedAt
		rows = append(rows, []interface{}{
			t.TaskNumber, string(t.Status), t.CreatorName,
			formatTime(&created), formatTime(t.CompletedAt), len(t.Items), qty,
		})
	}
	if err := writeRows(f, SheetHistory, rows); err != nil {
		return err
	}
	return f.SetCellStyle(SheetHistory, "A1", "G1", bold)
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := row
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
