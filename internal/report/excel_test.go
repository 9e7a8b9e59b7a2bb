package report

import (
	"bytes"
	"testing"
	"time"

	"stockroom/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteStatistics(t *testing.T) {
	start := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	done := time.Date(2026, 10, 3, 9, 30, 0, 0, time.UTC)

	res := model.AggregateResult{
		TotalShipments: 2,
		TotalSales:     decimal.NewFromInt(19998),
		TotalProfit:    decimal.NewFromInt(4000),
		TaskCount:      1,
		FilteredHistory: []model.Task{{
			TaskNumber:  "T-1",
			Status:      model.TaskStatusCompleted,
			CreatorName: "Alice",
			CreatedAt:   time.Date(2026, 10, 2, 8, 0, 0, 0, time.UTC),
			CompletedAt: &done,
			Items:       []model.TaskItem{{Quantity: 2}},
		}},
		CreatorStatistics: []model.CreatorStatistic{{
			CreatorName:    "Alice",
			TotalShipments: 2,
			TotalSales:     decimal.NewFromInt(19998),
			TotalProfit:    decimal.NewFromInt(4000),
			TaskCount:      1,
			ProductCount:   1,
			ProductDetails: "iPhone(2件) - Apple",
		}},
		TimeRangeStartDate: &start,
		TimeRangeEndDate:   &end,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteStatistics(&buf, res))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetSummary, SheetCreators, SheetHistory}, f.GetSheetList())

	summary, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	require.Len(t, summary, 7)
	assert.Equal(t, []string{"Period start", "2026-10-01 00:00:00"}, summary[1])
	assert.Equal(t, []string{"Tasks", "1"}, summary[3])
	assert.Equal(t, []string{"Total sales", "19998"}, summary[5])
	assert.Equal(t, []string{"Total profit", "4000"}, summary[6])

	creators, err := f.GetRows(SheetCreators)
	require.NoError(t, err)
	require.Len(t, creators, 2)
	assert.Equal(t, "Alice", creators[1][0])
	assert.Equal(t, "iPhone(2件) - Apple", creators[1][6])

	history, err := f.GetRows(SheetHistory)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, []string{"T-1", "completed", "Alice", "2026-10-02 08:00:00", "2026-10-03 09:30:00", "1", "2"}, history[1])
}

func TestWriteStatistics_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteStatistics(&buf, model.AggregateResult{}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	summary, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	assert.Equal(t, []string{"Period start"}, summary[1])

	creators, err := f.GetRows(SheetCreators)
	require.NoError(t, err)
	assert.Len(t, creators, 1)
}
