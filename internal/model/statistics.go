package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AggregateResult aggregates shipment totals and per-creator breakdowns.
// TaskCount is len(FilteredHistory); TotalShipments is the summed item quantity.
type AggregateResult struct {
	TotalShipments     int                `json:"total_shipments"`
	TotalSales         decimal.Decimal    `json:"total_sales"`
	TotalProfit        decimal.Decimal    `json:"total_profit"`
	TaskCount          int                `json:"task_count"`
	FilteredHistory    []Task             `json:"filtered_history"`
	CreatorStatistics  []CreatorStatistic `json:"creator_statistics"`
	TimeRangeStartDate *time.Time         `json:"time_range_start_date"`
	TimeRangeEndDate   *time.Time         `json:"time_range_end_date"`
	Anomalies          Anomalies          `json:"anomalies"`
}

// CreatorStatistic is the per-salesperson rollup
type CreatorStatistic struct {
	CreatorName    string           `json:"creator_name"`
	TotalShipments int              `json:"total_shipments"`
	TotalSales     decimal.Decimal  `json:"total_sales"`
	TotalProfit    decimal.Decimal  `json:"total_profit"`
	TaskCount      int              `json:"task_count"`
	ProductCount   int              `json:"product_count"`
	TopProducts    []ProductRanking `json:"top_products"`
	ProductDetails string           `json:"product_details"`
}

// ProductRanking represents a ranked product based on accumulated quantities
type ProductRanking struct {
	ProductID     string          `json:"product_id"`
	ProductName   string          `json:"product_name"`
	ProductCode   string          `json:"product_code"`
	TotalQuantity int             `json:"total_quantity"`
	TotalValue    decimal.Decimal `json:"total_value"`
}

// Anomalies counts data-quality problems recovered during aggregation
type Anomalies struct {
	EmptyTasks      int `json:"empty_tasks"`
	UndatedTasks    int `json:"undated_tasks"`
	UnnamedCreators int `json:"unnamed_creators"`
	UnresolvedItems int `json:"unresolved_items"`
}

// Any reports whether at least one anomaly was recorded
func (a Anomalies) Any() bool {
	return a.EmptyTasks+a.UndatedTasks+a.UnnamedCreators+a.UnresolvedItems > 0
}
