// Package statistics folds shipment tasks against a product catalog into
// sales, profit and shipment rollups per salesperson.
//
// Compute is pure: it performs no I/O, keeps no state between calls and never
// writes to its inputs, so callers may invoke it concurrently on their own
// snapshots.
package statistics

import (
	"errors"
	"fmt"
	"sort"

	"stockroom/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrInvalidInput marks input-shape violations that would otherwise produce wrong numbers
var ErrInvalidInput = errors.New("invalid statistics input")

const (
	// UnknownCreator groups tasks that carry no creator name
	UnknownCreator = "Unknown"

	topProductsLimit = 5
)

type catalog map[uuid.UUID]*model.Product

func newCatalog(products []model.Product) (catalog, error) {
	c := make(catalog, len(products))
	for i := range products {
		p := &products[i]
		if p.ID == uuid.Nil {
			return nil, fmt.Errorf("%w: product %q has no id", ErrInvalidInput, p.Code)
		}
		if _, dup := c[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate product id %s", ErrInvalidInput, p.ID)
		}
		c[p.ID] = p
	}
	return c, nil
}

func validateTasks(tasks []model.Task) error {
	for i := range tasks {
		for _, item := range tasks[i].Items {
			if item.Quantity < 0 {
				return fmt.Errorf("%w: task %q has negative quantity %d for product %s",
					ErrInvalidInput, tasks[i].TaskNumber, item.Quantity, item.ProductID)
			}
		}
	}
	return nil
}

type creatorAccumulator struct {
	stat     model.CreatorStatistic
	rankings map[uuid.UUID]int
	ranked   []model.ProductRanking
	details  *detailBuilder
}

func newCreatorAccumulator(name string) *creatorAccumulator {
	return &creatorAccumulator{
		stat: model.CreatorStatistic{
			CreatorName: name,
			TotalSales:  decimal.Zero,
			TotalProfit: decimal.Zero,
		},
		rankings: make(map[uuid.UUID]int),
		details:  newDetailBuilder(),
	}
}

func (a *creatorAccumulator) addResolved(p *model.Product, quantity int, sales decimal.Decimal) {
	i, ok := a.rankings[p.ID]
	if !ok {
		i = len(a.ranked)
		a.rankings[p.ID] = i
		a.ranked = append(a.ranked, model.ProductRanking{
			ProductID:   p.ID.String(),
			ProductName: p.Name,
			ProductCode: p.Code,
			TotalValue:  decimal.Zero,
		})
	}
	a.ranked[i].TotalQuantity += quantity
	a.ranked[i].TotalValue = a.ranked[i].TotalValue.Add(sales)
	a.details.add(p.Name, p.Supplier, quantity)
}

func (a *creatorAccumulator) finish() model.CreatorStatistic {
	top := make([]model.ProductRanking, len(a.ranked))
	copy(top, a.ranked)
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].TotalQuantity > top[j].TotalQuantity
	})
	if len(top) > topProductsLimit {
		top = top[:topProductsLimit]
	}

	stat := a.stat
	stat.ProductCount = len(a.ranked)
	stat.TopProducts = top
	stat.ProductDetails = a.details.String()
	return stat
}

// Compute aggregates tasks that have items, fall inside window and are visible to viewer.
// Unresolved products, missing dates and missing creator names are recovered with
// sentinels and counted in the result's Anomalies; malformed input is rejected with
// ErrInvalidInput.
func Compute(tasks []model.Task, products []model.Product, window Window, viewer model.Viewer) (model.AggregateResult, error) {
	if err := window.validate(); err != nil {
		return model.AggregateResult{}, err
	}
	byID, err := newCatalog(products)
	if err != nil {
		return model.AggregateResult{}, err
	}
	if err := validateTasks(tasks); err != nil {
		return model.AggregateResult{}, err
	}

	res := model.AggregateResult{
		TotalSales:        decimal.Zero,
		TotalProfit:       decimal.Zero,
		FilteredHistory:   make([]model.Task, 0),
		CreatorStatistics: make([]model.CreatorStatistic, 0),
	}
	if window.Bounded {
		start, end := window.Start, window.End
		res.TimeRangeStartDate = &start
		res.TimeRangeEndDate = &end
	}

	seeAll := model.CanViewAllData(viewer.Role)
	groups := make(map[string]*creatorAccumulator)
	var order []*creatorAccumulator

	for i := range tasks {
		task := &tasks[i]
		if len(task.Items) == 0 {
			res.Anomalies.EmptyTasks++
			continue
		}
		at, ok := task.EffectiveDate()
		if !ok {
			res.Anomalies.UndatedTasks++
			continue
		}
		if !window.Contains(at) {
			continue
		}
		if !seeAll && !task.OwnedBy(viewer.Name) {
			continue
		}

		res.FilteredHistory = append(res.FilteredHistory, *task)

		creator := task.Creator()
		if creator == "" {
			creator = UnknownCreator
			res.Anomalies.UnnamedCreators++
		}
		acc, ok := groups[creator]
		if !ok {
			acc = newCreatorAccumulator(creator)
			groups[creator] = acc
			order = append(order, acc)
		}
		acc.stat.TaskCount++

		for _, item := range task.Items {
			res.TotalShipments += item.Quantity
			acc.stat.TotalShipments += item.Quantity

			p, ok := byID[item.ProductID]
			if !ok {
				res.Anomalies.UnresolvedItems++
				continue
			}
			qty := decimal.NewFromInt(int64(item.Quantity))
			sales := qty.Mul(p.SalePrice)
			profit := qty.Mul(p.SalePrice.Sub(p.PurchasePrice))

			res.TotalSales = res.TotalSales.Add(sales)
			res.TotalProfit = res.TotalProfit.Add(profit)
			acc.stat.TotalSales = acc.stat.TotalSales.Add(sales)
			acc.stat.TotalProfit = acc.stat.TotalProfit.Add(profit)
			acc.addResolved(p, item.Quantity, sales)
		}
	}

	res.TaskCount = len(res.FilteredHistory)
	for _, acc := range order {
		res.CreatorStatistics = append(res.CreatorStatistics, acc.finish())
	}
	sort.SliceStable(res.CreatorStatistics, func(i, j int) bool {
		return res.CreatorStatistics[i].TotalSales.GreaterThan(res.CreatorStatistics[j].TotalSales)
	})

	return res, nil
}
