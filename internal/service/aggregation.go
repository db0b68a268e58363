package service

import (
	"fmt"

	"github.com/salesline/salesline/internal/cache"
	"github.com/salesline/salesline/internal/errs"
	"github.com/salesline/salesline/internal/model"
	"github.com/salesline/salesline/internal/timeseries"
)

// AggregationService computes windowed aggregations over the last N
// completed days, lazily and with caching. A window is valid when
// 1 <= days <= D and at least that many completed days exist; otherwise
// ErrInsufficientData.
type AggregationService struct {
	ts    *timeseries.Store
	cache *cache.ProductCache
}

// NewAggregationService wires the store and the cache and installs the
// rotation invalidation hook.
func NewAggregationService(ts *timeseries.Store, c *cache.ProductCache) *AggregationService {
	s := &AggregationService{ts: ts, cache: c}
	ts.SetOnRotate(s.InvalidateOnNewDay)
	return s
}

// window collects the events of the last days completed days, most recent
// first. Returns ErrInsufficientData when the history is shorter.
func (s *AggregationService) window(days int32) ([][]model.Event, error) {
	if days < 1 || int(days) > s.ts.MaxDays() {
		return nil, errs.ErrInsufficientData
	}
	if s.ts.HistoricalDayCount() < int(days) {
		return nil, errs.ErrInsufficientData
	}
	all := make([][]model.Event, 0, days)
	for k := int32(0); k < days; k++ {
		all = append(all, s.ts.HistoricalDayEvents(k))
	}
	return all, nil
}

// Quantity sums the units sold of product over the window.
func (s *AggregationService) Quantity(product string, days int32) (int32, error) {
	key := fmt.Sprintf("qty:%s:%d", product, days)
	dayID := s.ts.CurrentDayID()
	if a, ok := s.cache.Get(key, dayID); ok {
		return a.Value.(int32), nil
	}

	window, err := s.window(days)
	if err != nil {
		return 0, err
	}
	var total int32
	for _, dayEvents := range window {
		for _, ev := range dayEvents {
			if ev.Product == product {
				total += ev.Quantity
			}
		}
	}

	s.cache.Put(key, cache.Aggregation{Value: total, ComputedAtDayID: dayID})
	return total, nil
}

// Revenue sums quantity x price of product over the window.
func (s *AggregationService) Revenue(product string, days int32) (float64, error) {
	key := fmt.Sprintf("rev:%s:%d", product, days)
	dayID := s.ts.CurrentDayID()
	if a, ok := s.cache.Get(key, dayID); ok {
		return a.Value.(float64), nil
	}

	window, err := s.window(days)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, dayEvents := range window {
		for _, ev := range dayEvents {
			if ev.Product == product {
				total += ev.TotalValue()
			}
		}
	}

	s.cache.Put(key, cache.Aggregation{Value: total, ComputedAtDayID: dayID})
	return total, nil
}

// AveragePrice is the quantity-weighted mean unit price of product over the
// window, 0 when the product never sold.
func (s *AggregationService) AveragePrice(product string, days int32) (float64, error) {
	key := fmt.Sprintf("avg:%s:%d", product, days)
	dayID := s.ts.CurrentDayID()
	if a, ok := s.cache.Get(key, dayID); ok {
		return a.Value.(float64), nil
	}

	window, err := s.window(days)
	if err != nil {
		return 0, err
	}
	var revenue float64
	var quantity int32
	for _, dayEvents := range window {
		for _, ev := range dayEvents {
			if ev.Product == product {
				revenue += ev.TotalValue()
				quantity += ev.Quantity
			}
		}
	}
	if quantity == 0 {
		return 0, nil
	}
	avg := revenue / float64(quantity)

	s.cache.Put(key, cache.Aggregation{Value: avg, ComputedAtDayID: dayID})
	return avg, nil
}

// MaxPrice is the highest unit price of product over the window, 0 when the
// product never sold.
func (s *AggregationService) MaxPrice(product string, days int32) (float64, error) {
	key := fmt.Sprintf("max:%s:%d", product, days)
	dayID := s.ts.CurrentDayID()
	if a, ok := s.cache.Get(key, dayID); ok {
		return a.Value.(float64), nil
	}

	window, err := s.window(days)
	if err != nil {
		return 0, err
	}
	var max float64
	found := false
	for _, dayEvents := range window {
		for _, ev := range dayEvents {
			if ev.Product == product {
				if !found || ev.Price > max {
					max = ev.Price
				}
				found = true
			}
		}
	}
	if !found {
		return 0, nil
	}

	s.cache.Put(key, cache.Aggregation{Value: max, ComputedAtDayID: dayID})
	return max, nil
}

// CommonDays counts the days of the window in which both products sold at
// least once.
func (s *AggregationService) CommonDays(product1, product2 string, days int32) (int32, error) {
	key := fmt.Sprintf("common:%s:%s:%d", product1, product2, days)
	dayID := s.ts.CurrentDayID()
	if a, ok := s.cache.Get(key, dayID); ok {
		return a.Value.(int32), nil
	}

	window, err := s.window(days)
	if err != nil {
		return 0, err
	}
	var common int32
	for _, dayEvents := range window {
		has1, has2 := false, false
		for _, ev := range dayEvents {
			if ev.Product == product1 {
				has1 = true
			}
			if ev.Product == product2 {
				has2 = true
			}
		}
		if has1 && has2 {
			common++
		}
	}

	s.cache.Put(key, cache.Aggregation{Value: common, ComputedAtDayID: dayID})
	return common, nil
}

// MaxConsecutive is the longest run of back-to-back events of product
// within a single day of the window.
func (s *AggregationService) MaxConsecutive(product string, days int32) (int32, error) {
	key := fmt.Sprintf("maxseq:%s:%d", product, days)
	dayID := s.ts.CurrentDayID()
	if a, ok := s.cache.Get(key, dayID); ok {
		return a.Value.(int32), nil
	}

	window, err := s.window(days)
	if err != nil {
		return 0, err
	}
	var longest int32
	for _, dayEvents := range window {
		var run int32
		for _, ev := range dayEvents {
			if ev.Product == product {
				run++
				if run > longest {
					longest = run
				}
			} else {
				run = 0
			}
		}
	}

	s.cache.Put(key, cache.Aggregation{Value: longest, ComputedAtDayID: dayID})
	return longest, nil
}

// InvalidateOnNewEvent drops every cached aggregation mentioning product.
func (s *AggregationService) InvalidateOnNewEvent(product string) {
	s.cache.InvalidateProduct(product)
}

// InvalidateOnNewDay drops the whole cache: the window shifts for everyone.
func (s *AggregationService) InvalidateOnNewDay() {
	s.cache.Clear()
}
