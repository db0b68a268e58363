// Package timeseries implements the rolling daily sales series: one live
// current day, up to S completed days in memory and up to D on disk, plus
// the blocking condition waiters used by the long-poll operations.
package timeseries

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/salesline/salesline/internal/errs"
	"github.com/salesline/salesline/internal/model"
)

// DayStore persists completed days and the rotation state.
type DayStore interface {
	// SaveDay writes the event log of a completed day.
	SaveDay(dayID int32, events []model.Event) error
	// LoadDay reads the event log of a completed day.
	LoadDay(dayID int32) ([]model.Event, error)
	// DeleteDay removes a day file that fell out of the disk window.
	DeleteDay(dayID int32) error
	// SaveState writes the rotation state header (current day id).
	SaveState(currentDayID int32) error
}

// day is one logical bucket of events. Events are append-only and their
// order is semantically significant (consecutive/simultaneous queries).
type day struct {
	id        int32
	events    []model.Event
	startTime int64
	completed bool
}

func newDay(id int32) *day {
	return &day{id: id, startTime: time.Now().UnixMilli()}
}

// Store owns the current day and the historical window.
//
// All mutation (append, rotation, waiter loops) happens under the write side
// of the RW lock; the condition variable is bound to that side, so waiters
// sleep holding it and re-check their predicate on every wakeup. Pure reads
// take the read side and return defensive copies.
type Store struct {
	maxDays    int // D: days retained on disk
	memoryDays int // S: completed days retained in memory

	days DayStore
	log  *zap.Logger

	mu   sync.RWMutex
	cond *sync.Cond // bound to the write side of mu

	current   *day
	currentID int32
	history   []*day // completed days, most-recent first, len <= memoryDays

	onRotate func() // aggregation cache invalidation hook
}

// New constructs an empty store starting at day 0.
func New(maxDays, memoryDays int, days DayStore, log *zap.Logger) (*Store, error) {
	if maxDays < 1 {
		return nil, fmt.Errorf("maxDays must be >= 1, got %d", maxDays)
	}
	if memoryDays < 1 || memoryDays > maxDays {
		return nil, fmt.Errorf("memoryDays must be in [1, maxDays], got %d", memoryDays)
	}
	s := &Store{
		maxDays:    maxDays,
		memoryDays: memoryDays,
		days:       days,
		log:        log,
		current:    newDay(0),
	}
	s.cond = sync.NewCond(&s.mu)
	return s, nil
}

// SetOnRotate installs the cache invalidation hook called during rotation.
func (s *Store) SetOnRotate(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRotate = fn
}

// Restore installs recovered state: the current day id and the completed
// days loaded from disk, most-recent first. Called once before serving.
func (s *Store) Restore(currentDayID int32, history [][]model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentID = currentDayID
	s.current = newDay(currentDayID)
	s.history = s.history[:0]
	for i, events := range history {
		if i >= s.memoryDays {
			break
		}
		d := &day{
			id:        currentDayID - 1 - int32(i),
			events:    append([]model.Event(nil), events...),
			completed: true,
		}
		s.history = append(s.history, d)
	}
}

// AddEvent appends a sale to the current day and wakes any waiters.
func (s *Store) AddEvent(product string, quantity int32, price float64) error {
	return s.append(model.NewEvent(product, quantity, price))
}

// AddRecoveredEvent appends an already-stamped event. Used on replay.
func (s *Store) AddRecoveredEvent(ev model.Event) error {
	return s.append(ev)
}

func (s *Store) append(ev model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.completed {
		// Should not happen: rotation installs a fresh day under the same lock.
		return errs.ErrDayCompleted
	}
	s.current.events = append(s.current.events, ev)
	s.cond.Broadcast()
	return nil
}

// NewDay rotates the current day into history, atomically under the write
// lock:
//
//  1. mark the day completed and wake all waiters so they observe the
//     terminal state;
//  2. persist the completed day and the state header (persistence failure is
//     logged and rotation proceeds in memory);
//  3. promote the day to the head of the in-memory history, trimming to S;
//  4. drop the day file that fell out of the D-day disk window;
//  5. invalidate the aggregation cache;
//  6. install a fresh empty current day.
func (s *Store) NewDay() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.completed = true
	s.cond.Broadcast()

	if s.days != nil {
		if err := s.days.SaveDay(s.currentID, s.current.events); err != nil {
			s.log.Error("persist day", zap.Int32("day", s.currentID), zap.Error(err))
		}
		if err := s.days.SaveState(s.currentID + 1); err != nil {
			s.log.Error("persist state", zap.Int32("day", s.currentID), zap.Error(err))
		}
	}

	s.history = append([]*day{s.current}, s.history...)
	if len(s.history) > s.memoryDays {
		s.history = s.history[:s.memoryDays]
	}

	if expired := s.currentID - int32(s.maxDays); expired >= 0 && s.days != nil {
		if err := s.days.DeleteDay(expired); err != nil {
			s.log.Warn("delete expired day", zap.Int32("day", expired), zap.Error(err))
		}
	}

	if s.onRotate != nil {
		s.onRotate()
	}

	s.currentID++
	s.current = newDay(s.currentID)
}

// CurrentDayID returns the id of the live day.
func (s *Store) CurrentDayID() int32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentID
}

// MaxDays returns D, the disk retention bound.
func (s *Store) MaxDays() int {
	return s.maxDays
}

// MemoryDays returns S, the in-memory retention bound.
func (s *Store) MemoryDays() int {
	return s.memoryDays
}

// HistoricalDayCount returns how many completed days are addressable.
func (s *Store) HistoricalDayCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.availableLocked()
}

func (s *Store) availableLocked() int {
	if int(s.currentID) < s.maxDays {
		return int(s.currentID)
	}
	return s.maxDays
}

// CurrentDayEventCount returns the number of events in the live day.
func (s *Store) CurrentDayEventCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.current.events)
}

// CurrentDayEvents returns a snapshot of the live day in append order.
func (s *Store) CurrentDayEvents() []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Event(nil), s.current.events...)
}

// HistoricalDayEvents returns a snapshot of a completed day. daysAgo 0 is
// the most recently completed day. Out-of-range or unreadable days return
// an empty slice.
func (s *Store) HistoricalDayEvents(daysAgo int32) []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.historicalDayEventsLocked(daysAgo)
}

func (s *Store) historicalDayEventsLocked(daysAgo int32) []model.Event {
	if daysAgo < 0 || int(daysAgo) >= s.availableLocked() {
		return []model.Event{}
	}
	if int(daysAgo) < len(s.history) {
		return append([]model.Event(nil), s.history[daysAgo].events...)
	}

	// Past the memory window: the day lives only on disk.
	targetID := s.currentID - 1 - daysAgo
	if s.days == nil {
		return []model.Event{}
	}
	events, err := s.days.LoadDay(targetID)
	if err != nil {
		s.log.Error("load day", zap.Int32("day", targetID), zap.Error(err))
		return []model.Event{}
	}
	return events
}

// FilteredEvents returns the events of one day filtered by product
// membership, preserving append order. dayOffset 0 is the current day,
// k >= 1 the k-th most recently completed day. A nil or empty product list
// matches everything.
func (s *Store) FilteredEvents(products []string, dayOffset int32) []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var source []model.Event
	if dayOffset == 0 {
		source = s.current.events
	} else {
		source = s.historicalDayEventsLocked(dayOffset - 1)
	}

	if len(products) == 0 {
		return append([]model.Event(nil), source...)
	}

	wanted := make(map[string]struct{}, len(products))
	for _, p := range products {
		wanted[p] = struct{}{}
	}
	result := make([]model.Event, 0, len(source))
	for _, ev := range source {
		if _, ok := wanted[ev.Product]; ok {
			result = append(result, ev)
		}
	}
	return result
}

// wake broadcasts under the lock so a waiter between its predicate check
// and Wait cannot miss the signal.
func (s *Store) wake() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cond.Broadcast()
}

// WaitForSimultaneousSales blocks until the current day contains at least
// one sale of each product, returning true; it returns false if the day is
// rotated first or ctx is canceled.
func (s *Store) WaitForSimultaneousSales(ctx context.Context, product1, product2 string) bool {
	stop := context.AfterFunc(ctx, s.wake)
	defer stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track the day this call started on: rotation replaces s.current before
	// the waiter re-acquires the lock, so only this day's flag shows the end.
	d := s.current
	for {
		if d.completed || ctx.Err() != nil {
			return false
		}

		has1, has2 := false, false
		for _, ev := range d.events {
			if ev.Product == product1 {
				has1 = true
			}
			if ev.Product == product2 {
				has2 = true
			}
			if has1 && has2 {
				return true
			}
		}

		s.cond.Wait()
	}
}

// WaitForConsecutiveSales blocks until the tail-most n events of the current
// day share one product and returns it; it returns "" if the day is rotated
// first or ctx is canceled.
func (s *Store) WaitForConsecutiveSales(ctx context.Context, n int32) string {
	stop := context.AfterFunc(ctx, s.wake)
	defer stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track the day this call started on (see WaitForSimultaneousSales).
	d := s.current
	for {
		if d.completed || ctx.Err() != nil {
			return ""
		}

		if count := len(d.events); count >= int(n) {
			product := d.events[count-int(n)].Product
			run := true
			for _, ev := range d.events[count-int(n):] {
				if ev.Product != product {
					run = false
					break
				}
			}
			if run {
				return product
			}
		}

		s.cond.Wait()
	}
}
