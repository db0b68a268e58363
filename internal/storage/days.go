package storage

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/salesline/salesline/internal/model"
)

// SaveDay writes the event log of one completed day:
// magic, version, eventCount, then (product, qty, price, timestamp) records.
func (s *Store) SaveDay(dayID int32, events []model.Event) error {
	return atomicWrite(s.dayPath(dayID), func(w io.Writer) error {
		bw := bufio.NewWriter(w)
		if err := writeHeader(bw, dayMagic); err != nil {
			return err
		}
		if err := writeI32(bw, int32(len(events))); err != nil {
			return err
		}
		for _, ev := range events {
			if err := writeBytes(bw, []byte(ev.Product)); err != nil {
				return err
			}
			if err := writeI32(bw, ev.Quantity); err != nil {
				return err
			}
			if err := writeF64(bw, ev.Price); err != nil {
				return err
			}
			if err := writeI64(bw, ev.Timestamp); err != nil {
				return err
			}
		}
		return bw.Flush()
	})
}

// LoadDay reads one day file. A missing file is an empty day.
func (s *Store) LoadDay(dayID int32) ([]model.Event, error) {
	path := s.dayPath(dayID)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return []model.Event{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	if err := checkHeader(r, dayMagic, path); err != nil {
		return nil, err
	}
	count, err := readI32(r)
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, fmt.Errorf("%s: event count %d: %w", path, count, errCorrupt)
	}

	events := make([]model.Event, 0, count)
	for i := int32(0); i < count; i++ {
		product, err := readBytes(r)
		if err != nil {
			return nil, fmt.Errorf("%s: event %d: %w", path, i, err)
		}
		qty, err := readI32(r)
		if err != nil {
			return nil, fmt.Errorf("%s: event %d: %w", path, i, err)
		}
		price, err := readF64(r)
		if err != nil {
			return nil, fmt.Errorf("%s: event %d: %w", path, i, err)
		}
		ts, err := readI64(r)
		if err != nil {
			return nil, fmt.Errorf("%s: event %d: %w", path, i, err)
		}
		events = append(events, model.Event{Product: string(product), Quantity: qty, Price: price, Timestamp: ts})
	}
	return events, nil
}

// DeleteDay removes a day file that left the disk window. Missing is fine.
func (s *Store) DeleteDay(dayID int32) error {
	err := os.Remove(s.dayPath(dayID))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// LoadRecentDays loads the completed days that belong in memory, most
// recent first: ids currentDayID-1 down to max(0, currentDayID-memoryDays).
func (s *Store) LoadRecentDays(currentDayID int32, memoryDays int) ([][]model.Event, error) {
	var history [][]model.Event
	for k := 0; k < memoryDays; k++ {
		id := currentDayID - 1 - int32(k)
		if id < 0 {
			break
		}
		events, err := s.LoadDay(id)
		if err != nil {
			return nil, err
		}
		history = append(history, events)
	}
	return history, nil
}
