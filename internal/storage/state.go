package storage

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// SaveState writes the rotation state header: magic, version, currentDayId.
func (s *Store) SaveState(currentDayID int32) error {
	return atomicWrite(s.statePath(), func(w io.Writer) error {
		bw := bufio.NewWriter(w)
		if err := writeHeader(bw, stateMagic); err != nil {
			return err
		}
		if err := writeI32(bw, currentDayID); err != nil {
			return err
		}
		return bw.Flush()
	})
}

// LoadState reads the state header. A missing file means day 0.
func (s *Store) LoadState() (int32, error) {
	f, err := os.Open(s.statePath())
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	if err := checkHeader(r, stateMagic, s.statePath()); err != nil {
		return 0, err
	}
	id, err := readI32(r)
	if err != nil {
		return 0, err
	}
	if id < 0 {
		return 0, fmt.Errorf("%s: current day %d: %w", s.statePath(), id, errCorrupt)
	}
	return id, nil
}
