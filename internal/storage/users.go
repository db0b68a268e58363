package storage

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/salesline/salesline/internal/errs"
	"github.com/salesline/salesline/internal/model"
)

var errCorrupt = errs.ErrCorruptFile

// SaveUsers writes all users to users.dat:
// magic, version, count, then (unameLen, uname, hashLen, hash) records.
func (s *Store) SaveUsers(users []model.User) error {
	return atomicWrite(s.usersPath(), func(w io.Writer) error {
		bw := bufio.NewWriter(w)
		if err := writeHeader(bw, usersMagic); err != nil {
			return err
		}
		if err := writeI32(bw, int32(len(users))); err != nil {
			return err
		}
		for _, u := range users {
			if err := writeBytes(bw, []byte(u.Username)); err != nil {
				return err
			}
			if err := writeBytes(bw, u.PasswordHash); err != nil {
				return err
			}
		}
		return bw.Flush()
	})
}

// LoadUsers reads users.dat. A missing file is an empty user set.
func (s *Store) LoadUsers() ([]model.User, error) {
	f, err := os.Open(s.usersPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	if err := checkHeader(r, usersMagic, s.usersPath()); err != nil {
		return nil, err
	}
	count, err := readI32(r)
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, fmt.Errorf("%s: user count %d: %w", s.usersPath(), count, errCorrupt)
	}

	users := make([]model.User, 0, count)
	for i := int32(0); i < count; i++ {
		uname, err := readBytes(r)
		if err != nil {
			return nil, fmt.Errorf("%s: user %d: %w", s.usersPath(), i, err)
		}
		hash, err := readBytes(r)
		if err != nil {
			return nil, fmt.Errorf("%s: user %d: %w", s.usersPath(), i, err)
		}
		users = append(users, model.User{Username: string(uname), PasswordHash: hash})
	}
	return users, nil
}
