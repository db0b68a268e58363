package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/salesline/salesline/internal/model"
)

// Typed field primitives. Everything on the wire is big-endian; strings are
// int32 length followed by UTF-8 bytes; lists are int32 count followed by
// elements, with count -1 encoding a nil list.

// maxStringLen bounds decoded strings so a corrupt length prefix cannot
// trigger an arbitrary allocation.
const maxStringLen = 1 << 20

func writeInt32(w io.Writer, v int32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(v))
	_, err := w.Write(buf[:])
	return err
}

func readInt32(r io.Reader) (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(buf[:])), nil
}

func writeInt16(w io.Writer, v int16) error {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], uint16(v))
	_, err := w.Write(buf[:])
	return err
}

func readInt16(r io.Reader) (int16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(buf[:])), nil
}

func writeInt64(w io.Writer, v int64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	_, err := w.Write(buf[:])
	return err
}

func readInt64(r io.Reader) (int64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(buf[:])), nil
}

func writeFloat64(w io.Writer, v float64) error {
	return writeInt64(w, int64(math.Float64bits(v)))
}

func readFloat64(r io.Reader) (float64, error) {
	bits, err := readInt64(r)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(uint64(bits)), nil
}

func writeByte(w io.Writer, b byte) error {
	_, err := w.Write([]byte{b})
	return err
}

func readByte(r io.Reader) (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func writeBool(w io.Writer, v bool) error {
	if v {
		return writeByte(w, 1)
	}
	return writeByte(w, 0)
}

func readBool(r io.Reader) (bool, error) {
	b, err := readByte(r)
	return b != 0, err
}

func writeString(w io.Writer, s string) error {
	if err := writeInt32(w, int32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	n, err := readInt32(r)
	if err != nil {
		return "", err
	}
	if n < 0 || n > maxStringLen {
		return "", fmt.Errorf("bad string length %d", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeStringList(w io.Writer, list []string) error {
	if list == nil {
		return writeInt32(w, -1)
	}
	if err := writeInt32(w, int32(len(list))); err != nil {
		return err
	}
	for _, s := range list {
		if err := writeString(w, s); err != nil {
			return err
		}
	}
	return nil
}

func readStringList(r io.Reader) ([]string, error) {
	n, err := readInt32(r)
	if err != nil {
		return nil, err
	}
	if n == -1 {
		return nil, nil
	}
	if n < 0 || n > maxStringLen {
		return nil, fmt.Errorf("bad list length %d", n)
	}
	list := make([]string, 0, n)
	for i := int32(0); i < n; i++ {
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, nil
}

// writeEventList encodes events with a product dictionary: many events share
// product names, so repeated strings are factored into an index table and
// each record carries only an int16 index.
func writeEventList(w io.Writer, events []model.Event) error {
	if events == nil {
		return writeInt32(w, -1)
	}

	dict := make(map[string]int16)
	var products []string
	for _, ev := range events {
		if _, ok := dict[ev.Product]; !ok {
			dict[ev.Product] = int16(len(products))
			products = append(products, ev.Product)
		}
	}

	if err := writeInt32(w, int32(len(products))); err != nil {
		return err
	}
	for _, p := range products {
		if err := writeString(w, p); err != nil {
			return err
		}
	}

	if err := writeInt32(w, int32(len(events))); err != nil {
		return err
	}
	for _, ev := range events {
		if err := writeInt16(w, dict[ev.Product]); err != nil {
			return err
		}
		if err := writeInt32(w, ev.Quantity); err != nil {
			return err
		}
		if err := writeFloat64(w, ev.Price); err != nil {
			return err
		}
		if err := writeInt64(w, ev.Timestamp); err != nil {
			return err
		}
	}
	return nil
}

func readEventList(r io.Reader) ([]model.Event, error) {
	dictSize, err := readInt32(r)
	if err != nil {
		return nil, err
	}
	if dictSize == -1 {
		return nil, nil
	}
	if dictSize < 0 || dictSize > math.MaxInt16+1 {
		return nil, fmt.Errorf("bad dictionary size %d", dictSize)
	}

	dict := make([]string, dictSize)
	for i := int32(0); i < dictSize; i++ {
		if dict[i], err = readString(r); err != nil {
			return nil, err
		}
	}

	count, err := readInt32(r)
	if err != nil {
		return nil, err
	}
	if count < 0 || count > maxStringLen {
		return nil, fmt.Errorf("bad event count %d", count)
	}
	events := make([]model.Event, 0, count)
	for i := int32(0); i < count; i++ {
		idx, err := readInt16(r)
		if err != nil {
			return nil, err
		}
		if int(idx) < 0 || int(idx) >= len(dict) {
			return nil, fmt.Errorf("event product index %d out of range", idx)
		}
		qty, err := readInt32(r)
		if err != nil {
			return nil, err
		}
		price, err := readFloat64(r)
		if err != nil {
			return nil, err
		}
		ts, err := readInt64(r)
		if err != nil {
			return nil, err
		}
		events = append(events, model.Event{Product: dict[idx], Quantity: qty, Price: price, Timestamp: ts})
	}
	return events, nil
}
