package protocol

import (
	"fmt"
	"io"
)

// maxFrameSize bounds a frame body so a corrupt length prefix cannot force
// an arbitrary allocation.
const maxFrameSize = 16 << 20

// WriteFrame writes one frame: int32 tag, int32 body length, body bytes.
// Callers serialize concurrent writers with their own mutex.
func WriteFrame(w io.Writer, tag int32, body []byte) error {
	if err := writeInt32(w, tag); err != nil {
		return err
	}
	if err := writeInt32(w, int32(len(body))); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// ReadFrame reads one frame and returns its tag and body.
func ReadFrame(r io.Reader) (int32, []byte, error) {
	tag, err := readInt32(r)
	if err != nil {
		return 0, nil, err
	}
	n, err := readInt32(r)
	if err != nil {
		return 0, nil, err
	}
	if n < 0 || n > maxFrameSize {
		return 0, nil, fmt.Errorf("bad frame length %d", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}
	return tag, body, nil
}
