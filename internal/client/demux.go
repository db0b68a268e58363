// Package client implements the client side of the framed protocol: a
// connection demultiplexer that lets many goroutines share one TCP
// connection with independent in-flight requests, and a typed API over it.
package client

import (
	"io"
	"net"
	"sync"

	"github.com/salesline/salesline/internal/errs"
	"github.com/salesline/salesline/internal/protocol"
)

type result struct {
	body []byte
	err  error
}

// Demultiplexer pairs request frames with response frames by tag. One
// background goroutine reads every response and hands it to the caller that
// sent the matching request; callers block independently, so a long-blocking
// request does not hold up the others.
type Demultiplexer struct {
	sock net.Conn

	sendMu sync.Mutex // serializes frame writes

	mu      sync.Mutex // guards pending, nextTag, readErr
	pending map[int32]chan result
	nextTag int32
	readErr error
}

// NewDemultiplexer starts the reader goroutine over an open connection.
func NewDemultiplexer(sock net.Conn) *Demultiplexer {
	d := &Demultiplexer{
		sock:    sock,
		pending: make(map[int32]chan result),
	}
	go d.listen()
	return d
}

// Send transmits one request body and blocks until its response body
// arrives. Safe for concurrent use.
func (d *Demultiplexer) Send(body []byte) ([]byte, error) {
	d.mu.Lock()
	if d.readErr != nil {
		err := d.readErr
		d.mu.Unlock()
		return nil, err
	}
	tag := d.nextTag
	d.nextTag++
	ch := make(chan result, 1)
	if _, clash := d.pending[tag]; clash {
		d.mu.Unlock()
		return nil, errs.ErrClosed
	}
	d.pending[tag] = ch
	d.mu.Unlock()

	d.sendMu.Lock()
	err := protocol.WriteFrame(d.sock, tag, body)
	d.sendMu.Unlock()
	if err != nil {
		d.mu.Lock()
		delete(d.pending, tag)
		d.mu.Unlock()
		return nil, err
	}

	r := <-ch
	return r.body, r.err
}

// listen reads response frames and wakes exactly the caller registered
// under each tag. A read failure is fanned out to every pending caller.
func (d *Demultiplexer) listen() {
	for {
		tag, body, err := protocol.ReadFrame(d.sock)
		if err != nil {
			if err == io.EOF {
				err = errs.ErrClosed
			}
			d.mu.Lock()
			d.readErr = err
			for t, ch := range d.pending {
				delete(d.pending, t)
				ch <- result{err: err}
			}
			d.mu.Unlock()
			return
		}

		d.mu.Lock()
		ch, ok := d.pending[tag]
		delete(d.pending, tag)
		d.mu.Unlock()
		if ok {
			ch <- result{body: body}
		}
	}
}

// Close tears down the connection; pending callers fail.
func (d *Demultiplexer) Close() error {
	return d.sock.Close()
}
