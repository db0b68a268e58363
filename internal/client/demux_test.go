package client

import (
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/salesline/salesline/internal/protocol"
)

// echoServer answers every frame with a body derived from the request,
// optionally holding responses back to force out-of-order delivery.
func echoServer(t *testing.T, lis net.Listener, reorder bool) {
	t.Helper()
	go func() {
		sock, err := lis.Accept()
		if err != nil {
			return
		}
		defer sock.Close()

		var mu sync.Mutex
		var held []struct {
			tag  int32
			body []byte
		}
		for {
			tag, body, err := protocol.ReadFrame(sock)
			if err != nil {
				return
			}
			reply := append([]byte("echo:"), body...)
			if reorder {
				mu.Lock()
				held = append(held, struct {
					tag  int32
					body []byte
				}{tag, reply})
				// Flush in reverse once two requests pile up.
				if len(held) == 2 {
					for i := len(held) - 1; i >= 0; i-- {
						_ = protocol.WriteFrame(sock, held[i].tag, held[i].body)
					}
					held = held[:0]
				}
				mu.Unlock()
				continue
			}
			_ = protocol.WriteFrame(sock, tag, reply)
		}
	}()
}

func dialDemux(t *testing.T, reorder bool) *Demultiplexer {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { lis.Close() })
	echoServer(t, lis, reorder)

	sock, err := net.Dial("tcp", lis.Addr().String())
	require.NoError(t, err)
	d := NewDemultiplexer(sock)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestDemux_SendReceivesOwnResponse(t *testing.T) {
	t.Parallel()
	d := dialDemux(t, false)

	got, err := d.Send([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, []byte("echo:hello"), got)
}

func TestDemux_ConcurrentCallersGetTheirOwnBytes(t *testing.T) {
	t.Parallel()
	d := dialDemux(t, false)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := fmt.Sprintf("req-%03d", i)
			got, err := d.Send([]byte(payload))
			require.NoError(t, err)
			require.Equal(t, "echo:"+payload, string(got))
		}(i)
	}
	wg.Wait()
}

func TestDemux_OutOfOrderResponses(t *testing.T) {
	t.Parallel()
	d := dialDemux(t, true)

	// The server releases responses in reverse pairs; each caller must
	// still receive its own.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := fmt.Sprintf("pair-%d", i)
			got, err := d.Send([]byte(payload))
			require.NoError(t, err)
			require.Equal(t, "echo:"+payload, string(got))
		}(i)
	}
	wg.Wait()
}

func TestDemux_ReadErrorFansOutToPendingCallers(t *testing.T) {
	t.Parallel()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer lis.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		sock, err := lis.Accept()
		if err == nil {
			accepted <- sock
		}
	}()

	sock, err := net.Dial("tcp", lis.Addr().String())
	require.NoError(t, err)
	d := NewDemultiplexer(sock)
	defer d.Close()

	errsCh := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func() {
			_, err := d.Send([]byte("never answered"))
			errsCh <- err
		}()
	}

	// Give the sends time to register, then kill the server side.
	time.Sleep(50 * time.Millisecond)
	server := <-accepted
	server.Close()

	for i := 0; i < 3; i++ {
		select {
		case err := <-errsCh:
			require.Error(t, err)
		case <-time.After(5 * time.Second):
			t.Fatalf("pending caller was not unblocked")
		}
	}

	// Later sends fail fast with the recorded error.
	_, err = d.Send([]byte("after failure"))
	require.Error(t, err)
}

func TestDemux_TagsAreMonotonic(t *testing.T) {
	t.Parallel()
	d := dialDemux(t, false)

	for i := 0; i < 5; i++ {
		_, err := d.Send([]byte("x"))
		require.NoError(t, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	require.Equal(t, int32(5), d.nextTag)
	require.Empty(t, d.pending)
}
