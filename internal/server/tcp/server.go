// Package tcp exposes the sales service over the framed TCP protocol.
//
// Each accepted connection gets a dedicated reader goroutine that frames
// requests and submits them to the shared worker pool, so one connection can
// have many requests in flight; responses are written back under a
// per-connection mutex and correlated by the frame tag.
package tcp

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/salesline/salesline/internal/protocol"
	"github.com/salesline/salesline/internal/service"
	"github.com/salesline/salesline/internal/timeseries"
	"github.com/salesline/salesline/internal/worker"
)

// Server wires services into protocol handlers.
type Server struct {
	auth *service.AuthService
	agg  *service.AggregationService
	ts   *timeseries.Store
	pool *worker.Pool
	log  *zap.Logger
}

// New constructs a server with injected services.
func New(auth *service.AuthService, agg *service.AggregationService, ts *timeseries.Store, pool *worker.Pool, log *zap.Logger) *Server {
	return &Server{auth: auth, agg: agg, ts: ts, pool: pool, log: log}
}

// Serve accepts connections until ctx is canceled or the listener fails.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	stop := context.AfterFunc(ctx, func() { lis.Close() })
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		sock, err := lis.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		id, _ := uuid.NewV4()
		c := &conn{
			id:   id,
			sock: sock,
			srv:  s,
			log:  s.log.With(zap.String("conn", id.String()), zap.String("peer", sock.RemoteAddr().String())),
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.serve(ctx)
		}()
	}
}

// conn is the per-connection state: the shared socket, the writer mutex that
// keeps response frames from interleaving, and the authenticated user set by
// LOGIN and cleared by LOGOUT. The user field is read by concurrent handler
// tasks, hence the mutex.
type conn struct {
	id   uuid.UUID
	sock net.Conn
	srv  *Server
	log  *zap.Logger

	writeMu sync.Mutex

	userMu sync.Mutex
	user   string // authenticated username, "" when logged out
	authed bool
}

func (c *conn) authenticatedUser() (string, bool) {
	c.userMu.Lock()
	defer c.userMu.Unlock()
	return c.user, c.authed
}

func (c *conn) setUser(username string) {
	c.userMu.Lock()
	defer c.userMu.Unlock()
	c.user = username
	c.authed = true
}

// clearUser logs the connection out. Reports false when it was not logged in.
func (c *conn) clearUser() bool {
	c.userMu.Lock()
	defer c.userMu.Unlock()
	was := c.authed
	c.user = ""
	c.authed = false
	return was
}

// serve reads frames until EOF or error. Canceling ctx (server shutdown or
// connection teardown) also unblocks any waiter tasks of this connection.
func (c *conn) serve(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	defer c.sock.Close()

	// Shutdown must unblock the reader, which only ever sleeps on the socket.
	stop := context.AfterFunc(ctx, func() { c.sock.Close() })
	defer stop()

	c.log.Info("client connected")

	for {
		tag, body, err := protocol.ReadFrame(c.sock)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				c.log.Warn("read frame", zap.Error(err))
			}
			c.log.Info("client disconnected")
			return
		}

		req, derr := protocol.DecodeRequest(body)
		if derr != nil {
			// The frame isolates the malformed body, so the stream is still
			// in sync; answer and keep the connection.
			c.log.Warn("bad request", zap.Error(derr))
			c.respond(tag, req.Op, protocol.Error(req.RequestID, protocol.StatusInvalidParams, "Operação desconhecida"))
			continue
		}

		if err := c.srv.pool.Execute(func() { c.handle(ctx, tag, req) }); err != nil {
			c.respond(tag, req.Op, protocol.Error(req.RequestID, protocol.StatusError, "Servidor a encerrar"))
		}
	}
}

// handle runs one request on a worker and writes its response frame.
func (c *conn) handle(ctx context.Context, tag int32, req protocol.Request) {
	start := time.Now()
	res := c.process(ctx, req)

	c.log.Info("request",
		zap.String("op", req.Op.String()),
		zap.String("status", res.Status.String()),
		zap.Duration("dur", time.Since(start)),
	)

	c.respond(tag, req.Op, res)
}

func (c *conn) respond(tag int32, op protocol.Opcode, res protocol.Response) {
	body, err := res.Encode(op)
	if err != nil {
		c.log.Error("encode response", zap.Error(err))
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := protocol.WriteFrame(c.sock, tag, body); err != nil {
		c.log.Warn("write frame", zap.Error(err))
	}
}
