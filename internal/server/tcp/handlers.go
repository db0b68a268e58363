package tcp

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/salesline/salesline/internal/errs"
	"github.com/salesline/salesline/internal/protocol"
)

// process dispatches one decoded request to its handler. A panicking handler
// is converted into a generic error response; the worker stays alive.
func (c *conn) process(ctx context.Context, req protocol.Request) (res protocol.Response) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("handler panic", zap.Any("reason", r), zap.String("op", req.Op.String()))
			res = protocol.Error(req.RequestID, protocol.StatusError, "Erro interno")
		}
	}()

	switch req.Op {
	case protocol.OpRegister:
		return c.handleRegister(req)
	case protocol.OpLogin:
		return c.handleLogin(ctx, req)
	case protocol.OpLogout:
		return c.handleLogout(req)
	case protocol.OpAddEvent:
		return c.handleAddEvent(req)
	case protocol.OpQuantitySold, protocol.OpSalesVolume, protocol.OpAveragePrice, protocol.OpMaxPrice:
		return c.handleAggregation(req)
	case protocol.OpFilterEvents:
		return c.handleFilterEvents(req)
	case protocol.OpSimultaneousSales:
		return c.handleSimultaneousSales(ctx, req)
	case protocol.OpConsecutiveSales:
		return c.handleConsecutiveSales(ctx, req)
	case protocol.OpNewDay:
		return c.handleNewDay(req)
	default:
		return protocol.Error(req.RequestID, protocol.StatusInvalidParams, "Operação desconhecida")
	}
}

// requireAuth snapshots the connection's auth state at handler entry.
func (c *conn) requireAuth(req protocol.Request) (protocol.Response, bool) {
	if _, ok := c.authenticatedUser(); !ok {
		return protocol.Error(req.RequestID, protocol.StatusNotAuthenticated, "Não autenticado"), false
	}
	return protocol.Response{}, true
}

func (c *conn) handleRegister(req protocol.Request) protocol.Response {
	if req.Username == "" || req.Password == "" {
		return protocol.Error(req.RequestID, protocol.StatusInvalidParams, "Username/password em falta")
	}
	switch err := c.srv.auth.Register(req.Username, req.Password); {
	case err == nil:
		return protocol.OK(req.RequestID)
	case errors.Is(err, errs.ErrUserExists):
		return protocol.Error(req.RequestID, protocol.StatusUserExists, "Username já existe")
	case errors.Is(err, errs.ErrInvalidParams):
		return protocol.Error(req.RequestID, protocol.StatusInvalidParams, "Username/password em falta")
	default:
		return protocol.Error(req.RequestID, protocol.StatusError, "Erro no registo")
	}
}

func (c *conn) handleLogin(ctx context.Context, req protocol.Request) protocol.Response {
	if req.Username == "" || req.Password == "" {
		return protocol.Error(req.RequestID, protocol.StatusInvalidParams, "Username/password em falta")
	}
	u, err := c.srv.auth.Authenticate(ctx, req.Username, req.Password, c.sock.RemoteAddr().String())
	switch {
	case err == nil:
		c.setUser(u.Username)
		return protocol.OK(req.RequestID)
	case errors.Is(err, errs.ErrRateLimited):
		return protocol.Error(req.RequestID, protocol.StatusAuthFailed, "Demasiadas tentativas")
	default:
		return protocol.Error(req.RequestID, protocol.StatusAuthFailed, "Credenciais inválidas")
	}
}

func (c *conn) handleLogout(req protocol.Request) protocol.Response {
	if !c.clearUser() {
		return protocol.Error(req.RequestID, protocol.StatusNotAuthenticated, "Não autenticado")
	}
	return protocol.OK(req.RequestID)
}

func (c *conn) handleAddEvent(req protocol.Request) protocol.Response {
	if res, ok := c.requireAuth(req); !ok {
		return res
	}
	if req.Product == "" || req.Quantity < 0 || req.Price < 0 {
		return protocol.Error(req.RequestID, protocol.StatusInvalidParams, "Parâmetros inválidos")
	}

	if err := c.srv.ts.AddEvent(req.Product, req.Quantity, req.Price); err != nil {
		return protocol.Error(req.RequestID, protocol.StatusError, "Erro ao adicionar evento")
	}
	c.srv.agg.InvalidateOnNewEvent(req.Product)
	return protocol.OK(req.RequestID)
}

func (c *conn) handleAggregation(req protocol.Request) protocol.Response {
	if res, ok := c.requireAuth(req); !ok {
		return res
	}
	if req.Product == "" {
		return protocol.Error(req.RequestID, protocol.StatusInvalidParams, "Parâmetros inválidos")
	}

	res := protocol.OK(req.RequestID)
	var err error
	switch req.Op {
	case protocol.OpQuantitySold:
		res.Quantity, err = c.srv.agg.Quantity(req.Product, req.Days)
	case protocol.OpSalesVolume:
		res.Revenue, err = c.srv.agg.Revenue(req.Product, req.Days)
	case protocol.OpAveragePrice:
		res.AvgPrice, err = c.srv.agg.AveragePrice(req.Product, req.Days)
	case protocol.OpMaxPrice:
		res.MaxPrice, err = c.srv.agg.MaxPrice(req.Product, req.Days)
	}
	if errors.Is(err, errs.ErrInsufficientData) {
		return protocol.Error(req.RequestID, protocol.StatusError, "Dados insuficientes")
	}
	if err != nil {
		return protocol.Error(req.RequestID, protocol.StatusError, "Erro na agregação")
	}
	return res
}

func (c *conn) handleFilterEvents(req protocol.Request) protocol.Response {
	if res, ok := c.requireAuth(req); !ok {
		return res
	}
	if len(req.Products) == 0 {
		return protocol.Error(req.RequestID, protocol.StatusInvalidParams, "Parâmetros inválidos")
	}
	if req.DayOffset < 0 {
		return protocol.Error(req.RequestID, protocol.StatusInvalidParams, "Offset inválido")
	}

	res := protocol.OK(req.RequestID)
	res.Events = c.srv.ts.FilteredEvents(req.Products, req.DayOffset)
	return res
}

func (c *conn) handleSimultaneousSales(ctx context.Context, req protocol.Request) protocol.Response {
	if res, ok := c.requireAuth(req); !ok {
		return res
	}
	if req.Product1 == "" || req.Product2 == "" {
		return protocol.Error(req.RequestID, protocol.StatusInvalidParams, "Parâmetros inválidos")
	}

	res := protocol.OK(req.RequestID)
	res.Result = c.srv.ts.WaitForSimultaneousSales(ctx, req.Product1, req.Product2)
	return res
}

func (c *conn) handleConsecutiveSales(ctx context.Context, req protocol.Request) protocol.Response {
	if res, ok := c.requireAuth(req); !ok {
		return res
	}
	if req.N < 1 {
		return protocol.Error(req.RequestID, protocol.StatusInvalidParams, "Parâmetro n inválido")
	}

	res := protocol.OK(req.RequestID)
	res.Product = c.srv.ts.WaitForConsecutiveSales(ctx, req.N)
	return res
}

func (c *conn) handleNewDay(req protocol.Request) protocol.Response {
	if res, ok := c.requireAuth(req); !ok {
		return res
	}
	c.srv.ts.NewDay()
	return protocol.OK(req.RequestID)
}
