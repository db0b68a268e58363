package client

import (
	"fmt"
	"net"

	"github.com/salesline/salesline/internal/errs"
	"github.com/salesline/salesline/internal/model"
	"github.com/salesline/salesline/internal/protocol"
)

// Client is the typed API over one demultiplexed connection. All methods
// are safe for concurrent use; blocking queries (SimultaneousSales,
// ConsecutiveSales) do not delay other in-flight calls.
type Client struct {
	demux *Demultiplexer
}

// Dial connects to a server.
func Dial(addr string) (*Client, error) {
	sock, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Client{demux: NewDemultiplexer(sock)}, nil
}

// Close tears down the connection; in-flight calls fail.
func (c *Client) Close() error {
	return c.demux.Close()
}

// call sends one request and decodes the matching response, mapping non-OK
// statuses to sentinel errors.
func (c *Client) call(req protocol.Request) (protocol.Response, error) {
	body, err := req.Encode()
	if err != nil {
		return protocol.Response{}, err
	}
	resBody, err := c.demux.Send(body)
	if err != nil {
		return protocol.Response{}, err
	}
	res, err := protocol.DecodeResponse(resBody, req.Op)
	if err != nil {
		return protocol.Response{}, err
	}
	if res.Status != protocol.StatusOK {
		return res, statusErr(res)
	}
	return res, nil
}

func statusErr(res protocol.Response) error {
	var sentinel error
	switch res.Status {
	case protocol.StatusAuthFailed:
		sentinel = errs.ErrUnauthorized
	case protocol.StatusNotAuthenticated:
		sentinel = errs.ErrNotAuthenticated
	case protocol.StatusUserExists:
		sentinel = errs.ErrUserExists
	case protocol.StatusInvalidParams:
		sentinel = errs.ErrInvalidParams
	default:
		if res.ErrorMessage == "Dados insuficientes" {
			sentinel = errs.ErrInsufficientData
		} else {
			return fmt.Errorf("server error: %s", res.ErrorMessage)
		}
	}
	return fmt.Errorf("%w: %s", sentinel, res.ErrorMessage)
}

// Register creates an account.
func (c *Client) Register(username, password string) error {
	_, err := c.call(protocol.Request{Op: protocol.OpRegister, Username: username, Password: password})
	return err
}

// Login authenticates this connection.
func (c *Client) Login(username, password string) error {
	_, err := c.call(protocol.Request{Op: protocol.OpLogin, Username: username, Password: password})
	return err
}

// Logout clears this connection's authentication.
func (c *Client) Logout() error {
	_, err := c.call(protocol.Request{Op: protocol.OpLogout})
	return err
}

// AddEvent records a sale of quantity units of product at price.
func (c *Client) AddEvent(product string, quantity int32, price float64) error {
	_, err := c.call(protocol.Request{Op: protocol.OpAddEvent, Product: product, Quantity: quantity, Price: price})
	return err
}

// QuantitySold sums units of product sold over the last days completed days.
func (c *Client) QuantitySold(product string, days int32) (int32, error) {
	res, err := c.call(protocol.Request{Op: protocol.OpQuantitySold, Product: product, Days: days})
	return res.Quantity, err
}

// SalesVolume sums revenue of product over the last days completed days.
func (c *Client) SalesVolume(product string, days int32) (float64, error) {
	res, err := c.call(protocol.Request{Op: protocol.OpSalesVolume, Product: product, Days: days})
	return res.Revenue, err
}

// AveragePrice is the quantity-weighted mean unit price over the window.
func (c *Client) AveragePrice(product string, days int32) (float64, error) {
	res, err := c.call(protocol.Request{Op: protocol.OpAveragePrice, Product: product, Days: days})
	return res.AvgPrice, err
}

// MaxPrice is the highest unit price over the window.
func (c *Client) MaxPrice(product string, days int32) (float64, error) {
	res, err := c.call(protocol.Request{Op: protocol.OpMaxPrice, Product: product, Days: days})
	return res.MaxPrice, err
}

// FilterEvents returns the events of one day (0 = current, k = k-th most
// recently completed) restricted to the given products.
func (c *Client) FilterEvents(products []string, dayOffset int32) ([]model.Event, error) {
	res, err := c.call(protocol.Request{Op: protocol.OpFilterEvents, Products: products, DayOffset: dayOffset})
	return res.Events, err
}

// SimultaneousSales blocks until both products sell in the current day
// (true) or the day ends first (false).
func (c *Client) SimultaneousSales(product1, product2 string) (bool, error) {
	res, err := c.call(protocol.Request{Op: protocol.OpSimultaneousSales, Product1: product1, Product2: product2})
	return res.Result, err
}

// ConsecutiveSales blocks until n consecutive sales of one product occur in
// the current day and returns that product, or "" if the day ends first.
func (c *Client) ConsecutiveSales(n int32) (string, error) {
	res, err := c.call(protocol.Request{Op: protocol.OpConsecutiveSales, N: n})
	return res.Product, err
}

// NewDay asks the server to rotate the current day.
func (c *Client) NewDay() error {
	_, err := c.call(protocol.Request{Op: protocol.OpNewDay})
	return err
}
