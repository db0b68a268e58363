// Package protocol defines the framed wire protocol shared by client and
// server: opcodes, status codes, request/response bodies and their binary
// encoding. This package is the single point where payload shape is enforced.
package protocol

import (
	"bytes"
	"fmt"
	"io"

	"github.com/salesline/salesline/internal/model"
)

// Opcode identifies a request operation.
type Opcode byte

// Operation codes.
const (
	OpRegister          Opcode = 0x01
	OpLogin             Opcode = 0x02
	OpLogout            Opcode = 0x03
	OpAddEvent          Opcode = 0x04
	OpQuantitySold      Opcode = 0x05
	OpSalesVolume       Opcode = 0x06
	OpAveragePrice      Opcode = 0x07
	OpMaxPrice          Opcode = 0x08
	OpFilterEvents      Opcode = 0x09
	OpSimultaneousSales Opcode = 0x0A
	OpConsecutiveSales  Opcode = 0x0B
	OpNewDay            Opcode = 0x0C
)

// Status is a response status code.
type Status byte

// Status codes.
const (
	StatusOK               Status = 0x00
	StatusError            Status = 0x01
	StatusAuthFailed       Status = 0x02
	StatusNotAuthenticated Status = 0x03
	StatusUserExists       Status = 0x04
	StatusInvalidParams    Status = 0x05
)

// String returns the operation name for logs.
func (op Opcode) String() string {
	switch op {
	case OpRegister:
		return "REGISTER"
	case OpLogin:
		return "LOGIN"
	case OpLogout:
		return "LOGOUT"
	case OpAddEvent:
		return "ADD_EVENT"
	case OpQuantitySold:
		return "QUANTITY_SOLD"
	case OpSalesVolume:
		return "SALES_VOLUME"
	case OpAveragePrice:
		return "AVERAGE_PRICE"
	case OpMaxPrice:
		return "MAX_PRICE"
	case OpFilterEvents:
		return "FILTER_EVENTS"
	case OpSimultaneousSales:
		return "SIMULTANEOUS_SALES"
	case OpConsecutiveSales:
		return "CONSECUTIVE_SALES"
	case OpNewDay:
		return "NEW_DAY"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))
	}
}

// String returns the status name for logs.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusError:
		return "ERROR"
	case StatusAuthFailed:
		return "AUTH_FAILED"
	case StatusNotAuthenticated:
		return "NOT_AUTHENTICATED"
	case StatusUserExists:
		return "USER_EXISTS"
	case StatusInvalidParams:
		return "INVALID_PARAMS"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", byte(s))
	}
}

// Request is a decoded request body. Only the fields belonging to Op are
// meaningful; Encode/DecodeRequest enforce the per-opcode shape.
//
// RequestID is written as zero by clients: the frame tag is the correlation
// mechanism and the inner id is carried opaquely.
type Request struct {
	RequestID int32
	Op        Opcode

	Username string // REGISTER, LOGIN
	Password string // REGISTER, LOGIN

	Product  string  // ADD_EVENT, QUANTITY_SOLD, SALES_VOLUME, AVERAGE_PRICE, MAX_PRICE
	Quantity int32   // ADD_EVENT
	Price    float64 // ADD_EVENT
	Days     int32   // QUANTITY_SOLD, SALES_VOLUME, AVERAGE_PRICE, MAX_PRICE

	Products  []string // FILTER_EVENTS
	DayOffset int32    // FILTER_EVENTS

	Product1 string // SIMULTANEOUS_SALES
	Product2 string // SIMULTANEOUS_SALES

	N int32 // CONSECUTIVE_SALES
}

// Response is a decoded response body. On a non-OK status only ErrorMessage
// is set; on OK the field matching the request opcode is set.
type Response struct {
	RequestID    int32
	Status       Status
	ErrorMessage string

	Quantity int32         // QUANTITY_SOLD
	Revenue  float64       // SALES_VOLUME
	AvgPrice float64       // AVERAGE_PRICE
	MaxPrice float64       // MAX_PRICE
	Result   bool          // SIMULTANEOUS_SALES
	Product  string        // CONSECUTIVE_SALES ("" when the day ended first)
	Events   []model.Event // FILTER_EVENTS
}

// OK builds a success response echoing the request id.
func OK(requestID int32) Response {
	return Response{RequestID: requestID, Status: StatusOK}
}

// Error builds a failure response with a human-readable message.
func Error(requestID int32, status Status, msg string) Response {
	return Response{RequestID: requestID, Status: status, ErrorMessage: msg}
}

// Encode serializes the request body.
func (r Request) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeInt32(&buf, r.RequestID); err != nil {
		return nil, err
	}
	if err := writeByte(&buf, byte(r.Op)); err != nil {
		return nil, err
	}

	var err error
	switch r.Op {
	case OpRegister, OpLogin:
		if err = writeString(&buf, r.Username); err == nil {
			err = writeString(&buf, r.Password)
		}
	case OpAddEvent:
		if err = writeString(&buf, r.Product); err == nil {
			if err = writeInt32(&buf, r.Quantity); err == nil {
				err = writeFloat64(&buf, r.Price)
			}
		}
	case OpQuantitySold, OpSalesVolume, OpAveragePrice, OpMaxPrice:
		if err = writeString(&buf, r.Product); err == nil {
			err = writeInt32(&buf, r.Days)
		}
	case OpFilterEvents:
		if err = writeStringList(&buf, r.Products); err == nil {
			err = writeInt32(&buf, r.DayOffset)
		}
	case OpSimultaneousSales:
		if err = writeString(&buf, r.Product1); err == nil {
			err = writeString(&buf, r.Product2)
		}
	case OpConsecutiveSales:
		err = writeInt32(&buf, r.N)
	case OpLogout, OpNewDay:
		// no params
	default:
		return nil, fmt.Errorf("encode request: unknown opcode 0x%02X", byte(r.Op))
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeRequest parses a request body.
func DecodeRequest(body []byte) (Request, error) {
	r := bytes.NewReader(body)
	var req Request

	id, err := readInt32(r)
	if err != nil {
		return req, err
	}
	op, err := readByte(r)
	if err != nil {
		return req, err
	}
	req.RequestID = id
	req.Op = Opcode(op)

	switch req.Op {
	case OpRegister, OpLogin:
		if req.Username, err = readString(r); err != nil {
			return req, err
		}
		req.Password, err = readString(r)
	case OpAddEvent:
		if req.Product, err = readString(r); err != nil {
			return req, err
		}
		if req.Quantity, err = readInt32(r); err != nil {
			return req, err
		}
		req.Price, err = readFloat64(r)
	case OpQuantitySold, OpSalesVolume, OpAveragePrice, OpMaxPrice:
		if req.Product, err = readString(r); err != nil {
			return req, err
		}
		req.Days, err = readInt32(r)
	case OpFilterEvents:
		if req.Products, err = readStringList(r); err != nil {
			return req, err
		}
		req.DayOffset, err = readInt32(r)
	case OpSimultaneousSales:
		if req.Product1, err = readString(r); err != nil {
			return req, err
		}
		req.Product2, err = readString(r)
	case OpConsecutiveSales:
		req.N, err = readInt32(r)
	case OpLogout, OpNewDay:
		// no params
	default:
		return req, fmt.Errorf("decode request: unknown opcode 0x%02X", op)
	}
	return req, err
}

// Encode serializes the response body for the operation it answers.
func (r Response) Encode(op Opcode) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeInt32(&buf, r.RequestID); err != nil {
		return nil, err
	}
	if err := writeByte(&buf, byte(r.Status)); err != nil {
		return nil, err
	}

	if r.Status != StatusOK {
		if err := writeString(&buf, r.ErrorMessage); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	var err error
	switch op {
	case OpRegister, OpLogin, OpLogout, OpAddEvent, OpNewDay:
		// no payload
	case OpQuantitySold:
		err = writeInt32(&buf, r.Quantity)
	case OpSalesVolume:
		err = writeFloat64(&buf, r.Revenue)
	case OpAveragePrice:
		err = writeFloat64(&buf, r.AvgPrice)
	case OpMaxPrice:
		err = writeFloat64(&buf, r.MaxPrice)
	case OpSimultaneousSales:
		err = writeBool(&buf, r.Result)
	case OpConsecutiveSales:
		err = writeString(&buf, r.Product)
	case OpFilterEvents:
		err = writeEventList(&buf, r.Events)
	default:
		return nil, fmt.Errorf("encode response: unknown opcode 0x%02X", byte(op))
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeResponse parses a response body for the given operation.
func DecodeResponse(body []byte, op Opcode) (Response, error) {
	r := bytes.NewReader(body)
	var res Response

	id, err := readInt32(r)
	if err != nil {
		return res, err
	}
	st, err := readByte(r)
	if err != nil {
		return res, err
	}
	res.RequestID = id
	res.Status = Status(st)

	if res.Status != StatusOK {
		res.ErrorMessage, err = readString(r)
		return res, err
	}

	switch op {
	case OpRegister, OpLogin, OpLogout, OpAddEvent, OpNewDay:
		// no payload
	case OpQuantitySold:
		res.Quantity, err = readInt32(r)
	case OpSalesVolume:
		res.Revenue, err = readFloat64(r)
	case OpAveragePrice:
		res.AvgPrice, err = readFloat64(r)
	case OpMaxPrice:
		res.MaxPrice, err = readFloat64(r)
	case OpSimultaneousSales:
		res.Result, err = readBool(r)
	case OpConsecutiveSales:
		res.Product, err = readString(r)
	case OpFilterEvents:
		res.Events, err = readEventList(r)
	default:
		return res, fmt.Errorf("decode response: unknown opcode 0x%02X", byte(op))
	}
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return res, err
}
