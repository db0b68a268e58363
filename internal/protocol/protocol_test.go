package protocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/salesline/salesline/internal/model"
)

func TestRequestRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []Request{
		{Op: OpRegister, Username: "alice", Password: "secret"},
		{Op: OpLogin, Username: "bob", Password: "pw"},
		{Op: OpLogout},
		{Op: OpAddEvent, Product: "apple", Quantity: 3, Price: 1.25},
		{Op: OpQuantitySold, Product: "apple", Days: 7},
		{Op: OpSalesVolume, Product: "pear", Days: 2},
		{Op: OpAveragePrice, Product: "fig", Days: 1},
		{Op: OpMaxPrice, Product: "kiwi", Days: 30},
		{Op: OpFilterEvents, Products: []string{"apple", "pear"}, DayOffset: 2},
		{Op: OpSimultaneousSales, Product1: "apple", Product2: "pear"},
		{Op: OpConsecutiveSales, N: 3},
		{Op: OpNewDay},
	}

	for _, want := range cases {
		want := want
		t.Run(want.Op.String(), func(t *testing.T) {
			t.Parallel()
			body, err := want.Encode()
			require.NoError(t, err)
			got, err := DecodeRequest(body)
			require.NoError(t, err)
			require.Equal(t, want, got)
		})
	}
}

func TestRequestUnknownOpcode(t *testing.T) {
	t.Parallel()

	_, err := Request{Op: Opcode(0xEE)}.Encode()
	require.Error(t, err)

	body, err := Request{Op: OpLogout}.Encode()
	require.NoError(t, err)
	body[4] = 0xEE // opcode byte follows the int32 request id
	_, err = DecodeRequest(body)
	require.Error(t, err)
}

func TestResponseRoundTrip(t *testing.T) {
	t.Parallel()

	events := []model.Event{
		{Product: "apple", Quantity: 2, Price: 1.0, Timestamp: 111},
		{Product: "pear", Quantity: 1, Price: 2.5, Timestamp: 222},
		{Product: "apple", Quantity: 4, Price: 0.75, Timestamp: 333},
	}

	cases := []struct {
		op   Opcode
		want Response
	}{
		{OpRegister, OK(0)},
		{OpLogin, OK(1)},
		{OpLogout, OK(2)},
		{OpAddEvent, OK(3)},
		{OpNewDay, OK(4)},
		{OpQuantitySold, Response{Status: StatusOK, Quantity: 42}},
		{OpSalesVolume, Response{Status: StatusOK, Revenue: 13.0}},
		{OpAveragePrice, Response{Status: StatusOK, AvgPrice: 2.1667}},
		{OpMaxPrice, Response{Status: StatusOK, MaxPrice: 5.0}},
		{OpSimultaneousSales, Response{Status: StatusOK, Result: true}},
		{OpConsecutiveSales, Response{Status: StatusOK, Product: "apple"}},
		{OpConsecutiveSales, Response{Status: StatusOK, Product: ""}},
		{OpFilterEvents, Response{Status: StatusOK, Events: events}},
	}

	for _, tc := range cases {
		body, err := tc.want.Encode(tc.op)
		require.NoError(t, err)
		got, err := DecodeResponse(body, tc.op)
		require.NoError(t, err)
		require.Equal(t, tc.want, got)
	}
}

func TestResponseErrorShape(t *testing.T) {
	t.Parallel()

	// On any non-OK status the payload is only the error message,
	// regardless of operation.
	for _, op := range []Opcode{OpQuantitySold, OpFilterEvents, OpAddEvent} {
		want := Error(7, StatusError, "Dados insuficientes")
		body, err := want.Encode(op)
		require.NoError(t, err)
		got, err := DecodeResponse(body, op)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestEventListDictionary(t *testing.T) {
	t.Parallel()

	// Repeated products must be written once in the dictionary.
	events := []model.Event{
		{Product: "apple", Quantity: 1, Price: 1, Timestamp: 1},
		{Product: "apple", Quantity: 2, Price: 2, Timestamp: 2},
		{Product: "apple", Quantity: 3, Price: 3, Timestamp: 3},
		{Product: "pear", Quantity: 4, Price: 4, Timestamp: 4},
	}

	var buf bytes.Buffer
	require.NoError(t, writeEventList(&buf, events))

	r := bytes.NewReader(buf.Bytes())
	dictSize, err := readInt32(r)
	require.NoError(t, err)
	require.Equal(t, int32(2), dictSize)

	got, err := readEventList(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Equal(t, events, got)
}

func TestEventListNilAndEmpty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, writeEventList(&buf, nil))
	require.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, buf.Bytes())
	got, err := readEventList(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Nil(t, got)

	buf.Reset()
	require.NoError(t, writeEventList(&buf, []model.Event{}))
	got, err = readEventList(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Empty(t, got)
	require.NotNil(t, got)
}

func TestEventListBadIndex(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, writeInt32(&buf, 1)) // dict size
	require.NoError(t, writeString(&buf, "apple"))
	require.NoError(t, writeInt32(&buf, 1)) // event count
	require.NoError(t, writeInt16(&buf, 5)) // out-of-range index
	require.NoError(t, writeInt32(&buf, 1))
	require.NoError(t, writeFloat64(&buf, 1))
	require.NoError(t, writeInt64(&buf, 1))

	_, err := readEventList(bytes.NewReader(buf.Bytes()))
	require.Error(t, err)
}

func TestStringListNil(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, writeStringList(&buf, nil))
	got, err := readStringList(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestFrameRoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	body := []byte{1, 2, 3, 4, 5}
	require.NoError(t, WriteFrame(&buf, 9, body))

	tag, got, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, int32(9), tag)
	require.Equal(t, body, got)
}

func TestFrameBadLength(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, writeInt32(&buf, 1))
	require.NoError(t, writeInt32(&buf, -5))
	_, _, err := ReadFrame(&buf)
	require.Error(t, err)
}

func TestBigEndianLayout(t *testing.T) {
	t.Parallel()

	// The wire is big-endian with length-prefixed strings; pin the exact
	// bytes of a small request so the layout cannot drift.
	body, err := Request{Op: OpConsecutiveSales, N: 3}.Encode()
	require.NoError(t, err)
	require.Equal(t, []byte{
		0, 0, 0, 0, // requestId
		0x0B,       // opcode
		0, 0, 0, 3, // n
	}, body)
}
