package codec

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeToBytes(t *testing.T, v any) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	require.NoError(t, Encode(w, v))
	return buf.Bytes()
}

func TestEncodeSimpleTypes(t *testing.T) {
	assert.Equal(t, []byte("$1\r\n1\r\n"), encodeToBytes(t, "1"))
	assert.Equal(t, []byte(":42\r\n"), encodeToBytes(t, 42))
	assert.Equal(t, []byte("$-1\r\n"), encodeToBytes(t, nil))
	assert.Equal(t, []byte("-bad request\r\n"), encodeToBytes(t, NewError("bad request")))
}

func TestEncodeArrayAndDict(t *testing.T) {
	got := encodeToBytes(t, Array{"a", "b"})
	assert.Equal(t, []byte("*2\r\n$1\r\na\r\n$1\r\nb\r\n"), got)

	got = encodeToBytes(t, Dict{"k": "v"})
	assert.Equal(t, []byte("%1\r\n$1\r\nk\r\n$1\r\nv\r\n"), got)
}

func decodeFrom(t *testing.T, raw string) any {
	t.Helper()
	r := bufio.NewReader(bytes.NewBufferString(raw))
	v, err := Decode(r)
	require.NoError(t, err)
	return v
}

func TestDecodeRoundTrip(t *testing.T) {
	assert.Equal(t, "OK", decodeFrom(t, "+OK\r\n"))
	assert.Equal(t, int64(42), decodeFrom(t, ":42\r\n"))
	assert.Equal(t, "hello", decodeFrom(t, "$5\r\nhello\r\n"))
	assert.Nil(t, decodeFrom(t, "$-1\r\n"))
	assert.Equal(t, ErrorValue{Message: "nope"}, decodeFrom(t, "-nope\r\n"))

	got := decodeFrom(t, "*2\r\n$3\r\nGET\r\n$1\r\nk\r\n")
	assert.Equal(t, Array{"GET", "k"}, got)

	got = decodeFrom(t, "%1\r\n$1\r\nk\r\n$1\r\nv\r\n")
	assert.Equal(t, Dict{"k": "v"}, got)
}

func TestDecodeDisconnectOnEmptyStream(t *testing.T) {
	r := bufio.NewReader(bytes.NewBufferString(""))
	_, err := Decode(r)
	assert.ErrorIs(t, err, ErrDisconnect)
}

func TestDecodeBadTagIsProtocolError(t *testing.T) {
	r := bufio.NewReader(bytes.NewBufferString("?garbage\r\n"))
	_, err := Decode(r)
	var protoErr *ErrProtocol
	assert.ErrorAs(t, err, &protoErr)
}

func TestDecodeTruncatedFrameIsProtocolErrorNotDisconnect(t *testing.T) {
	r := bufio.NewReader(bytes.NewBufferString("*2\r\n$3\r\nGET\r\n"))
	_, err := Decode(r)
	var protoErr *ErrProtocol
	assert.ErrorAs(t, err, &protoErr)
}

func TestDecodeMalformedIntegerIsProtocolError(t *testing.T) {
	r := bufio.NewReader(bytes.NewBufferString(":not-a-number\r\n"))
	_, err := Decode(r)
	var protoErr *ErrProtocol
	assert.ErrorAs(t, err, &protoErr)
}

func TestEncodeUnknownTypePanics(t *testing.T) {
	assert.Panics(t, func() {
		encodeToBytes(t, struct{}{})
	})
}
