package common

import (
	"bytes"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendReceiveRoundTrip(t *testing.T) {
	payloads := [][]byte{
		[]byte("1|Juan|Perez|30123456|1990-05-01|4242\n"),
		{},
		[]byte("a"),
		bytes.Repeat([]byte("x"), 1024),
		bytes.Repeat([]byte("y"), MaxMessageSize),
	}
	for _, payload := range payloads {
		var buff bytes.Buffer
		require.NoError(t, SendMessage(&buff, payload))

		got, err := ReceiveMessage(&buff)
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	}
}

func TestReceiveHandlesShortReads(t *testing.T) {
	var buff bytes.Buffer
	payload := []byte("1|FINISHED\n")
	require.NoError(t, SendMessage(&buff, payload))

	got, err := ReceiveMessage(iotest.OneByteReader(&buff))
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestReceiveCleanClose(t *testing.T) {
	_, err := ReceiveMessage(bytes.NewReader(nil))
	assert.ErrorIs(t, err, io.EOF)
}

func TestReceiveStreamEndsMidLength(t *testing.T) {
	_, err := ReceiveMessage(bytes.NewReader([]byte{0, 0}))
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
}

func TestReceiveStreamEndsMidBody(t *testing.T) {
	var buff bytes.Buffer
	require.NoError(t, SendMessage(&buff, []byte("0123456789")))
	truncated := buff.Bytes()[:buff.Len()-4]

	_, err := ReceiveMessage(bytes.NewReader(truncated))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReceiveRejectsOversizedFrame(t *testing.T) {
	frame := []byte{0x00, 0x10, 0x00, 0x01} // MaxMessageSize + 1

	_, err := ReceiveMessage(bytes.NewReader(frame))
	var protocolErr *ProtocolError
	assert.ErrorAs(t, err, &protocolErr)
}

func TestFrameLayout(t *testing.T) {
	var buff bytes.Buffer
	require.NoError(t, SendMessage(&buff, []byte("abc")))
	assert.Equal(t, []byte{0, 0, 0, 3, 'a', 'b', 'c'}, buff.Bytes())
}
