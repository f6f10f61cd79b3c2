package common

import (
	"bytes"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMessageFrameLayout(t *testing.T) {
	var buff bytes.Buffer
	require.NoError(t, SendMessage(&buff, []byte("1|FINISHED\n")))

	frame := buff.Bytes()
	assert.Equal(t, []byte{0, 0, 0, 11}, frame[:4])
	assert.Equal(t, "1|FINISHED\n", string(frame[4:]))
}

func TestReceiveResponseRoundTrip(t *testing.T) {
	var buff bytes.Buffer
	require.NoError(t, SendMessage(&buff, []byte(FinishedReceiveResponse)))

	msg, err := ReceiveResponse(iotest.OneByteReader(&buff))
	require.NoError(t, err)
	assert.Equal(t, FinishedReceiveResponse, msg)
}

func TestReceiveResponseRejectsOversizedFrame(t *testing.T) {
	frame := []byte{0x00, 0x10, 0x00, 0x01} // maxResponseBytes + 1

	_, err := ReceiveResponse(bytes.NewReader(frame))
	var protocolErr *ProtocolError
	assert.ErrorAs(t, err, &protocolErr)
}

func TestReceiveResponseTruncatedBody(t *testing.T) {
	frame := []byte{0, 0, 0, 10, 'a', 'b'}

	_, err := ReceiveResponse(bytes.NewReader(frame))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
