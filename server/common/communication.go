package common

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// MaxMessageSize caps inbound frames. The protocol itself does not bound
// frame length, so anything larger is treated as a protocol violation.
const MaxMessageSize = 1024 * 1024

// ProtocolError represents a framing or grammar violation in an inbound message.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %s", e.Msg)
}

// SendMessage writes one frame to out: the payload length as a 4-byte
// big-endian unsigned integer followed by the payload. A zero-length
// payload is a valid frame.
func SendMessage(out io.Writer, payload []byte) error {
	var buff bytes.Buffer
	if err := binary.Write(&buff, binary.BigEndian, uint32(len(payload))); err != nil {
		return err
	}
	if _, err := buff.Write(payload); err != nil {
		return err
	}
	if _, err := io.Copy(out, &buff); err != nil {
		return err
	}
	return nil
}

// ReceiveMessage reads one frame from in, looping over short reads until the
// announced length is consumed. It returns io.EOF when the peer closes the
// connection before sending any byte of the length prefix, a transport error
// if the stream ends mid-frame, and a ProtocolError for frames larger than
// MaxMessageSize.
func ReceiveMessage(in io.Reader) ([]byte, error) {
	var lengthBytes [4]byte
	if _, err := io.ReadFull(in, lengthBytes[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read message length: %w", err)
	}
	length := binary.BigEndian.Uint32(lengthBytes[:])
	if length > MaxMessageSize {
		return nil, &ProtocolError{Msg: fmt.Sprintf("frame of %d bytes exceeds maximum", length)}
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(in, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("read message body: %w", err)
	}
	return payload, nil
}
