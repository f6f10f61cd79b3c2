package common

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// SendMessage writes one frame to out: the payload length as a 4-byte
// big-endian unsigned integer followed by the payload.
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

// maxResponseBytes caps inbound response frames. Server responses are short
// single lines; a larger length prefix means a corrupt stream.
const maxResponseBytes = 1024 * 1024

// ReceiveResponse reads one framed server response, looping over short reads,
// and returns it decoded as a string (responses are single UTF-8 lines).
func ReceiveResponse(in io.Reader) (string, error) {
	var lengthBytes [4]byte
	if _, err := io.ReadFull(in, lengthBytes[:]); err != nil {
		return "", err
	}
	length := binary.BigEndian.Uint32(lengthBytes[:])
	if length > maxResponseBytes {
		return "", &ProtocolError{Msg: fmt.Sprintf("frame of %d bytes exceeds maximum", length)}
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(in, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return "", fmt.Errorf("read response body: %w", err)
	}
	return string(payload), nil
}
