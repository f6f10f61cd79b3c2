package common

import (
	"bytes"
	"fmt"
	"strings"
)

const FinishedVerb = "FINISHED"
const RequestWinnersVerb = "REQUEST_WINNERS"

const BatchReceivedResponse = "BATCH_RECEIVED\n"
const BatchFailedResponse = "BATCH_FAILED\n"
const FinishedReceiveResponse = "FINISHED RECEIVE\n"
const WinnersResponsePrefix = "WINNERS:"

// maxBatchBytes caps the payload of one batch frame.
const maxBatchBytes = 8 * 1024

// ProtocolError represents an unexpected or malformed server response.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %s", e.Msg)
}

// FormatBetRecord builds one newline-terminated bet record from the agency id
// and the five CSV fields: first_name, last_name, document, birthdate, number.
func FormatBetRecord(agency string, fields []string) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s\n",
		agency, fields[0], fields[1], fields[2], fields[3], fields[4])
}

// FormatControl builds a newline-terminated control record (agency|verb).
func FormatControl(agency string, verb string) []byte {
	return []byte(fmt.Sprintf("%s|%s\n", agency, verb))
}

// ParseWinners extracts the winning documents from a WINNERS response line.
// An empty list after the colon means the agency has no winners.
func ParseWinners(response string) ([]string, error) {
	if !strings.HasPrefix(response, WinnersResponsePrefix) {
		return nil, &ProtocolError{Msg: fmt.Sprintf("unexpected response %q", response)}
	}
	body := strings.TrimSuffix(strings.TrimPrefix(response, WinnersResponsePrefix), "\n")
	if body == "" {
		return nil, nil
	}
	return strings.Split(body, "|"), nil
}

// BatchBuilder accumulates bet records into batch payloads, bounded both by a
// record count limit and by the 8KiB payload cap.
type BatchBuilder struct {
	buff        bytes.Buffer
	betsCounter int32
	batchLimit  int32
}

func NewBatchBuilder(batchLimit int32) *BatchBuilder {
	return &BatchBuilder{batchLimit: batchLimit}
}

// Add appends a record to the batch under construction. When the record does
// not fit in the current batch, the completed batch payload is returned and a
// new batch is started with this record. A record exceeding the byte cap on
// its own is accepted as a single-record batch rather than dropped, so full
// is only reported when there actually was a batch to hand back.
func (b *BatchBuilder) Add(record string) (payload []byte, full bool) {
	if b.buff.Len()+len(record) <= maxBatchBytes && b.betsCounter+1 <= b.batchLimit {
		b.buff.WriteString(record)
		b.betsCounter++
		return nil, false
	}
	payload = b.Flush()
	b.buff.WriteString(record)
	b.betsCounter = 1
	return payload, payload != nil
}

// Flush returns the pending batch payload and resets the builder. It returns
// nil when no records are pending.
func (b *BatchBuilder) Flush() []byte {
	if b.betsCounter == 0 {
		return nil
	}
	payload := make([]byte, b.buff.Len())
	copy(payload, b.buff.Bytes())
	b.buff.Reset()
	b.betsCounter = 0
	return payload
}

// Count returns the number of records pending in the current batch.
func (b *BatchBuilder) Count() int32 {
	return b.betsCounter
}
