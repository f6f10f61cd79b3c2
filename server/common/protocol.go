package common

import (
	"fmt"
	"strconv"
	"strings"
)

const FinishedVerb = "FINISHED"
const RequestWinnersVerb = "REQUEST_WINNERS"

const BatchReceivedResponse = "BATCH_RECEIVED\n"
const BatchFailedResponse = "BATCH_FAILED\n"
const FinishedReceiveResponse = "FINISHED RECEIVE\n"

// Request is the decoded form of one inbound frame. An agency sends bet
// batches, then a FINISHED control message, then a REQUEST_WINNERS control
// message, all on the same connection.
type Request interface {
	isRequest()
}

// BetBatch carries the raw bet records of a batch frame. Records are parsed
// individually by the session so that a malformed record fails on its own
// without aborting the batch.
type BetBatch struct {
	Records []string
}

// Finished is the control message declaring the agency sent all its bets.
type Finished struct {
	Agency int
}

// RequestWinners is the control message asking for the agency's winning documents.
type RequestWinners struct {
	Agency int
}

func (BetBatch) isRequest()       {}
func (Finished) isRequest()       {}
func (RequestWinners) isRequest() {}

// ParseRequest classifies a decoded frame payload. A payload whose newline
// split yields exactly one line plus a trailing empty element, where the line
// has exactly two non-empty pipe-separated fields and the second is a known
// verb, is a control request. Anything else is a bet batch; its non-empty
// lines are returned unparsed.
func ParseRequest(payload []byte) (Request, error) {
	message := string(payload)
	lines := strings.Split(message, "\n")

	if len(lines) == 2 && lines[1] == "" {
		if request, ok := parseControl(lines[0]); ok {
			return request, nil
		}
	}

	records := make([]string, 0, len(lines))
	for _, line := range lines {
		if line != "" {
			records = append(records, line)
		}
	}
	if len(records) == 0 {
		return nil, &ProtocolError{Msg: "empty message"}
	}
	return BetBatch{Records: records}, nil
}

// parseControl reports whether line is a well-formed control record
// (agency|verb with a known verb) and returns the typed request if so.
func parseControl(line string) (Request, bool) {
	fields := strings.Split(line, "|")
	if len(fields) != 2 || fields[0] == "" || fields[1] == "" {
		return nil, false
	}
	agency, err := strconv.Atoi(fields[0])
	if err != nil || agency <= 0 {
		return nil, false
	}
	switch fields[1] {
	case FinishedVerb:
		return Finished{Agency: agency}, true
	case RequestWinnersVerb:
		return RequestWinners{Agency: agency}, true
	}
	return nil, false
}

// ParseBetRecord parses one agency|first_name|last_name|document|birthdate|number
// record into a validated Bet.
func ParseBetRecord(record string) (Bet, error) {
	fields := strings.Split(record, "|")
	if len(fields) != 6 {
		return Bet{}, fmt.Errorf("%w: expected 6 fields, got %d", ErrInvalidBet, len(fields))
	}
	return NewBet(fields[0], fields[1], fields[2], fields[3], fields[4], fields[5])
}

// FormatWinners builds the WINNERS response line: the winning documents
// joined by pipes, possibly empty when the agency has no winners.
func FormatWinners(documents []string) []byte {
	return []byte(fmt.Sprintf("WINNERS:%s\n", strings.Join(documents, "|")))
}
