package common

import (
	"context"
	"errors"
	"io"
	"net"
)

// session consumes framed requests from one client connection until the
// client asks for its winners, the connection drops, or the server shuts down.
type session struct {
	conn    net.Conn
	lottery *Lottery
}

// run is the per-connection loop. A connection carries any number of bet
// batches, then one FINISHED and one REQUEST_WINNERS. The socket is closed on
// every exit path.
func (s *session) run(ctx context.Context) error {
	defer s.conn.Close()

	for {
		if ctx.Err() != nil {
			return nil
		}
		payload, err := ReceiveMessage(s.conn)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			log.Errorf("action: receive_message | result: fail | error: %v", err)
			return err
		}

		request, err := ParseRequest(payload)
		if err != nil {
			log.Errorf("action: receive_message | result: fail | error: %v", err)
			return err
		}

		switch request := request.(type) {
		case BetBatch:
			done, err := s.handleBatch(ctx, request)
			if done || err != nil {
				return err
			}
		case Finished:
			if err := s.lottery.RecordFinish(request.Agency); err != nil {
				// Barrier torn down by shutdown: exit without responding.
				return nil
			}
			if err := SendMessage(s.conn, []byte(FinishedReceiveResponse)); err != nil {
				return err
			}
		case RequestWinners:
			winners := s.lottery.WinnersFor(request.Agency)
			return SendMessage(s.conn, FormatWinners(winners))
		}
	}
}

// handleBatch stores every parseable record of the batch and acknowledges it.
// A record that fails validation or storage is rejected on its own; the batch
// is acknowledged as received only when every record succeeded. If shutdown
// is observed mid-batch no response is sent and done=true is returned.
func (s *session) handleBatch(ctx context.Context, batch BetBatch) (done bool, err error) {
	bets := make([]Bet, 0, len(batch.Records))
	failures := 0

	for _, record := range batch.Records {
		if ctx.Err() != nil {
			return true, nil
		}
		bet, err := ParseBetRecord(record)
		if err != nil {
			log.Errorf("action: apuesta_rechazada | result: fail | error: %v", err)
			failures++
			continue
		}
		bets = append(bets, bet)
	}

	if len(bets) > 0 {
		if err := s.lottery.AppendBatch(bets); err != nil {
			log.Errorf("action: apuesta_almacenada | result: fail | error: %v", err)
			failures += len(bets)
		} else {
			for _, bet := range bets {
				log.Infof("action: apuesta_almacenada | result: success | dni: %s | numero: %d",
					bet.Document, bet.Number)
			}
		}
	}

	if ctx.Err() != nil {
		return true, nil
	}

	if failures > 0 {
		log.Errorf("action: apuesta_recibida | result: fail | cantidad: %d", len(batch.Records))
		return false, SendMessage(s.conn, []byte(BatchFailedResponse))
	}
	log.Infof("action: apuesta_recibida | result: success | cantidad: %d", len(batch.Records))
	return false, SendMessage(s.conn, []byte(BatchReceivedResponse))
}
