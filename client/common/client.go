package common

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("log")

// ClientConfig Configuration used by the client
type ClientConfig struct {
	ID            string
	ServerAddress string
	BetsFilePath  string
	BatchLimit    int32
}

// Client Entity that encapsulates how
type Client struct {
	config ClientConfig
	conn   net.Conn
}

// NewClient Initializes a new client receiving the configuration
// as a parameter
func NewClient(config ClientConfig) *Client {
	client := &Client{
		config: config,
	}
	return client
}

// createClientSocket establishes a TCP connection to ServerAddress.
// On failure it logs the error and returns it without leaving a live connection behind.
func (c *Client) createClientSocket() error {
	conn, err := net.Dial("tcp", c.config.ServerAddress)
	if err != nil {
		log.Criticalf(
			"action: connect | result: fail | client_id: %v | error: %v",
			c.config.ID,
			err,
		)
		return err
	}
	c.conn = conn
	return nil
}

// StartClientLoop runs the whole agency exchange on a single connection:
// stream the bets file as batches, declare FINISHED, wait for the server
// acknowledgment (which only arrives once every agency finished) and finally
// ask for this agency's winners. Supports graceful shutdown for SIGTERM.
func (c *Client) StartClientLoop() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	betsFile, err := os.Open(c.config.BetsFilePath)
	if err != nil {
		log.Criticalf("action: read_bets | result: fail | error: %v", err)
		return
	}
	defer betsFile.Close()

	betsReader := csv.NewReader(betsFile)
	betsReader.Comma = ','
	betsReader.FieldsPerRecord = 5

	if err := c.createClientSocket(); err != nil {
		return
	}
	defer c.conn.Close()

	// Unblock any pending read when SIGTERM arrives.
	unblock := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Now())
	})
	defer unblock()

	if err := c.sendBatches(ctx, betsReader); err != nil {
		c.logExit(ctx, "send_batches", err)
		return
	}
	if err := c.notifyFinished(); err != nil {
		c.logExit(ctx, "notify_finished", err)
		return
	}
	if err := c.requestWinners(); err != nil {
		c.logExit(ctx, "request_winners", err)
		return
	}

	log.Infof("action: loop_finished | result: success | client_id: %v", c.config.ID)
}

// sendBatches streams the bets file into batch frames, awaiting the server
// acknowledgment after each one. Between bets it checks for cancellation so a
// SIGTERM mid-file exits without flushing a partial batch.
func (c *Client) sendBatches(ctx context.Context, betsReader *csv.Reader) error {
	builder := NewBatchBuilder(c.config.BatchLimit)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		betFields, err := betsReader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		record := FormatBetRecord(c.config.ID, betFields)
		if payload, full := builder.Add(record); full {
			if err := c.sendBatch(payload); err != nil {
				return err
			}
		}
	}
	if payload := builder.Flush(); payload != nil {
		return c.sendBatch(payload)
	}
	return nil
}

// sendBatch sends one batch frame and reads the acknowledgment.
func (c *Client) sendBatch(payload []byte) error {
	if err := SendMessage(c.conn, payload); err != nil {
		return err
	}
	msg, err := ReceiveResponse(c.conn)
	if err != nil {
		return err
	}
	if msg == BatchReceivedResponse {
		log.Info("action: batch_enviado | result: success")
	} else {
		log.Errorf("action: batch_enviado | result: fail | response: %q", msg)
	}
	return nil
}

// notifyFinished declares this agency done and blocks until the server
// acknowledges, which happens only after every agency finished.
func (c *Client) notifyFinished() error {
	if err := SendMessage(c.conn, FormatControl(c.config.ID, FinishedVerb)); err != nil {
		return err
	}
	msg, err := ReceiveResponse(c.conn)
	if err != nil {
		return err
	}
	if msg != FinishedReceiveResponse {
		return &ProtocolError{Msg: "expected FINISHED RECEIVE, got " + msg}
	}
	log.Infof("action: send_finished | result: success | client_id: %v", c.config.ID)
	return nil
}

// requestWinners asks for this agency's winning documents and logs the count.
func (c *Client) requestWinners() error {
	if err := SendMessage(c.conn, FormatControl(c.config.ID, RequestWinnersVerb)); err != nil {
		return err
	}
	msg, err := ReceiveResponse(c.conn)
	if err != nil {
		return err
	}
	winners, err := ParseWinners(msg)
	if err != nil {
		return err
	}
	log.Infof("action: consulta_ganadores | result: success | cant_ganadores: %d", len(winners))
	return nil
}

// logExit distinguishes a SIGTERM-driven exit from a real failure.
func (c *Client) logExit(ctx context.Context, action string, err error) {
	if ctx.Err() != nil {
		log.Infof("action: client_graceful_shutdown | result: success | client_id: %v", c.config.ID)
		return
	}
	log.Errorf("action: %s | result: fail | client_id: %v | error: %v", action, c.config.ID, err)
}
