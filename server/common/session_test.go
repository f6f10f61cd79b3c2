package common

import (
	"bytes"
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingConn captures everything the session writes. Only Write is used by
// handleBatch; the embedded net.Conn covers the rest of the interface.
type recordingConn struct {
	net.Conn
	wrote bytes.Buffer
}

func (c *recordingConn) Write(p []byte) (int, error) {
	return c.wrote.Write(p)
}

// cancelOnAppendStore cancels the given context from inside Append, so the
// shutdown check that follows storage is the one that fires.
type cancelOnAppendStore struct {
	*fakeStore
	cancel context.CancelFunc
}

func (s *cancelOnAppendStore) Append(bets []Bet) error {
	s.cancel()
	return s.fakeStore.Append(bets)
}

func TestHandleBatchShutdownBeforeBatchSendsNoResponse(t *testing.T) {
	conn := &recordingConn{}
	store := &fakeStore{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &session{conn: conn, lottery: NewLottery(store, 1)}
	done, err := s.handleBatch(ctx, BetBatch{Records: []string{"1|A|B|11111111|2000-01-01|1"}})

	require.NoError(t, err)
	assert.True(t, done)
	assert.Zero(t, conn.wrote.Len())
	assert.Empty(t, store.bets)
}

func TestHandleBatchShutdownAfterStoreSendsNoResponse(t *testing.T) {
	conn := &recordingConn{}
	ctx, cancel := context.WithCancel(context.Background())
	store := &cancelOnAppendStore{fakeStore: &fakeStore{}, cancel: cancel}

	s := &session{conn: conn, lottery: NewLottery(store, 1)}
	done, err := s.handleBatch(ctx, BetBatch{Records: []string{"1|A|B|11111111|2000-01-01|1"}})

	require.NoError(t, err)
	assert.True(t, done)
	assert.Zero(t, conn.wrote.Len())
	// The record made it to storage before the shutdown was observed.
	assert.Len(t, store.fakeStore.bets, 1)
}

func TestHandleBatchRespondsWhileRunning(t *testing.T) {
	conn := &recordingConn{}

	s := &session{conn: conn, lottery: NewLottery(&fakeStore{}, 1)}
	done, err := s.handleBatch(context.Background(), BetBatch{Records: []string{"1|A|B|11111111|2000-01-01|1"}})

	require.NoError(t, err)
	assert.False(t, done)

	response, err := ReceiveMessage(bytes.NewReader(conn.wrote.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, BatchReceivedResponse, string(response))
}
