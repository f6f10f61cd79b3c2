package common

import (
	"errors"
	"fmt"
	"sync"
)

// ErrLotteryAborted is returned by RecordFinish when the server is shutting
// down and the barrier was torn down before the last agency finished.
var ErrLotteryAborted = errors.New("lottery aborted")

// Lottery coordinates the draw across the connection handlers. It tracks
// which agencies finished, materializes the bets table exactly once when the
// last one does, and releases every handler waiting on the finish barrier at
// that same moment, so no agency gets its FINISHED acknowledged before the
// table is visible.
type Lottery struct {
	store    BetStore
	agencies int

	mu       sync.Mutex
	finished map[int]struct{}
	release  chan struct{}
	abort    chan struct{}

	fileMu sync.Mutex

	tableMu sync.RWMutex
	bets    []Bet
}

// NewLottery builds a coordinator expecting `agencies` distinct agencies to finish.
func NewLottery(store BetStore, agencies int) *Lottery {
	return &Lottery{
		store:    store,
		agencies: agencies,
		finished: make(map[int]struct{}),
		release:  make(chan struct{}),
		abort:    make(chan struct{}),
	}
}

// AppendBatch persists a batch of bets. Appends from concurrent handlers are
// serialized by the file lock, which is never held across network I/O.
func (l *Lottery) AppendBatch(bets []Bet) error {
	l.fileMu.Lock()
	defer l.fileMu.Unlock()
	return l.store.Append(bets)
}

// RecordFinish registers that an agency sent all its bets and blocks until
// every agency did. Duplicate FINISHED messages from the same agency do not
// advance the quorum; the duplicate caller simply waits on the same barrier.
// The caller observing the last distinct agency runs the draw before anyone
// is released. Returns ErrLotteryAborted if the server shut down while waiting.
func (l *Lottery) RecordFinish(agency int) error {
	l.mu.Lock()
	if _, dup := l.finished[agency]; !dup {
		l.finished[agency] = struct{}{}
		if len(l.finished) == l.agencies {
			if err := l.draw(); err != nil {
				// A reconnecting agency may complete the quorum again.
				delete(l.finished, agency)
				l.mu.Unlock()
				return err
			}
			close(l.release)
		}
	}
	l.mu.Unlock()

	select {
	case <-l.release:
		return nil
	case <-l.abort:
		return ErrLotteryAborted
	}
}

// draw loads every persisted bet into the in-memory table. Called exactly
// once, with the coordinator mutex held, by the handler that completes the
// quorum.
func (l *Lottery) draw() error {
	l.fileMu.Lock()
	bets, err := l.store.LoadAll()
	l.fileMu.Unlock()
	if err != nil {
		log.Errorf("action: sorteo | result: fail | error: %v", err)
		return fmt.Errorf("load bets for draw: %w", err)
	}
	l.tableMu.Lock()
	l.bets = bets
	l.tableMu.Unlock()
	log.Info("action: sorteo | result: success")
	return nil
}

// WinnersFor returns the documents of the agency's winning bets, in the order
// the bets were persisted. Before the draw the table is empty, so the result
// is an empty list; conforming clients only ask after their FINISHED was
// acknowledged.
func (l *Lottery) WinnersFor(agency int) []string {
	l.tableMu.RLock()
	defer l.tableMu.RUnlock()

	var documents []string
	for _, bet := range l.bets {
		if bet.Agency == agency && l.store.HasWon(bet) {
			documents = append(documents, bet.Document)
		}
	}
	return documents
}

// Abort tears down the finish barrier so handlers blocked in RecordFinish
// exit with ErrLotteryAborted during shutdown. Safe to call more than once.
func (l *Lottery) Abort() {
	l.mu.Lock()
	defer l.mu.Unlock()
	select {
	case <-l.abort:
	default:
		close(l.abort)
	}
}
