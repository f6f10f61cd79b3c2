package common

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// LotteryWinnerNumber is the drawn number: a bet wins iff it picked it.
const LotteryWinnerNumber = 7574

var ErrInvalidBet = errors.New("invalid bet")

// Bet is a single lottery entry as received from an agency.
type Bet struct {
	Agency    int
	FirstName string
	LastName  string
	Document  string
	Birthdate string
	Number    int
}

// NewBet validates the raw fields of a bet record and builds a Bet.
// Every field must be non-empty, agency must be a positive integer,
// birthdate must be an ISO date and number must be an integer.
func NewBet(agency, firstName, lastName, document, birthdate, number string) (Bet, error) {
	if firstName == "" || lastName == "" || document == "" || birthdate == "" || number == "" {
		return Bet{}, fmt.Errorf("%w: empty field", ErrInvalidBet)
	}
	agencyId, err := strconv.Atoi(agency)
	if err != nil || agencyId <= 0 {
		return Bet{}, fmt.Errorf("%w: agency %q is not a positive integer", ErrInvalidBet, agency)
	}
	if _, err := time.Parse("2006-01-02", birthdate); err != nil {
		return Bet{}, fmt.Errorf("%w: birthdate %q is not an ISO date", ErrInvalidBet, birthdate)
	}
	betNumber, err := strconv.Atoi(number)
	if err != nil {
		return Bet{}, fmt.Errorf("%w: number %q is not an integer", ErrInvalidBet, number)
	}
	return Bet{
		Agency:    agencyId,
		FirstName: firstName,
		LastName:  lastName,
		Document:  document,
		Birthdate: birthdate,
		Number:    betNumber,
	}, nil
}

// BetStore abstracts the persistence layer for bets.
type BetStore interface {
	// Append durably appends every bet in the batch.
	Append(bets []Bet) error
	// LoadAll enumerates every persisted bet, in append order.
	LoadAll() ([]Bet, error)
	// HasWon reports whether the bet picked the drawn number.
	HasWon(bet Bet) bool
}

// CSVBetStore persists bets as rows of a CSV file. Callers are expected
// to serialize Append calls (the lottery holds the file lock).
type CSVBetStore struct {
	path string
}

func NewCSVBetStore(path string) *CSVBetStore {
	return &CSVBetStore{path: path}
}

func (s *CSVBetStore) Append(bets []Bet) error {
	file, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	for _, bet := range bets {
		record := []string{
			strconv.Itoa(bet.Agency),
			bet.FirstName,
			bet.LastName,
			bet.Document,
			bet.Birthdate,
			strconv.Itoa(bet.Number),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func (s *CSVBetStore) LoadAll() ([]Bet, error) {
	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = 6

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	bets := make([]Bet, 0, len(records))
	for _, record := range records {
		bet, err := NewBet(record[0], record[1], record[2], record[3], record[4], record[5])
		if err != nil {
			return nil, err
		}
		bets = append(bets, bet)
	}
	return bets, nil
}

func (s *CSVBetStore) HasWon(bet Bet) bool {
	return bet.Number == LotteryWinnerNumber
}
