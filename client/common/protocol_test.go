package common

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatBetRecord(t *testing.T) {
	record := FormatBetRecord("3", []string{"Juan", "Perez", "30123456", "1990-05-01", "4242"})
	assert.Equal(t, "3|Juan|Perez|30123456|1990-05-01|4242\n", record)
}

func TestFormatControl(t *testing.T) {
	assert.Equal(t, []byte("3|FINISHED\n"), FormatControl("3", FinishedVerb))
	assert.Equal(t, []byte("3|REQUEST_WINNERS\n"), FormatControl("3", RequestWinnersVerb))
}

func TestParseWinners(t *testing.T) {
	winners, err := ParseWinners("WINNERS:30123456|30111222\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"30123456", "30111222"}, winners)
}

func TestParseWinnersEmpty(t *testing.T) {
	winners, err := ParseWinners("WINNERS:\n")
	require.NoError(t, err)
	assert.Empty(t, winners)
}

func TestParseWinnersUnexpectedResponse(t *testing.T) {
	_, err := ParseWinners("BATCH_RECEIVED\n")
	var protocolErr *ProtocolError
	assert.ErrorAs(t, err, &protocolErr)
}

func TestBatchBuilderRespectsRecordLimit(t *testing.T) {
	builder := NewBatchBuilder(2)

	payload, full := builder.Add("1|A|B|11111111|2000-01-01|1\n")
	assert.False(t, full)
	assert.Nil(t, payload)

	payload, full = builder.Add("1|C|D|22222222|2000-01-01|2\n")
	assert.False(t, full)
	assert.Nil(t, payload)

	// Third record overflows the limit: the first two come back as a batch.
	payload, full = builder.Add("1|E|F|33333333|2000-01-01|3\n")
	require.True(t, full)
	assert.Equal(t, 2, strings.Count(string(payload), "\n"))
	assert.Equal(t, int32(1), builder.Count())

	remainder := builder.Flush()
	assert.Equal(t, "1|E|F|33333333|2000-01-01|3\n", string(remainder))
	assert.Nil(t, builder.Flush())
}

func TestBatchBuilderOversizedRecordAlone(t *testing.T) {
	builder := NewBatchBuilder(10)

	record := "1|" + strings.Repeat("x", 2*maxBatchBytes) + "\n"
	payload, full := builder.Add(record)
	assert.False(t, full)
	assert.Nil(t, payload)

	// The oversized record still goes out, as its own batch.
	assert.Equal(t, record, string(builder.Flush()))
}

func TestBatchBuilderRespectsByteCap(t *testing.T) {
	builder := NewBatchBuilder(1000)

	record := "1|" + strings.Repeat("x", 1021) + "\n" // exactly 1 KiB per record
	flushes := 0
	for i := 0; i < 9; i++ {
		if _, full := builder.Add(record); full {
			flushes++
		}
	}
	// Eight records fill the 8 KiB cap; the ninth forces a flush.
	assert.Equal(t, 1, flushes)
	assert.Equal(t, int32(1), builder.Count())
}
