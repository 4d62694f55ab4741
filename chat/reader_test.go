package chat_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/repopulse/chat"
)

// feedInPieces feeds the wire bytes to a reader split at every possible
// boundary width, so chunk boundaries land mid-line and mid-rune.
func feedInPieces(t *testing.T, wire string, size int, onChunk chat.ChunkFunc) (*chat.StreamReader, error) {
	t.Helper()
	reader := chat.NewStreamReader(onChunk)
	data := []byte(wire)
	for start := 0; start < len(data); start += size {
		end := start + size
		if end > len(data) {
			end = len(data)
		}
		if err := reader.Feed(data[start:end]); err != nil {
			return reader, err
		}
	}
	return reader, nil
}

func TestStreamReader_ReassemblesAcrossArbitrarySplits(t *testing.T) {
	wire := "data: {\"chunk\":\"Hel\"}\n" +
		"data: {\"chunk\":\"lo\"}\n" +
		"data: {\"done\":true}\n"

	// Every split width, including 1 byte at a time.
	for size := 1; size <= len(wire); size++ {
		var deltas []string
		reader, err := feedInPieces(t, wire, size, func(delta, total string) {
			deltas = append(deltas, delta)
		})
		require.NoError(t, err, "split size %d", size)

		assert.True(t, reader.Finished(), "split size %d", size)
		assert.Equal(t, "Hello", reader.Result(), "split size %d", size)
		assert.Equal(t, []string{"Hel", "lo"}, deltas, "split size %d", size)
	}
}

func TestStreamReader_MultiByteRunesSplitMidSequence(t *testing.T) {
	wire := "data: {\"chunk\":\"héllo \"}\n" +
		"data: {\"chunk\":\"wörld ✓\"}\n" +
		"data: {\"done\":true}\n"

	for size := 1; size <= 5; size++ {
		reader, err := feedInPieces(t, wire, size, nil)
		require.NoError(t, err, "split size %d", size)
		assert.Equal(t, "héllo wörld ✓", reader.Result(), "split size %d", size)
	}
}

func TestStreamReader_RunningTotalAccumulates(t *testing.T) {
	wire := "data: {\"chunk\":\"a\"}\ndata: {\"chunk\":\"b\"}\ndata: {\"chunk\":\"c\"}\n"

	var totals []string
	reader, err := feedInPieces(t, wire, len(wire), func(delta, total string) {
		totals = append(totals, total)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "ab", "abc"}, totals)
	// No done record: graceful degradation to the accumulated text.
	assert.False(t, reader.Finished())
	assert.Equal(t, "abc", reader.Result())
}

func TestStreamReader_ErrorShortCircuits(t *testing.T) {
	wire := "data: {\"chunk\":\"keep\"}\n" +
		"data: {\"error\":\"boom\"}\n" +
		"data: {\"chunk\":\"never\"}\n" +
		"data: {\"done\":true}\n"

	var deltas []string
	reader := chat.NewStreamReader(func(delta, total string) {
		deltas = append(deltas, delta)
	})

	err := reader.Feed([]byte(wire))
	require.Error(t, err)

	var respErr *chat.ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, "boom", respErr.Message)

	// Trailing records after the error must not be processed.
	assert.Equal(t, []string{"keep"}, deltas)

	// Feeding further bytes after failure is a no-op.
	require.NoError(t, reader.Feed([]byte("data: {\"chunk\":\"late\"}\n")))
	assert.Equal(t, []string{"keep"}, deltas)
}

func TestStreamReader_DoneFullResponseWins(t *testing.T) {
	wire := "data: {\"chunk\":\"partial\"}\n" +
		"data: {\"done\":true,\"fullResponse\":\"complete answer\"}\n"

	reader, err := feedInPieces(t, wire, 7, nil)
	require.NoError(t, err)
	assert.Equal(t, "complete answer", reader.Result())
}

func TestStreamReader_IgnoresTransportArtifacts(t *testing.T) {
	wire := ": keep-alive\n" +
		"\n" +
		"data: not json at all\n" +
		"unprefixed line\n" +
		"data: {\"unknown\":\"shape\"}\n" +
		"data: {\"chunk\":\"ok\"}\n" +
		"data: {\"done\":true}\n"

	reader, err := feedInPieces(t, wire, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", reader.Result())
}

func TestStreamReader_CRLFLines(t *testing.T) {
	wire := "data: {\"chunk\":\"win\"}\r\ndata: {\"done\":true}\r\n"

	reader, err := feedInPieces(t, wire, 4, nil)
	require.NoError(t, err)
	assert.Equal(t, "win", reader.Result())
}

func TestStreamReader_RecordsAfterDoneIgnored(t *testing.T) {
	wire := "data: {\"chunk\":\"first\"}\n" +
		"data: {\"done\":true}\n" +
		"data: {\"chunk\":\"stale\"}\n"

	var deltas []string
	reader := chat.NewStreamReader(func(delta, total string) {
		deltas = append(deltas, delta)
	})
	require.NoError(t, reader.Feed([]byte(wire)))

	assert.Equal(t, []string{"first"}, deltas)
	assert.Equal(t, "first", reader.Result())
}

func TestReadStream_DrivesReaderToCompletion(t *testing.T) {
	wire := "data: {\"chunk\":\"Hel\"}\ndata: {\"chunk\":\"lo\"}\ndata: {\"done\":true}\n"

	full, err := chat.ReadStream(context.Background(), strings.NewReader(wire), nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello", full)
}

func TestReadStream_EOFWithoutDone(t *testing.T) {
	wire := "data: {\"chunk\":\"truncated\"}\n"

	full, err := chat.ReadStream(context.Background(), strings.NewReader(wire), nil)
	require.NoError(t, err)
	assert.Equal(t, "truncated", full)
}

func TestReadStream_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := chat.ReadStream(ctx, strings.NewReader("data: {\"chunk\":\"x\"}\n"), nil)
	require.ErrorIs(t, err, context.Canceled)
}
