package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineWriterSplitsChunksIntoLines(t *testing.T) {
	var lines []string
	w := NewLineWriter(func(line string) { lines = append(lines, line) })

	for _, chunk := range []string{"fir", "st\nsec", "ond\nthird\n"} {
		n, err := w.Write([]byte(chunk))
		require.NoError(t, err)
		assert.Equal(t, len(chunk), n)
	}

	assert.Equal(t, []string{"first", "second", "third"}, lines)
}

func TestLineWriterStripsCarriageReturns(t *testing.T) {
	var lines []string
	w := NewLineWriter(func(line string) { lines = append(lines, line) })

	_, err := w.Write([]byte("windows\r\nplain\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"windows", "plain"}, lines)
}

func TestLineWriterFlushEmitsPartialLine(t *testing.T) {
	var lines []string
	w := NewLineWriter(func(line string) { lines = append(lines, line) })

	_, err := w.Write([]byte("no trailing newline"))
	require.NoError(t, err)
	assert.Empty(t, lines)

	w.Flush()
	assert.Equal(t, []string{"no trailing newline"}, lines)
}

func TestLineWriterFlushSkipsWhitespaceTail(t *testing.T) {
	var lines []string
	w := NewLineWriter(func(line string) { lines = append(lines, line) })

	_, err := w.Write([]byte("done\n   "))
	require.NoError(t, err)

	w.Flush()
	assert.Equal(t, []string{"done"}, lines)
}

func TestLineWriterFlushIsIdempotent(t *testing.T) {
	var lines []string
	w := NewLineWriter(func(line string) { lines = append(lines, line) })

	_, err := w.Write([]byte("tail"))
	require.NoError(t, err)

	w.Flush()
	w.Flush()
	assert.Equal(t, []string{"tail"}, lines)
}

func TestLineWriterSurvivesPanickingCallback(t *testing.T) {
	calls := 0
	w := NewLineWriter(func(line string) {
		calls++
		panic("listener blew up")
	})

	require.NotPanics(t, func() {
		_, _ = w.Write([]byte("one\ntwo\n"))
	})
	assert.Equal(t, 2, calls)
}
