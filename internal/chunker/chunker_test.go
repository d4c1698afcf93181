package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitEmptyInput(t *testing.T) {
	c := New(1000, 2)

	chunks, err := c.Split("")
	require.NoError(t, err)
	assert.Nil(t, chunks)

	chunks, err = c.Split("   \n\t  ")
	require.NoError(t, err)
	assert.Nil(t, chunks)
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	c := New(1000, 2)

	chunks, err := c.Split("The midterm covers chapters one through four. Bring a calculator.")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0], "midterm covers")
	assert.Contains(t, chunks[0], "calculator")
}

func TestSplitRespectsBudget(t *testing.T) {
	c := New(120, 1)

	var b strings.Builder
	for i := 0; i < 20; i++ {
		b.WriteString("Operating systems schedule processes with priority queues. ")
	}

	chunks, err := c.Split(b.String())
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 120)
		assert.NotEmpty(t, strings.TrimSpace(chunk))
	}
}

func TestSplitOverlapCarriesSentences(t *testing.T) {
	c := New(80, 1)

	text := "First sentence about databases. Second sentence about indexes. " +
		"Third sentence about transactions. Fourth sentence about locking."

	chunks, err := c.Split(text)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	// The last sentence of each chunk reappears at the head of the next.
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		lastPeriod := strings.LastIndex(strings.TrimSuffix(prev, "."), ". ")
		tail := prev
		if lastPeriod >= 0 {
			tail = prev[lastPeriod+2:]
		}
		assert.True(t, strings.HasPrefix(chunks[i], tail),
			"chunk %d should start with the previous chunk's tail sentence", i)
	}
}

func TestSplitHardSplitsOversizeSentence(t *testing.T) {
	c := New(50, 0)

	// One unbroken "sentence" far beyond the budget.
	chunks, err := c.Split(strings.Repeat("abcde", 40))
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 50)
	}
	assert.Equal(t, strings.Repeat("abcde", 40), strings.Join(chunks, ""))
}

func TestSplitHardSplitKeepsRunesIntact(t *testing.T) {
	c := New(50, 0)

	// Three-byte runes; 50 is not a multiple of 3, so naive byte slicing
	// would cut mid-rune.
	text := strings.Repeat("算法与数据结构", 20)
	chunks, err := c.Split(text)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for _, chunk := range chunks {
		assert.True(t, utf8.ValidString(chunk))
		assert.LessOrEqual(t, len(chunk), 50)
	}
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestSplitZeroOverlapLosesNothing(t *testing.T) {
	c := New(100, 0)

	text := "Alpha is the first topic. Beta is the second topic. Gamma is the third topic."
	chunks, err := c.Split(text)
	require.NoError(t, err)

	joined := strings.Join(chunks, " ")
	assert.Contains(t, joined, "Alpha")
	assert.Contains(t, joined, "Beta")
	assert.Contains(t, joined, "Gamma")
}

func TestNewClampsArguments(t *testing.T) {
	c := New(0, -3)
	assert.Equal(t, 1000, c.maxChars)
	assert.Equal(t, 0, c.overlapSentences)
}
