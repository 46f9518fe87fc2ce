package delivery

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkText_ShortTextIsOneChunk(t *testing.T) {
	chunks := chunkText("hello world", 3500)
	require.Len(t, chunks, 1)
	assert.Equal(t, "hello world", chunks[0])
}

func TestChunkText_EmptyPayloadYieldsOneEmptyChunk(t *testing.T) {
	chunks := chunkText("", 3500)
	require.Len(t, chunks, 1)
	assert.Equal(t, "", chunks[0])
}

func TestChunkText_SplitsOnSize(t *testing.T) {
	text := strings.Repeat("a", 10)
	chunks := chunkText(text, 4)
	require.Len(t, chunks, 3)
	assert.Equal(t, "aaaa", chunks[0])
	assert.Equal(t, "aaaa", chunks[1])
	assert.Equal(t, "aa", chunks[2])
}

func TestChunkText_PrefersBreakingOnNewlineNearBoundary(t *testing.T) {
	text := "aaaaa\nbbbbb"
	chunks := chunkText(text, 8)
	require.Len(t, chunks, 2)
	assert.Equal(t, "aaaaa\n", chunks[0])
	assert.Equal(t, "bbbbb", chunks[1])
}

func TestChunkText_IgnoresNewlineTooCloseToStart(t *testing.T) {
	// a newline at index 0 of the window is not "near the boundary" (the
	// nl > size/2 guard), so the chunk should fall back to a hard cut.
	text := "\n" + strings.Repeat("b", 9)
	chunks := chunkText(text, 5)
	require.Len(t, chunks, 2)
	assert.Equal(t, "\nbbbb", chunks[0])
	assert.Equal(t, "bbbbb", chunks[1])
}

func TestChunkText_HandlesMultiByteRunes(t *testing.T) {
	text := strings.Repeat("é", 10) // 'é', 2 bytes in UTF-8, 1 rune
	chunks := chunkText(text, 4)
	require.Len(t, chunks, 3)
	assert.Equal(t, 4, len([]rune(chunks[0])))
	assert.Equal(t, 4, len([]rune(chunks[1])))
	assert.Equal(t, 2, len([]rune(chunks[2])))
}

func TestChunkText_DefaultsNonPositiveSize(t *testing.T) {
	chunks := chunkText("short", 0)
	require.Len(t, chunks, 1)
	assert.Equal(t, "short", chunks[0])
}

func TestLastNewline(t *testing.T) {
	assert.Equal(t, -1, lastNewline([]rune("abc")))
	assert.Equal(t, 1, lastNewline([]rune("a\nc")))
	assert.Equal(t, 3, lastNewline([]rune("a\nc\n")))
}
