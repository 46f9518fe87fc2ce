package ticketfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexFromFilename(t *testing.T) {
	idx, err := IndexFromFilename("TICKET-042.md")
	require.NoError(t, err)
	assert.Equal(t, 42, idx)

	_, err = IndexFromFilename("notes.md")
	assert.Error(t, err)
}

func TestParse_RoundTripsFrontmatterAndBody(t *testing.T) {
	raw := "---\ntitle: Fix the thing\nagent: codex\ndone: false\n---\nDo the work.\n"
	p, err := Parse("TICKET-007.md", raw)
	require.NoError(t, err)
	assert.Equal(t, 7, p.Index)
	assert.Equal(t, "Fix the thing", p.Frontmatter.Title)
	assert.Equal(t, "codex", p.Frontmatter.Agent)
	assert.False(t, p.Frontmatter.Done)
	assert.Equal(t, "Do the work.\n", p.Body)

	rendered, err := Render(p)
	require.NoError(t, err)

	reparsed, err := Parse("TICKET-007.md", rendered)
	require.NoError(t, err)
	assert.Equal(t, p.Frontmatter, reparsed.Frontmatter)
	assert.Equal(t, p.Body, reparsed.Body)
}

func TestParse_RejectsMissingIndex(t *testing.T) {
	_, err := Parse("backlog.md", "---\ntitle: x\n---\nbody")
	assert.Error(t, err)
}

func TestParse_RejectsMissingFrontmatterDelimiters(t *testing.T) {
	_, err := Parse("TICKET-001.md", "no frontmatter here")
	assert.Error(t, err)

	_, err = Parse("TICKET-001.md", "---\ntitle: x\nbody without closing delimiter")
	assert.Error(t, err)
}

func TestParse_RejectsInvalidFrontmatterYAML(t *testing.T) {
	_, err := Parse("TICKET-001.md", "---\ntitle: [unterminated\n---\nbody")
	assert.Error(t, err)
}

func TestRender_AddsTrailingNewlineWhenMissing(t *testing.T) {
	out, err := Render(Parsed{Index: 1, Frontmatter: Frontmatter{Title: "t"}, Body: "no newline"})
	require.NoError(t, err)
	assert.True(t, len(out) > 0 && out[len(out)-1] == '\n')
}
