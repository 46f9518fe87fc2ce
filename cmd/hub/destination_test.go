package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv(t *testing.T) {
	assert.Nil(t, parseEnv(""))
	env := parseEnv("FOO=bar,BAZ=qux")
	assert.Equal(t, map[string]string{"FOO": "bar", "BAZ": "qux"}, env)
}

func TestSplitNonEmpty(t *testing.T) {
	assert.Nil(t, splitNonEmpty(""))
	assert.Equal(t, []string{"A", "B"}, splitNonEmpty("A, B,"))
}

func TestParseMounts(t *testing.T) {
	mounts, uerr := parseMounts("/host/src:/container/dst:ro,/host/a:/a")
	require.Empty(t, uerr)
	require.Len(t, mounts, 2)
	assert.Equal(t, "/host/src", mounts[0].Source)
	assert.Equal(t, "/container/dst", mounts[0].Target)
	assert.True(t, mounts[0].ReadOnly)
	assert.Equal(t, "/host/a", mounts[1].Source)
	assert.False(t, mounts[1].ReadOnly)
}

func TestParseMounts_Invalid(t *testing.T) {
	_, uerr := parseMounts("missing-colon")
	assert.NotEmpty(t, uerr)
}
