package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autorunner/internal/model"
)

func TestBuildTarget_Web(t *testing.T) {
	target, uerr := buildTarget("web", "", "", "", "")
	require.Empty(t, uerr)
	assert.Equal(t, model.TargetWeb, target.Kind)
}

func TestBuildTarget_LocalRequiresPath(t *testing.T) {
	_, uerr := buildTarget("local", "", "", "", "")
	assert.NotEmpty(t, uerr)

	target, uerr := buildTarget("local", "/tmp/out.jsonl", "", "", "")
	require.Empty(t, uerr)
	assert.Equal(t, model.TargetLocal, target.Kind)
	assert.Equal(t, "/tmp/out.jsonl", target.Path)
}

func TestBuildTarget_ChatRequiresPlatformAndChatID(t *testing.T) {
	_, uerr := buildTarget("chat", "", "", "", "")
	assert.NotEmpty(t, uerr)

	_, uerr = buildTarget("chat", "", "carrier-pigeon", "123", "")
	assert.NotEmpty(t, uerr)

	target, uerr := buildTarget("chat", "", "telegram", "123", "456")
	require.Empty(t, uerr)
	assert.Equal(t, model.TargetChat, target.Kind)
	assert.Equal(t, model.PlatformTelegram, target.Platform)
	assert.Equal(t, "123", target.ChatID)
	assert.Equal(t, "456", target.ThreadID)
}

func TestBuildTarget_UnknownKind(t *testing.T) {
	_, uerr := buildTarget("carrier-pigeon", "", "", "", "")
	assert.NotEmpty(t, uerr)
}
