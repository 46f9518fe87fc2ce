package destination

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalExec_RunCapturesStdout(t *testing.T) {
	e := NewLocalExec()
	result, err := e.Run(context.Background(), []string{"echo", "hello"}, DefaultOpts())
	require.NoError(t, err)
	assert.Equal(t, "hello\n", result.Stdout)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "local", result.ExecutorUsed)
}

func TestLocalExec_RunSurfacesNonZeroExitCodeWithoutError(t *testing.T) {
	e := NewLocalExec()
	result, err := e.Run(context.Background(), []string{"sh", "-c", "exit 3"}, DefaultOpts())
	require.NoError(t, err)
	assert.Equal(t, 3, result.ExitCode)
}

func TestLocalExec_RunRejectsEmptyCommand(t *testing.T) {
	e := NewLocalExec()
	_, err := e.Run(context.Background(), nil, DefaultOpts())
	assert.Error(t, err)
}

func TestLocalExec_RunRejectsMissingWorkDir(t *testing.T) {
	e := NewLocalExec()
	_, err := e.Run(context.Background(), []string{"echo", "hi"}, Opts{WorkDir: "/no/such/dir"})
	assert.Error(t, err)
}

func TestLocalExec_Available(t *testing.T) {
	assert.True(t, NewLocalExec().Available())
	assert.Equal(t, "local", NewLocalExec().Name())
}

func TestLocalExec_StartProcess_RejectsEmptyCommand(t *testing.T) {
	e := NewLocalExec()
	_, err := e.StartProcess(context.Background(), ProcessSpec{})
	assert.Error(t, err)
}
