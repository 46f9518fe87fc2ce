package destination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(NewLocalExec()))

	e, err := r.Get("local")
	require.NoError(t, err)
	assert.Equal(t, "local", e.Name())
}

func TestRegistry_GetUnknownNameErrors(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("docker")
	assert.Error(t, err)
}

func TestRegistry_RegisterRejectsNil(t *testing.T) {
	r := NewRegistry()
	err := r.Register(nil)
	assert.Error(t, err)
}
