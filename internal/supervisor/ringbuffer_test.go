package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingBuffer_SnapshotBeforeWrap(t *testing.T) {
	rb := newRingBuffer(8)
	rb.Write([]byte("abc"))
	assert.Equal(t, []byte("abc"), rb.Snapshot())
}

func TestRingBuffer_SnapshotAfterWrapKeepsWriteOrder(t *testing.T) {
	rb := newRingBuffer(4)
	rb.Write([]byte("abcdef")) // wraps: buffer only keeps last 4 bytes
	assert.Equal(t, []byte("cdef"), rb.Snapshot())
}

func TestRingBuffer_ExactCapacityFill(t *testing.T) {
	rb := newRingBuffer(4)
	rb.Write([]byte("abcd"))
	assert.Equal(t, []byte("abcd"), rb.Snapshot())
}

func TestLineEventBuffer_CapsLineCount(t *testing.T) {
	b := newLineEventBuffer(2, 100)
	b.Append("l1")
	b.Append("l2")
	b.Append("l3")
	assert.Equal(t, []string{"l2", "l3"}, b.Lines())
}

func TestLineEventBuffer_FullOnEitherLimit(t *testing.T) {
	b := newLineEventBuffer(10, 2)
	assert.False(t, b.Full())
	b.Append("l1")
	assert.False(t, b.Full())
	b.Append("l2")
	assert.True(t, b.Full())
}
