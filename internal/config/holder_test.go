package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHolderUpdateIsVisibleToReaders(t *testing.T) {
	h := NewHolder(DefaultConfig())
	assert.Equal(t, DefaultWorkerCount, h.Config().WorkerCount)

	next := DefaultConfig()
	next.WorkerCount = 16
	h.Update(next)

	assert.Equal(t, 16, h.Config().WorkerCount)
}
