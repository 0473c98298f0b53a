package systems

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobSystemValidates(t *testing.T) {
	_, err := NewJobSystem(0, 1)
	assert.ErrorIs(t, err, ErrNoWorkers)
	_, err = NewJobSystem(1, -1)
	assert.ErrorIs(t, err, ErrNegativeChannelSize)
}

func TestJobsRunAndReport(t *testing.T) {
	js, err := NewJobSystem(4, 8)
	require.NoError(t, err)

	var completed, failed atomic.Int32
	var wg sync.WaitGroup
	boom := errors.New("boom")
	for i := 0; i < 20; i++ {
		wg.Add(1)
		fail := i%5 == 0
		js.Submit(Job{
			Name: "job",
			Run: func() error {
				if fail {
					return boom
				}
				return nil
			},
			OnComplete: func() {
				completed.Add(1)
				wg.Done()
			},
			OnFailure: func(err error) {
				assert.ErrorIs(t, err, boom)
				failed.Add(1)
				wg.Done()
			},
		})
	}
	wg.Wait()
	assert.Equal(t, int32(16), completed.Load())
	assert.Equal(t, int32(4), failed.Load())

	require.NoError(t, js.Shutdown())
	require.NoError(t, js.Shutdown())
}
