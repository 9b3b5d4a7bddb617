package queue

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalQueueServesZeroValueDuringDelay(t *testing.T) {
	q := NewLocal[string](2)

	for frame := 0; frame < 2; frame++ {
		v, status := q.Get(frame, ReturnImmediately)
		require.Equal(t, Success, status)
		assert.Equal(t, "", v)
	}

	require.NoError(t, q.Put(0, "x"))
	v, status := q.Get(2, ReturnImmediately)
	require.Equal(t, Success, status)
	assert.Equal(t, "x", v)
}

func TestGetEnforcesStrictSequentiality(t *testing.T) {
	q := NewLocal[int](0)
	require.NoError(t, q.Put(0, 7))
	_, status := q.Get(1, ReturnImmediately)
	assert.Equal(t, UnexpectedFrame, status)
}

func TestGetTimesOutWhenNothingArrives(t *testing.T) {
	q := NewLocal[int](0)
	_, status := q.Get(0, Timeout(10*time.Millisecond/time.Microsecond))
	assert.Equal(t, TimedOut, status)
}

func TestPutRejectsPastFrame(t *testing.T) {
	q := NewLocal[int](0)
	require.NoError(t, q.Put(0, 1))
	_, status := q.Get(0, ReturnImmediately)
	require.Equal(t, Success, status)

	err := q.Put(0, 2)
	assert.ErrorIs(t, err, ErrRejected)
}

func TestPutRejectsDuplicateFrame(t *testing.T) {
	q := NewLocal[int](0)
	require.NoError(t, q.Put(5, 1))
	assert.ErrorIs(t, q.Put(5, 2), ErrRejected)
}

func TestPutRejectsNegativeFrame(t *testing.T) {
	q := NewLocal[int](0)
	assert.ErrorIs(t, q.Put(-1, 1), ErrRejected)
}

func TestRemoteQueueRejectsFramesBelowDelay(t *testing.T) {
	q := NewRemote[int](3)
	assert.ErrorIs(t, q.Put(2, 99), ErrRejected)
	require.NoError(t, q.Put(3, 99))
}

func TestLocalAndRemoteQueuesAgreeAtMatchingFrames(t *testing.T) {
	const delay = 4
	local := NewLocal[int](delay)
	remote := NewRemote[int](delay)

	// local producer writes undelayed frame numbers
	require.NoError(t, local.Put(0, 42))
	// remote producer writes the already-delayed frame number it received
	require.NoError(t, remote.Put(0+delay, 42))

	for f := 0; f < delay; f++ {
		lv, ls := local.Get(f, ReturnImmediately)
		rv, rs := remote.Get(f, ReturnImmediately)
		require.Equal(t, Success, ls)
		require.Equal(t, Success, rs)
		assert.Equal(t, lv, rv)
	}

	lv, ls := local.Get(delay, BlockForever)
	rv, rs := remote.Get(delay, BlockForever)
	require.Equal(t, Success, ls)
	require.Equal(t, Success, rs)
	assert.Equal(t, 42, lv)
	assert.Equal(t, lv, rv)
}

func TestBlockingGetWakesOnPut(t *testing.T) {
	q := NewLocal[int](0)
	done := make(chan GetStatus, 1)
	go func() {
		_, status := q.Get(0, BlockForever)
		done <- status
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Put(0, 1))

	select {
	case status := <-done:
		assert.Equal(t, Success, status)
	case <-time.After(time.Second):
		t.Fatal("Get never woke up after Put")
	}
}

// TestProducerConsumerTorture drives a single local queue with a shuffled
// producer and a strictly-increasing consumer over several thousand frames,
// mirroring the end-to-end torture scenario in the design notes.
func TestProducerConsumerTorture(t *testing.T) {
	const delay = 5
	const frameCount = 7200
	q := NewLocal[int](delay)

	order := rand.New(rand.NewSource(1)).Perm(frameCount)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for _, frame := range order {
			for {
				if err := q.Put(frame, frame); err == nil {
					break
				}
			}
		}
	}()

	for frame := 0; frame < frameCount+delay; frame++ {
		v, status := q.Get(frame, BlockForever)
		require.Equal(t, Success, status, "frame %d", frame)
		if frame < delay {
			assert.Equal(t, 0, v)
		} else {
			assert.Equal(t, frame-delay, v)
		}
	}

	wg.Wait()
}
