package ie

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIterLoopFeedsAcrossGoroutines(t *testing.T) {
	feeder, enum, _ := IterLoop()

	done := make(chan Iteratee, 1)
	go func() {
		done <- runEnum(enum, Many([]byte(nil), Any))
	}()

	// Feed from what stands in for a separate producer goroutine, the way
	// an async callback driving the feeder side would.
	var s Stream
	feeder, s = feeder.Feed(Chunk([]byte("ab")))
	require.Equal(t, Empty, s, "feeder should have consumed the whole chunk")
	feeder, s = feeder.Feed(Chunk([]byte("cd")))
	require.Equal(t, Empty, s, "feeder should have consumed the whole chunk")
	feeder, _ = feeder.Feed(End)
	require.True(t, feeder.IsDone(), "feeder should settle once it hands End to the mailbox")

	select {
	case it := <-done:
		require.True(t, it.IsDone(), "the driven iteratee should have settled once the feeder sent End")
		require.Equal(t, "abcd", string(it.Result().([]byte)))
	case <-time.After(time.Second):
		t.Fatal("enumerator should have returned once the feeder drained to End")
	}
}

func TestIterLoopKillStopsWithoutDraining(t *testing.T) {
	_, enum, kill := IterLoop()
	reason := errors.New("shutting down")

	done := make(chan Iteratee, 1)
	go func() {
		done <- runEnum(enum, Many([]byte(nil), Any))
	}()

	kill(reason)

	select {
	case it := <-done:
		if it.IsDone() && len(it.Result().([]byte)) > 0 {
			t.Errorf("expected no drained data after Kill; got %q", it.Result())
		}
	case <-time.After(time.Second):
		t.Fatal("loop should have exited promptly after kill")
	}
}

func TestPairFinalizerRunsOnce(t *testing.T) {
	calls := 0
	pf := NewPairFinalizer(func() error {
		calls++
		return nil
	})

	if err := pf.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := pf.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected exactly one invocation; got %d", calls)
	}
}

func TestPairFinalizerPropagatesError(t *testing.T) {
	boom := errors.New("close failed")
	pf := NewPairFinalizer(func() error { return boom })

	if err := pf.Run(); err != boom {
		t.Errorf("expected %v; got %v", boom, err)
	}
	if err := pf.Run(); err != boom {
		t.Errorf("second call should replay the same error; got %v", err)
	}
}
