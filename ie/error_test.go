package ie

import (
	"bytes"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCatchIRecoversMatchingFailure(t *testing.T) {
	it := Byte('x')
	caught := CatchI(it, func(e NoMatch, failing Iteratee) Iteratee {
		return Done("recovered: " + e.Expect)
	})

	i, _ := caught.Feed(Chunk([]byte("y")))
	if !i.IsDone() {
		t.Fatal("should have succeeded after recovery")
	}
	if i.Result().(string) == "" {
		t.Error("expected a recovered result")
	}
}

func TestCatchIPropagatesOtherKinds(t *testing.T) {
	it := Fail(IterGeneric{Msg: "boom"})
	caught := CatchI(it, func(e NoMatch, failing Iteratee) Iteratee {
		t.Fatal("handler should not run for a non-matching error kind")
		return failing
	})
	if caught.Err() == nil {
		t.Error("expected the original failure to propagate")
	}
}

func TestCatchBIRewindsConsumedInput(t *testing.T) {
	it := String("hello")
	caught := CatchBI(it, func(e NoMatch, failing Iteratee) Iteratee {
		return Many([]byte(nil), Any)
	})

	i, s := caught.Feed(Chunk([]byte("hel")))
	i, s = i.Feed(Chunk([]byte("p me")))
	i, s = i.Feed(End)
	if !i.IsDone() {
		t.Fatal("should have succeeded via the recovered parser")
	}
	if string(i.Result().([]byte)) != "help me" {
		t.Errorf("expected the rewound input to be reparsed; got %q", i.Result())
	}
	if s != End {
		t.Error("should have consumed to end of input")
	}
}

// TestCatchBICapsBacktrackBuffer mirrors TestCatchBIRewindsConsumedInput
// but with ActiveConfig().BacktrackCap set below the total bytes consumed
// before the mismatch, so the replay the handler's parser sees is
// trimmed to the most recent BacktrackCap bytes rather than everything
// CatchBI has seen.
func TestCatchBICapsBacktrackBuffer(t *testing.T) {
	prev := SetConfig(Config{BacktrackCap: 3})
	defer SetConfig(prev)

	it := String("hello")
	caught := CatchBI(it, func(e NoMatch, failing Iteratee) Iteratee {
		return Many([]byte(nil), Any)
	})

	i, _ := caught.Feed(Chunk([]byte("hel")))
	i, _ = i.Feed(Chunk([]byte("X")))
	i, _ = i.Feed(End)
	if !i.IsDone() {
		t.Fatal("should have succeeded via the recovered parser")
	}
	if string(i.Result().([]byte)) != "elX" {
		t.Errorf("expected the backtrack buffer capped to the last 3 bytes; got %q", i.Result())
	}
}

func TestResumeIRecoversInnerFromEnumeratorFailure(t *testing.T) {
	inner := Byte('z')
	failed := StopOuter(io.ErrClosedPipe, inner)

	resumed := ResumeI(failed)
	if resumed.IsStop() {
		t.Fatal("resumed iteratee should be the live inner, not still failed")
	}

	i, _ := resumed.Feed(Chunk([]byte("z")))
	if !i.IsDone() || i.Result().(byte) != 'z' {
		t.Error("resumed inner should continue normally")
	}
}

func TestVerboseResumeILogsAndResumes(t *testing.T) {
	var buf bytes.Buffer
	prev := SetDiag(slog.New(slog.NewTextHandler(&buf, nil)))
	defer SetDiag(prev)

	inner := Byte('z')
	failed := StopInner(io.ErrClosedPipe, inner)

	resumed := VerboseResumeI("test-prog", failed)
	if resumed.IsStop() {
		t.Fatal("resumed iteratee should be live")
	}
	if buf.Len() == 0 {
		t.Error("expected a diagnostic line to be written")
	}
}

func TestEnumCatchOnlyCatchesEnumeratorFailures(t *testing.T) {
	inner := Byte('z')
	outerFailed := StopOuter(io.ErrClosedPipe, inner)

	caught := EnumCatch(outerFailed, func(err error, failing Iteratee) Iteratee {
		return ResumeI(failing)
	})
	if caught.IsStop() {
		t.Error("EnumCatch should have recovered an outer enumerator failure")
	}

	plainFailed := Fail(IterGeneric{Msg: "boom"})
	untouched := EnumCatch(plainFailed, func(err error, failing Iteratee) Iteratee {
		t.Fatal("handler should not run for a plain iteratee failure")
		return failing
	})
	if !untouched.IsStop() {
		t.Error("a plain iteratee failure should propagate through EnumCatch untouched")
	}
}

// errCodec produces one chunk and then fails outright -- not with io.EOF --
// so enumOLoop's failure path runs: it calls StopOuter directly on whatever
// iteratee it was driving, without ever calling that iteratee's own k. That
// is the one path where EnumCatch and InumCatch, applied at the very same
// point before the Pipe, must disagree.
func errCodec(chunk string, failure error) CodecFunc {
	sent := false
	var next CodecFunc
	next = func() (Stream, CodecFunc, error) {
		if !sent {
			sent = true
			return Chunk([]byte(chunk)), next, nil
		}
		return Empty, nil, failure
	}
	return next
}

func TestEnumCatchVsInumCatch(t *testing.T) {
	boom := io.ErrClosedPipe

	// EnumCatch, applied before EnumO drives the iteratee, never sees the
	// codec's own failure: enumOLoop builds StopOuter directly from the
	// iteratee it was holding, without feeding it through k first, so
	// EnumCatch's recursive k-wrapper is never invoked for it.
	enumCaught := false
	viaEnumCatch := EnumCatch(Many([]byte(nil), Any), func(err error, failing Iteratee) Iteratee {
		enumCaught = true
		return Done("recovered")
	})
	result := runEnum(EnumO(errCodec("ab", boom)), viaEnumCatch)
	require.False(t, enumCaught, "EnumCatch should not observe a failure its driving enumerator builds directly")
	require.True(t, result.IsEnumOuterFail(), "expected the uncaught outer failure to surface; err=%v", result.Err())

	// InumCatch, applied at the same point, does see it: it registers on
	// the iteratee so StopOuter/StopInner dispatch to it immediately,
	// regardless of whether the failure arrived through k.
	inumCaught := false
	viaInumCatch := InumCatch(Many([]byte(nil), Any), func(err error, failing Iteratee) Iteratee {
		inumCaught = true
		return Done("recovered")
	})
	result = runEnum(EnumO(errCodec("ab", boom)), viaInumCatch)
	require.True(t, inumCaught, "InumCatch should observe a failure introduced by the enumerator piped in after it")
	require.True(t, result.IsDone())
	require.Equal(t, "recovered", result.Result())
}

func TestRunStripsIterEOFCause(t *testing.T) {
	it := Fail(IterEOF{Context: "reading header", Cause: io.ErrUnexpectedEOF})
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("Run() should panic when the iteratee never settles")
		}
		if r != io.ErrUnexpectedEOF {
			t.Errorf("Run() should strip IterEOF down to its cause; got %v", r)
		}
	}()
	it.Run()
}

func TestRunLeavesBareIterEOFUnwrapped(t *testing.T) {
	it := Head
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("Run() should panic on unmet Head at end of input")
		}
		if _, ok := r.(IterEOF); !ok {
			t.Errorf("a causeless IterEOF has nothing to strip to; got %T", r)
		}
	}()
	it.Run()
}
