package ie

import (
	"github.com/driftloom/iterio/monad"
)

// Enumerator is an outer (data-source) producer: given an iteratee it
// returns an effectful action that feeds the iteratee data chunks -- never
// EOF -- until the iteratee settles or the source runs dry.
type Enumerator func(Iteratee) monad.Monad
	// the returned Monad yields an Iteratee

// EnumBytes feeds the entirety of bs to the iteratee in a single chunk.
// It is the pure in-memory producer used throughout the parser tests and
// wherever a whole message is already buffered.
func EnumBytes(bs []byte) Enumerator {
	return func(it Iteratee) monad.Monad {
		return monad.IO(func() interface{} {
			it, _ = it.Feed(Chunk(bs))
			return it
		})
	}
}

// EnumString is EnumBytes for a string source.
func EnumString(s string) Enumerator {
	return EnumBytes([]byte(s))
}

// Append runs a to completion, then hands the resulting iteratee to b
// whatever state a left it in: b is invoked even when the iteratee is no
// longer NeedInput. The enumerators in this package feed no data to such
// an iteratee, though they may still answer a control request it raised.
// The monadic effects of a are sequenced to
// completion before b's action begins, even though b's first effect could
// in principle start without data, because Append composes through the
// effect monad's Bind rather than racing the two actions.
func (a Enumerator) Append(b Enumerator) Enumerator {
	return func(it Iteratee) monad.Monad {
		f := func(it_ interface{}) monad.Monad {
			return b(it_.(Iteratee))
		}
		return a(it).Bind_(f)
	}
}

// Cat concatenates any number of outer enumerators left to right.
func Cat(enums ...Enumerator) Enumerator {
	if len(enums) == 0 {
		return func(it Iteratee) monad.Monad {
			return monad.IO(func() interface{} {return it})
		}
	}
	out := enums[0]
	for _, e := range enums[1:] {
		out = out.Append(e)
	}
	return out
}

// Pipe runs enum against it and returns the piped-to iteratee's final
// Result -- the Go rendering of "enum |$ iter". it's own continuation is
// reclassified so that any enumerator-failure state it settles into on
// its own (e.g. because it wraps another enumerator internally) reads as
// a plain IterFail from enum's point of view, matching the wrap step of
// the run operator.
func Pipe(enum Enumerator, it Iteratee) interface{} {
	wrapped := wrapIterSide(it)
	io := enum(wrapped).(monad.IO)
	result := io().(Iteratee)
	return result.Run()
}

// wrapIterSide reclassifies enumerator-failure states reached by it's own
// continuation into plain iteratee failures, so that they are not mistaken
// for failures of the enumerator driving it.
func wrapIterSide(it Iteratee) Iteratee {
	if it.IsCont() {
		k := func(s Stream) (Iteratee, Stream) {
			next, rest := it.k(s)
			return wrapIterSide(next), rest
		}
		return Cont(k)
	}
	if it.IsEnumOuterFail() || it.IsEnumInnerFail() {
		return Fail(it.err)
	}
	return it
}
