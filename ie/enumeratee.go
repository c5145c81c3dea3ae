package ie

import (
	"bytes"
	"sync"

	"github.com/driftloom/iterio/monad"
)


// Enumeratee is an inner (transformer) producer: given the downstream
// iteratee it drives, it returns an iteratee over the upstream stream that
// forwards translated chunks to the downstream one.
type Enumeratee func(Iteratee) Iteratee
	// the returned Iteratee yields an Iteratee

// conceptually, Enumeratee is an Enumerator, but they are not convertible
// directly because monad.Monad has a different run-time representation than
// Iteratee. :/

// convert an Enumeratee to Enumerator. note the trivial implementation;
// Iteratee is converted to monad.Monad implicitly.
func (e Enumeratee) ToEnumerator() Enumerator {
	return func(it Iteratee) monad.Monad {
		return e(it)
	}
}

// enumeratee that passes its input as-is to the inner iteratee
var Pass Enumeratee = pass
func pass(it Iteratee) Iteratee {
	return Cont(func(s Stream) (Iteratee, Stream) {
		it, s := it.Feed(s)
		if it.k == nil || it.err != nil {
			return Done(it), s
		}
		return pass(it), s
	})
}

// attach an enumeratee to the output of an enumerator
func (e Enumerator) Pipe(ee Enumeratee) Enumerator {
	return func(inner Iteratee) monad.Monad {
		outer := ee(inner)
		return e(outer.Fuse())
	}
}

// when outer returns an Iteratee inner, outer.Fuse() is an iteratee that
// returns inner's result. when outer finishes, inner receives end of input.
func (outer Iteratee) Fuse() Iteratee {
	return outer.Bind(fuse)
}

func fuse(inner_ interface{}) Iteratee {
	inner := inner_.(Iteratee)
	if inner.err != nil {
		return inner
	}
	if inner.k != nil {
		inner, _ = inner.k(End)
	}
	return inner
}

// Chain composes two inner enumerators into one: outer input is translated
// by first, the result translated again by second, and only then handed to
// the downstream iteratee. first.Chain(second)(inner) == first(second(inner)),
// so it is ordinary function composition -- no Fuse is needed between the
// stages since both consume and produce synchronously within the same
// Feed/k cycle.
func (first Enumeratee) Chain(second Enumeratee) Enumeratee {
	return func(inner Iteratee) Iteratee {
		return first(second(inner))
	}
}

// Append runs first to completion against the upstream input; if the
// resulting inner iteratee is still live once first settles, the remaining
// upstream input is handed to second driving that same inner. This is the
// Enumeratee analogue of Enumerator.Append: the two transformers run in
// series over one input stream, both feeding the same downstream iteratee.
func (first Enumeratee) Append(second Enumeratee) Enumeratee {
	return func(inner Iteratee) Iteratee {
		return first(inner).Bind(func(inner_ interface{}) Iteratee {
			in := inner_.(Iteratee)
			if in.k == nil || in.err != nil {
				return Done(in)
			}
			return second(in)
		})
	}
}

func Prefix(it Iteratee, ee Enumeratee) Enumeratee {
	return func(inner Iteratee) Iteratee {
		return it.Then(ee(inner))
	}
}

func BreakAfter(sep []byte) Enumeratee {
	return func(inner Iteratee) (this Iteratee) {
		this = Cont(func(s Stream) (Iteratee, Stream) {
			if s == End {
				inner, _ = inner.Feed(s)
				return Done(inner), s
			}
			bs := s.Slice().([]byte)
			idx := bytes.Index(bs, sep)
			if idx == -1 {
				inner, _ = inner.Feed(s)
				return this, Empty
			}
			idx += len(sep)
			inner, _ := inner.Feed(Chunk(bs[:idx]))
			return Done(inner), Chunk(bs[idx:])
		})
		return
	}
}

// enumeratee equivalent of Many
func Repeat(a Enumeratee) (this Enumeratee) {
	this = func(it Iteratee) Iteratee {
		f := func(it_ interface{}) Iteratee {
			return this(it_.(Iteratee))
		}
		return OChoice(a(it).Bind(f), Done(it))
	}
	return
}

func Repeat1(a Enumeratee) Enumerator {	// XXX it's an enumeratee
	return a.ToEnumerator().Append(Repeat(a).ToEnumerator())
}


// Split lets several independently-driven enumerators feed a single
// downstream iteratee without racing each other's Feed calls. Each branch
// calls Enumeratee to get its own Enumeratee value; all of them share the
// same mutex-guarded inner iteratee, so whichever branch's chunk arrives
// first is the one that advances it.
type Split struct {
	mu    sync.Mutex
	inner Iteratee
}

// InumSplit wraps inner for fan-in from n concurrently-driven enumerators,
// returning one Enumeratee per branch.
func InumSplit(inner Iteratee, n int) []Enumeratee {
	sp := &Split{inner: inner}
	ees := make([]Enumeratee, n)
	for i := range ees {
		ees[i] = sp.Enumeratee()
	}
	return ees
}

// Feed forwards s to the shared inner iteratee under the split's mutex and
// reports whether inner is still accepting input afterward. Safe to call
// from multiple goroutines.
func (sp *Split) Feed(s Stream) bool {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if sp.inner.k == nil || sp.inner.err != nil {
		return false
	}
	sp.inner, _ = sp.inner.Feed(s)
	return sp.inner.k != nil && sp.inner.err == nil
}

// Result returns the shared inner iteratee's current state.
func (sp *Split) Result() Iteratee {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.inner
}

// Enumeratee returns one fan-in branch. Its returned Iteratee ignores the
// inner argument it is handed -- the real inner is the one shared by the
// whole Split -- and reports Done with the shared inner's state as soon as
// that inner settles or this branch reaches EOF.
func (sp *Split) Enumeratee() Enumeratee {
	var branch func(Iteratee) Iteratee
	branch = func(Iteratee) Iteratee {
		return Cont(func(s Stream) (Iteratee, Stream) {
			live := sp.Feed(s)
			if s.IsEnd() || !live {
				return Done(sp.Result()), s
			}
			return branch(Iteratee{}), Empty
		})
	}
	return branch
}
