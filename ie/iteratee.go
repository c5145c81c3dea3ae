// Iteratees and Enumerators
package ie

import (
	"io"

	"github.com/driftloom/iterio/monad"
)


// enumFailKind distinguishes the two enumerator-failure sub-flavours from
// plain iteratee failure. An enumerator failure additionally carries the
// still-live iter it was driving, so a catchI handler can recover it.
type enumFailKind int

const (
	noEnumFail enumFailKind = iota
	outerFail               // an outer (data-source) enumerator failed
	innerFail               // an inner (transformer) enumerator failed
)

// variant data type - fat struct representation
// valid field assignments:
//
//   1. result, nil, nil, -,        nil    -- done (result may be nil)
//   2. nil   , k,   nil, -,        nil    -- continuing
//   3. nil   , k,   err, noEnumFail, nil  -- iteratee itself failed, recoverable
//   4. nil   , k,   err, outerFail,  ptr  -- outer enumerator failed, inner preserved
//   5. nil   , k,   err, innerFail,  ptr  -- inner enumerator failed, inner preserved
//
type Iteratee struct {
	result   interface{}
	k        func(Stream) (Iteratee, Stream)
	err      error
	enumFail enumFailKind
	inner    *Iteratee
	catch    *inumCatchEntry
}

// inumCatchEntry is the registration InumCatch installs on an iteratee so
// that an enumerator failure built later by StopOuter/StopInner -- even
// one introduced by fusion performed after the catch point was applied,
// on the same side of the pipe -- is handed to handler immediately, not
// only when it later surfaces through this iteratee's own continuation.
// EnumCatch never installs one, which is exactly what keeps it narrower:
// it only sees failures that arrive through it.k, never ones a driving
// enumerator constructs directly without calling back into it.
type inumCatchEntry struct {
	handler func(err error, failing Iteratee) Iteratee
}


// constructors...

func Done(x interface{}) Iteratee {
	return Iteratee{x, nil, nil, noEnumFail, nil, nil}
}

func Cont(k func(Stream) (Iteratee, Stream)) Iteratee {
	return Iteratee{nil, k, nil, noEnumFail, nil, nil}
}

func Stop(e error, k func(Stream) (Iteratee, Stream)) Iteratee {
	return Iteratee{nil, k, e, noEnumFail, nil, nil}
}

func Fail(e error) Iteratee {
	k := func(s Stream) (Iteratee, Stream) {return Fail(e), s}
	return Stop(e, k)
}

func Raise(msg error) Iteratee {
	k := func(s Stream) (Iteratee, Stream) {return Done(nil), s}
	return Stop(msg, k)
}

// StopOuter records that an outer (data-source) enumerator failed while
// inner was still live (NeedInput, Done, or itself stopped). inner is
// preserved unmodified so resumeI/catchI can hand it to a fresh enumerator.
func StopOuter(e error, inner Iteratee) (this Iteratee) {
	if inner.catch != nil {
		return dispatchInumCatch(e, outerFail, inner)
	}
	in := inner
	this = Iteratee{nil, nil, e, outerFail, &in, nil}
	this.k = func(s Stream) (Iteratee, Stream) {return this, s}
	return
}

// StopInner records that an inner (transformer) enumerator failed while it
// was itself driving inner's downstream result.
func StopInner(e error, inner Iteratee) (this Iteratee) {
	if inner.catch != nil {
		return dispatchInumCatch(e, innerFail, inner)
	}
	in := inner
	this = Iteratee{nil, nil, e, innerFail, &in, nil}
	this.k = func(s Stream) (Iteratee, Stream) {return this, s}
	return
}

// dispatchInumCatch builds the failing Iteratee StopOuter/StopInner would
// otherwise have returned and hands it straight to inner's registered
// InumCatch handler instead.
func dispatchInumCatch(e error, kind enumFailKind, inner Iteratee) Iteratee {
	in := inner
	in.catch = nil
	failing := Iteratee{nil, nil, e, kind, &in, nil}
	failing.k = func(s Stream) (Iteratee, Stream) {return failing, s}
	return inner.catch.handler(e, failing)
}


// read-only field access...

func (it Iteratee) IsDone() bool {return it.k == nil}
func (it Iteratee) IsCont() bool {return it.k != nil && it.err == nil}
func (it Iteratee) IsStop() bool {return it.err != nil}

// IsIterFail reports whether it stopped due to the iteratee's own failure,
// as opposed to an enclosing enumerator's failure.
func (it Iteratee) IsIterFail() bool {return it.err != nil && it.enumFail == noEnumFail}

// IsEnumOuterFail reports whether an outer enumerator failed while it was live.
func (it Iteratee) IsEnumOuterFail() bool {return it.err != nil && it.enumFail == outerFail}

// IsEnumInnerFail reports whether an inner enumerator failed while it was live.
func (it Iteratee) IsEnumInnerFail() bool {return it.err != nil && it.enumFail == innerFail}

// InnerIter returns the iter preserved by an enumerator failure, or nil if
// it is not an enumerator failure.
func (it Iteratee) InnerIter() *Iteratee {return it.inner}

func (it Iteratee) Result() interface{}           {return it.result}
func (it Iteratee) Err() error                    {return it.err}
func (it Iteratee) K(s Stream) (Iteratee, Stream) {return it.k(s)}


// methods...

func (it Iteratee) Feed(s Stream) (Iteratee, Stream) {
	if it.k == nil || it.err != nil {	// if it is done or stopped on error
		return it, s					//   remain in error state
	}
	return it.k(s)
}

func (it Iteratee) Run() interface{} {
	it, _ = it.Feed(End)
	if it.k != nil {
		panic(stripIterEOF(it.err))
	}
	return it.result
}


// monad instance...

func (it Iteratee) Bind(f func(interface{}) Iteratee) Iteratee {
	if it.k == nil {
		return f(it.result)
	}
	k := func(s Stream) (Iteratee, Stream) {
			it, s := it.k(s)			// feed input to 'it' and
			if it.k != nil {			// if it stops,
				return it.Bind(f), s	// bind f to it again and return
			}
			// when 'it' is done, call f to continue and pass the rest of s
			return f(it.result).Feed(s)
		}
	return Iteratee{nil, k, it.err, it.enumFail, it.inner, it.catch}
}

// a.Then(b) = a.Bind({return b})
func (a Iteratee) Then(b Iteratee) Iteratee {
	if a.k == nil {
		return b
	}
	k := func(s Stream) (Iteratee, Stream) {
			a, s := a.k(s)
			if a.k != nil {
				return a.Then(b), s
			}
			return b.Feed(s)
		}
	return Iteratee{nil, k, a.err, a.enumFail, a.inner, a.catch}
}

// Return = Done
func (a Iteratee) ThenReturn(x interface{}) Iteratee {
	return a.Then(Done(x))
}

func (a Iteratee) ThenReturn_(x interface{}) monad.Monad {
	return a.ThenReturn(x)
}

func (it Iteratee) Bind_(f_ func(interface{}) monad.Monad) monad.Monad {
	f := func(x interface{}) Iteratee {return f_(x).(Iteratee)}
	return it.Bind(f)
}

func (a Iteratee) Then_(b_ monad.Monad) monad.Monad {
	return a.Then(b_.(Iteratee))
}


// primitive iteratees...

// consume and return the first element of the input
var Head Iteratee = Cont(k_head)
func k_head(s Stream) (Iteratee, Stream) {
	if s.IsEnd() {
		return Fail(IterEOF{Context: "end of input"}), s
	}
	if s.IsNull() {
		return Cont(k_head), s
	}
	x, s := s.Take1()
	return Done(x), s
}

// consume and discard the first n elements of the input
func Skip(n int) Iteratee {
	if n <= 0 {
		return Done(nil)
	}
	return Cont(func(s Stream) (Iteratee, Stream) {
		l := s.Len()
		if l < n {
			return Skip(n-l), Empty
		}
		return Done(nil), s.Drop(n)
	})
}

func Write(w io.Writer) (this Iteratee) {
	this = Cont(func(s Stream) (Iteratee, Stream) {
		if s.IsEnd() {
			return Done(nil), s
		}
		bs := s.Slice().([]byte)
		n, err := w.Write(bs)
		if n > 0 {
			s = Chunk(bs[n:])
		}
		if err != nil {
			return Stop(err, this.k), s
		}
		return this, s
	})
	return
}

// Discard consumes and drops the entire input, succeeding on EOF. It is
// the canonical "null" sink used when only an enumerator's side effects
// matter.
var Discard Iteratee = Cont(k_discard)
func k_discard(s Stream) (Iteratee, Stream) {
	if s.IsEnd() {
		return Done(nil), s
	}
	return Cont(k_discard), Empty
}
