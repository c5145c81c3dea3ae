package ie

import (
	"sync"

	"gopkg.in/tomb.v2"

	"github.com/driftloom/iterio/monad"
)

// iterLoopMailboxCap bounds the buffered channel mailbox shared between
// IterLoop's feeder side and its enumerator side, so a Feed call from a
// bursty producer does not have to block on the enumerator side having
// already been invoked and caught up.
const iterLoopMailboxCap = 64

// iterLoop is the shared mailbox behind the (Iter, Enumerator) pair
// IterLoop returns. Its tomb.Tomb is the one place in this package where a
// kill signal is observed directly, independently of chunk delivery: it
// supervises the goroutine the enumerator side spawns to drain the
// mailbox.
type iterLoop struct {
	t  tomb.Tomb
	in chan Stream
}

// IterLoop creates an (Iter, Enumerator) pair sharing a buffered channel
// mailbox: chunks fed to the returned Iteratee from one task are later fed
// by the returned Enumerator to whatever downstream iteratee it drives --
// so code that cannot itself drive Feed calls synchronously (an async
// callback, a message handler, a connection's read loop owned by some
// other framework) can still participate in the ordinary enumerator
// algebra, the returned Enumerator composing with Pipe/Append/Cat exactly
// like EnumReader or EnumConn.
//
// Feeding End to the returned Iteratee drains the mailbox and lets the
// Enumerator terminate once it reads that End. The returned kill func
// makes the Enumerator stop at its next receive without draining the rest
// of the mailbox: it feeds End to the iteratee it drives and returns that
// iteratee. reason is recorded in the loop's tomb only; it does not reach
// the returned iteratee.
func IterLoop() (Iteratee, Enumerator, func(reason error)) {
	lp := &iterLoop{in: make(chan Stream, iterLoopMailboxCap)}
	return lp.feeder(), lp.enumerator(), lp.t.Kill
}

// feeder is the mailbox's producer-facing side: each Feed call puts its
// chunk in the buffered mailbox, blocking only while the mailbox is full,
// or, once the enumerator side's drain goroutine has exited, may settle
// quietly without delivering it.
func (lp *iterLoop) feeder() (this Iteratee) {
	this = Cont(func(s Stream) (Iteratee, Stream) {
		select {
		case lp.in <- s:
			if s.IsEnd() {
				return Done(nil), s
			}
			return lp.feeder(), Empty
		case <-lp.t.Dead():
			return Done(nil), s
		}
	})
	return
}

// enumerator is the mailbox's consumer-facing side: invoking it spawns the
// tomb-supervised goroutine that drains the mailbox into whatever
// downstream iteratee it is given, until that iteratee settles, the
// feeder sends End, or the loop is killed.
func (lp *iterLoop) enumerator() Enumerator {
	return func(it Iteratee) monad.Monad {
		return monad.IO(func() interface{} {
			result := make(chan Iteratee, 1)
			lp.t.Go(func() error {
				cur := it
			drain:
				for cur.k != nil && cur.err == nil {
					select {
					case s := <-lp.in:
						cur, _ = cur.Feed(s)
						if s.IsEnd() {
							break drain
						}
					case <-lp.t.Dying():
						cur, _ = cur.Feed(End)
						break drain
					}
				}
				result <- cur
				return cur.err
			})
			return <-result
		})
	}
}

// PairFinalizer runs a cleanup action exactly once regardless of which of
// several callers triggers it first. It is meant to be shared between two
// enumerators built over opposite ends of the same duplex resource (e.g.
// the read and write sides of a connection produced by EnumConn) so that
// whichever side notices EOF or failure first still only releases the
// shared resource a single time.
type PairFinalizer struct {
	once sync.Once
	fn   func() error
	err  error
}

// NewPairFinalizer wraps fn for shared, idempotent invocation.
func NewPairFinalizer(fn func() error) *PairFinalizer {
	return &PairFinalizer{fn: fn}
}

// Run invokes the wrapped finalizer on the first call; subsequent calls
// from either side of the pair return the same result without invoking it
// again.
func (pf *PairFinalizer) Run() error {
	pf.once.Do(func() { pf.err = pf.fn() })
	return pf.err
}
