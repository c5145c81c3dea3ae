package ie

import (
	"fmt"
)

// Control requests travel outward from an iteratee, riding the same
// Stop/continuation mechanism the teacher library already used for Seek:
// the iteratee stops with the request as its error value and a
// continuation that knows how to decode a reply chunk; an enumerator that
// understands the request performs it, builds a reply chunk, and resumes
// the iteratee's own continuation by feeding that chunk. An enumerator
// that does not recognize the request leaves it untouched so it
// propagates to the next enclosing enumerator; at the top, Run() panics
// with the request itself -- the "no handler" reply.

// Seek asks a supporting enumerator to seek to an absolute byte position.
// A negative offset counts from the end of the stream, where -1 indicates
// the last byte. For a relative seek, use SeekRel.
type Seek struct {
	Offset int64
}
func (sk Seek) Error() string {
	return fmt.Sprintf("tried to seek (to position %#x)", sk.Offset)
}

// SeekRel asks a supporting enumerator to seek relative to the current position.
type SeekRel struct {
	Offset int64
}
func (sk SeekRel) Error() string {
	return fmt.Sprintf("tried to seek (by %v bytes)", sk.Offset)
}

// Tell asks for the current absolute position in the stream.
type Tell struct{}
func (Tell) Error() string {return "tried to tell current position"}

// Size asks for the total size of the stream, if known.
type Size struct{}
func (Size) Error() string {return "tried to get stream size"}

// GetSocket asks for the underlying connection backing the stream, for
// enumerators built over a socket (see EnumConn).
type GetSocket struct{}
func (GetSocket) Error() string {return "tried to get underlying socket"}

// NoHandler is the IterFail error that TellIter, SizeIter and
// GetSocketIter settle into when their continuation is resumed with a
// chunk that carries no reply value. Nothing in this package delivers it
// automatically: a request that reaches the top unhandled makes Run()
// panic with the request itself.
type NoHandler struct {
	Request error
}
func (nh NoHandler) Error() string {
	return fmt.Sprintf("no handler for control request: %v", nh.Request)
}

// CtlHandler is registered by an enumerator to answer a control request.
// It receives the request and the failing Iteratee (so it can fall
// through to other fields of the request type), and returns the reply
// chunk to resume the iteratee's continuation with, plus whether it
// recognized the request at all.
type CtlHandler func(req error, it Iteratee) (reply Stream, handled bool)

// DispatchCtl tries each handler in turn; the first one that recognizes
// the request resumes it's continuation with the reply chunk the handler
// built. If none recognize it, it is returned unchanged so the caller can
// propagate it outward (e.g. as an EnumOFail wrapping it, or by letting it
// surface as-is to a still further enclosing enumerator).
func DispatchCtl(it Iteratee, handlers []CtlHandler) (resumed Iteratee, handled bool) {
	for _, h := range handlers {
		if reply, ok := h(it.err, it); ok {
			resumed, _ = it.k(reply)
			return resumed, true
		}
	}
	return it, false
}

// TellIter emits a Tell request and decodes the reply chunk -- a single
// int64 element -- as its result.
func TellIter() Iteratee {
	return Stop(Tell{}, func(s Stream) (Iteratee, Stream) {
		if s.IsNull() {
			return Fail(NoHandler{Tell{}}), s
		}
		x, rest := s.Take1()
		return Done(x), rest
	})
}

// SizeIter emits a Size request and decodes the reply chunk -- a single
// int64 element -- as its result.
func SizeIter() Iteratee {
	return Stop(Size{}, func(s Stream) (Iteratee, Stream) {
		if s.IsNull() {
			return Fail(NoHandler{Size{}}), s
		}
		x, rest := s.Take1()
		return Done(x), rest
	})
}

// GetSocketIter emits a GetSocket request and decodes the reply chunk --
// a single element holding the underlying connection -- as its result.
func GetSocketIter() Iteratee {
	return Stop(GetSocket{}, func(s Stream) (Iteratee, Stream) {
		if s.IsNull() {
			return Fail(NoHandler{GetSocket{}}), s
		}
		x, rest := s.Take1()
		return Done(x), rest
	})
}

// replyWith wraps a single value as the one-element reply chunk that
// TellIter/SizeIter/GetSocketIter expect to be fed back.
func replyWith(x interface{}) Stream {
	return Chunk([]interface{}{x})
}
