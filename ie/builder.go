package ie

import (
	"errors"
	"fmt"
	"io"

	"github.com/driftloom/iterio/monad"
)

// CodecFunc is a stateful translator packaged for outer-enumerator
// construction. Invoking it produces one output chunk. A non-nil returned
// CodecFunc means more output is available (Continue); a nil one with a
// nil error means this was the last output unit (End, out may be null for
// the Empty case); an error matching io.EOF means the source ran dry and
// the enumerator should terminate quietly; any other error aborts the
// enumerator with EnumOFail.
type CodecFunc func() (out Stream, next CodecFunc, err error)

// EnumO builds an outer Enumerator from a codec: it repeatedly invokes the
// codec, feeding each produced chunk to the iteratee, until the iteratee
// settles, the codec reaches End, or the source signals an error.
func EnumO(codec CodecFunc) Enumerator {
	return func(it Iteratee) monad.Monad {
		return monad.IO(func() interface{} {
			return enumOLoop(it, codec)
		})
	}
}

func enumOLoop(it Iteratee, codec CodecFunc) Iteratee {
	for it.k != nil && it.err == nil {
		out, next, err := codec()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return it // source exhausted: hand the live iteratee back as-is
			}
			return StopOuter(err, it)
		}
		if !out.IsNull() {
			it, _ = it.Feed(out)
		}
		if next == nil {
			return it // End: codec promised no further output
		}
		codec = next
	}
	return it
}

// InCodec is a stateful translator packaged for inner-enumerator
// (transformer) construction: it consumes one input chunk and produces
// zero or more bytes of translated output, plus the continuation to call
// with the next input chunk.
type InCodec func(in Stream) (out Stream, next InCodec, err error)

// EnumI builds an Enumeratee from an InCodec: the returned Enumeratee
// consumes upstream input to drive the codec, then feeds the codec's
// output to the downstream iter. On upstream EOF the codec is still given
// one final call so it may flush and release resources, but EOF itself is
// never forwarded to the downstream iter -- it may yet be fed by another
// enumerator, per the discipline in §4.3.
func EnumI(codec InCodec) Enumeratee {
	var step func(InCodec) Enumeratee
	step = func(codec InCodec) Enumeratee {
		return func(inner Iteratee) Iteratee {
			return Cont(func(s Stream) (Iteratee, Stream) {
				out, next, err := codec(s)
				if err != nil {
					return Done(StopInner(err, inner)), s
				}
				if !out.IsNull() {
					inner, _ = inner.Feed(out)
				}
				if s.IsEnd() || inner.k == nil || inner.err != nil {
					return Done(inner), Empty
				}
				return step(next)(inner), Empty
			})
		}
	}
	return step(codec)
}

// EnumBracket builds an outer Enumerator around a resource: acquire runs
// once before any data is produced; produce drives the iteratee via EnumO
// over a codec built from the acquired resource; release runs exactly
// once on every termination path. A release failure becomes the
// termination failure when produce otherwise succeeded, but never masks a
// failure produce already reported.
func EnumBracket(
	acquire func() (resource interface{}, err error),
	release func(resource interface{}) error,
	produce func(resource interface{}) CodecFunc,
) Enumerator {
	return func(it Iteratee) monad.Monad {
		action := monad.IO(func() interface{} {
			res, err := acquire()
			if err != nil {
				return StopOuter(err, it)
			}

			// If produce panics, release still runs here before Recover
			// below turns the panic into an outer failure.
			produced := false
			defer func() {
				if !produced {
					release(res)
				}
			}()
			result := enumOLoop(it, produce(res))
			produced = true

			if relErr := release(res); relErr != nil {
				if result.err == nil {
					return StopOuter(relErr, result)
				}
				Diag().Error("bracketed enumerator: release failed after produce already failed",
					"release_err", relErr, "produce_err", result.err)
			}
			return result
		})
		return action.Recover(func(r interface{}) interface{} {
			return StopOuter(fmt.Errorf("bracketed enumerator panicked: %v", r), it)
		})
	}
}
