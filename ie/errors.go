package ie

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
)


// IterNoParse is the umbrella marker implemented by every parse-failure
// kind (IterEOF, IterExpected, IterMiscParseErr, NoMatch). ifParse and
// multiParse catch exactly this kind and let everything else re-raise.
type IterNoParse interface {
	error
	isIterNoParse()
}

// IterEOF signals an unexpected end of input while a decision was still
// pending. Head fails with it when it is fed End; the other parser
// primitives report end of input as NoMatch, and no code in this package
// converts host I/O errors into IterEOF. When a caller sets Cause, it
// preserves the original error so Run() can strip the wrapping again.
type IterEOF struct {
	Context string
	Cause    error
}
func (e IterEOF) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("unexpected end of input: %s: %v", e.Context, e.Cause)
	}
	return fmt.Sprintf("unexpected end of input: %s", e.Context)
}
func (e IterEOF) Unwrap() error {return e.Cause}
func (IterEOF) isIterNoParse()  {}

// IterExpected carries the set of tokens a parser was prepared to accept
// at the point of failure. ifParse merges expected sets from alternative
// branches so diagnostics read "expected one of {...}".
type IterExpected struct {
	Tokens []string
}
func (e IterExpected) Error() string {
	return fmt.Sprintf("expected one of %v", e.Tokens)
}
func (IterExpected) isIterNoParse() {}

// mergeExpected returns the union of two IterExpected token sets,
// deduplicated and in first-seen order.
func mergeExpected(a, b IterExpected) IterExpected {
	seen := make(map[string]bool, len(a.Tokens)+len(b.Tokens))
	out := make([]string, 0, len(a.Tokens)+len(b.Tokens))
	for _, t := range append(append([]string{}, a.Tokens...), b.Tokens...) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return IterExpected{out}
}

// IterMiscParseErr covers parse failures that don't fit IterEOF/IterExpected.
type IterMiscParseErr struct {
	Msg string
}
func (e IterMiscParseErr) Error() string {return e.Msg}
func (IterMiscParseErr) isIterNoParse()  {}

// NoMatch is the teacher's original parser-mismatch kind, kept as one more
// constructor of the IterNoParse umbrella alongside the three above.
type NoMatch struct {Expect string}
func (e NoMatch) Error() string {return (e.Expect + ": no match")}
func (NoMatch) isIterNoParse()  {}

// IterGeneric wraps an ad hoc message as an error value, for callers of
// Fail/Raise that have no structured error to pass; Fail and Raise take
// any error and do not construct it themselves.
type IterGeneric struct {
	Msg string
}
func (e IterGeneric) Error() string {return e.Msg}

// stripIterEOF unwraps an IterEOF back to its wrapped host cause, if any,
// so Run() surfaces the original I/O error rather than the parser-facing
// wrapper. Non-IterEOF errors pass through unchanged.
func stripIterEOF(err error) error {
	if err == nil {
		return nil
	}
	var eof IterEOF
	if errors.As(err, &eof) {
		if cause := errors.Unwrap(err); cause != nil {
			return cause
		}
	}
	return err
}


// catchI / catchBI / resumeI ...

// CatchI wraps it so that when it settles into a failure state whose error
// is assignable to E (via errors.As), handler runs with both the error and
// the failing Iteratee -- for an enumerator failure, InnerIter() recovers
// the still-live inner iter. Failures of any other kind propagate
// unchanged.
func CatchI[E error](it Iteratee, handler func(e E, failing Iteratee) Iteratee) Iteratee {
	if it.IsCont() {
		k := func(s Stream) (Iteratee, Stream) {
			next, rest := it.k(s)
			return CatchI(next, handler), rest
		}
		return Cont(k)
	}
	if it.err != nil {
		var e E
		if errors.As(it.err, &e) {
			return handler(e, it)
		}
	}
	return it
}

// CatchBI behaves like CatchI but additionally copies every chunk fed to
// it. On a matching failure, the handler's result is fed the saved
// input -- everything seen since CatchBI was applied, or since
// ActiveConfig().BacktrackCap last trimmed it -- so the handler's
// iteratee sees the rewound input again; whatever that feed leaves
// unconsumed becomes the residual exposed to whoever drives the returned
// iteratee next, so the rewind is visible outside CatchBI too, not just
// to the handler. Memory cost is proportional to the data consumed before
// failure, capped at BacktrackCap bytes (0, the default, leaves it
// unbounded).
func CatchBI[E error](it Iteratee, handler func(e E, failing Iteratee) Iteratee) Iteratee {
	this, _ := catchBI[E](it, Empty, handler)
	return this
}

func catchBI[E error](it Iteratee, saved Stream, handler func(E, Iteratee) Iteratee) (Iteratee, Stream) {
	if it.IsCont() {
		this := Cont(func(s Stream) (Iteratee, Stream) {
			next, rest := it.k(s)
			grown := capSaved(saved.Append(s))
			if next.IsCont() {
				return catchBI(next, grown, handler)
			}
			return settleBI[E](next, grown, handler, rest)
		})
		return this, Empty
	}
	return settleBI[E](it, saved, handler, Empty)
}

// capSaved trims saved to ActiveConfig().BacktrackCap bytes, dropping the
// oldest data first, so CatchBI's replay buffer cannot grow without bound
// while a long stream runs under it. A non-positive cap (DefaultConfig's
// zero value) leaves saved unbounded.
func capSaved(saved Stream) Stream {
	limit := activeConfig.BacktrackCap
	if limit <= 0 || saved.IsNull() || saved.IsEnd() {
		return saved
	}
	if saved.Len() <= limit {
		return saved
	}
	return saved.Drop(saved.Len() - limit)
}

// settleBI resolves a settled (Done or Stop) iteratee for catchBI: a
// successful result passes through with its ordinary residual; a
// matching failure is handed to handler and then replayed over saved,
// with that replay's own residual taking the place of rest; any other
// failure kind propagates unchanged, with rest untouched.
func settleBI[E error](it Iteratee, saved Stream, handler func(E, Iteratee) Iteratee, rest Stream) (Iteratee, Stream) {
	if it.k == nil {
		return it, rest
	}
	var e E
	if errors.As(it.err, &e) {
		resumed := handler(e, it)
		return resumed.Feed(saved)
	}
	return it, rest
}

// ResumeI recovers the inner iter preserved by an enumerator failure so a
// fresh enumerator can continue feeding it; any other state passes through
// unchanged.
func ResumeI(it Iteratee) Iteratee {
	if it.inner != nil {
		return *it.inner
	}
	return it
}

// VerboseResumeI behaves like ResumeI but first reports the error to the
// diagnostic sink, prefixed with prog, before resuming.
func VerboseResumeI(prog string, it Iteratee) Iteratee {
	if it.err != nil {
		Diag().Warn("resuming after enumerator failure", "program", prog, "err", it.err)
	}
	return ResumeI(it)
}

// EnumCatch wraps it so that only enumerator failures (outer or inner) of
// enumerators lexically inside it are caught; an ordinary iteratee failure
// (IsIterFail) propagates untouched.
func EnumCatch(it Iteratee, handler func(err error, failing Iteratee) Iteratee) Iteratee {
	if it.IsCont() {
		k := func(s Stream) (Iteratee, Stream) {
			next, rest := it.k(s)
			return EnumCatch(next, handler), rest
		}
		return Cont(k)
	}
	if it.IsEnumOuterFail() || it.IsEnumInnerFail() {
		return handler(it.err, it)
	}
	return it
}

// InumCatch behaves like EnumCatch but additionally registers handler on
// it (via the catch field StopOuter/StopInner consult when they construct
// a new failure), so that an enumerator failure built later -- by fusion
// performed after InumCatch was applied, as long as it remains on the
// same side of the final Pipe -- is handed to handler too. EnumCatch only
// catches a failure that arrives through it.k; a driving enumerator's own
// StopOuter/StopInner, built directly without calling back into it (see
// enumOLoop, EnumBracket, EnumConn's release path), escapes EnumCatch but
// not InumCatch.
func InumCatch(it Iteratee, handler func(err error, failing Iteratee) Iteratee) Iteratee {
	return registerInumCatch(it, &inumCatchEntry{handler})
}

func registerInumCatch(it Iteratee, entry *inumCatchEntry) Iteratee {
	it.catch = entry
	if it.IsCont() {
		inner := it
		wrapped := Cont(func(s Stream) (Iteratee, Stream) {
			next, rest := inner.k(s)
			return registerInumCatch(next, entry), rest
		})
		wrapped.catch = entry
		return wrapped
	}
	if it.IsEnumOuterFail() || it.IsEnumInnerFail() {
		return entry.handler(it.err, it)
	}
	return it
}


// diagnostic sink (D1) ...

var (
	diagSink       = buildDiagSink(DefaultConfig())
	diagOverridden bool
)

// buildDiagSink constructs the default diagnostic sink for cfg, a
// slog.TextHandler over stderr at the level named by
// cfg.DiagnosticsLevel. An empty or unrecognized level falls back to
// slog.LevelInfo, the slog default.
func buildDiagSink(cfg Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: diagLevel(cfg.DiagnosticsLevel),
	}))
}

func diagLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Diag returns the process-wide diagnostic sink used by VerboseResumeI and
// bracketed-enumerator release failures. Its level follows
// ActiveConfig().DiagnosticsLevel until SetDiag installs an explicit
// override; tests use SetDiag to capture output.
func Diag() *slog.Logger {
	return diagSink
}

// SetDiag installs a replacement diagnostic sink, returning the previous
// one so callers can restore it. Once called, SetConfig no longer
// rebuilds the sink from DiagnosticsLevel.
func SetDiag(l *slog.Logger) (previous *slog.Logger) {
	previous = diagSink
	diagSink = l
	diagOverridden = true
	return
}
