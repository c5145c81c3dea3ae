package ie

import (
	"errors"
	"io"
	"net"
	"os"

	"github.com/gorilla/websocket"

	"github.com/driftloom/iterio/monad"
)

// EnumReader feeds the bytes read from r to the iteratee, ActiveConfig's
// ReadBufferSize at a time (32KiB by default), stopping quietly on io.EOF
// exactly as the original Read enumerator did. It additionally answers
// Tell/Size/Seek/SeekRel control requests when r supports them, by trying
// an io.Seeker assertion and, for Size, an explicit Size() method or
// *os.File.Stat() fallback.
func EnumReader(r io.Reader) Enumerator {
	return enumReader(r, readBufferSize())
}

func enumReader(r io.Reader, bufSize int) Enumerator {
	rs, seekable := r.(io.Seeker)
	handlers := []CtlHandler{readerValueCtlHandler(r, rs, seekable)}
	return func(it Iteratee) monad.Monad {
		return monad.IO(func() interface{} {
			buf := make([]byte, bufSize)
			for it.k != nil {
				if it.err != nil {
					// Seek/SeekRel resume the very continuation that raised
					// them with ordinary data, exactly as the original Read
					// enumerator did; Tell/Size/GetSocket instead expect a
					// decoded reply value, so they go through DispatchCtl.
					if resumed, ok := trySeek(it, rs, seekable); ok {
						it = resumed
						continue
					}
					resumed, handled := DispatchCtl(it, handlers)
					if !handled {
						return it
					}
					it = resumed
					continue
				}
				n, err := r.Read(buf)
				if n > 0 {
					it, _ = it.k(Chunk(append([]byte(nil), buf[:n]...)))
				}
				if err != nil {
					if errors.Is(err, io.EOF) {
						// end-of-file does not feed End: the iteratee may
						// yet be handed to another enumerator.
						return it
					}
					return StopOuter(err, it)
				}
			}
			return it
		})
	}
}

// trySeek performs a Seek or SeekRel request in place and, on success,
// clears the error so the loop resumes feeding ordinary data chunks to the
// very continuation that raised the request.
func trySeek(it Iteratee, rs io.Seeker, seekable bool) (Iteratee, bool) {
	if !seekable {
		return it, false
	}
	var where int64
	whence := io.SeekStart
	switch sk := it.err.(type) {
	case Seek:
		where = sk.Offset
		if where < 0 {
			whence = io.SeekEnd
		}
	case SeekRel:
		where = sk.Offset
		whence = io.SeekCurrent
	default:
		return it, false
	}
	if _, err := rs.Seek(where, whence); err != nil {
		return it, false
	}
	return Cont(it.k), true
}

func readerValueCtlHandler(r io.Reader, rs io.Seeker, seekable bool) CtlHandler {
	return func(req error, _ Iteratee) (Stream, bool) {
		switch req.(type) {
		case Tell:
			if !seekable {
				return Empty, false
			}
			pos, err := rs.Seek(0, io.SeekCurrent)
			if err != nil {
				return Empty, false
			}
			return replyWith(pos), true
		case Size:
			sz, ok := readerSize(r)
			if !ok {
				return Empty, false
			}
			return replyWith(sz), true
		}
		return Empty, false
	}
}

func readerSize(r io.Reader) (int64, bool) {
	type sizer interface{ Size() int64 }
	if sz, ok := r.(sizer); ok {
		return sz.Size(), true
	}
	if f, ok := r.(*os.File); ok {
		if info, err := f.Stat(); err == nil {
			return info.Size(), true
		}
	}
	return 0, false
}

// EnumConn feeds the bytes read from conn to the iteratee until conn
// reports an error, answering GetSocket with conn itself, and closes conn
// on every exit path.
func EnumConn(conn net.Conn) Enumerator {
	return enumConn(conn, nil)
}

// EnumConnShared is EnumConn but releases conn through fin instead of
// closing it directly, so independently-driven read and write sides of
// the same duplex connection can share one Close.
func EnumConnShared(conn net.Conn, fin *PairFinalizer) Enumerator {
	return enumConn(conn, fin)
}

func enumConn(conn net.Conn, fin *PairFinalizer) Enumerator {
	release := func() error {
		if fin != nil {
			return fin.Run()
		}
		return conn.Close()
	}
	handlers := []CtlHandler{socketCtlHandler(conn)}
	return func(it Iteratee) monad.Monad {
		return monad.IO(func() interface{} {
			buf := make([]byte, readBufferSize())
			for it.k != nil {
				if it.err != nil {
					resumed, handled := DispatchCtl(it, handlers)
					if !handled {
						release()
						return it
					}
					it = resumed
					continue
				}
				n, err := conn.Read(buf)
				if n > 0 {
					it, _ = it.k(Chunk(append([]byte(nil), buf[:n]...)))
				}
				if err != nil {
					relErr := release()
					if !errors.Is(err, io.EOF) {
						if relErr != nil {
							Diag().Error("connection enumerator: release failed after read also failed",
								"release_err", relErr, "read_err", err)
						}
						return StopOuter(err, it)
					}
					if relErr != nil {
						return StopOuter(relErr, it)
					}
					return it
				}
			}
			release()
			return it
		})
	}
}

func socketCtlHandler(socket interface{}) CtlHandler {
	return func(req error, _ Iteratee) (Stream, bool) {
		if _, ok := req.(GetSocket); ok {
			return replyWith(socket), true
		}
		return Empty, false
	}
}

// EnumWebsocketConn feeds the payload of each message read from ws to the
// iteratee as one chunk per message, answering GetSocket with ws itself,
// and closes ws on every exit path.
func EnumWebsocketConn(ws *websocket.Conn) Enumerator {
	handlers := []CtlHandler{socketCtlHandler(ws)}
	return func(it Iteratee) monad.Monad {
		return monad.IO(func() interface{} {
			for it.k != nil {
				if it.err != nil {
					resumed, handled := DispatchCtl(it, handlers)
					if !handled {
						ws.Close()
						return it
					}
					it = resumed
					continue
				}
				_, data, err := ws.ReadMessage()
				if err != nil {
					ws.Close()
					if errors.Is(err, io.EOF) {
						return it
					}
					return StopOuter(err, it)
				}
				it, _ = it.k(Chunk(data))
			}
			ws.Close()
			return it
		})
	}
}
