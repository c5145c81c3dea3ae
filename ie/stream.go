package ie

import (
	"reflect"
)


type Endianness int
const (
	LE Endianness = iota
	BE
)

// stores a chunk of elements of the same (but arbitrary) type
// XXX also store optional error on End
type Stream struct {
	slice interface{}
	isEnd bool

	isBit bool
	bitorder Endianness
	offset uint8	// for bit streams
}


// constructors...

var End   Stream = Stream{nil, true, false, LE, 0}
var Empty Stream = Stream{nil, false, false, LE, 0}

func Chunk(slice interface{}) Stream {
	v := reflect.ValueOf(slice)
	if v.Kind() == reflect.String {
		slice = v.Convert(t_bytes).Bytes()
	} else if v.Kind() != reflect.Slice {
		panic("Chunk(): slice type expected")
	}
	if v.Len() == 0 {
		return Empty
	}
	return Stream{slice, false, false, LE, 0}
}
var t_bytes reflect.Type = reflect.TypeOf([]byte(nil))

func BitChunk(slice []byte, bitorder Endianness, offset uint8) Stream {
	if len(slice) == 0 {
		return Empty
	}
	return Stream{slice, false, true, bitorder, offset}
}


// accesors...

func (s *Stream) Slice() interface{} {
	if s.isBit {
		panic("Slice() called on bitstream")
	}
	if s.isEnd {
		panic("Slice() called on End")
	}
	return s.slice
}

func (s *Stream) Len() int {
	if s.slice == nil {
		return 0
	} else {
		return reflect.ValueOf(s.slice).Len()
	}
}

func (s *Stream) Bytes() []byte {
	if !s.isBit {
		panic("Bytes() called on non-bitstream")
	}
	if s.isEnd {
		panic("Bytes() called on End")
	}
	return s.slice.([]byte)
}

func (s *Stream) Offset() uint8 {
	return s.offset
}

func (s *Stream) Endian() Endianness {
	return s.bitorder
}


// primitives...

func (s *Stream) Drop(n int) Stream {
	v := reflect.ValueOf(s.slice)
	return Chunk(v.Slice(n,v.Len()).Interface())
}

func (s *Stream) Take1() (interface{}, Stream) {
	var x interface{}
	if s.isBit {
		bs := s.Bytes()
		switch s.bitorder {
		case LE: x = (bs[0] >> s.offset) & 1
		case BE: x = (bs[0] >> (7-s.offset)) & 1
		}
		if s.offset >= 7 {
			return x, BitChunk(bs[1:], s.bitorder, 0)
		}
		return x, BitChunk(bs, s.bitorder, s.offset+1)
	}
	v := reflect.ValueOf(s.slice)
	x = v.Index(0).Interface()
	return x, Chunk(v.Slice(1,v.Len()).Interface())
}


// IsEnd reports whether s is the EOF chunk.
func (s Stream) IsEnd() bool {
	return s.isEnd
}

// IsNull reports whether s carries no data, EOF or not.
func (s Stream) IsNull() bool {
	return s.slice == nil
}

// Append concatenates two chunks: appending a chunk without data to an
// EOF chunk returns the EOF chunk unchanged, and appending data after an
// EOF chunk panics.
func (a Stream) Append(b Stream) Stream {
	if a.isEnd {
		if !b.IsNull() {
			panic("ie: Append() called with data after End")
		}
		return a
	}
	if a.IsNull() {
		return b
	}
	if b.IsNull() && !b.isEnd {
		return a
	}
	if b.isEnd {
		if b.IsNull() {
			// end-of-file past already-collected data; data survives, the
			// EOF flag does not transfer: the result carries a's data
			// without EOF, and nothing in this package re-adds it.
			return a
		}
		panic("ie: Append() called with data after End")
	}
	if a.isBit != b.isBit {
		panic("ie: Append() called across bit/byte stream kinds")
	}
	va := reflect.ValueOf(a.slice)
	vb := reflect.ValueOf(b.slice)
	n := va.Len() + vb.Len()
	out := reflect.MakeSlice(va.Type(), n, n)
	reflect.Copy(out, va)
	reflect.Copy(out.Slice(va.Len(), n), vb)
	return Chunk(out.Interface())
}
