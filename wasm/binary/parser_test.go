package binary

import (
	"io"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmcheck/wasmcheck/wasm"
)

// exampleModuleBinary covers every payload type the parser produces: buffered
// sections, both streamed sections and a trailing custom section.
//
//	(module
//		(memory 1)
//		(func (export "f"))
//		(func (local i32))
//		(data (i32.const 0) "\aa\bb")
//	)
func exampleModuleBinary() []byte {
	return []byte{
		0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, // header
		wasm.SectionIDType, 0x04, 0x01, 0x60, 0x00, 0x00,
		wasm.SectionIDFunction, 0x03, 0x02, 0x00, 0x00,
		wasm.SectionIDMemory, 0x03, 0x01, 0x00, 0x01,
		wasm.SectionIDExport, 0x05, 0x01, 0x01, 'f', 0x00, 0x00,
		wasm.SectionIDCode, 0x09,
		0x02, // two bodies
		0x02, 0x00, wasm.OpcodeEnd,
		0x04, 0x01, 0x01, wasm.ValueTypeI32, wasm.OpcodeEnd,
		wasm.SectionIDData, 0x08,
		0x01, // one segment
		0x00, wasm.OpcodeI32Const, 0x00, wasm.OpcodeEnd, 0x02, 0xaa, 0xbb,
		wasm.SectionIDCustom, 0x07,
		0x04, 'm', 'e', 't', 'a', 0xde, 0xad,
	}
}

func exampleModulePayloads() []Payload {
	return []Payload{
		ModuleVersion{Version: 1},
		Section{ID: wasm.SectionIDType, Data: []byte{0x01, 0x60, 0x00, 0x00}, DataOffset: 10},
		Section{ID: wasm.SectionIDFunction, Data: []byte{0x02, 0x00, 0x00}, DataOffset: 16},
		Section{ID: wasm.SectionIDMemory, Data: []byte{0x01, 0x00, 0x01}, DataOffset: 21},
		Section{ID: wasm.SectionIDExport, Data: []byte{0x01, 0x01, 'f', 0x00, 0x00}, DataOffset: 26},
		CodeSectionStart{Count: 2, Size: 9, DataOffset: 33},
		FunctionBody{Index: 0, Data: []byte{0x00, wasm.OpcodeEnd}, DataOffset: 35},
		FunctionBody{Index: 1, Data: []byte{0x01, 0x01, wasm.ValueTypeI32, wasm.OpcodeEnd}, DataOffset: 38},
		DataSectionStart{Count: 1, Size: 8, DataOffset: 44},
		DataEntry{
			Index: 0,
			Segment: wasm.DataSegment{
				OffsetExpression: wasm.ConstantExpression{Opcode: wasm.OpcodeI32Const, Data: []byte{0x00}},
				Init:             []byte{0xaa, 0xbb},
			},
			DataOffset: 45,
		},
		CustomSection{Name: "meta", Data: []byte{0xde, 0xad}, DataOffset: 59},
		End{Offset: 61},
	}
}

// feedChunked drives a parser the way a network caller would: grow the buffer
// by chunk bytes whenever the parser asks for more, drop what it consumed,
// and collect payloads until End.
func feedChunked(t *testing.T, p *Parser, bin []byte, chunk int) []Payload {
	t.Helper()

	var payloads []Payload
	var buf []byte
	next := 0
	for {
		pl, n, err := p.Feed(buf, next == len(bin))
		if err == nil {
			buf = buf[n:]
			payloads = append(payloads, pl)
			if _, ok := pl.(End); ok {
				return payloads
			}
			continue
		}

		require.Equal(t, ErrNeedMoreData, err)
		require.NotEqual(t, len(bin), next, "parser asked for more input after the last byte")
		end := next + chunk
		if end > len(bin) {
			end = len(bin)
		}
		buf = append(buf, bin[next:end]...)
		next = end
	}
}

func TestParser(t *testing.T) {
	bin := exampleModuleBinary()
	expected := exampleModulePayloads()

	for _, canonical := range []bool{false, true} {
		canonical := canonical
		t.Run("canonical="+strconv.FormatBool(canonical), func(t *testing.T) {
			p := NewParser(canonical)

			buf := bin
			for _, want := range expected {
				pl, n, err := p.Feed(buf, true)
				require.NoError(t, err)
				require.Equal(t, want, pl)
				buf = buf[n:]
			}

			// The module is done: the parser stays done.
			_, _, err := p.Feed(buf, true)
			require.Equal(t, io.EOF, err)
			_, _, err = p.Feed(nil, true)
			require.Equal(t, io.EOF, err)
		})
	}
}

// TestParser_Chunked feeds the module in fixed-size chunks and requires the
// identical payload sequence as parsing the whole buffer, whatever the chunk
// size.
func TestParser_Chunked(t *testing.T) {
	bin := exampleModuleBinary()
	expected := exampleModulePayloads()

	for _, chunk := range []int{1, 2, 3, 7, 13, len(bin)} {
		chunk := chunk
		t.Run(strconv.Itoa(chunk)+" bytes at a time", func(t *testing.T) {
			payloads := feedChunked(t, NewParser(false), bin, chunk)
			require.Equal(t, expected, payloads)
		})
	}
}

// TestParser_TruncatedInput cuts the module at every byte position. A cut must
// either land on a section boundary, which reads as a complete shorter module,
// or report truncation. It must never be misread as any other corruption.
func TestParser_TruncatedInput(t *testing.T) {
	bin := exampleModuleBinary()

	for i := 0; i < len(bin); i++ {
		i := i
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			p := NewParser(false)
			buf := bin[:i]
			for {
				pl, n, err := p.Feed(buf, true)
				if err != nil {
					require.Equal(t, wasm.ErrorKindUnexpectedEOF, wasm.KindOf(err), "got %v", err)
					return
				}
				buf = buf[n:]
				if _, ok := pl.(End); ok {
					return
				}
			}
		})
	}
}

func TestParser_NeedMoreData(t *testing.T) {
	bin := exampleModuleBinary()
	p := NewParser(false)

	// Half a header: nothing is consumed and no state changes.
	pl, n, err := p.Feed(bin[:5], false)
	require.Nil(t, pl)
	require.Zero(t, n)
	require.Equal(t, ErrNeedMoreData, err)

	// The same bytes plus the rest of the header resume cleanly.
	pl, n, err = p.Feed(bin[:8], false)
	require.NoError(t, err)
	require.Equal(t, 8, n)
	require.Equal(t, ModuleVersion{Version: 1}, pl)

	// A section ID and size without the contents.
	pl, n, err = p.Feed(bin[8:10], false)
	require.Nil(t, pl)
	require.Zero(t, n)
	require.Equal(t, ErrNeedMoreData, err)

	pl, n, err = p.Feed(bin[8:14], false)
	require.NoError(t, err)
	require.Equal(t, 6, n)
	require.Equal(t, Section{ID: wasm.SectionIDType, Data: []byte{0x01, 0x60, 0x00, 0x00}, DataOffset: 10}, pl)

	// An empty buffer mid-module only means the next chunk hasn't arrived.
	pl, n, err = p.Feed(nil, false)
	require.Nil(t, pl)
	require.Zero(t, n)
	require.Equal(t, ErrNeedMoreData, err)
}

func TestParser_HeaderErrors(t *testing.T) {
	tests := []struct {
		name           string
		input          []byte
		eof            bool
		expectedErr    string
		expectedKind   wasm.ErrorKind
		expectedOffset uint64
	}{
		{
			name:         "empty at eof",
			input:        nil,
			eof:          true,
			expectedErr:  "module truncated in the 8-byte header",
			expectedKind: wasm.ErrorKindUnexpectedEOF,
		},
		{
			name:           "three bytes at eof",
			input:          []byte{0x00, 0x61, 0x73},
			eof:            true,
			expectedErr:    "module truncated in the 8-byte header",
			expectedKind:   wasm.ErrorKindUnexpectedEOF,
			expectedOffset: 3,
		},
		{
			name:         "wrong magic at eof",
			input:        []byte{0x00, 0x61, 0x73, 0x6e},
			eof:          true,
			expectedErr:  "invalid magic number",
			expectedKind: wasm.ErrorKindMalformedHeader,
		},
		{
			name:         "wrong magic",
			input:        []byte("?asm\x01\x00\x00\x00"),
			expectedErr:  "invalid magic number",
			expectedKind: wasm.ErrorKindMalformedHeader,
		},
		{
			name:           "wrong version",
			input:          []byte("\x00asm\x02\x00\x00\x00"),
			expectedErr:    "invalid version header",
			expectedKind:   wasm.ErrorKindMalformedHeader,
			expectedOffset: 4,
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := NewParser(false).Feed(tc.input, tc.eof)
			require.EqualError(t, err, tc.expectedErr)
			require.Equal(t, tc.expectedKind, wasm.KindOf(err))
			offset, ok := wasm.OffsetOf(err)
			require.True(t, ok)
			require.Equal(t, tc.expectedOffset, offset)
		})
	}
}

func TestParser_SectionOrder(t *testing.T) {
	header := exampleModuleBinary()[:8]
	typeSection := []byte{wasm.SectionIDType, 0x04, 0x01, 0x60, 0x00, 0x00}
	memorySection := []byte{wasm.SectionIDMemory, 0x03, 0x01, 0x00, 0x01}
	customSection := []byte{wasm.SectionIDCustom, 0x02, 0x01, 'x'}

	t.Run("custom sections go anywhere", func(t *testing.T) {
		bin := append(append([]byte{}, header...), customSection...)
		bin = append(bin, typeSection...)
		bin = append(bin, customSection...)
		bin = append(bin, memorySection...)
		bin = append(bin, customSection...)

		payloads := feedChunked(t, NewParser(false), bin, len(bin))
		require.Equal(t, End{Offset: uint64(len(bin))}, payloads[len(payloads)-1])
	})

	t.Run("section before its predecessor", func(t *testing.T) {
		bin := append(append([]byte{}, header...), memorySection...)
		bin = append(bin, typeSection...)

		p := NewParser(false)
		buf := bin
		_, n, err := p.Feed(buf, true) // header
		require.NoError(t, err)
		buf = buf[n:]
		_, n, err = p.Feed(buf, true) // memory
		require.NoError(t, err)
		buf = buf[n:]

		_, _, err = p.Feed(buf, true)
		require.EqualError(t, err, "section type out of order")
		require.Equal(t, wasm.ErrorKindSectionOutOfOrder, wasm.KindOf(err))
		offset, ok := wasm.OffsetOf(err)
		require.True(t, ok)
		require.Equal(t, uint64(8+len(memorySection)), offset)
	})

	t.Run("duplicate section", func(t *testing.T) {
		bin := append(append([]byte{}, header...), typeSection...)
		bin = append(bin, typeSection...)

		p := NewParser(false)
		buf := bin
		_, n, err := p.Feed(buf, true)
		require.NoError(t, err)
		buf = buf[n:]
		_, n, err = p.Feed(buf, true)
		require.NoError(t, err)
		buf = buf[n:]

		_, _, err = p.Feed(buf, true)
		require.EqualError(t, err, "section type out of order")
		require.Equal(t, wasm.ErrorKindSectionOutOfOrder, wasm.KindOf(err))
	})

	t.Run("unknown section ID", func(t *testing.T) {
		bin := append(append([]byte{}, header...), 0x0e, 0x00)

		p := NewParser(false)
		_, n, err := p.Feed(bin, true)
		require.NoError(t, err)

		_, _, err = p.Feed(bin[n:], true)
		require.EqualError(t, err, "invalid section id: 14")
		require.Equal(t, wasm.ErrorKindInvalidEncoding, wasm.KindOf(err))
		offset, ok := wasm.OffsetOf(err)
		require.True(t, ok)
		require.Equal(t, uint64(8), offset)
	})
}

func TestParser_SectionSizeErrors(t *testing.T) {
	header := exampleModuleBinary()[:8]

	t.Run("size overflows 32 bits", func(t *testing.T) {
		bin := append(append([]byte{}, header...), wasm.SectionIDType, 0xff, 0xff, 0xff, 0xff, 0x1f)

		p := NewParser(false)
		_, n, err := p.Feed(bin, true)
		require.NoError(t, err)

		_, _, err = p.Feed(bin[n:], true)
		require.EqualError(t, err, "get size of section type: overflows a 32-bit integer")
		require.Equal(t, wasm.ErrorKindIntegerTooLarge, wasm.KindOf(err))
		offset, ok := wasm.OffsetOf(err)
		require.True(t, ok)
		require.Equal(t, uint64(9), offset)
	})

	t.Run("non-canonical size", func(t *testing.T) {
		bin := append(append([]byte{}, header...), wasm.SectionIDType, 0x80, 0x00)

		p := NewParser(true)
		_, n, err := p.Feed(bin, true)
		require.NoError(t, err)

		_, _, err = p.Feed(bin[n:], true)
		require.EqualError(t, err, "get size of section type: non-canonical LEB128 encoding")
		require.Equal(t, wasm.ErrorKindNonCanonicalEncoding, wasm.KindOf(err))
	})
}

func TestParser_CustomSectionErrors(t *testing.T) {
	header := exampleModuleBinary()[:8]

	t.Run("name is not UTF-8", func(t *testing.T) {
		bin := append(append([]byte{}, header...), wasm.SectionIDCustom, 0x02, 0x01, 0xff)

		p := NewParser(false)
		_, n, err := p.Feed(bin, true)
		require.NoError(t, err)

		_, _, err = p.Feed(bin[n:], true)
		require.EqualError(t, err, "read custom section name: custom section name is not valid UTF-8")
		require.Equal(t, wasm.ErrorKindInvalidEncoding, wasm.KindOf(err))
		offset, ok := wasm.OffsetOf(err)
		require.True(t, ok)
		require.Equal(t, uint64(10), offset)
	})

	t.Run("name overruns the section", func(t *testing.T) {
		bin := append(append([]byte{}, header...), wasm.SectionIDCustom, 0x01, 0x05)

		p := NewParser(false)
		_, n, err := p.Feed(bin, true)
		require.NoError(t, err)

		_, _, err = p.Feed(bin[n:], true)
		require.EqualError(t, err, "read custom section name: failed to read custom section name: EOF")
		require.Equal(t, wasm.ErrorKindSizeMismatch, wasm.KindOf(err))
	})
}

func TestParser_CodeSectionErrors(t *testing.T) {
	header := exampleModuleBinary()[:8]

	t.Run("bytes remain after the last body", func(t *testing.T) {
		bin := append(append([]byte{}, header...),
			wasm.SectionIDCode, 0x05,
			0x01,                         // one body
			0x02, 0x00, wasm.OpcodeEnd, // the body
			0xff, // left over
		)

		p := NewParser(false)
		buf := bin
		for _, step := range []string{"header", "code section start", "function body"} {
			_, n, err := p.Feed(buf, true)
			require.NoError(t, err, step)
			buf = buf[n:]
		}

		_, _, err := p.Feed(buf, true)
		require.EqualError(t, err, "invalid section length: expected to be 5 but got 4")
		require.Equal(t, wasm.ErrorKindTrailingData, wasm.KindOf(err))
		offset, ok := wasm.OffsetOf(err)
		require.True(t, ok)
		require.Equal(t, uint64(14), offset)
	})

	t.Run("body overruns the section", func(t *testing.T) {
		bin := append(append([]byte{}, header...),
			wasm.SectionIDCode, 0x04,
			0x01,                   // one body
			0x0a, 0x00, wasm.OpcodeEnd, // sized past the section end
		)

		p := NewParser(false)
		buf := bin
		for _, step := range []string{"header", "code section start"} {
			_, n, err := p.Feed(buf, false)
			require.NoError(t, err, step)
			buf = buf[n:]
		}

		// The declared sizes already conflict, so this cannot be cured by
		// more input: it must fail even before eof.
		_, _, err := p.Feed(buf, false)
		require.EqualError(t, err, "invalid section length: expected to be 4 but got 12")
		require.Equal(t, wasm.ErrorKindSizeMismatch, wasm.KindOf(err))
	})

	t.Run("entry count overruns the section", func(t *testing.T) {
		bin := append(append([]byte{}, header...), wasm.SectionIDCode, 0x01, 0x80)

		p := NewParser(false)
		_, n, err := p.Feed(bin, false)
		require.NoError(t, err)

		_, _, err = p.Feed(bin[n:], false)
		require.EqualError(t, err, "get size of vector: EOF")
		require.Equal(t, wasm.ErrorKindSizeMismatch, wasm.KindOf(err))
	})
}

func TestParser_DataSectionErrors(t *testing.T) {
	header := exampleModuleBinary()[:8]

	t.Run("bytes remain after the last segment", func(t *testing.T) {
		bin := append(append([]byte{}, header...),
			wasm.SectionIDData, 0x03,
			0x00,       // no segments
			0xaa, 0xbb, // left over
		)

		p := NewParser(false)
		buf := bin
		for _, step := range []string{"header", "data section start"} {
			_, n, err := p.Feed(buf, true)
			require.NoError(t, err, step)
			buf = buf[n:]
		}

		_, _, err := p.Feed(buf, true)
		require.EqualError(t, err, "invalid section length: expected to be 3 but got 1")
		require.Equal(t, wasm.ErrorKindTrailingData, wasm.KindOf(err))
	})

	t.Run("segment overruns the section", func(t *testing.T) {
		bin := append(append([]byte{}, header...),
			wasm.SectionIDData, 0x02,
			0x01, // one segment
			0x00, // its prefix, and nothing else
		)

		p := NewParser(false)
		buf := bin
		for _, step := range []string{"header", "data section start"} {
			_, n, err := p.Feed(buf, false)
			require.NoError(t, err, step)
			buf = buf[n:]
		}

		_, _, err := p.Feed(buf, false)
		require.EqualError(t, err, "read data segment: read offset expression: read opcode: EOF")
		require.Equal(t, wasm.ErrorKindSizeMismatch, wasm.KindOf(err))
		offset, ok := wasm.OffsetOf(err)
		require.True(t, ok)
		require.Equal(t, uint64(11), offset)
	})
}

func TestParser_EmptyModule(t *testing.T) {
	p := NewParser(false)

	pl, n, err := p.Feed([]byte("\x00asm\x01\x00\x00\x00"), true)
	require.NoError(t, err)
	require.Equal(t, 8, n)
	require.Equal(t, ModuleVersion{Version: 1}, pl)

	pl, n, err = p.Feed(nil, true)
	require.NoError(t, err)
	require.Zero(t, n)
	require.Equal(t, End{Offset: 8}, pl)

	_, _, err = p.Feed(nil, true)
	require.Equal(t, io.EOF, err)
}
