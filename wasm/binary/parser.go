package binary

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/wasmcheck/wasmcheck/wasm"
)

// Payload is one structural item of a module binary, produced in module order
// by Parser.Feed. The concrete types are ModuleVersion, Section,
// CustomSection, CodeSectionStart, FunctionBody, DataSectionStart, DataEntry
// and End.
type Payload interface {
	payload()
}

// ModuleVersion is the first payload of any module: the version field that
// follows the magic number.
type ModuleVersion struct {
	Version uint32
}

// Section is a fully buffered non-custom section, except the code and data
// sections which stream as CodeSectionStart and DataSectionStart. Data is the
// section's contents without the ID and size prefix, aliasing the fed bytes.
// DataOffset is the position of Data within the module binary.
type Section struct {
	ID         wasm.SectionID
	Data       []byte
	DataOffset uint64
}

// CustomSection is a custom section whose name decoded as valid UTF-8. Data
// is the payload after the name, aliasing the fed bytes, and DataOffset its
// position within the module binary.
type CustomSection struct {
	Name       string
	Data       []byte
	DataOffset uint64
}

// CodeSectionStart announces a code section: Count function bodies follow as
// FunctionBody payloads. Size is the declared byte length of the contents and
// DataOffset their position within the module binary.
type CodeSectionStart struct {
	Count      uint32
	Size       uint32
	DataOffset uint64
}

// FunctionBody is one entry of the code section: the locals and expression of
// the Index-th module-defined function, without the entry's size prefix. Data
// aliases the fed bytes.
type FunctionBody struct {
	Index      uint32
	Data       []byte
	DataOffset uint64
}

// DataSectionStart announces a data section: Count segments follow as
// DataEntry payloads. Size is the declared byte length of the contents and
// DataOffset their position within the module binary.
type DataSectionStart struct {
	Count      uint32
	Size       uint32
	DataOffset uint64
}

// DataEntry is one decoded segment of the data section. Segment.Init aliases
// the fed bytes. DataOffset is the position of the entry within the module
// binary.
type DataEntry struct {
	Index      uint32
	Segment    wasm.DataSegment
	DataOffset uint64
}

// End reports a well-formed end of module. Offset is the total binary length.
type End struct {
	Offset uint64
}

func (ModuleVersion) payload()    {}
func (Section) payload()          {}
func (CustomSection) payload()    {}
func (CodeSectionStart) payload() {}
func (FunctionBody) payload()     {}
func (DataSectionStart) payload() {}
func (DataEntry) payload()        {}
func (End) payload()              {}

type parserState byte

const (
	parserStateHeader parserState = iota
	parserStateSection
	parserStateCodeEntry
	parserStateDataEntry
	parserStateEnd
)

// Parser is a resumable push parser over the module binary format. Feed it
// byte chunks as they arrive; it hands back one Payload per call without
// waiting for the rest of the module, which lets a caller process function
// bodies while the network is still delivering the data section.
//
// Parser checks framing only: the header, section order, and that declared
// sizes and counts agree with the bytes. It is feature-agnostic; DecodeModule
// layers feature gates and entry decoding on top.
//
// The zero value is not usable; construct with NewParser.
type Parser struct {
	state  parserState
	offset uint64

	canonical bool

	// lastRank tracks the highest-ranked non-custom section seen, so a
	// repeated or misplaced section is caught on its ID byte.
	lastRank int

	// Streaming bookkeeping for the code and data sections.
	remainingEntries uint32
	entryIndex       uint32
	sectionSize      uint32
	sectionEnd       uint64
}

// NewParser returns a Parser positioned at the magic number. With canonical
// set, every size, count and index varint outside function bodies must use
// its shortest encoding.
func NewParser(canonical bool) *Parser {
	return &Parser{canonical: canonical}
}

// Feed parses the next payload from data, which must begin at the first byte
// Feed has not yet consumed. It returns the payload and how many bytes of
// data it consumed. The caller drops consumed bytes and feeds the remainder,
// plus any new input, on the next call.
//
// When data ends before the next payload is complete and eof is false, Feed
// returns ErrNeedMoreData with nothing consumed and no state change, so the
// same bytes must be fed again with more appended. With eof set, truncation
// is an error instead. After the End payload, Feed returns io.EOF.
//
// Payloads alias data rather than copy it, so the caller must not reuse the
// buffer until done with the payload. Errors other than ErrNeedMoreData and
// io.EOF are *wasm.Error values positioned within the module binary.
func (p *Parser) Feed(data []byte, eof bool) (Payload, int, error) {
	switch p.state {
	case parserStateHeader:
		return p.feedHeader(data, eof)
	case parserStateSection:
		return p.feedSection(data, eof)
	case parserStateCodeEntry:
		return p.feedCodeEntry(data, eof)
	case parserStateDataEntry:
		return p.feedDataEntry(data, eof)
	default:
		return nil, 0, io.EOF
	}
}

// needMore asks for more input, or reports truncation when no more can come.
// The format describes what was being read.
func (p *Parser) needMore(data []byte, eof bool, format string, args ...interface{}) (Payload, int, error) {
	if !eof {
		return nil, 0, ErrNeedMoreData
	}
	return nil, 0, wasm.NewError(p.offset+uint64(len(data)), wasm.ErrorKindUnexpectedEOF,
		"unexpected end of input reading "+fmt.Sprintf(format, args...))
}

func (p *Parser) feedHeader(data []byte, eof bool) (Payload, int, error) {
	if len(data) < 8 {
		if !eof {
			return nil, 0, ErrNeedMoreData
		}
		// A wrong magic number is the better diagnosis when enough bytes
		// arrived to tell.
		if len(data) >= 4 && !bytes.Equal(data[:4], Magic) {
			return nil, 0, wasm.NewError(0, wasm.ErrorKindMalformedHeader, "%w", ErrInvalidMagicNumber)
		}
		return nil, 0, wasm.NewError(uint64(len(data)), wasm.ErrorKindUnexpectedEOF,
			"module truncated in the 8-byte header")
	}
	if !bytes.Equal(data[:4], Magic) {
		return nil, 0, wasm.NewError(0, wasm.ErrorKindMalformedHeader, "%w", ErrInvalidMagicNumber)
	}
	if !bytes.Equal(data[4:8], version) {
		return nil, 0, wasm.NewError(4, wasm.ErrorKindMalformedHeader, "%w", ErrInvalidVersion)
	}
	p.state = parserStateSection
	p.offset = 8
	return ModuleVersion{Version: binary.LittleEndian.Uint32(data[4:8])}, 8, nil
}

func (p *Parser) feedSection(data []byte, eof bool) (Payload, int, error) {
	if len(data) == 0 {
		if !eof {
			return nil, 0, ErrNeedMoreData
		}
		p.state = parserStateEnd
		return End{Offset: p.offset}, 0, nil
	}

	id := wasm.SectionID(data[0])
	if id > wasm.SectionIDTag {
		return nil, 0, wasm.NewError(p.offset, wasm.ErrorKindInvalidEncoding, "%w: %d", ErrInvalidSectionID, id)
	}
	rank := sectionRank(id)
	if id != wasm.SectionIDCustom && rank <= p.lastRank {
		return nil, 0, wasm.NewError(p.offset, wasm.ErrorKindSectionOutOfOrder,
			"section %s out of order", wasm.SectionIDName(id))
	}

	size, sizeLen, err := loadUint32(data[1:], p.canonical)
	if err != nil {
		if isShortRead(err) {
			return p.needMore(data, eof, "the size of section %s", wasm.SectionIDName(id))
		}
		return nil, 0, wasm.NewError(p.offset+1, readErrorKind(err),
			"get size of section %s: %w", wasm.SectionIDName(id), err)
	}
	headerLen := 1 + int(sizeLen)
	contentsOffset := p.offset + uint64(headerLen)

	switch id {
	case wasm.SectionIDCode, wasm.SectionIDData:
		// Streamed sections: emit the start payload once the entry count is
		// known, then hand out entries one Feed at a time.
		window := data[headerLen:]
		if uint64(len(window)) > uint64(size) {
			window = window[:size]
		}
		count, countLen, err := loadUint32(window, p.canonical)
		if err != nil {
			if isShortRead(err) {
				if uint64(len(data)-headerLen) >= uint64(size) {
					// The whole section is here, so the count overran it.
					return nil, 0, wasm.NewError(contentsOffset, wasm.ErrorKindSizeMismatch,
						"get size of vector: %w", err)
				}
				return p.needMore(data, eof, "the entry count of section %s", wasm.SectionIDName(id))
			}
			return nil, 0, wasm.NewError(contentsOffset, readErrorKind(err), "get size of vector: %w", err)
		}

		p.lastRank = rank
		p.remainingEntries = count
		p.entryIndex = 0
		p.sectionSize = size
		p.sectionEnd = contentsOffset + uint64(size)
		consumed := headerLen + int(countLen)
		p.offset += uint64(consumed)
		if id == wasm.SectionIDCode {
			p.state = parserStateCodeEntry
			return CodeSectionStart{Count: count, Size: size, DataOffset: contentsOffset}, consumed, nil
		}
		p.state = parserStateDataEntry
		return DataSectionStart{Count: count, Size: size, DataOffset: contentsOffset}, consumed, nil

	default:
		total := headerLen + int(size)
		if uint64(len(data)) < uint64(headerLen)+uint64(size) {
			return p.needMore(data, eof, "section %s", wasm.SectionIDName(id))
		}
		contents := data[headerLen:total]

		if id == wasm.SectionIDCustom {
			r := bytes.NewReader(contents)
			name, _, err := decodeUTF8(r, p.canonical, "custom section name")
			if err != nil {
				kind := classify(err)
				if kind == wasm.ErrorKindUnexpectedEOF {
					// The name overran the declared section size.
					kind = wasm.ErrorKindSizeMismatch
				}
				return nil, 0, wasm.NewError(contentsOffset, kind, "read custom section name: %w", err)
			}
			nameLen := len(contents) - r.Len()
			p.offset += uint64(total)
			return CustomSection{
				Name:       name,
				Data:       contents[nameLen:],
				DataOffset: contentsOffset + uint64(nameLen),
			}, total, nil
		}

		p.lastRank = rank
		p.offset += uint64(total)
		return Section{ID: id, Data: contents, DataOffset: contentsOffset}, total, nil
	}
}

func (p *Parser) feedCodeEntry(data []byte, eof bool) (Payload, int, error) {
	if p.remainingEntries == 0 {
		if p.offset < p.sectionEnd {
			return nil, 0, wasm.NewError(p.offset, wasm.ErrorKindTrailingData,
				"invalid section length: expected to be %d but got %d",
				p.sectionSize, p.consumedOfSection())
		}
		p.state = parserStateSection
		return p.feedSection(data, eof)
	}

	size, sizeLen, err := loadUint32(data, p.canonical)
	if err != nil {
		if isShortRead(err) {
			if uint64(len(data)) >= p.sectionEnd-p.offset {
				// The size prefix overran the section.
				return nil, 0, wasm.NewError(p.offset, wasm.ErrorKindSizeMismatch,
					"get the size of code: %w", err)
			}
			return p.needMore(data, eof, "the size of the %d-th code entry", p.entryIndex)
		}
		return nil, 0, wasm.NewError(p.offset, readErrorKind(err), "get the size of code: %w", err)
	}

	// An entry running past the section end cannot be fixed by more input, so
	// check that before asking for the body bytes.
	entryLen := uint64(sizeLen) + uint64(size)
	if p.offset+entryLen > p.sectionEnd {
		return nil, 0, wasm.NewError(p.offset, wasm.ErrorKindSizeMismatch,
			"invalid section length: expected to be %d but got %d",
			p.sectionSize, p.consumedOfSection()+entryLen)
	}
	if uint64(len(data)) < entryLen {
		return p.needMore(data, eof, "the %d-th code entry", p.entryIndex)
	}

	body := data[sizeLen:entryLen]
	pl := FunctionBody{Index: p.entryIndex, Data: body, DataOffset: p.offset + uint64(sizeLen)}
	p.offset += entryLen
	p.entryIndex++
	p.remainingEntries--
	return pl, int(entryLen), nil
}

func (p *Parser) feedDataEntry(data []byte, eof bool) (Payload, int, error) {
	if p.remainingEntries == 0 {
		if p.offset < p.sectionEnd {
			return nil, 0, wasm.NewError(p.offset, wasm.ErrorKindTrailingData,
				"invalid section length: expected to be %d but got %d",
				p.sectionSize, p.consumedOfSection())
		}
		p.state = parserStateSection
		return p.feedSection(data, eof)
	}

	r := bytes.NewReader(data)
	seg, err := decodeDataSegment(r, p.canonical)
	if err != nil {
		if isShortRead(err) {
			if uint64(len(data)) >= p.sectionEnd-p.offset {
				// The segment overran the section.
				return nil, 0, wasm.NewError(p.offset, wasm.ErrorKindSizeMismatch,
					"read data segment: %w", err)
			}
			return p.needMore(data, eof, "the %d-th data segment", p.entryIndex)
		}
		return nil, 0, wasm.NewError(p.offset, classify(err), "read data segment: %w", err)
	}
	entryLen := uint64(r.Size()) - uint64(r.Len())
	if p.offset+entryLen > p.sectionEnd {
		return nil, 0, wasm.NewError(p.offset, wasm.ErrorKindSizeMismatch,
			"invalid section length: expected to be %d but got %d",
			p.sectionSize, p.consumedOfSection()+entryLen)
	}

	pl := DataEntry{Index: p.entryIndex, Segment: seg, DataOffset: p.offset}
	p.offset += entryLen
	p.entryIndex++
	p.remainingEntries--
	return pl, int(entryLen), nil
}

// consumedOfSection is how many bytes of the streamed section's contents have
// been consumed so far.
func (p *Parser) consumedOfSection() uint64 {
	return uint64(p.sectionSize) - (p.sectionEnd - p.offset)
}

func isShortRead(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// sectionRank gives each non-custom section its mandated position in the
// module. Custom sections rank zero and may appear anywhere.
//
// See https://www.w3.org/TR/2022/WD-wasm-core-2-20220419/binary/modules.html#binary-module
func sectionRank(id wasm.SectionID) int {
	switch id {
	case wasm.SectionIDType:
		return 1
	case wasm.SectionIDImport:
		return 2
	case wasm.SectionIDFunction:
		return 3
	case wasm.SectionIDTable:
		return 4
	case wasm.SectionIDMemory:
		return 5
	case wasm.SectionIDTag:
		return 6
	case wasm.SectionIDGlobal:
		return 7
	case wasm.SectionIDExport:
		return 8
	case wasm.SectionIDStart:
		return 9
	case wasm.SectionIDElement:
		return 10
	case wasm.SectionIDDataCount:
		return 11
	case wasm.SectionIDCode:
		return 12
	case wasm.SectionIDData:
		return 13
	default:
		return 0
	}
}
