package binary

import (
	"bytes"
	"fmt"
	"io"

	"github.com/wasmcheck/wasmcheck/wasm"
	"github.com/wasmcheck/wasmcheck/wasm/leb128"
)

const (
	// subsectionIDModuleName contains only the module name.
	subsectionIDModuleName = uint8(0)
	// subsectionIDFunctionNames is a map of indices to function names, in ascending order by function index.
	subsectionIDFunctionNames = uint8(1)
	// subsectionIDLocalNames contains a map of function indices to a map of local indices to their names, in ascending
	// order by function and local index.
	subsectionIDLocalNames = uint8(2)
)

// decodeNameSection deserializes the contents of the "name" custom section.
//
//   - ModuleName decodes from subsection 0.
//   - FunctionNames decodes from subsection 1.
//   - LocalNames decodes from subsection 2.
//
// Unknown subsections are skipped over by their declared size.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-namesec
func decodeNameSection(data []byte, canonical bool) (result *wasm.NameSection, err error) {
	r := bytes.NewReader(data)
	result = &wasm.NameSection{}

	// subsectionID is decoded if known, and skipped if not.
	var subsectionID uint8
	// subsectionSize is the length to skip when the subsectionID is unknown.
	var subsectionSize uint32
	for {
		if subsectionID, err = r.ReadByte(); err != nil {
			if err == io.EOF {
				return result, nil
			}
			return nil, fmt.Errorf("failed to read a subsection ID: %w", err)
		}

		if subsectionSize, _, err = readUint32(r, canonical); err != nil {
			return nil, fmt.Errorf("failed to read the size of subsection[%d]: %w", subsectionID, err)
		}

		switch subsectionID {
		case subsectionIDModuleName:
			if result.ModuleName, _, err = decodeUTF8(r, canonical, "module name"); err != nil {
				return nil, err
			}
		case subsectionIDFunctionNames:
			if result.FunctionNames, err = decodeFunctionNames(r, canonical); err != nil {
				return nil, err
			}
		case subsectionIDLocalNames:
			if result.LocalNames, err = decodeLocalNames(r, canonical); err != nil {
				return nil, err
			}
		default: // Skip other subsections.
			// Note: Not Seek because it doesn't err when given an offset past EOF. Rather, it leads to undefined state.
			if _, err = io.CopyN(io.Discard, r, int64(subsectionSize)); err != nil {
				return nil, fmt.Errorf("failed to skip subsection[%d]: %w", subsectionID, err)
			}
		}
	}
}

func decodeFunctionNames(r *bytes.Reader, canonical bool) (wasm.NameMap, error) {
	functionCount, err := decodeFunctionCount(r, canonical, subsectionIDFunctionNames)
	if err != nil {
		return nil, err
	}

	result := make(wasm.NameMap, 0, min(uint64(functionCount), uint64(r.Len())))
	for i := uint32(0); i < functionCount; i++ {
		functionIndex, err := decodeFunctionIndex(r, canonical, subsectionIDFunctionNames)
		if err != nil {
			return nil, err
		}

		name, _, err := decodeUTF8(r, canonical, "function[%d] name", functionIndex)
		if err != nil {
			return nil, err
		}
		result = append(result, wasm.NameAssoc{Index: functionIndex, Name: name})
	}
	return result, nil
}

func decodeLocalNames(r *bytes.Reader, canonical bool) (wasm.IndirectNameMap, error) {
	functionCount, err := decodeFunctionCount(r, canonical, subsectionIDLocalNames)
	if err != nil {
		return nil, err
	}

	result := make(wasm.IndirectNameMap, 0, min(uint64(functionCount), uint64(r.Len())))
	for i := uint32(0); i < functionCount; i++ {
		functionIndex, err := decodeFunctionIndex(r, canonical, subsectionIDLocalNames)
		if err != nil {
			return nil, err
		}

		localCount, _, err := readUint32(r, canonical)
		if err != nil {
			return nil, fmt.Errorf("failed to read the local count for function[%d]: %w", functionIndex, err)
		}

		locals := make(wasm.NameMap, 0, min(uint64(localCount), uint64(r.Len())))
		for j := uint32(0); j < localCount; j++ {
			localIndex, _, err := readUint32(r, canonical)
			if err != nil {
				return nil, fmt.Errorf("failed to read a local index of function[%d]: %w", functionIndex, err)
			}

			name, _, err := decodeUTF8(r, canonical, "function[%d] local[%d] name", functionIndex, localIndex)
			if err != nil {
				return nil, err
			}
			locals = append(locals, wasm.NameAssoc{Index: localIndex, Name: name})
		}
		result = append(result, wasm.NameMapAssoc{Index: functionIndex, NameMap: locals})
	}
	return result, nil
}

func decodeFunctionIndex(r *bytes.Reader, canonical bool, subsectionID uint8) (uint32, error) {
	functionIndex, _, err := readUint32(r, canonical)
	if err != nil {
		return 0, fmt.Errorf("failed to read a function index in subsection[%d]: %w", subsectionID, err)
	}
	return functionIndex, nil
}

func decodeFunctionCount(r *bytes.Reader, canonical bool, subsectionID uint8) (uint32, error) {
	functionCount, _, err := readUint32(r, canonical)
	if err != nil {
		return 0, fmt.Errorf("failed to read the function count of subsection[%d]: %w", subsectionID, err)
	}
	return functionCount, nil
}

func min(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

// encodeNameSectionData serializes the data for the "name" key in
// wasm.SectionIDCustom according to the standard:
//
// Note: The result can be nil because this does not encode empty subsections.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-namesec
func encodeNameSectionData(n *wasm.NameSection) (data []byte) {
	if n.ModuleName != "" {
		data = append(data, encodeNameSubsection(subsectionIDModuleName, encodeSizePrefixed([]byte(n.ModuleName)))...)
	}
	if fd := encodeFunctionNameData(n.FunctionNames); len(fd) > 0 {
		data = append(data, encodeNameSubsection(subsectionIDFunctionNames, fd)...)
	}
	if ld := encodeLocalNameData(n.LocalNames); len(ld) > 0 {
		data = append(data, encodeNameSubsection(subsectionIDLocalNames, ld)...)
	}
	return
}

// encodeFunctionNameData encodes the data for the function name subsection.
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-funcnamesec
func encodeFunctionNameData(m wasm.NameMap) []byte {
	if len(m) == 0 {
		return nil
	}
	return encodeNameMap(m)
}

func encodeNameMap(m wasm.NameMap) []byte {
	count := uint32(len(m))
	data := leb128.EncodeUint32(count)
	for i := range m {
		data = append(data, encodeNameAssoc(&m[i])...)
	}
	return data
}

// encodeLocalNameData encodes the data for the local name subsection.
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-localnamesec
func encodeLocalNameData(m wasm.IndirectNameMap) []byte {
	if len(m) == 0 {
		return nil
	}
	funcNameCount := uint32(len(m))
	subsection := leb128.EncodeUint32(funcNameCount)

	for i := range m {
		na := &m[i]
		locals := encodeNameMap(na.NameMap)
		subsection = append(subsection, append(leb128.EncodeUint32(na.Index), locals...)...)
	}
	return subsection
}

// encodeNameSubsection returns a buffer encoding the given subsection
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#subsections%E2%91%A0
func encodeNameSubsection(subsectionID uint8, content []byte) []byte {
	contentSizeInBytes := leb128.EncodeUint32(uint32(len(content)))
	result := []byte{subsectionID}
	result = append(result, contentSizeInBytes...)
	result = append(result, content...)
	return result
}

// encodeNameAssoc encodes the index and data prefixed by their size.
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-namemap
func encodeNameAssoc(na *wasm.NameAssoc) []byte {
	return append(leb128.EncodeUint32(na.Index), encodeSizePrefixed([]byte(na.Name))...)
}

// encodeSizePrefixed encodes the data prefixed by their size.
func encodeSizePrefixed(data []byte) []byte {
	size := leb128.EncodeUint32(uint32(len(data)))
	return append(size, data...)
}
