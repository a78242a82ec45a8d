package binary

import (
	"bytes"
	"fmt"

	"github.com/wasmcheck/wasmcheck/wasm"
)

// decodeMemory returns the wasm.Memory decoded with the WebAssembly 1.0
// (20191205) Binary Format.
//
// Range checks against memoryLimitPages happen in wasm.Memory Validate, not
// here: decoding only shapes the limits and defaults an absent maximum.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-memory
func decodeMemory(r *bytes.Reader, enabledFeatures wasm.Features, memoryLimitPages uint32, canonical bool) (*wasm.Memory, error) {
	flag, min, maxP, err := decodeLimitsType(r, canonical)
	if err != nil {
		return nil, err
	}

	shared := flag&limitsFlagShared != 0
	if shared {
		if err := enabledFeatures.RequireEnabled(wasm.FeatureThreads); err != nil {
			return nil, fmt.Errorf("shared memory invalid as %w", err)
		}
	}

	mem := &wasm.Memory{Min: min, IsShared: shared}
	if maxP != nil {
		mem.Max, mem.IsMaxEncoded = *maxP, true
	} else {
		mem.Max = memoryLimitPages
	}
	return mem, nil
}

// encodeMemory returns the wasm.Memory encoded in the WebAssembly 1.0
// (20191205) Binary Format.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-memory
func encodeMemory(i *wasm.Memory) []byte {
	var max *uint32
	if i.IsMaxEncoded {
		max = &i.Max
	}
	return encodeLimitsType(i.Min, max, i.IsShared)
}
