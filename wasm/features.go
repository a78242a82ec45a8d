package wasm

import (
	"fmt"
	"strings"
)

// Features are the currently enabled features of the decoder and validator.
//
// Note: This is a bit flag until we have too many (>63). Flags are simpler and
// safer to manage than a map.
type Features uint64

// Features20191205 include those finished in WebAssembly 1.0 (20191205).
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/
const Features20191205 = FeatureMutableGlobal

// Features20220419 include those finished in WebAssembly 2.0 (20220419).
//
// See https://www.w3.org/TR/2022/WD-wasm-core-2-20220419/appendix/changes.html
const Features20220419 = Features20191205 |
	FeatureBulkMemoryOperations |
	FeatureMultiValue |
	FeatureNonTrappingFloatToIntConversion |
	FeatureReferenceTypes |
	FeatureSignExtensionOps |
	FeatureSIMD

const (
	// FeatureBulkMemoryOperations adds instructions modify ranges of memory or
	// table entries ("bulk-memory-operations"). This also implies the data
	// count section and passive element and data segments.
	//
	// See https://github.com/WebAssembly/spec/blob/main/proposals/bulk-memory-operations/Overview.md
	FeatureBulkMemoryOperations Features = 1 << iota

	// FeatureMultiValue decodes function types with more than one result, and
	// multi-value block types ("multi-value").
	//
	// See https://github.com/WebAssembly/spec/blob/main/proposals/multi-value/Overview.md
	FeatureMultiValue

	// FeatureMutableGlobal allows globals to be mutable ("mutable-global").
	//
	// See https://github.com/WebAssembly/spec/blob/main/proposals/mutable-global/Overview.md
	FeatureMutableGlobal

	// FeatureNonTrappingFloatToIntConversion decodes the saturating truncation
	// instructions ("nontrapping-float-to-int-conversion").
	//
	// See https://github.com/WebAssembly/spec/blob/main/proposals/nontrapping-float-to-int-conversion/Overview.md
	FeatureNonTrappingFloatToIntConversion

	// FeatureReferenceTypes decodes the funcref and externref value types,
	// multiple tables, and the table and reference instructions
	// ("reference-types"). This implies FeatureBulkMemoryOperations.
	//
	// See https://github.com/WebAssembly/spec/blob/main/proposals/reference-types/Overview.md
	FeatureReferenceTypes

	// FeatureSignExtensionOps decodes the Extend8/16/32 instructions
	// ("sign-extension-ops").
	//
	// See https://github.com/WebAssembly/spec/blob/main/proposals/sign-extension-ops/Overview.md
	FeatureSignExtensionOps

	// FeatureSIMD decodes the v128 value type and vector instructions ("simd").
	//
	// See https://github.com/WebAssembly/spec/blob/main/proposals/simd/SIMD.md
	FeatureSIMD

	// FeatureThreads decodes shared memories and the atomic instructions
	// ("threads").
	//
	// See https://github.com/WebAssembly/threads/blob/main/proposals/threads/Overview.md
	FeatureThreads

	// FeatureExceptionHandling decodes the tag section and the
	// try/catch/delegate/throw instructions ("exception-handling").
	//
	// See https://github.com/WebAssembly/exception-handling/blob/main/proposals/exception-handling/Exceptions.md
	FeatureExceptionHandling
)

// Set assigns the value for the given feature.
func (f Features) Set(feature Features, val bool) Features {
	if val {
		return f | feature
	}
	return f &^ feature
}

// Get returns the value of the given feature.
func (f Features) Get(feature Features) bool {
	return f&feature != 0
}

// RequireEnabled returns an error if the given feature is not enabled.
func (f Features) RequireEnabled(feature Features) error {
	if f&feature == 0 {
		return fmt.Errorf("feature %q is disabled", feature)
	}
	return nil
}

// String implements fmt.Stringer by returning each enabled feature.
func (f Features) String() string {
	var builder strings.Builder
	for i := 0; i <= 63; i++ { // cycle through all bits to reduce code and maintenance
		target := Features(1 << i)
		if f.Get(target) {
			if name := featureName(target); name != "" {
				if builder.Len() > 0 {
					builder.WriteByte('|')
				}
				builder.WriteString(name)
			}
		}
	}
	return builder.String()
}

func featureName(f Features) string {
	switch f {
	case FeatureMutableGlobal:
		return "mutable-global"
	case FeatureSignExtensionOps:
		return "sign-extension-ops"
	case FeatureMultiValue:
		return "multi-value"
	case FeatureNonTrappingFloatToIntConversion:
		return "nontrapping-float-to-int-conversion"
	case FeatureBulkMemoryOperations:
		return "bulk-memory-operations"
	case FeatureReferenceTypes:
		return "reference-types"
	case FeatureSIMD:
		return "simd"
	case FeatureThreads:
		return "threads"
	case FeatureExceptionHandling:
		return "exception-handling"
	}
	return ""
}
