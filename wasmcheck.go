// Package wasmcheck validates WebAssembly binary modules without
// instantiating them.
//
// Ex.
//	summary, err := wasmcheck.NewValidator().Validate(source)
//
// Validate decodes and checks a complete module binary in one call. For
// module bytes that arrive in chunks, such as a network download, NewStream
// validates incrementally instead. The wasm and wasm/binary packages expose
// the module structure and codec for callers that need more than a verdict.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/
package wasmcheck

import (
	"github.com/wasmcheck/wasmcheck/wasm"
	"github.com/wasmcheck/wasmcheck/wasm/binary"
)

// Validator decodes and validates WebAssembly binary modules under a fixed
// configuration. It holds no per-module state, so one Validator can check
// any number of modules concurrently.
type Validator struct {
	enabledFeatures     wasm.Features
	memoryLimitPages    uint32
	parallelism         int
	canonical           bool
	collectAll          bool
	storeCustomSections bool
}

// NewValidator returns a validator with the default configuration.
func NewValidator() *Validator {
	return NewValidatorWithConfig(NewValidatorConfig())
}

// NewValidatorWithConfig returns a validator with the given configuration.
func NewValidatorWithConfig(config *ValidatorConfig) *Validator {
	return &Validator{
		enabledFeatures:     config.enabledFeatures,
		memoryLimitPages:    config.memoryLimitPages,
		parallelism:         config.parallelism,
		canonical:           config.canonical,
		collectAll:          config.collectAll,
		storeCustomSections: config.storeCustomSections,
	}
}

// DecodeModule decodes the WebAssembly binary source or errs if malformed.
// The result is structurally sound but not yet validated; Validate covers
// both phases.
//
// The returned module aliases source rather than copying it, so the caller
// must not reuse the buffer while the module is live.
func (v *Validator) DecodeModule(source []byte) (*wasm.Module, error) {
	return binary.DecodeModule(source, v.enabledFeatures, v.memoryLimitPages, v.storeCustomSections, v.canonical)
}

// Validate decodes and validates source, returning a summary of the module
// on success. Errors are *wasm.Error values positioned within source; with
// WithCollectAllErrors the error unwraps to every defective function body.
func (v *Validator) Validate(source []byte) (*wasm.ModuleSummary, error) {
	m, err := v.DecodeModule(source)
	if err != nil {
		return nil, err
	}
	if err = m.ValidateParallel(v.enabledFeatures, v.parallelism, v.collectAll); err != nil {
		return nil, err
	}
	return m.Summary(), nil
}
