package wasmcheck

import (
	"github.com/wasmcheck/wasmcheck/wasm"
)

// ValidatorConfig controls validation behavior, with the defaults as
// NewValidatorConfig. Each With method returns a copy, so a config can fan
// out into variants.
type ValidatorConfig struct {
	enabledFeatures     wasm.Features
	memoryLimitPages    uint32
	parallelism         int
	canonical           bool
	collectAll          bool
	storeCustomSections bool
}

// NewValidatorConfig returns the default configuration: WebAssembly 1.0
// (20191205) features, serial body validation, and the first defect ending
// validation.
func NewValidatorConfig() *ValidatorConfig {
	return &ValidatorConfig{
		enabledFeatures:  wasm.Features20191205,
		memoryLimitPages: wasm.MemoryLimitPages,
		parallelism:      1,
	}
}

// clone ensures all fields are copied even if zero.
func (c *ValidatorConfig) clone() *ValidatorConfig {
	return &ValidatorConfig{
		enabledFeatures:     c.enabledFeatures,
		memoryLimitPages:    c.memoryLimitPages,
		parallelism:         c.parallelism,
		canonical:           c.canonical,
		collectAll:          c.collectAll,
		storeCustomSections: c.storeCustomSections,
	}
}

// WithCoreFeatures replaces the entire feature set, discarding any prior
// WithFeatureXXX call. wasm.Features20191205 accepts WebAssembly 1.0 and
// wasm.Features20220419 accepts WebAssembly 2.0.
func (c *ValidatorConfig) WithCoreFeatures(features wasm.Features) *ValidatorConfig {
	ret := c.clone()
	ret.enabledFeatures = features
	return ret
}

// WithFeatureMutableGlobal allows globals to be mutable. This defaults to
// true as the feature was finished in WebAssembly 1.0 (20191205).
//
// When false, any module that declares or imports a mutable global fails
// validation.
func (c *ValidatorConfig) WithFeatureMutableGlobal(enabled bool) *ValidatorConfig {
	ret := c.clone()
	ret.enabledFeatures = ret.enabledFeatures.Set(wasm.FeatureMutableGlobal, enabled)
	return ret
}

// WithFeatureSignExtensionOps accepts sign-extend operations. This defaults
// to false as the feature was not finished in WebAssembly 1.0 (20191205).
//
// See https://github.com/WebAssembly/spec/blob/main/proposals/sign-extension-ops/Overview.md
func (c *ValidatorConfig) WithFeatureSignExtensionOps(enabled bool) *ValidatorConfig {
	ret := c.clone()
	ret.enabledFeatures = ret.enabledFeatures.Set(wasm.FeatureSignExtensionOps, enabled)
	return ret
}

// WithCanonicalVarints requires every LEB128 varint outside function bodies
// to use its shortest encoding. This defaults to false as the binary format
// permits padded varints.
func (c *ValidatorConfig) WithCanonicalVarints(enabled bool) *ValidatorConfig {
	ret := c.clone()
	ret.canonical = enabled
	return ret
}

// WithCollectAllErrors reports every defective function body instead of
// stopping at the first: the error then unwraps to a wasm.ErrorList ordered
// by function index. Defects outside function bodies still end validation
// immediately, as the later checks depend on the structures they reject.
func (c *ValidatorConfig) WithCollectAllErrors(enabled bool) *ValidatorConfig {
	ret := c.clone()
	ret.collectAll = enabled
	return ret
}

// WithParallelism validates function bodies on up to parallelism goroutines
// during Validate. Values below 2 validate serially, as do streams, whose
// bodies are checked in arrival order.
func (c *ValidatorConfig) WithParallelism(parallelism int) *ValidatorConfig {
	ret := c.clone()
	ret.parallelism = parallelism
	return ret
}

// WithMemoryLimitPages reduces the maximum number of pages a module can
// define from 65536 pages (4GiB) to a lower value.
//
// Notes:
// * If a module defines no memory max limit, decoding substitutes this value.
// * If a module defines a memory min or max larger than this amount, it fails to decode.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#memory-types%E2%91%A0
func (c *ValidatorConfig) WithMemoryLimitPages(memoryLimitPages uint32) *ValidatorConfig {
	ret := c.clone()
	ret.memoryLimitPages = memoryLimitPages
	return ret
}

// WithCustomSections retains custom sections other than "name" in
// wasm.Module.CustomSections. This defaults to false as validation never
// reads them.
func (c *ValidatorConfig) WithCustomSections(enabled bool) *ValidatorConfig {
	ret := c.clone()
	ret.storeCustomSections = enabled
	return ret
}
