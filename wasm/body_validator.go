package wasm

import (
	"bytes"

	"github.com/willf/bitset"
)

// BodyValidator validates function bodies one at a time, for callers that
// decode the code section incrementally. Construct it once every section
// before the code section is decoded into m; at that point the type context
// is complete, so each body can be checked as soon as it arrives instead of
// waiting for the whole module.
//
// The constructor runs all checks that need no code or data: start function,
// imports, globals, exports, tags, tables and element segments. Checks
// against the data and data count sections, which follow the code section in
// the binary, run in Finish.
type BodyValidator struct {
	m               *Module
	enabledFeatures Features
	collectAll      bool

	functions []Index
	globals   []GlobalType
	memory    *Memory
	tables    []Table
	tags      []*FunctionType
	declared  *bitset.BitSet
	typeCount uint32

	br   *bytes.Reader
	vs   *stacks
	errs ErrorList
}

// NewBodyValidator checks every section of m up to the code section and
// returns a validator for the bodies that follow. When collectAll is true,
// body defects are retained and reported together by Finish instead of
// failing ValidateFunction; defects outside function bodies always fail
// immediately, as the later checks depend on the structures they reject.
func (m *Module) NewBodyValidator(enabledFeatures Features, collectAll bool) (*BodyValidator, error) {
	// Prime the signature key caches so validation only reads them.
	for i := range m.TypeSection {
		tp := &m.TypeSection[i]
		tp.key()
	}
	if uint32(len(m.TypeSection)) > MaximumFunctionTypes {
		return nil, NewError(m.SectionOffsets[SectionIDType], ErrorKindCountMismatch, "too many function types in a module")
	}

	if err := m.validateStartSection(); err != nil {
		return nil, err
	}

	functions, globals, memory, tables, err := m.AllDeclarations()
	if err != nil {
		return nil, err
	}

	if err = m.validateImports(enabledFeatures); err != nil {
		return nil, err
	}

	if err = m.validateGlobals(globals, uint32(len(functions)), MaximumGlobals); err != nil {
		return nil, err
	}

	if err = m.validateExports(enabledFeatures, functions, globals, memory, tables); err != nil {
		return nil, err
	}

	tags, err := m.validateTags(enabledFeatures)
	if err != nil {
		return nil, err
	}

	if uint32(len(functions)) > MaximumFunctionIndex {
		return nil, NewError(m.SectionOffsets[SectionIDFunction], ErrorKindCountMismatch,
			"too many functions (%d) in a module", len(functions))
	}

	if err = m.validateTable(enabledFeatures, tables, MaximumTableIndex); err != nil {
		return nil, err
	}

	declared, err := m.declaredFunctionIndexes()
	if err != nil {
		return nil, err
	}

	return &BodyValidator{
		m:               m,
		enabledFeatures: enabledFeatures,
		collectAll:      collectAll,
		functions:       functions,
		globals:         globals,
		memory:          memory,
		tables:          tables,
		tags:            tags,
		declared:        declared,
		typeCount:       uint32(len(m.TypeSection)),
		br:              bytes.NewReader(nil),
		vs:              &stacks{},
	}, nil
}

// ValidateFunction checks the body at idx in the code section, which must
// already be decoded into m.CodeSection[idx]. In collect mode a body defect
// is retained for Finish and the return is nil.
func (v *BodyValidator) ValidateFunction(idx Index) error {
	if int(idx) >= len(v.m.FunctionSection) {
		return NewError(v.m.SectionOffsets[SectionIDCode], ErrorKindCountMismatch,
			"function and code section have inconsistent lengths: %d and %d",
			len(v.m.FunctionSection), idx+1)
	}
	e := v.m.validateCodeEntry(v.vs, v.br, v.enabledFeatures, idx, v.functions, v.globals, v.memory,
		v.tables, v.tags, v.declared, v.typeCount)
	if e == nil {
		return nil
	}
	if v.collectAll {
		v.errs = append(v.errs, e)
		return nil
	}
	return e
}

// Finish runs the checks deferred until the data and data count sections are
// decoded, then reports any body defects retained in collect mode as an
// ErrorList ordered by function index.
func (v *BodyValidator) Finish() error {
	if err := v.m.validateMemory(v.memory, v.globals); err != nil {
		return err
	}
	if err := v.m.validateDataCountSection(); err != nil {
		return err
	}
	if len(v.errs) > 0 {
		return v.errs
	}
	return nil
}
