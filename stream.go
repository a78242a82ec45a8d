package wasmcheck

import (
	"errors"

	"github.com/wasmcheck/wasmcheck/wasm"
	"github.com/wasmcheck/wasmcheck/wasm/binary"
)

var errStreamClosed = errors.New("stream already closed")

// Stream validates a module binary delivered in chunks, such as a network
// download, without waiting for the whole binary. Sections are decoded and
// checked as their bytes complete. In particular each function body is
// validated on arrival: the binary format places everything a body check
// reads before the code section, so a defective body is reported while the
// rest of the download is still in flight.
//
// A Stream is single use and not safe for concurrent use. Feed it chunks in
// order, then Close.
type Stream struct {
	p *binary.Parser
	b *binary.ModuleBuilder

	enabledFeatures wasm.Features
	collectAll      bool

	bv      *wasm.BodyValidator
	buf     []byte
	summary *wasm.ModuleSummary
	err     error
	closed  bool
}

// NewStream returns a stream that validates one module binary incrementally.
// The stream checks function bodies in arrival order on the calling
// goroutine; WithParallelism only affects Validate.
func (v *Validator) NewStream() *Stream {
	return &Stream{
		p: binary.NewParser(v.canonical),
		b: binary.NewModuleBuilder(v.enabledFeatures, v.memoryLimitPages, v.storeCustomSections, v.canonical),

		enabledFeatures: v.enabledFeatures,
		collectAll:      v.collectAll,
	}
}

// Feed appends chunk to the stream and processes every payload whose bytes
// are now complete. The first defect is returned and retained: every later
// Feed fails with it, as does Close. A nil return means no defect so far,
// not that the module is valid; only Close can conclude that.
func (s *Stream) Feed(chunk []byte) error {
	if s.closed {
		return errStreamClosed
	}
	if s.err != nil {
		return s.err
	}

	s.buf = append(s.buf, chunk...)
	for {
		payload, n, err := s.p.Feed(s.buf, false)
		if errors.Is(err, binary.ErrNeedMoreData) {
			return nil
		} else if err != nil {
			s.err = err
			return err
		}
		s.buf = s.buf[n:]

		if err = s.apply(payload); err != nil {
			s.err = err
			return err
		}
	}
}

// Close delivers end of input, runs the checks that need the complete
// module, and returns its summary. Closing again returns the same result.
func (s *Stream) Close() (*wasm.ModuleSummary, error) {
	if s.closed {
		return s.summary, s.err
	}
	s.closed = true
	if s.err != nil {
		return nil, s.err
	}

	for {
		payload, n, err := s.p.Feed(s.buf, true)
		if err != nil {
			s.err = err
			return nil, err
		}
		s.buf = s.buf[n:]

		if err = s.apply(payload); err != nil {
			s.err = err
			return nil, err
		}
		if _, done := payload.(binary.End); done {
			break
		}
	}

	// A module without a code section never reached ensureBodyValidator, so
	// the section checks run here instead.
	if s.bv == nil {
		if err := s.ensureBodyValidator(); err != nil {
			s.err = err
			return nil, err
		}
	}
	if err := s.bv.Finish(); err != nil {
		s.err = err
		return nil, err
	}
	s.summary = s.b.Module().Summary()
	return s.summary, nil
}

// apply decodes one payload into the module and validates what it completes.
func (s *Stream) apply(payload binary.Payload) error {
	switch t := payload.(type) {
	case binary.CodeSectionStart:
		if err := s.b.Apply(payload); err != nil {
			return err
		}
		// Every section a body check reads precedes the code section, so
		// check them all before the first body.
		return s.ensureBodyValidator()

	case binary.FunctionBody:
		if err := s.b.Apply(payload); err != nil {
			return err
		}
		return s.bv.ValidateFunction(t.Index)

	default:
		return s.b.Apply(payload)
	}
}

func (s *Stream) ensureBodyValidator() error {
	bv, err := s.b.Module().NewBodyValidator(s.enabledFeatures, s.collectAll)
	if err != nil {
		return err
	}
	s.bv = bv
	return nil
}
