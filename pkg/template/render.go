package template

import (
	"bytes"
	"errors"
	"io"
	"iter"
	"log/slog"
	"sort"
)

// Renderer executes compiled Programs against input data. It holds only
// the Host and a logger, so a single Renderer is safe to share across
// goroutines; every Render call creates its own ScriptContext and frame
// stack.
type Renderer struct {
	host   Host
	logger *slog.Logger
}

// NewRenderer returns a Renderer backed by the given Host. By default all
// logs are discarded; see SetLogger.
func NewRenderer(host Host) *Renderer {
	return &Renderer{
		host:   host,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// SetLogger sets the logger for the Renderer. By default, all logs are
// discarded.
func (r *Renderer) SetLogger(logger *slog.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// Render executes the Program with data bound into a fresh scripting
// context and returns the produced text. The Program is only ever read;
// all mutable state lives in this call's frame. Failures are reported as
// *RenderError and abort only this call.
func (r *Renderer) Render(p *Program, data map[string]Value) (string, error) {
	sc, err := r.host.NewContext()
	if err != nil {
		return "", &RenderError{Kind: ScriptFailure, Instruction: -1, Err: err}
	}
	defer sc.Close()

	// Bind in sorted order so failures reproduce deterministically.
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := sc.Bind(name, data[name]); err != nil {
			return "", &RenderError{Kind: ScriptFailure, Instruction: -1, Err: err}
		}
	}

	return r.run(p, sc)
}

// loopFrame tracks one active loop: a pull cursor over the iterable's
// elements and the body's instruction range.
type loopFrame struct {
	name      string
	next      func() (Value, bool)
	stop      func()
	bodyStart int
	bodyEnd   int
}

func (r *Renderer) run(p *Program, sc ScriptContext) (string, error) {
	// The last buffer is the active output; capture blocks push and pop.
	bufs := []*bytes.Buffer{new(bytes.Buffer)}
	out := func() *bytes.Buffer { return bufs[len(bufs)-1] }

	var frames []loopFrame
	// Release cursors still open when an error aborts mid-loop; stop is
	// idempotent, so the normal exhaustion path needs no special casing.
	defer func() {
		for i := range frames {
			frames[i].stop()
		}
	}()
	ip := 0

	for ip < len(p.ops) {
		in := &p.ops[ip]

		switch in.Op {
		case OpEmit:
			out().WriteString(in.Literal)
			ip++

		case OpEval:
			v, err := sc.EvalExpr(p.frags[in.Frag])
			if err != nil {
				return "", &RenderError{Kind: ScriptFailure, Instruction: ip, Err: err}
			}
			out().WriteString(v.String())
			ip++

		case OpExec:
			if err := sc.ExecStmt(p.frags[in.Frag]); err != nil {
				return "", &RenderError{Kind: ScriptFailure, Instruction: ip, Err: err}
			}
			ip++

		case OpIf:
			v, err := sc.EvalExpr(p.frags[in.Frag])
			if err != nil {
				return "", &RenderError{Kind: ScriptFailure, Instruction: ip, Err: err}
			}
			if v.Truthy() {
				ip++
			} else {
				ip = in.Target
			}

		case OpJump:
			ip = in.Target

		case OpLoop:
			seq, err := sc.Iterate(p.frags[in.Frag])
			if err != nil {
				return "", &RenderError{Kind: iterateErrorKind(err), Instruction: ip, Err: err}
			}
			next, stop := iter.Pull(seq)
			v, ok := next()
			if !ok {
				stop()
				ip = in.BodyEnd + 1
				break
			}
			if err := sc.Bind(in.Var, v); err != nil {
				stop()
				return "", &RenderError{Kind: ScriptFailure, Instruction: ip, Err: err}
			}
			frames = append(frames, loopFrame{
				name:      in.Var,
				next:      next,
				stop:      stop,
				bodyStart: in.BodyStart,
				bodyEnd:   in.BodyEnd,
			})
			ip = in.BodyStart

		case OpEnd:
			f := &frames[len(frames)-1]
			if v, ok := f.next(); ok {
				// Rebind in the same context on purpose: side effects
				// set by the body persist across iterations.
				if err := sc.Bind(f.name, v); err != nil {
					return "", &RenderError{Kind: ScriptFailure, Instruction: ip, Err: err}
				}
				ip = f.bodyStart
				break
			}
			f.stop()
			frames = frames[:len(frames)-1]
			ip++

		case OpCapture:
			bufs = append(bufs, new(bytes.Buffer))
			ip++

		case OpTransform:
			captured := bufs[len(bufs)-1].String()
			bufs = bufs[:len(bufs)-1]
			if err := sc.Bind(in.Var, Text(captured)); err != nil {
				return "", &RenderError{Kind: ScriptFailure, Instruction: ip, Err: err}
			}
			v, err := sc.EvalExpr(p.frags[in.Frag])
			if err != nil {
				return "", &RenderError{Kind: ScriptFailure, Instruction: ip, Err: err}
			}
			if err := sc.Bind(in.Var, Nil()); err != nil {
				return "", &RenderError{Kind: ScriptFailure, Instruction: ip, Err: err}
			}
			out().WriteString(v.String())
			ip++
		}
	}

	return bufs[0].String(), nil
}

func iterateErrorKind(err error) RenderErrorKind {
	switch {
	case errors.Is(err, ErrNilIterable):
		return UnboundVariable
	case errors.Is(err, ErrNotIterable):
		return TypeMismatch
	default:
		return ScriptFailure
	}
}
