package template

import "iter"

// Host is the narrow interface the renderer drives the embedded scripting
// runtime through. Any runtime that can create isolated contexts, bind
// values, evaluate expressions and iterate collections is pluggable.
type Host interface {
	// NewContext creates an isolated scripting execution context. Each
	// render call gets its own context, so concurrent renders never
	// observe each other's bindings.
	NewContext() (ScriptContext, error)
}

// ScriptContext is one isolated scripting execution context, exclusively
// owned by a single render call for its lifetime. Implementations need not
// be safe for concurrent use.
type ScriptContext interface {
	// Bind sets a variable in the context. Binding Nil removes a
	// previous binding.
	Bind(name string, value Value) error

	// EvalExpr evaluates an expression fragment and returns its value.
	// Evaluation failures are reported as *ScriptError.
	EvalExpr(src string) (Value, error)

	// ExecStmt executes a statement fragment for its side effects.
	ExecStmt(src string) error

	// Iterate evaluates an expression fragment and returns a lazy
	// sequence over its elements in iteration order: sequence elements
	// as-is, mapping keys in sorted order. Classification happens up
	// front: a nil result fails with ErrNilIterable and a scalar with
	// ErrNotIterable, both errors.Is-matchable; element production is
	// deferred until the sequence is consumed.
	Iterate(src string) (iter.Seq[Value], error)

	// Close releases the context. The context must not be used after.
	Close()
}
