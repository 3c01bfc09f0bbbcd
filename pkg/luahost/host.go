package luahost

import (
	"fmt"
	"iter"
	"sort"

	lua "github.com/yuin/gopher-lua"

	"github.com/amenyxia/templar/pkg/template"
)

// Host creates isolated Lua execution contexts. The zero value is not
// usable; construct with New.
type Host struct {
	opts lua.Options
}

// New returns a Host. The Lua standard library is opened in every context;
// templates are trusted configuration input, not untrusted code.
func New() *Host {
	return &Host{
		opts: lua.Options{
			SkipOpenLibs:        false,
			IncludeGoStackTrace: false,
		},
	}
}

// NewContext creates a fresh Lua state. The caller owns the context and
// must Close it.
func (h *Host) NewContext() (template.ScriptContext, error) {
	return &scriptContext{state: lua.NewState(h.opts)}, nil
}

type scriptContext struct {
	state *lua.LState
}

func (c *scriptContext) Bind(name string, value template.Value) error {
	c.state.SetGlobal(name, toLua(c.state, value))
	return nil
}

func (c *scriptContext) EvalExpr(src string) (template.Value, error) {
	result, err := c.evalRaw(src)
	if err != nil {
		return template.Nil(), err
	}
	return fromLua(result), nil
}

// evalRaw evaluates src as an expression and returns the raw Lua value,
// with the stack restored to its pre-call depth.
func (c *scriptContext) evalRaw(src string) (lua.LValue, error) {
	top := c.state.GetTop()
	if err := c.state.DoString("return " + src); err != nil {
		c.state.SetTop(top)
		return lua.LNil, &template.ScriptError{Fragment: src, Message: err.Error()}
	}
	result := lua.LValue(lua.LNil)
	if c.state.GetTop() > top {
		result = c.state.Get(top + 1)
	}
	c.state.SetTop(top)
	return result, nil
}

func (c *scriptContext) ExecStmt(src string) error {
	top := c.state.GetTop()
	if err := c.state.DoString(src); err != nil {
		c.state.SetTop(top)
		return &template.ScriptError{Fragment: src, Message: err.Error()}
	}
	c.state.SetTop(top)
	return nil
}

func (c *scriptContext) Iterate(src string) (iter.Seq[template.Value], error) {
	v, err := c.evalRaw(src)
	if err != nil {
		return nil, err
	}
	switch v := v.(type) {
	case *lua.LNilType:
		return nil, fmt.Errorf("%q: %w", src, template.ErrNilIterable)
	case *lua.LTable:
		if n := v.MaxN(); n > 0 {
			// Elements convert one at a time, as the loop consumes them.
			return func(yield func(template.Value) bool) {
				for i := 1; i <= n; i++ {
					if !yield(fromLua(v.RawGetInt(i))) {
						return
					}
				}
			}, nil
		}
		var keys []string
		v.ForEach(func(key, _ lua.LValue) {
			keys = append(keys, key.String())
		})
		sort.Strings(keys)
		return func(yield func(template.Value) bool) {
			for _, k := range keys {
				if !yield(template.Text(k)) {
					return
				}
			}
		}, nil
	default:
		return nil, fmt.Errorf("%q evaluated to a %s: %w", src, fromLua(v).Kind(), template.ErrNotIterable)
	}
}

func (c *scriptContext) Close() {
	c.state.Close()
}
