package luahost

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/amenyxia/templar/pkg/template"
)

// toLua converts an engine Value into a Lua value owned by state.
func toLua(state *lua.LState, v template.Value) lua.LValue {
	switch v.Kind() {
	case template.KindNil:
		return lua.LNil
	case template.KindBool:
		return lua.LBool(v.AsBool())
	case template.KindNumber:
		return lua.LNumber(v.AsNumber())
	case template.KindText:
		return lua.LString(v.AsText())
	case template.KindSequence:
		t := state.NewTable()
		for _, e := range v.AsSequence() {
			t.Append(toLua(state, e))
		}
		return t
	case template.KindMapping:
		t := state.NewTable()
		for k, e := range v.AsMapping() {
			t.RawSetString(k, toLua(state, e))
		}
		return t
	default:
		return lua.LNil
	}
}

// fromLua converts a Lua value into an engine Value. A table with a
// non-empty array part becomes a sequence; every other table becomes a
// mapping keyed by the string form of its keys. Values with no engine
// representation (functions, userdata) degrade to their string form.
func fromLua(v lua.LValue) template.Value {
	switch v := v.(type) {
	case *lua.LNilType:
		return template.Nil()
	case lua.LBool:
		return template.Bool(bool(v))
	case lua.LNumber:
		return template.Number(float64(v))
	case lua.LString:
		return template.Text(string(v))
	case *lua.LTable:
		if n := v.MaxN(); n > 0 {
			elems := make([]template.Value, 0, n)
			for i := 1; i <= n; i++ {
				elems = append(elems, fromLua(v.RawGetInt(i)))
			}
			return template.Sequence(elems...)
		}
		m := make(map[string]template.Value)
		v.ForEach(func(key, value lua.LValue) {
			m[key.String()] = fromLua(value)
		})
		if len(m) == 0 {
			// The empty table is ambiguous; treat it as the empty
			// sequence so it is falsy and iterates zero times.
			return template.Sequence()
		}
		return template.Mapping(m)
	default:
		return template.Text(v.String())
	}
}
