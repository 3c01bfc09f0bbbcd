package template

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// ValueKind enumerates the shapes a scripting value can take once it has
// crossed the Host binding into the engine.
type ValueKind int

const (
	KindNil ValueKind = iota
	KindBool
	KindNumber
	KindText
	KindSequence
	KindMapping
)

func (k ValueKind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	default:
		return "unknown"
	}
}

// Value is the tagged variant exchanged between the engine and the
// scripting runtime. Values are treated as immutable once constructed;
// the renderer never mutates a Value it received from a Host.
type Value struct {
	kind ValueKind
	b    bool
	n    float64
	s    string
	seq  []Value
	m    map[string]Value
}

// Nil returns the nil Value. It renders as empty text.
func Nil() Value { return Value{} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number returns a numeric Value.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// Text returns a text Value.
func Text(s string) Value { return Value{kind: KindText, s: s} }

// Sequence returns an ordered sequence Value.
func Sequence(elems ...Value) Value { return Value{kind: KindSequence, seq: elems} }

// Mapping returns a string-keyed mapping Value.
func Mapping(m map[string]Value) Value { return Value{kind: KindMapping, m: m} }

// Kind reports which variant this Value holds.
func (v Value) Kind() ValueKind { return v.kind }

// AsBool returns the boolean payload. Only meaningful for KindBool.
func (v Value) AsBool() bool { return v.b }

// AsNumber returns the numeric payload. Only meaningful for KindNumber.
func (v Value) AsNumber() float64 { return v.n }

// AsText returns the text payload. Only meaningful for KindText.
func (v Value) AsText() string { return v.s }

// AsSequence returns the element slice. Only meaningful for KindSequence.
func (v Value) AsSequence() []Value { return v.seq }

// AsMapping returns the key/value map. Only meaningful for KindMapping.
func (v Value) AsMapping() map[string]Value { return v.m }

// Truthy implements the engine's truthiness rule: nil and false are falsy,
// empty text and the empty sequence are falsy, everything else (including
// zero and the empty mapping) is truthy.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNil:
		return false
	case KindBool:
		return v.b
	case KindText:
		return v.s != ""
	case KindSequence:
		return len(v.seq) > 0
	default:
		return true
	}
}

// String returns the canonical text form used when a Value is emitted into
// rendered output: nil is empty, booleans are "true"/"false", integral
// numbers print without a fraction, and sequences and mappings print as
// compact JSON with mapping keys in sorted order.
func (v Value) String() string {
	switch v.kind {
	case KindNil:
		return ""
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindNumber:
		return formatNumber(v.n)
	case KindText:
		return v.s
	default:
		data, err := v.MarshalJSON()
		if err != nil {
			return ""
		}
		return string(data)
	}
}

// MarshalJSON produces the canonical JSON form of a Value. Mapping keys
// are emitted in sorted order so the form is stable across renders.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNil:
		return []byte("null"), nil
	case KindBool, KindNumber:
		return []byte(v.String()), nil
	case KindText:
		return json.Marshal(v.s)
	case KindSequence:
		var sb strings.Builder
		sb.WriteByte('[')
		for i, e := range v.seq {
			if i > 0 {
				sb.WriteByte(',')
			}
			data, err := e.MarshalJSON()
			if err != nil {
				return nil, err
			}
			sb.Write(data)
		}
		sb.WriteByte(']')
		return []byte(sb.String()), nil
	case KindMapping:
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var sb strings.Builder
		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			kd, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			sb.Write(kd)
			sb.WriteByte(':')
			vd, err := v.m[k].MarshalJSON()
			if err != nil {
				return nil, err
			}
			sb.Write(vd)
		}
		sb.WriteByte('}')
		return []byte(sb.String()), nil
	default:
		return nil, fmt.Errorf("cannot marshal value of kind %d", v.kind)
	}
}

func formatNumber(n float64) string {
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

// FromGo converts a value decoded from JSON or YAML into a Value. It
// accepts the shapes the goccy decoders produce for untyped documents.
func FromGo(v any) (Value, error) {
	switch v := v.(type) {
	case nil:
		return Nil(), nil
	case bool:
		return Bool(v), nil
	case int:
		return Number(float64(v)), nil
	case int64:
		return Number(float64(v)), nil
	case uint64:
		return Number(float64(v)), nil
	case float64:
		return Number(v), nil
	case string:
		return Text(v), nil
	case []any:
		elems := make([]Value, 0, len(v))
		for _, e := range v {
			ev, err := FromGo(e)
			if err != nil {
				return Nil(), err
			}
			elems = append(elems, ev)
		}
		return Sequence(elems...), nil
	case map[string]any:
		m := make(map[string]Value, len(v))
		for k, e := range v {
			ev, err := FromGo(e)
			if err != nil {
				return Nil(), err
			}
			m[k] = ev
		}
		return Mapping(m), nil
	case map[any]any:
		m := make(map[string]Value, len(v))
		for k, e := range v {
			ks, ok := k.(string)
			if !ok {
				return Nil(), fmt.Errorf("mapping key %v is not a string", k)
			}
			ev, err := FromGo(e)
			if err != nil {
				return Nil(), err
			}
			m[ks] = ev
		}
		return Mapping(m), nil
	default:
		return Nil(), fmt.Errorf("unsupported data type %T", v)
	}
}
