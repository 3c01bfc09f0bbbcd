package luahost

import (
	"errors"
	"reflect"
	"slices"
	"testing"

	"github.com/amenyxia/templar/pkg/template"
)

func setupContext(tb testing.TB) template.ScriptContext {
	tb.Helper()
	sc, err := New().NewContext()
	if err != nil {
		tb.Fatalf("NewContext failed: %v", err)
	}
	tb.Cleanup(sc.Close)
	return sc
}

func TestEvalExpr(t *testing.T) {
	sc := setupContext(t)

	tests := []struct {
		name string
		src  string
		want template.Value
	}{
		{"nil", "nil", template.Nil()},
		{"bool", "1 == 1", template.Bool(true)},
		{"number", "6 * 7", template.Number(42)},
		{"string", `"he" .. "llo"`, template.Text("hello")},
		{"stdlib call", `string.upper("abc")`, template.Text("ABC")},
		{
			"array table",
			"{1, 2, 3}",
			template.Sequence(template.Number(1), template.Number(2), template.Number(3)),
		},
		{
			"hash table",
			`{a = 1, b = "x"}`,
			template.Mapping(map[string]template.Value{"a": template.Number(1), "b": template.Text("x")}),
		},
		{"empty table is the empty sequence", "{}", template.Sequence()},
		{
			"nested table",
			`{ {1}, {two = 2} }`,
			template.Sequence(
				template.Sequence(template.Number(1)),
				template.Mapping(map[string]template.Value{"two": template.Number(2)}),
			),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sc.EvalExpr(tt.src)
			if err != nil {
				t.Fatalf("EvalExpr(%q) failed: %v", tt.src, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("EvalExpr(%q) = %+v, want %+v", tt.src, got, tt.want)
			}
		})
	}
}

func TestEvalExprError(t *testing.T) {
	sc := setupContext(t)

	for _, src := range []string{"1 +", `error("deliberate")`, "nosuch.field"} {
		t.Run(src, func(t *testing.T) {
			_, err := sc.EvalExpr(src)
			var serr *template.ScriptError
			if !errors.As(err, &serr) {
				t.Fatalf("expected *template.ScriptError, got %v", err)
			}
			if serr.Fragment != src {
				t.Errorf("fragment = %q, want %q", serr.Fragment, src)
			}
		})
	}

	// The context must stay usable after a failed evaluation.
	v, err := sc.EvalExpr("2 + 2")
	if err != nil {
		t.Fatalf("EvalExpr after failure: %v", err)
	}
	if v.AsNumber() != 4 {
		t.Errorf("EvalExpr after failure = %+v, want 4", v)
	}
}

func TestBindRoundTrip(t *testing.T) {
	sc := setupContext(t)

	values := map[string]template.Value{
		"n": template.Number(1.5),
		"s": template.Text("txt"),
		"b": template.Bool(true),
		"q": template.Sequence(template.Number(1), template.Text("two")),
		"m": template.Mapping(map[string]template.Value{"k": template.Bool(false)}),
	}
	for name, v := range values {
		if err := sc.Bind(name, v); err != nil {
			t.Fatalf("Bind(%q) failed: %v", name, err)
		}
	}
	for name, want := range values {
		got, err := sc.EvalExpr(name)
		if err != nil {
			t.Fatalf("EvalExpr(%q) failed: %v", name, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("round trip of %q = %+v, want %+v", name, got, want)
		}
	}
}

func TestBindNilUnbinds(t *testing.T) {
	sc := setupContext(t)

	if err := sc.Bind("v", template.Text("x")); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if err := sc.Bind("v", template.Nil()); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	got, err := sc.EvalExpr("v == nil")
	if err != nil {
		t.Fatalf("EvalExpr failed: %v", err)
	}
	if !got.AsBool() {
		t.Error("binding nil should clear the global")
	}
}

func TestExecStmt(t *testing.T) {
	sc := setupContext(t)

	if err := sc.ExecStmt("acc = 10"); err != nil {
		t.Fatalf("ExecStmt failed: %v", err)
	}
	if err := sc.ExecStmt("acc = acc + 5"); err != nil {
		t.Fatalf("ExecStmt failed: %v", err)
	}
	got, err := sc.EvalExpr("acc")
	if err != nil {
		t.Fatalf("EvalExpr failed: %v", err)
	}
	if got.AsNumber() != 15 {
		t.Errorf("acc = %+v, want 15", got)
	}

	err = sc.ExecStmt("not lua at all ~~")
	var serr *template.ScriptError
	if !errors.As(err, &serr) {
		t.Fatalf("expected *template.ScriptError, got %v", err)
	}
}

func TestIterate(t *testing.T) {
	sc := setupContext(t)

	t.Run("sequence yields elements in order", func(t *testing.T) {
		seq, err := sc.Iterate(`{"a", "b", "c"}`)
		if err != nil {
			t.Fatalf("Iterate failed: %v", err)
		}
		got := slices.Collect(seq)
		want := []template.Value{template.Text("a"), template.Text("b"), template.Text("c")}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Iterate = %+v, want %+v", got, want)
		}
	})

	t.Run("mapping yields sorted keys", func(t *testing.T) {
		seq, err := sc.Iterate(`{c = 3, a = 1, b = 2}`)
		if err != nil {
			t.Fatalf("Iterate failed: %v", err)
		}
		got := slices.Collect(seq)
		want := []template.Value{template.Text("a"), template.Text("b"), template.Text("c")}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Iterate = %+v, want %+v", got, want)
		}
	})

	t.Run("empty table iterates zero times", func(t *testing.T) {
		seq, err := sc.Iterate("{}")
		if err != nil {
			t.Fatalf("Iterate failed: %v", err)
		}
		if got := slices.Collect(seq); len(got) != 0 {
			t.Errorf("Iterate = %+v, want no elements", got)
		}
	})

	t.Run("sequence can be abandoned early", func(t *testing.T) {
		seq, err := sc.Iterate("{10, 20, 30}")
		if err != nil {
			t.Fatalf("Iterate failed: %v", err)
		}
		var first template.Value
		for v := range seq {
			first = v
			break
		}
		if !reflect.DeepEqual(first, template.Number(10)) {
			t.Errorf("first element = %+v, want 10", first)
		}
	})

	t.Run("nil iterable", func(t *testing.T) {
		_, err := sc.Iterate("never_bound")
		if !errors.Is(err, template.ErrNilIterable) {
			t.Errorf("err = %v, want ErrNilIterable", err)
		}
	})

	t.Run("scalar iterable", func(t *testing.T) {
		_, err := sc.Iterate("42")
		if !errors.Is(err, template.ErrNotIterable) {
			t.Errorf("err = %v, want ErrNotIterable", err)
		}
	})
}

func TestContextIsolation(t *testing.T) {
	host := New()
	a, err := host.NewContext()
	if err != nil {
		t.Fatalf("NewContext failed: %v", err)
	}
	defer a.Close()
	b, err := host.NewContext()
	if err != nil {
		t.Fatalf("NewContext failed: %v", err)
	}
	defer b.Close()

	if err := a.Bind("shared", template.Text("from a")); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	got, err := b.EvalExpr("shared")
	if err != nil {
		t.Fatalf("EvalExpr failed: %v", err)
	}
	if got.Kind() != template.KindNil {
		t.Errorf("state leaked between contexts: %+v", got)
	}
}
