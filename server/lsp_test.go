package server

import (
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/chazu/scriptbridge/glue"
	"github.com/chazu/scriptbridge/vm"
)

func TestExtractPrefix(t *testing.T) {
	tests := []struct {
		text string
		line uint32
		char uint32
		want string
	}{
		{"local x = ma", 0, 12, "ma"},
		{"return math.fl", 0, 14, "math.fl"},
		{"return math.", 0, 12, "math."},
		{"a\n  str", 1, 5, "str"},
		{"x = 1 ", 0, 6, ""},
		{"x", 3, 0, ""},
		{"abc", 0, 99, "abc"},
	}

	for _, tc := range tests {
		got := extractPrefix(tc.text, protocol.Position{Line: tc.line, Character: tc.char})
		if got != tc.want {
			t.Errorf("extractPrefix(%q, %d:%d) = %q, want %q", tc.text, tc.line, tc.char, got, tc.want)
		}
	}
}

func TestExtractWord(t *testing.T) {
	tests := []struct {
		text string
		char uint32
		want string
	}{
		{"return math.floor(x)", 9, "math"},
		{"return math.floor(x)", 14, "floor"},
		{"local my_var = 1", 8, "my_var"},
		{"a + b", 2, ""},
	}

	for _, tc := range tests {
		got := extractWord(tc.text, protocol.Position{Line: 0, Character: tc.char})
		if got != tc.want {
			t.Errorf("extractWord(%q, %d) = %q, want %q", tc.text, tc.char, got, tc.want)
		}
	}
}

func TestDiagnoseClean(t *testing.T) {
	got := diagnose("local x = 1\nreturn x", glue.DefaultCompileOpts(), glue.DefaultParseOpts())
	if got == nil || len(got) != 0 {
		t.Errorf("diagnostics = %v, want empty non-nil slice", got)
	}
}

func TestDiagnoseParseErrors(t *testing.T) {
	got := diagnose("local y = 2\nx = 1", glue.DefaultCompileOpts(), glue.DefaultParseOpts())
	if len(got) != 1 {
		t.Fatalf("len(diagnostics) = %d, want 1", len(got))
	}
	d := got[0]
	if d.Message != "Assigning to undeclared global 'x'" {
		t.Errorf("message = %q", d.Message)
	}
	if d.Range.Start.Line != 1 || d.Range.Start.Character != 0 {
		t.Errorf("start = %+v, want 1:0", d.Range.Start)
	}
	if d.Severity == nil || *d.Severity != protocol.DiagnosticSeverityError {
		t.Error("severity is not Error")
	}
	if d.Source == nil || *d.Source != lspName {
		t.Error("source not set")
	}
}

func TestDiagnoseCompileError(t *testing.T) {
	got := diagnose("break", glue.DefaultCompileOpts(), glue.DefaultParseOpts())
	if len(got) != 1 {
		t.Fatalf("len(diagnostics) = %d, want 1", len(got))
	}
	if !strings.Contains(got[0].Message, "break statement must be inside a loop") {
		t.Errorf("message = %q", got[0].Message)
	}
}

func TestPositionCountsUTF16(t *testing.T) {
	lines := []string{"s = \"é😀\" + x"}
	// é is 2 bytes/1 unit, 😀 is 4 bytes/2 units
	p := position(lines, 0, 11)
	if p.Character != 8 {
		t.Errorf("character = %d, want 8", p.Character)
	}
	if p := position(lines, 0, 200); p.Character != 13 {
		t.Errorf("clamped character = %d, want 13", p.Character)
	}
	if p := position(lines, 5, 3); p.Line != 5 || p.Character != 3 {
		t.Errorf("out-of-range line = %+v", p)
	}
}

func TestComplete(t *testing.T) {
	w := NewStateWorker(vm.NewState())
	defer w.Stop()

	result, err := w.Do(func(L *vm.State) any { return complete(L, "pr") })
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	items := result.([]protocol.CompletionItem)
	labels := map[string]string{}
	for _, item := range items {
		labels[item.Label] = *item.Detail
	}
	if labels["print"] != "global function" {
		t.Errorf("print detail = %q, labels = %v", labels["print"], labels)
	}

	result, err = w.Do(func(L *vm.State) any { return complete(L, "re") })
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	found := false
	for _, item := range result.([]protocol.CompletionItem) {
		if item.Label == "return" && *item.Kind == protocol.CompletionItemKindKeyword {
			found = true
		}
	}
	if !found {
		t.Error("keyword return not offered")
	}
}

func TestCompleteMembers(t *testing.T) {
	w := NewStateWorker(vm.NewState())
	defer w.Stop()

	result, err := w.Do(func(L *vm.State) any { return complete(L, "math.fl") })
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	items := result.([]protocol.CompletionItem)
	if len(items) != 1 || items[0].Label != "floor" {
		t.Fatalf("items = %v, want [floor]", items)
	}
	if *items[0].Kind != protocol.CompletionItemKindFunction {
		t.Errorf("kind = %v, want function", *items[0].Kind)
	}

	result, _ = w.Do(func(L *vm.State) any { return complete(L, "nosuchlib.x") })
	if items := result.([]protocol.CompletionItem); len(items) != 0 {
		t.Errorf("unknown library items = %v", items)
	}
}

func TestHover(t *testing.T) {
	L := vm.NewState()
	L.Sandbox()
	w := NewStateWorker(L)
	defer w.Stop()

	result, err := w.Do(func(L *vm.State) any { return hover(L, "math") })
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	h := result.(*protocol.Hover)
	text := h.Contents.(protocol.MarkupContent).Value
	for _, want := range []string{"**math**: table", "`math.floor`", "_read-only_"} {
		if !strings.Contains(text, want) {
			t.Errorf("hover %q does not contain %q", text, want)
		}
	}

	result, _ = w.Do(func(L *vm.State) any { return hover(L, "undefined_name") })
	if result.(*protocol.Hover) != nil {
		t.Error("hover on an unknown global is not nil")
	}
}
