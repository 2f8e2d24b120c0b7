package server

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf16"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/scriptbridge/glue"
	"github.com/chazu/scriptbridge/vm"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "scriptbridge-lsp"

var log = commonlog.GetLogger("scriptbridge.server")

var keywords = []string{
	"and", "break", "continue", "do", "else", "elseif", "end", "false", "for",
	"function", "if", "in", "local", "nil", "not", "or", "repeat", "return",
	"then", "true", "until", "while",
}

// LspServer publishes compile diagnostics to editors and answers
// completion and hover from the globals of a VM state.
type LspServer struct {
	worker *StateWorker
	copts  glue.CompileOpts
	popts  glue.ParseOpts

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server. Documents are compiled with copts and
// popts; L supplies the globals used for completion and hover.
func NewLSP(L *vm.State, copts glue.CompileOpts, popts glue.ParseOpts) *LspServer {
	s := &LspServer{
		worker:  NewStateWorker(L),
		copts:   copts,
		popts:   popts,
		docs:    make(map[string]string),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Info("scriptbridge LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{"."},
	}

	capabilities.HoverProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	s.worker.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (s *LspServer) document(uri protocol.DocumentUri) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[string(uri)]
	return text, ok
}

// --- Completion and hover ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	prefix := extractPrefix(text, params.Position)
	if prefix == "" {
		return nil, nil
	}

	return s.worker.Do(func(L *vm.State) any {
		return complete(L, prefix)
	})
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}

	result, err := s.worker.Do(func(L *vm.State) any {
		return hover(L, word)
	})
	if err != nil || result == nil {
		return nil, nil
	}
	return result.(*protocol.Hover), nil
}

// --- VM-backed logic (called on the worker goroutine) ---

// members returns the string keys of t, sorted.
func members(t *vm.Table) []string {
	var names []string
	for pos := 0; ; {
		k, _, next, ok := t.Next(pos)
		if !ok {
			break
		}
		if s, isString := k.(*vm.String); isString {
			names = append(names, s.String())
		}
		pos = next
	}
	sort.Strings(names)
	return names
}

// complete offers keywords and globals for a bare prefix, and library
// members for "lib.prefix".
func complete(L *vm.State, prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	add := func(label, detail string, kind protocol.CompletionItemKind) {
		labelCopy, detailCopy, kindCopy := label, detail, kind
		items = append(items, protocol.CompletionItem{
			Label:      labelCopy,
			Kind:       &kindCopy,
			Detail:     &detailCopy,
			InsertText: &labelCopy,
		})
	}

	if dot := strings.LastIndexByte(prefix, '.'); dot >= 0 {
		lib, ok := lookupPath(L, prefix[:dot]).(*vm.Table)
		if !ok {
			return nil
		}
		rest := prefix[dot+1:]
		for _, name := range members(lib) {
			if strings.HasPrefix(name, rest) {
				add(name, vm.TypeName(lib.Get(L.NewString(name))), kindOf(lib.Get(L.NewString(name))))
			}
		}
		return items
	}

	for _, kw := range keywords {
		if strings.HasPrefix(kw, prefix) {
			add(kw, "keyword", protocol.CompletionItemKindKeyword)
		}
	}
	globals := L.Globals()
	seen := make(map[string]bool)
	for t := globals; t != nil; t = t.Fallback() {
		for _, name := range members(t) {
			if strings.HasPrefix(name, prefix) && !seen[name] {
				seen[name] = true
				v := globals.Get(L.NewString(name))
				add(name, "global "+vm.TypeName(v), kindOf(v))
			}
		}
	}

	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}
	return items
}

func kindOf(v vm.Value) protocol.CompletionItemKind {
	switch v.(type) {
	case *vm.Closure, *vm.GoFunction:
		return protocol.CompletionItemKindFunction
	case *vm.Table:
		return protocol.CompletionItemKindModule
	}
	return protocol.CompletionItemKindVariable
}

// lookupPath resolves a dotted global path without raising.
func lookupPath(L *vm.State, path string) vm.Value {
	var v vm.Value = L.Globals()
	for _, part := range strings.Split(path, ".") {
		t, ok := v.(*vm.Table)
		if !ok {
			return nil
		}
		v = t.Get(L.NewString(part))
	}
	return v
}

func hover(L *vm.State, word string) *protocol.Hover {
	v := L.Globals().Get(L.NewString(word))
	if v == nil {
		return nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s**: %s", word, vm.TypeName(v))
	if t, ok := v.(*vm.Table); ok {
		if names := members(t); len(names) > 0 {
			sb.WriteString("\n\n")
			for _, name := range names {
				fmt.Fprintf(&sb, "- `%s.%s`\n", word, name)
			}
		}
		if t.ReadOnly() {
			sb.WriteString("\n_read-only_")
		}
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: sb.String(),
		},
	}
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	diagnostics := diagnose(text, s.copts, s.popts)
	log.Debugf("%s: %d diagnostics", uri, len(diagnostics))

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// diagnose compiles text and converts every error into an LSP diagnostic.
func diagnose(text string, copts glue.CompileOpts, popts glue.ParseOpts) []protocol.Diagnostic {
	out := glue.Compile([]byte(text), copts, popts)
	defer glue.FreeOutcome(out)

	var errs []glue.Diagnostic
	switch out.Kind() {
	case glue.OutcomeSuccess:
		return []protocol.Diagnostic{}
	case glue.OutcomeParseFailure:
		errs = out.ParseFailure()
	case glue.OutcomeCompileFailure:
		errs = []glue.Diagnostic{out.CompileFailure()}
	}

	lines := strings.Split(text, "\n")
	diagnostics := make([]protocol.Diagnostic, 0, len(errs))
	for _, e := range errs {
		severity := protocol.DiagnosticSeverityError
		source := lspName
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range: protocol.Range{
				Start: position(lines, e.Span.StartLine, e.Span.StartColumn),
				End:   position(lines, e.Span.EndLine, e.Span.EndColumn),
			},
			Severity: &severity,
			Source:   &source,
			Message:  e.Message.String(),
		})
	}
	return diagnostics
}

// position converts a 0-based line and byte column into an LSP position,
// whose character offset counts UTF-16 code units.
func position(lines []string, line, col uint32) protocol.Position {
	if int(line) >= len(lines) {
		return protocol.Position{Line: line, Character: col}
	}
	text := lines[line]
	if int(col) > len(text) {
		col = uint32(len(text))
	}
	units := 0
	for _, r := range text[:col] {
		units += len(utf16.Encode([]rune{r}))
	}
	return protocol.Position{Line: line, Character: uint32(units)}
}

// --- Text extraction helpers ---

func isIdent(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_'
}

// extractPrefix returns the dotted identifier fragment before the cursor
// for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Walk backwards from cursor to find the start of the identifier
	start := col
	for start > 0 {
		ch := rune(line[start-1])
		if isIdent(ch) || ch == '.' {
			start--
		} else {
			break
		}
	}

	if start == col {
		return ""
	}

	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 && isIdent(rune(line[start-1])) {
		start--
	}
	end := col
	for end < len(line) && isIdent(rune(line[end])) {
		end++
	}

	if start == end {
		return ""
	}

	return line[start:end]
}

func boolPtr(b bool) *bool {
	return &b
}
