// Package parse turns source files into scope trees. Each supported language
// has a tree-sitter grammar and an extractor that walks the syntax tree and
// emits namespaces, types, methods, variables, call sites and import aliases
// as a *scope.Unit.
//
// Extraction is best effort. A file with syntax errors still yields the
// scopes tree-sitter could recover, together with a *ParseError that locates
// the first error.
package parse

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/scopegraph/internal/observability"
	"github.com/jward/scopegraph/scope"
)

// ErrUnsupportedLanguage is returned for files no parser handles.
var ErrUnsupportedLanguage = errors.New("parse: unsupported language")

// Parser produces the scope tree of one source file. Implementations are safe
// for concurrent use.
type Parser interface {
	Language() string
	Parse(ctx context.Context, path string, src []byte) (*scope.Unit, error)
}

// ParseError reports a file that could not be parsed cleanly. Line and Column
// are 1-based.
type ParseError struct {
	File    string
	Line    int
	Column  int
	Parser  string
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = fmt.Sprintf("error parsing %s with the %s parser", e.File, e.Parser)
	}
	if e.Line > 0 {
		return fmt.Sprintf("parse: %s:%d:%d: %s", e.File, e.Line, e.Column, msg)
	}
	return fmt.Sprintf("parse: %s: %s", e.File, msg)
}

func (e *ParseError) Unwrap() error { return e.Err }

// extToLanguage maps file extensions to canonical language names.
var extToLanguage = map[string]string{
	".java": "java",
	".cs":   "csharp",
	".go":   "go",
}

var parsers = map[string]Parser{
	"java":   javaParser,
	"csharp": csharpParser,
	"go":     goParser,
}

// LanguageForFile returns the canonical language name for a file path based
// on its extension. Returns ("", false) if the extension is not recognized.
func LanguageForFile(path string) (string, bool) {
	lang, ok := extToLanguage[strings.ToLower(filepath.Ext(path))]
	return lang, ok
}

// ForLanguage returns the parser for a canonical language name.
func ForLanguage(lang string) (Parser, bool) {
	p, ok := parsers[lang]
	return p, ok
}

// ForFile returns the parser for path's extension.
func ForFile(path string) (Parser, bool) {
	lang, ok := LanguageForFile(path)
	if !ok {
		return nil, false
	}
	return ForLanguage(lang)
}

// Languages lists the supported language names, sorted.
func Languages() []string {
	langs := make([]string, 0, len(parsers))
	for l := range parsers {
		langs = append(langs, l)
	}
	slices.Sort(langs)
	return langs
}

// File parses src as the language implied by path.
func File(ctx context.Context, path string, src []byte) (*scope.Unit, error) {
	p, ok := ForFile(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, path)
	}
	return p.Parse(ctx, path, src)
}

// grammar adapts a tree-sitter language and an extractor to Parser.
type grammar struct {
	name     string
	language func() *sitter.Language
	extract  func(b *builder, root *sitter.Node)
}

func (g *grammar) Language() string { return g.name }

func (g *grammar) Parse(ctx context.Context, path string, src []byte) (*scope.Unit, error) {
	start := time.Now()
	defer func() {
		observability.ParsingDuration.WithLabelValues(g.name).Observe(time.Since(start).Seconds())
	}()

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(g.language())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		observability.ParseErrorsTotal.WithLabelValues(g.name).Inc()
		return nil, &ParseError{File: path, Parser: g.name, Message: "tree-sitter parse failed", Err: err}
	}
	defer tree.Close()

	root := tree.RootNode()
	b := newBuilder(path, g.name, src)
	g.extract(b, root)
	unit := b.finish()

	if root.HasError() {
		observability.ParseErrorsTotal.WithLabelValues(g.name).Inc()
		return unit, syntaxError(path, g.name, root, src)
	}
	return unit, nil
}

// syntaxError locates the first ERROR or MISSING node in document order.
func syntaxError(path, parser string, root *sitter.Node, src []byte) *ParseError {
	bad := firstError(root)
	if bad == nil {
		return &ParseError{File: path, Parser: parser, Message: "syntax error"}
	}
	p := bad.StartPoint()
	msg := "syntax error"
	if bad.IsMissing() {
		msg = fmt.Sprintf("missing %s", bad.Type())
	} else if text := strings.TrimSpace(bad.Content(src)); text != "" {
		if len(text) > 40 {
			text = text[:40] + "..."
		}
		msg = fmt.Sprintf("syntax error near %q", text)
	}
	return &ParseError{File: path, Line: int(p.Row) + 1, Column: int(p.Column) + 1, Parser: parser, Message: msg}
}

func firstError(n *sitter.Node) *sitter.Node {
	if n.Type() == "ERROR" || n.IsMissing() {
		return n
	}
	if !n.HasError() {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if bad := firstError(n.Child(i)); bad != nil {
			return bad
		}
	}
	return nil
}
