package parse

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"

	"github.com/jward/scopegraph/scope"
)

var csharpParser Parser = &grammar{name: "csharp", language: csharp.GetLanguage, extract: extractCSharp}

type csharpExtractor struct {
	*builder
}

func extractCSharp(b *builder, root *sitter.Node) {
	x := &csharpExtractor{b}
	x.members(b.root, root)
}

// members handles the declarations that may appear in a compilation unit,
// a namespace body or a type body.
func (x *csharpExtractor) members(parent *scope.Scope, n *sitter.Node) {
	cur := parent
	for _, c := range namedChildren(n) {
		switch c.Type() {
		case "using_directive":
			x.using(c)
		case "namespace_declaration":
			ns := x.namespace(cur, splitQualified(x.text(c.ChildByFieldName("name"))), c)
			x.members(ns, c.ChildByFieldName("body"))
		case "file_scoped_namespace_declaration":
			// Applies to every following declaration in the file. Some grammar
			// versions nest those declarations, others leave them as siblings.
			cur = x.namespace(parent, splitQualified(x.text(c.ChildByFieldName("name"))), c)
			x.members(cur, c)
		case "class_declaration", "struct_declaration", "interface_declaration", "enum_declaration",
			"record_declaration", "record_struct_declaration":
			x.typeDecl(cur, c)
		case "method_declaration", "constructor_declaration", "destructor_declaration",
			"operator_declaration", "local_function_statement":
			x.method(cur, c)
		case "field_declaration", "event_field_declaration":
			x.declaration(cur, firstChildOfType(c, "variable_declaration"), csharpAccess(x.builder, c))
		case "property_declaration":
			x.variable(cur, x.text(c.ChildByFieldName("name")), c.ChildByFieldName("type"), c, csharpAccess(x.builder, c), false)
			x.body(cur, c.ChildByFieldName("value"))
		case "enum_member_declaration":
			if name := c.ChildByFieldName("name"); name != nil {
				cur.AddVariable(&scope.Variable{
					Name:          x.text(name),
					Type:          scope.NewTypeUse(cur.Name, x.language),
					Accessibility: "public",
					Location:      x.loc(c),
				})
			}
		case "declaration_list", "enum_member_declaration_list":
			x.members(cur, c)
		}
	}
}

// using handles
//
//	using A.B;  using static A.B.C;  using L = A.B;  global using A.B;
func (x *csharpExtractor) using(n *sitter.Node) {
	text := strings.TrimSuffix(strings.TrimSpace(x.text(n)), ";")
	for _, kw := range []string{"global", "using", "static", "unsafe"} {
		text = trimKeyword(text, kw)
	}
	if i := strings.Index(text, "="); i >= 0 {
		x.alias(splitQualified(text[i+1:]), strings.TrimSpace(text[:i]), false, n)
		return
	}
	x.alias(splitQualified(text), "", true, n)
}

func trimKeyword(text, kw string) string {
	text = strings.TrimSpace(text)
	if rest, ok := strings.CutPrefix(text, kw); ok && (rest == "" || rest[0] == ' ' || rest[0] == '\t') {
		return strings.TrimSpace(rest)
	}
	return text
}

func (x *csharpExtractor) typeDecl(parent *scope.Scope, n *sitter.Node) {
	t := x.declare(parent, x.text(n.ChildByFieldName("name")), scope.KindType, n)
	t.Accessibility = csharpAccess(x.builder, n)
	t.TypeParams = x.typeParams(n)

	// Primary constructor parameters of records.
	if params := firstChildOfType(n, "parameter_list"); params != nil {
		for _, p := range childrenOfType(params, "parameter") {
			x.variable(t, x.text(p.ChildByFieldName("name")), p.ChildByFieldName("type"), p, "public", false)
		}
	}

	body := n.ChildByFieldName("body")
	if body == nil {
		body = firstChildOfType(n, "declaration_list", "enum_member_declaration_list")
	}
	x.members(t, body)
}

func (x *csharpExtractor) typeParams(n *sitter.Node) []string {
	list := n.ChildByFieldName("type_parameters")
	if list == nil {
		list = firstChildOfType(n, "type_parameter_list")
	}
	var names []string
	for _, p := range childrenOfType(list, "type_parameter") {
		name := p.ChildByFieldName("name")
		if name == nil {
			name = firstChildOfType(p, "identifier")
		}
		if name != nil {
			names = append(names, x.text(name))
		}
	}
	return names
}

func (x *csharpExtractor) method(parent *scope.Scope, n *sitter.Node) {
	name := x.text(n.ChildByFieldName("name"))
	if name == "" {
		name = parent.Name
	}
	m := x.declare(parent, name, scope.KindMethod, n)
	m.Accessibility = csharpAccess(x.builder, n)
	m.TypeParams = x.typeParams(n)

	params := n.ChildByFieldName("parameters")
	if params == nil {
		params = firstChildOfType(n, "parameter_list")
	}
	for _, p := range childrenOfType(params, "parameter") {
		x.variable(m, x.text(p.ChildByFieldName("name")), p.ChildByFieldName("type"), p, "", true)
	}

	if body := n.ChildByFieldName("body"); body != nil {
		x.body(m, body)
	} else {
		x.body(m, firstChildOfType(n, "block", "arrow_expression_clause"))
	}
}

// declaration declares the variables of a variable_declaration node.
func (x *csharpExtractor) declaration(s *scope.Scope, n *sitter.Node, access string) {
	if n == nil {
		return
	}
	typ := n.ChildByFieldName("type")
	for _, d := range childrenOfType(n, "variable_declarator") {
		name := d.ChildByFieldName("name")
		if name == nil {
			name = firstChildOfType(d, "identifier")
		}
		x.variable(s, x.text(name), typ, d, access, false)
		x.body(s, d)
	}
}

func (x *csharpExtractor) body(s *scope.Scope, n *sitter.Node) {
	for _, c := range namedChildren(n) {
		x.expr(s, c)
	}
}

func (x *csharpExtractor) expr(s *scope.Scope, c *sitter.Node) {
	switch c.Type() {
	case "local_declaration_statement":
		x.declaration(s, firstChildOfType(c, "variable_declaration"), "")
		return
	case "local_function_statement":
		x.method(s, c)
		return
	case "invocation_expression":
		name, receiver := x.callee(c.ChildByFieldName("function"))
		args := c.ChildByFieldName("arguments")
		if args == nil {
			args = firstChildOfType(c, "argument_list")
		}
		x.call(s, name, receiver, args, c, false)
	case "object_creation_expression":
		if t := x.typeUse(c.ChildByFieldName("type")); t != nil {
			args := c.ChildByFieldName("arguments")
			if args == nil {
				args = firstChildOfType(c, "argument_list")
			}
			x.call(s, t.Name, "", args, c, true)
		}
	case "foreach_statement":
		x.variable(s, x.text(c.ChildByFieldName("left")), c.ChildByFieldName("type"), c, "", false)
	case "catch_declaration":
		x.variable(s, x.text(c.ChildByFieldName("name")), c.ChildByFieldName("type"), c, "", false)
	}
	x.body(s, c)
}

// callee splits the function part of an invocation into the method name and
// the receiver expression.
func (x *csharpExtractor) callee(fn *sitter.Node) (name, receiver string) {
	if fn == nil {
		return "", ""
	}
	switch fn.Type() {
	case "identifier":
		return x.text(fn), ""
	case "generic_name":
		return x.text(firstChildOfType(fn, "identifier")), ""
	case "member_access_expression":
		n := fn.ChildByFieldName("name")
		if n != nil && n.Type() == "generic_name" {
			n = firstChildOfType(n, "identifier")
		}
		return x.text(n), x.text(fn.ChildByFieldName("expression"))
	}
	return "", ""
}

func csharpAccess(b *builder, n *sitter.Node) string {
	var parts []string
	for _, m := range childrenOfType(n, "modifier") {
		switch t := b.text(m); t {
		case "public", "protected", "internal", "private":
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
