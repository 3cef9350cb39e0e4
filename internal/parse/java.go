package parse

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"

	"github.com/jward/scopegraph/scope"
)

var javaParser Parser = &grammar{name: "java", language: java.GetLanguage, extract: extractJava}

type javaExtractor struct {
	*builder
}

func extractJava(b *builder, root *sitter.Node) {
	x := &javaExtractor{b}
	pkg := b.root
	for _, n := range namedChildren(root) {
		switch n.Type() {
		case "package_declaration":
			name := firstChildOfType(n, "scoped_identifier", "identifier")
			pkg = b.namespace(b.root, splitQualified(b.text(name)), n)
		case "import_declaration":
			x.importDecl(n)
		default:
			x.member(pkg, n)
		}
	}
}

// importDecl handles the four import forms:
//
//	import a.b.C;  import a.b.*;  import static a.b.C.m;  import static a.b.C.*;
func (x *javaExtractor) importDecl(n *sitter.Node) {
	text := strings.TrimSpace(x.text(n))
	text = strings.TrimSuffix(text, ";")
	text = strings.TrimSpace(strings.TrimPrefix(text, "import"))
	if f := strings.Fields(text); len(f) > 1 && f[0] == "static" {
		text = strings.Join(f[1:], "")
	}
	wildcard := strings.HasSuffix(strings.Join(strings.Fields(text), ""), "*")
	x.alias(splitQualified(text), "", wildcard, n)
}

func (x *javaExtractor) member(parent *scope.Scope, n *sitter.Node) {
	switch n.Type() {
	case "class_declaration", "interface_declaration", "enum_declaration",
		"record_declaration", "annotation_type_declaration":
		x.typeDecl(parent, n)
	case "method_declaration", "constructor_declaration", "compact_constructor_declaration":
		x.method(parent, n)
	case "field_declaration", "constant_declaration":
		x.declarators(parent, n, javaAccess(x.builder, n))
	case "static_initializer", "block":
		blk := x.declare(parent, "", scope.KindBlock, n)
		x.body(blk, n)
	case "enum_constant":
		name := n.ChildByFieldName("name")
		if name == nil {
			return
		}
		parent.AddVariable(&scope.Variable{
			Name:          x.text(name),
			Type:          scope.NewTypeUse(parent.Name, x.language),
			Accessibility: "public",
			Location:      x.loc(n),
		})
		x.body(parent, n)
	}
}

func (x *javaExtractor) typeDecl(parent *scope.Scope, n *sitter.Node) *scope.Scope {
	t := x.declare(parent, x.text(n.ChildByFieldName("name")), scope.KindType, n)
	t.Accessibility = javaAccess(x.builder, n)
	t.TypeParams = x.typeParams(n.ChildByFieldName("type_parameters"))

	// Record components are fields of the record.
	if n.Type() == "record_declaration" {
		for _, p := range childrenOfType(n.ChildByFieldName("parameters"), "formal_parameter") {
			x.variable(t, x.text(p.ChildByFieldName("name")), p.ChildByFieldName("type"), p, "private", false)
		}
	}
	x.members(t, n.ChildByFieldName("body"))
	return t
}

func (x *javaExtractor) members(t *scope.Scope, body *sitter.Node) {
	for _, m := range namedChildren(body) {
		if m.Type() == "enum_body_declarations" {
			x.members(t, m)
			continue
		}
		x.member(t, m)
	}
}

func (x *javaExtractor) typeParams(n *sitter.Node) []string {
	var names []string
	for _, p := range childrenOfType(n, "type_parameter") {
		if id := firstChildOfType(p, "type_identifier", "identifier"); id != nil {
			names = append(names, x.text(id))
		}
	}
	return names
}

func (x *javaExtractor) method(parent *scope.Scope, n *sitter.Node) {
	name := x.text(n.ChildByFieldName("name"))
	if name == "" {
		name = parent.Name
	}
	m := x.declare(parent, name, scope.KindMethod, n)
	m.Accessibility = javaAccess(x.builder, n)
	m.TypeParams = x.typeParams(n.ChildByFieldName("type_parameters"))

	for _, p := range namedChildren(n.ChildByFieldName("parameters")) {
		switch p.Type() {
		case "formal_parameter":
			x.variable(m, x.text(p.ChildByFieldName("name")), p.ChildByFieldName("type"), p, "", true)
		case "spread_parameter":
			var typ *sitter.Node
			for _, c := range namedChildren(p) {
				if c.Type() != "modifiers" && c.Type() != "variable_declarator" {
					typ = c
					break
				}
			}
			var name string
			if decl := firstChildOfType(p, "variable_declarator"); decl != nil {
				name = x.text(decl.ChildByFieldName("name"))
			}
			x.variable(m, name, typ, p, "", true)
		}
	}
	x.body(m, n.ChildByFieldName("body"))
}

// declarators declares each variable of a field or local declaration and
// walks the initializers.
func (x *javaExtractor) declarators(s *scope.Scope, n *sitter.Node, access string) {
	typ := n.ChildByFieldName("type")
	for _, d := range childrenOfType(n, "variable_declarator") {
		x.variable(s, x.text(d.ChildByFieldName("name")), typ, d, access, false)
		if v := d.ChildByFieldName("value"); v != nil {
			x.expr(s, v)
		}
	}
}

func (x *javaExtractor) body(s *scope.Scope, n *sitter.Node) {
	for _, c := range namedChildren(n) {
		x.expr(s, c)
	}
}

// expr records what a statement or expression contributes to s and
// descends into its children.
func (x *javaExtractor) expr(s *scope.Scope, c *sitter.Node) {
	switch c.Type() {
	case "local_variable_declaration":
		x.declarators(s, c, "")
		return
	case "class_declaration", "interface_declaration", "enum_declaration", "record_declaration":
		x.typeDecl(s, c)
		return
	case "class_body":
		// Anonymous class.
		anon := x.declare(s, "", scope.KindType, c)
		x.members(anon, c)
		return
	case "method_invocation":
		var receiver string
		if obj := c.ChildByFieldName("object"); obj != nil {
			receiver = x.text(obj)
		}
		x.call(s, x.text(c.ChildByFieldName("name")), receiver, c.ChildByFieldName("arguments"), c, false)
	case "object_creation_expression":
		if t := x.typeUse(c.ChildByFieldName("type")); t != nil {
			x.call(s, t.Name, "", c.ChildByFieldName("arguments"), c, true)
		}
	case "enhanced_for_statement":
		x.variable(s, x.text(c.ChildByFieldName("name")), c.ChildByFieldName("type"), c, "", false)
	case "catch_formal_parameter":
		x.variable(s, x.text(c.ChildByFieldName("name")), firstChildOfType(c, "catch_type"), c, "", false)
	case "resource":
		if name := c.ChildByFieldName("name"); name != nil {
			x.variable(s, x.text(name), c.ChildByFieldName("type"), c, "", false)
		}
	}
	x.body(s, c)
}

func javaAccess(b *builder, n *sitter.Node) string {
	mods := b.text(firstChildOfType(n, "modifiers"))
	for _, a := range []string{"public", "protected", "private"} {
		if hasWord(mods, a) {
			return a
		}
	}
	return ""
}
