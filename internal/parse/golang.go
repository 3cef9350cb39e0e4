package parse

import (
	"path"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/jward/scopegraph/scope"
)

var goParser Parser = &grammar{name: "go", language: golang.GetLanguage, extract: extractGo}

type goExtractor struct {
	*builder
	pkg   *scope.Scope
	types map[string]*scope.Scope
}

// extractGo emits the package namespace and its declarations in source
// order. Methods are nested under their receiver type; a method whose type is
// declared in another file stays at package level.
func extractGo(b *builder, root *sitter.Node) {
	x := &goExtractor{builder: b, pkg: b.root, types: make(map[string]*scope.Scope)}

	var pending []*sitter.Node
	for _, n := range namedChildren(root) {
		switch n.Type() {
		case "package_clause":
			name := firstChildOfType(n, "package_identifier")
			x.pkg = b.namespace(b.root, []string{x.text(name)}, n)
		case "import_declaration":
			x.imports(n)
		case "type_declaration":
			x.typeDecl(x.pkg, n)
		case "function_declaration":
			x.function(x.pkg, n)
		case "method_declaration":
			if owner := x.receiverType(n); owner != nil {
				x.method(owner, n)
			} else {
				pending = append(pending, n)
			}
		case "var_declaration", "const_declaration":
			x.vars(x.pkg, n, true)
		}
	}
	for _, n := range pending {
		owner := x.receiverType(n)
		if owner == nil {
			owner = x.pkg
		}
		x.method(owner, n)
	}
}

var majorVersion = regexp.MustCompile(`^v[0-9]+$`)

// packageName guesses the package name of an import path: the last element,
// skipping a major version suffix.
func packageName(importPath string) string {
	elems := strings.Split(importPath, "/")
	name := elems[len(elems)-1]
	if majorVersion.MatchString(name) && len(elems) > 1 {
		name = elems[len(elems)-2]
	}
	return strings.TrimPrefix(path.Base(name), "go-")
}

func (x *goExtractor) imports(n *sitter.Node) {
	specs := childrenOfType(n, "import_spec")
	for _, list := range childrenOfType(n, "import_spec_list") {
		specs = append(specs, childrenOfType(list, "import_spec")...)
	}
	for _, spec := range specs {
		importPath := strings.Trim(x.text(spec.ChildByFieldName("path")), "\"`")
		if importPath == "" {
			continue
		}
		target := []string{packageName(importPath)}
		name := spec.ChildByFieldName("name")
		switch {
		case name == nil:
			x.alias(target, "", false, spec)
		case name.Type() == "dot":
			x.alias(target, "", true, spec)
		case name.Type() == "blank_identifier":
		default:
			x.alias(target, x.text(name), false, spec)
		}
	}
}

func (x *goExtractor) typeDecl(parent *scope.Scope, n *sitter.Node) {
	for _, spec := range childrenOfType(n, "type_spec", "type_alias") {
		name := x.text(spec.ChildByFieldName("name"))
		t := x.declare(parent, name, scope.KindType, spec)
		t.Accessibility = goAccess(name)
		t.TypeParams = x.typeParams(spec.ChildByFieldName("type_parameters"))
		if parent == x.pkg {
			x.types[name] = t
		}

		body := spec.ChildByFieldName("type")
		if body == nil {
			continue
		}
		switch body.Type() {
		case "struct_type":
			x.fields(t, firstChildOfType(body, "field_declaration_list"))
		case "interface_type":
			for _, m := range childrenOfType(body, "method_spec", "method_elem") {
				ms := x.declare(t, x.text(m.ChildByFieldName("name")), scope.KindMethod, m)
				ms.Accessibility = goAccess(ms.Name)
				x.params(ms, m.ChildByFieldName("parameters"))
			}
		}
	}
}

func (x *goExtractor) fields(t *scope.Scope, list *sitter.Node) {
	for _, fd := range childrenOfType(list, "field_declaration") {
		typ := fd.ChildByFieldName("type")
		names := childrenOfType(fd, "field_identifier")
		if len(names) == 0 {
			// Embedded field, named after its type.
			if tu := x.typeUse(typ); tu != nil {
				x.variable(t, tu.Name, typ, fd, goAccess(tu.Name), false)
			}
			continue
		}
		for _, id := range names {
			name := x.text(id)
			x.variable(t, name, typ, id, goAccess(name), false)
		}
	}
}

func (x *goExtractor) typeParams(list *sitter.Node) []string {
	var names []string
	for _, p := range childrenOfType(list, "parameter_declaration", "type_parameter_declaration") {
		for _, id := range childrenOfType(p, "identifier") {
			names = append(names, x.text(id))
		}
	}
	return names
}

// params declares every parameter, named or not, so the method's arity is
// the number of parameters it declares.
func (x *goExtractor) params(m *scope.Scope, list *sitter.Node) {
	for _, p := range childrenOfType(list, "parameter_declaration", "variadic_parameter_declaration") {
		typ := p.ChildByFieldName("type")
		ids := childrenOfType(p, "identifier")
		if len(ids) == 0 {
			x.variable(m, "", typ, p, "", true)
			continue
		}
		for _, id := range ids {
			x.variable(m, x.text(id), typ, id, "", true)
		}
	}
}

func (x *goExtractor) function(parent *scope.Scope, n *sitter.Node) {
	name := x.text(n.ChildByFieldName("name"))
	f := x.declare(parent, name, scope.KindMethod, n)
	f.Accessibility = goAccess(name)
	f.TypeParams = x.typeParams(n.ChildByFieldName("type_parameters"))
	x.params(f, n.ChildByFieldName("parameters"))
	x.body(f, n.ChildByFieldName("body"))
}

// receiverType returns the type scope, declared earlier in this file, that
// the method's receiver names.
func (x *goExtractor) receiverType(n *sitter.Node) *scope.Scope {
	recv := firstChildOfType(n.ChildByFieldName("receiver"), "parameter_declaration")
	if recv == nil {
		return nil
	}
	t := x.typeUse(recv.ChildByFieldName("type"))
	if t == nil {
		return nil
	}
	return x.types[t.Name]
}

func (x *goExtractor) method(owner *scope.Scope, n *sitter.Node) {
	name := x.text(n.ChildByFieldName("name"))
	m := x.declare(owner, name, scope.KindMethod, n)
	m.Accessibility = goAccess(name)

	// The receiver is visible in the body but is not a parameter.
	if recv := firstChildOfType(n.ChildByFieldName("receiver"), "parameter_declaration"); recv != nil {
		if id := firstChildOfType(recv, "identifier"); id != nil {
			x.variable(m, x.text(id), recv.ChildByFieldName("type"), id, "", false)
		}
	}
	x.params(m, n.ChildByFieldName("parameters"))
	x.body(m, n.ChildByFieldName("body"))
}

// vars declares the names of a var or const declaration. At package level
// the accessibility follows the exported-name rule.
func (x *goExtractor) vars(s *scope.Scope, n *sitter.Node, pkgLevel bool) {
	specs := childrenOfType(n, "var_spec", "const_spec")
	for _, list := range childrenOfType(n, "var_spec_list") {
		specs = append(specs, childrenOfType(list, "var_spec")...)
	}
	for _, spec := range specs {
		typ := spec.ChildByFieldName("type")
		values := namedChildren(spec.ChildByFieldName("value"))
		for i, id := range childrenOfType(spec, "identifier") {
			name := x.text(id)
			var access string
			if pkgLevel {
				access = goAccess(name)
			}
			vt := typ
			if vt == nil && i < len(values) {
				vt = literalType(values[i])
			}
			x.variable(s, name, vt, id, access, false)
		}
		x.body(s, spec.ChildByFieldName("value"))
	}
}

// literalType returns the type of a composite literal, or of the literal
// whose address is taken.
func literalType(v *sitter.Node) *sitter.Node {
	if v.Type() == "unary_expression" {
		if op := v.ChildByFieldName("operand"); op != nil {
			v = op
		}
	}
	if v.Type() == "composite_literal" {
		return v.ChildByFieldName("type")
	}
	return nil
}

func (x *goExtractor) body(s *scope.Scope, n *sitter.Node) {
	for _, c := range namedChildren(n) {
		x.expr(s, c)
	}
}

func (x *goExtractor) expr(s *scope.Scope, c *sitter.Node) {
	switch c.Type() {
	case "short_var_declaration":
		values := namedChildren(c.ChildByFieldName("right"))
		for i, id := range childrenOfType(c.ChildByFieldName("left"), "identifier") {
			var vt *sitter.Node
			if i < len(values) {
				vt = literalType(values[i])
			}
			x.variable(s, x.text(id), vt, id, "", false)
		}
		x.body(s, c.ChildByFieldName("right"))
		return
	case "var_declaration", "const_declaration":
		x.vars(s, c, false)
		return
	case "type_declaration":
		x.typeDecl(s, c)
		return
	case "range_clause":
		for _, id := range childrenOfType(c.ChildByFieldName("left"), "identifier") {
			x.variable(s, x.text(id), nil, id, "", false)
		}
	case "call_expression":
		args := c.ChildByFieldName("arguments")
		switch fn := c.ChildByFieldName("function"); {
		case fn == nil:
		case fn.Type() == "identifier":
			x.call(s, x.text(fn), "", args, c, false)
		case fn.Type() == "selector_expression":
			x.call(s, x.text(fn.ChildByFieldName("field")), x.text(fn.ChildByFieldName("operand")), args, c, false)
		}
	}
	x.body(s, c)
}

func goAccess(name string) string {
	r, _ := utf8.DecodeRuneInString(name)
	if unicode.IsUpper(r) {
		return "public"
	}
	return "private"
}
