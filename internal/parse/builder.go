package parse

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/scopegraph/scope"
)

// builder accumulates the unit for one file. The language extractors share
// it for everything that does not depend on grammar details.
type builder struct {
	path     string
	language string
	src      []byte
	root     *scope.Scope
	aliases  []*scope.Alias
}

func newBuilder(path, language string, src []byte) *builder {
	return &builder{path: path, language: language, src: src, root: scope.NewGlobal()}
}

func (b *builder) finish() *scope.Unit {
	scope.ApplyAliases(b.root, b.aliases)
	return &scope.Unit{Path: b.path, Language: b.language, Root: b.root, Aliases: b.aliases}
}

func (b *builder) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(b.src)
}

func (b *builder) loc(n *sitter.Node) scope.Location {
	sp, ep := n.StartPoint(), n.EndPoint()
	return scope.Location{
		File:      b.path,
		StartLine: int(sp.Row),
		StartCol:  int(sp.Column),
		EndLine:   int(ep.Row),
		EndCol:    int(ep.Column),
	}
}

// declare adds a child scope of parent defined at n.
func (b *builder) declare(parent *scope.Scope, name string, kind scope.Kind, n *sitter.Node) *scope.Scope {
	s := scope.New(name, kind, b.language)
	s.AddLocation(b.loc(n))
	parent.AddChild(s)
	return s
}

// namespace opens the namespace chain path below parent. Namespaces already
// opened by this file are reused and gain another location.
func (b *builder) namespace(parent *scope.Scope, path []string, n *sitter.Node) *scope.Scope {
	cur := parent
	for _, seg := range path {
		if seg == "" {
			continue
		}
		next := cur.Child(seg, scope.KindNamespace)
		if next == nil {
			next = scope.New(seg, scope.KindNamespace, b.language)
			cur.AddChild(next)
		}
		next.AddLocation(b.loc(n))
		cur = next
	}
	return cur
}

// variable declares a variable or parameter in s. Unnamed and blank
// parameters are kept since they count toward the method's arity.
func (b *builder) variable(s *scope.Scope, name string, typeNode, at *sitter.Node, access string, param bool) {
	if !param && (name == "" || name == "_") {
		return
	}
	v := &scope.Variable{Name: name, Type: b.typeUse(typeNode), Accessibility: access, Location: b.loc(at)}
	if param {
		s.AddParameter(v)
	} else {
		s.AddVariable(v)
	}
}

func (b *builder) call(s *scope.Scope, name, receiver string, args, at *sitter.Node, ctor bool) {
	if name == "" {
		return
	}
	arity := scope.UnknownArity
	if args != nil {
		arity = countArgs(args)
	}
	c := scope.NewMethodCall(name, arity, b.language)
	c.CallingObject = receiver
	c.IsConstructor = ctor
	c.Location = b.loc(at)
	s.AddMethodCall(c)
}

func countArgs(args *sitter.Node) int {
	n := 0
	for _, c := range namedChildren(args) {
		if c.Type() != "comment" {
			n++
		}
	}
	return n
}

func (b *builder) alias(target []string, local string, namespace bool, at *sitter.Node) {
	if len(target) == 0 {
		return
	}
	b.aliases = append(b.aliases, &scope.Alias{
		Target:    target,
		LocalName: local,
		Namespace: namespace,
		Language:  b.language,
		Location:  b.loc(at),
	})
}

// typeUse converts a type node into a TypeUse. Types that name nothing
// resolvable (function types, anonymous structs, inferred types) yield nil.
func (b *builder) typeUse(n *sitter.Node) *scope.TypeUse {
	expr := b.typeExpr(n)
	if expr == "" {
		return nil
	}
	t, err := scope.ParseTypeName(expr, b.language)
	if err != nil {
		return nil
	}
	t.Location = b.loc(n)
	return t
}

// typeExpr renders n in the Prefix.Name<Args> form ParseTypeName reads.
// Arrays, pointers, slices, channels and nullables reduce to their element
// type; maps reduce to their value type.
func (b *builder) typeExpr(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	switch n.Type() {
	case "array_type", "slice_type", "pointer_type", "nullable_type", "channel_type",
		"parenthesized_type", "ref_type", "annotated_type", "type_elem":
		return b.typeExpr(elementOf(n))
	case "map_type":
		return b.typeExpr(n.ChildByFieldName("value"))
	case "wildcard":
		// ? extends Bound
		kids := namedChildren(n)
		if len(kids) == 0 {
			return ""
		}
		return b.typeExpr(kids[len(kids)-1])
	case "generic_type", "generic_name":
		return b.genericExpr(n)
	case "implicit_type", "func_type", "function_type", "struct_type", "interface_type",
		"tuple_type", "function_pointer_type", "negated_type", "union_type":
		return ""
	}

	text := strings.Join(strings.Fields(b.text(n)), "")
	text = strings.TrimPrefix(text, "global::")
	if text == "var" || text == "" {
		return ""
	}
	for _, r := range text {
		if !isTypeRune(r) {
			return ""
		}
	}
	return text
}

func (b *builder) genericExpr(n *sitter.Node) string {
	base := n.ChildByFieldName("type")
	var args *sitter.Node
	for _, c := range namedChildren(n) {
		switch c.Type() {
		case "type_arguments", "type_argument_list":
			args = c
		default:
			if base == nil {
				base = c
			}
		}
	}
	if a := n.ChildByFieldName("type_arguments"); a != nil {
		args = a
	}
	name := b.text(base)
	if base != nil && base.Type() != "identifier" && base.Type() != "type_identifier" {
		name = b.typeExpr(base)
	}
	if name == "" {
		return ""
	}
	var parts []string
	for _, a := range namedChildren(args) {
		if e := b.typeExpr(a); e != "" {
			parts = append(parts, e)
		}
	}
	if len(parts) == 0 {
		return name
	}
	return name + "<" + strings.Join(parts, ", ") + ">"
}

func isTypeRune(r rune) bool {
	switch r {
	case '.', '<', '>', ',', '_', '$':
		return true
	}
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r >= 0x80
}

// elementOf returns the element type of a wrapper type node.
func elementOf(n *sitter.Node) *sitter.Node {
	for _, field := range []string{"element", "type", "value"} {
		if c := n.ChildByFieldName(field); c != nil {
			return c
		}
	}
	for _, c := range namedChildren(n) {
		if c.Type() != "dimensions" && c.Type() != "annotation" && c.Type() != "marker_annotation" {
			return c
		}
	}
	return nil
}

func namedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	count := int(n.NamedChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := range count {
		out = append(out, n.NamedChild(i))
	}
	return out
}

func childrenOfType(n *sitter.Node, types ...string) []*sitter.Node {
	var out []*sitter.Node
	for _, c := range namedChildren(n) {
		for _, t := range types {
			if c.Type() == t {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func firstChildOfType(n *sitter.Node, types ...string) *sitter.Node {
	if kids := childrenOfType(n, types...); len(kids) > 0 {
		return kids[0]
	}
	return nil
}

// splitQualified splits a dotted name, ignoring whitespace and a trailing
// wildcard segment.
func splitQualified(s string) []string {
	s = strings.Join(strings.Fields(s), "")
	var parts []string
	for _, p := range strings.Split(s, ".") {
		if p != "" && p != "*" {
			parts = append(parts, p)
		}
	}
	return parts
}

// hasWord reports whether the whitespace-separated text contains word.
func hasWord(text, word string) bool {
	for _, f := range strings.Fields(text) {
		if f == word {
			return true
		}
	}
	return false
}
