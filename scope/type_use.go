package scope

import (
	"fmt"
	"iter"
	"strings"
	"unicode"
)

// TypeUse is a reference to a type, optionally qualified by a namespace prefix
// and carrying generic type arguments: Prefix.Name<T1, T2>.
type TypeUse struct {
	Use
	Prefix *NamedScopeUse

	typeParams []*TypeUse
}

// NewTypeUse returns an unqualified, non-generic type use.
func NewTypeUse(name, language string) *TypeUse {
	return &TypeUse{Use: Use{Name: name, Language: language}}
}

// SetParentScope binds the use, its prefix and its type arguments to s.
func (t *TypeUse) SetParentScope(s *Scope) {
	t.Use.SetParentScope(s)
	if t.Prefix != nil {
		t.Prefix.SetParentScope(s)
	}
	for _, p := range t.typeParams {
		p.SetParentScope(s)
	}
}

// AddAlias offers a to the use, its prefix head and its type arguments. Each
// keeps it only if it applies.
func (t *TypeUse) AddAlias(a *Alias) {
	t.Use.AddAlias(a)
	if t.Prefix != nil {
		t.Prefix.AddAlias(a)
	}
	for _, p := range t.typeParams {
		p.AddAlias(a)
	}
}

func (t *TypeUse) AddAliases(aliases []*Alias) {
	for _, a := range aliases {
		t.AddAlias(a)
	}
}

func (t *TypeUse) TypeParameters() []*TypeUse { return t.typeParams }

// AddTypeParameter appends a generic argument, binding it to the same scope.
func (t *TypeUse) AddTypeParameter(p *TypeUse) {
	if p == nil {
		return
	}
	p.SetParentScope(t.parent)
	t.typeParams = append(t.typeParams, p)
}

func (t *TypeUse) AddTypeParameters(ps []*TypeUse) {
	for _, p := range ps {
		t.AddTypeParameter(p)
	}
}

func (t *TypeUse) IsGeneric() bool { return len(t.typeParams) > 0 }

// Matches compares names only.
func (t *TypeUse) Matches(s *Scope) bool {
	return s != nil && s.Name == t.Name
}

func isType(s *Scope) bool { return s.Kind == KindType }

// FindMatches resolves the type. Built-in names short-circuit to the single
// built-in definition for the use's language. A prefixed use searches the type
// children of every scope the prefix resolves to. Otherwise the enclosing
// scopes and aliases are searched.
func (t *TypeUse) FindMatches() (iter.Seq[*Scope], error) {
	if b, ok := BuiltinType(t.Language, t.Name); ok {
		return func(yield func(*Scope) bool) { yield(b) }, nil
	}

	if t.Prefix != nil {
		prefixes, err := t.Prefix.FindMatches()
		if err != nil {
			return nil, err
		}
		return func(yield func(*Scope) bool) {
			for p := range prefixes {
				for _, c := range p.children {
					if isType(c) && t.Matches(c) && !yield(c) {
						return
					}
				}
			}
		}, nil
	}

	base, err := findInScopes(&t.Use, childrenWhere(isType), t.Matches)
	if err != nil {
		return nil, err
	}
	return concat(base, renamedTargets(&t.Use, isType)), nil
}

// FindFirstMatchingType returns the first match, or nil when there is none.
func (t *TypeUse) FindFirstMatchingType() (*Scope, error) {
	s, _, err := First[*Scope](t)
	return s, err
}

// String renders Prefix.Name<T1, T2>. ParseTypeName reads the same form.
func (t *TypeUse) String() string {
	var b strings.Builder
	if t.Prefix != nil {
		b.WriteString(t.Prefix.FullName())
		b.WriteByte('.')
	}
	b.WriteString(t.Name)
	if len(t.typeParams) > 0 {
		b.WriteByte('<')
		for i, p := range t.typeParams {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.String())
		}
		b.WriteByte('>')
	}
	return b.String()
}

// ParseTypeName parses a type expression such as java.util.Map<String, List<T>>
// into a TypeUse.
func ParseTypeName(expr, language string) (*TypeUse, error) {
	p := &typeParser{src: expr, language: language}
	p.next()
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if p.tok != "" {
		return nil, fmt.Errorf("scope: parse type %q: unexpected %q", expr, p.tok)
	}
	return t, nil
}

type typeParser struct {
	src      string
	pos      int
	tok      string
	language string
}

func (p *typeParser) next() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
	if p.pos >= len(p.src) {
		p.tok = ""
		return
	}
	switch c := p.src[p.pos]; c {
	case '.', '<', '>', ',':
		p.tok = string(c)
		p.pos++
		return
	}
	start := p.pos
	for p.pos < len(p.src) {
		r := rune(p.src[p.pos])
		if r != '_' && r != '$' && !unicode.IsLetter(r) && !unicode.IsDigit(r) && r < 0x80 {
			break
		}
		p.pos++
	}
	if p.pos == start {
		p.tok = p.src[p.pos : p.pos+1]
		p.pos++
		return
	}
	p.tok = p.src[start:p.pos]
}

func (p *typeParser) ident() (string, error) {
	if p.tok == "" || !isIdentStart(p.tok[0]) {
		return "", fmt.Errorf("scope: parse type %q: expected identifier at %d", p.src, p.pos)
	}
	name := p.tok
	p.next()
	return name, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || c >= 0x80 || unicode.IsLetter(rune(c))
}

func (p *typeParser) parseType() (*TypeUse, error) {
	first, err := p.ident()
	if err != nil {
		return nil, err
	}
	segments := []string{first}
	for p.tok == "." {
		p.next()
		seg, err := p.ident()
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}

	t := NewTypeUse(segments[len(segments)-1], p.language)
	t.Prefix = NewNamedScopeUse(p.language, segments[:len(segments)-1]...)

	if p.tok == "<" {
		p.next()
		for {
			arg, err := p.parseType()
			if err != nil {
				return nil, err
			}
			t.AddTypeParameter(arg)
			if p.tok == "," {
				p.next()
				continue
			}
			if p.tok != ">" {
				return nil, fmt.Errorf("scope: parse type %q: expected '>'", p.src)
			}
			p.next()
			break
		}
	}
	return t, nil
}
