package scope

import "sync"

var builtinNames = map[string][]string{
	"java": {
		"boolean", "byte", "char", "short", "int", "long", "float", "double", "void",
	},
	"csharp": {
		"bool", "byte", "sbyte", "char", "decimal", "double", "float", "int", "uint",
		"nint", "nuint", "long", "ulong", "short", "ushort", "object", "string",
		"dynamic", "void",
	},
	"go": {
		"bool", "byte", "rune", "string", "error", "any", "comparable",
		"int", "int8", "int16", "int32", "int64",
		"uint", "uint8", "uint16", "uint32", "uint64", "uintptr",
		"float32", "float64", "complex64", "complex128",
	},
	"cpp": {
		"bool", "char", "char8_t", "char16_t", "char32_t", "wchar_t", "short", "int",
		"long", "signed", "unsigned", "float", "double", "void", "auto",
	},
}

var (
	builtinsOnce sync.Once
	builtins     map[string]map[string]*Scope
)

func initBuiltins() {
	builtinsOnce.Do(func() {
		builtins = make(map[string]map[string]*Scope, len(builtinNames))
		for lang, names := range builtinNames {
			table := make(map[string]*Scope, len(names))
			for _, name := range names {
				s := New(name, KindType, lang)
				s.Builtin = true
				table[name] = s
			}
			builtins[lang] = table
		}
	})
}

// BuiltinType returns the shared definition of a language's built-in type.
// Every call with the same arguments returns the same *Scope.
func BuiltinType(language, name string) (*Scope, bool) {
	initBuiltins()
	s, ok := builtins[language][name]
	return s, ok
}

func IsBuiltin(language, name string) bool {
	_, ok := BuiltinType(language, name)
	return ok
}
