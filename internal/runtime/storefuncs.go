package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/risor-io/risor/object"

	"github.com/jward/scopegraph/internal/store"
)

// makeFilesFn creates "indexed_files", the files recorded in the index,
// optionally restricted to one language.
//
// indexed_files([language]) → list of {id, path, language, hash, lines}
func makeFilesFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("indexed_files", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) > 1 {
			return object.NewArgsRangeError("indexed_files", 0, 1, len(args))
		}

		var (
			files []*store.File
			err   error
		)
		if len(args) == 1 {
			lang, convErr := toString(args[0])
			if convErr != nil {
				return object.Errorf("indexed_files: %v", convErr)
			}
			files, err = s.FilesByLanguage(lang)
		} else {
			files, err = s.Files()
		}
		if err != nil {
			return object.Errorf("indexed_files: %v", err)
		}

		results := make([]object.Object, 0, len(files))
		for _, f := range files {
			results = append(results, object.NewMap(map[string]object.Object{
				"id":       object.NewInt(f.ID),
				"path":     object.NewString(f.Path),
				"language": object.NewString(f.Language),
				"hash":     object.NewString(f.Hash),
				"lines":    object.NewInt(int64(f.LineCount)),
			}))
		}
		return object.NewList(results)
	})
}

// makeDBQueryFn creates "db_query", which runs a read-only SQL statement
// against the index. Rows come back as maps of column name to value.
//
// db_query(sql, args...) → list of maps
func makeDBQueryFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("db_query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 {
			return object.Errorf("db_query: missing sql argument")
		}
		query, err := toString(args[0])
		if err != nil {
			return object.Errorf("db_query: %v", err)
		}
		params := make([]any, len(args)-1)
		for i, arg := range args[1:] {
			params[i] = sqlArg(arg)
		}

		rows, err := s.Select(ctx, query, params...)
		if err != nil {
			return object.Errorf("db_query: %v", err)
		}
		list := make([]object.Object, len(rows))
		for i, row := range rows {
			m := make(map[string]object.Object, len(row))
			for col, v := range row {
				m[col] = sqlValueToObject(v)
			}
			list[i] = object.NewMap(m)
		}
		return object.NewList(list)
	})
}

func sqlArg(obj object.Object) any {
	switch v := obj.(type) {
	case *object.Int:
		return v.Value()
	case *object.Float:
		return v.Value()
	case *object.String:
		return v.Value()
	case *object.Bool:
		return v.Value()
	case *object.NilType:
		return nil
	default:
		return obj.Inspect()
	}
}

// sqlValueToObject converts a value from Store.Select to a Risor object.
// Timestamps become RFC 3339 strings.
func sqlValueToObject(v any) object.Object {
	switch val := v.(type) {
	case nil:
		return object.Nil
	case int64:
		return object.NewInt(val)
	case float64:
		return object.NewFloat(val)
	case string:
		return object.NewString(val)
	case bool:
		return object.NewBool(val)
	case time.Time:
		return object.NewString(val.UTC().Format(time.RFC3339))
	default:
		return object.NewString(fmt.Sprint(val))
	}
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}
