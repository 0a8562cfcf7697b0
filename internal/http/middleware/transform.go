package middleware

import (
	"context"
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"apicore/internal/domain"
	"apicore/internal/http/response"
)

var (
	timeType      = reflect.TypeFor[time.Time]()
	successType   = reflect.TypeFor[response.Success]()
	fileType      = reflect.TypeFor[response.File]()
	marshalerType = reflect.TypeFor[json.Marshaler]()
)

// Transform rewrites every time.Time in the result into the canonical
// timestamp text.
func Transform() Stage {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) (any, error) {
			out, err := next(ctx, req)
			if err != nil {
				return nil, err
			}
			return NormalizeTimes(out), nil
		}
	}
}

// NormalizeTimes walks v through structs, maps, slices, arrays, pointers and
// interfaces and returns a JSON-equivalent tree in which every time value is
// a domain.TimestampLayout string. Struct fields follow encoding/json naming.
func NormalizeTimes(v any) any {
	if v == nil {
		return nil
	}
	return normalize(reflect.ValueOf(v))
}

func normalize(v reflect.Value) any {
	switch v.Kind() {
	case reflect.Invalid:
		return nil
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return normalize(v.Elem())
	}

	t := v.Type()
	switch {
	case t == timeType:
		return domain.FormatTimestamp(v.Interface().(time.Time))
	case t == successType:
		s := v.Interface().(response.Success)
		s.Data = NormalizeTimes(s.Data)
		return s
	case t == fileType:
		return v.Interface()
	case t.Implements(marshalerType) || reflect.PointerTo(t).Implements(marshalerType):
		return v.Interface()
	}

	switch v.Kind() {
	case reflect.Struct:
		return normalizeStruct(v)
	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		if t.Key().Kind() != reflect.String {
			return v.Interface()
		}
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = normalize(iter.Value())
		}
		return out
	case reflect.Slice:
		if v.IsNil() {
			return nil
		}
		if t.Elem().Kind() == reflect.Uint8 {
			return v.Interface()
		}
		return normalizeList(v)
	case reflect.Array:
		return normalizeList(v)
	default:
		return v.Interface()
	}
}

func normalizeList(v reflect.Value) []any {
	out := make([]any, v.Len())
	for i := range out {
		out[i] = normalize(v.Index(i))
	}
	return out
}

func normalizeStruct(v reflect.Value) map[string]any {
	t := v.Type()
	out := make(map[string]any, t.NumField())
	promoted := map[string]any{}

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" && opts == "" {
			continue
		}
		fv := v.Field(i)

		if f.Anonymous && name == "" {
			inner := fv
			if inner.Kind() == reflect.Pointer {
				if inner.IsNil() {
					continue
				}
				inner = inner.Elem()
			}
			if inner.Kind() == reflect.Struct && inner.Type() != timeType {
				for k, val := range normalizeStruct(inner) {
					promoted[k] = val
				}
				continue
			}
		}

		if name == "" {
			name = f.Name
		}
		if hasOption(opts, "omitempty") && isEmptyValue(fv) {
			continue
		}
		out[name] = normalize(fv)
	}

	// fields declared on the outer struct win over promoted ones
	for k, val := range promoted {
		if _, ok := out[k]; !ok {
			out[k] = val
		}
	}
	return out
}

func hasOption(opts, want string) bool {
	for opts != "" {
		var o string
		o, opts, _ = strings.Cut(opts, ",")
		if o == want {
			return true
		}
	}
	return false
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64,
		reflect.Interface, reflect.Pointer:
		return v.IsZero()
	}
	return false
}
