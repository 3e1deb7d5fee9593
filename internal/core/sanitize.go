package core

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"sort"
	"time"
)

var (
	timeType    = reflect.TypeOf(time.Time{})
	emptyStruct = reflect.TypeOf(struct{}{})
)

// Sanitize converts v into a value encoding/json can emit without nulls:
//
//   - nil, nil pointers and nil interfaces become ""
//   - maps get string keys; map[K]struct{} sets become sorted lists
//   - slices and arrays become []any ([]byte becomes base64 text)
//   - time.Time becomes RFC 3339 text
//   - *big.Float, *big.Rat and json.Number become float64
//   - structs are taken through their JSON object form
//
// Everything else is returned unchanged.
func Sanitize(v any) any {
	switch x := v.(type) {
	case nil:
		return ""
	case string, bool, float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return x
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = Sanitize(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = Sanitize(val)
		}
		return out
	case []byte:
		return base64.StdEncoding.EncodeToString(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case *time.Time:
		if x == nil {
			return ""
		}
		return x.Format(time.RFC3339Nano)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return x.String()
		}
		return f
	case *big.Float:
		if x == nil {
			return ""
		}
		f, _ := x.Float64()
		return f
	case *big.Rat:
		if x == nil {
			return ""
		}
		f, _ := x.Float64()
		return f
	case json.RawMessage:
		var decoded any
		if err := json.Unmarshal(x, &decoded); err != nil {
			return string(x)
		}
		return Sanitize(decoded)
	}
	return sanitizeReflect(reflect.ValueOf(v))
}

func sanitizeReflect(rv reflect.Value) any {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return ""
		}
		return Sanitize(rv.Elem().Interface())

	case reflect.Map:
		if rv.Type().Elem() == emptyStruct {
			return sanitizeSet(rv)
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = Sanitize(iter.Value().Interface())
		}
		return out

	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return base64.StdEncoding.EncodeToString(rv.Bytes())
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = Sanitize(rv.Index(i).Interface())
		}
		return out

	case reflect.Struct:
		if rv.Type() == timeType {
			return rv.Interface().(time.Time).Format(time.RFC3339Nano)
		}
		raw, err := json.Marshal(rv.Interface())
		if err != nil {
			return fmt.Sprint(rv.Interface())
		}
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return fmt.Sprint(rv.Interface())
		}
		return Sanitize(decoded)

	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	}
	return rv.Interface()
}

func sanitizeSet(rv reflect.Value) []any {
	keys := make([]string, 0, rv.Len())
	values := make(map[string]any, rv.Len())
	for _, k := range rv.MapKeys() {
		s := fmt.Sprint(k.Interface())
		keys = append(keys, s)
		values[s] = Sanitize(k.Interface())
	}
	sort.Strings(keys)
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = values[k]
	}
	return out
}
