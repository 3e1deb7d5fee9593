package tool

import "fmt"

// Args are the validated, coerced arguments handed to a handler. Integer
// fields hold int64, number fields float64.
type Args map[string]any

func (a Args) Has(name string) bool {
	v, ok := a[name]
	return ok && v != nil
}

func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

func (a Args) Int(name string) int64 {
	switch n := a[name].(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

func (a Args) Float(name string) float64 {
	switch n := a[name].(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}

func (a Args) Bool(name string) bool {
	b, _ := a[name].(bool)
	return b
}

func (a Args) Map(name string) map[string]any {
	m, _ := a[name].(map[string]any)
	return m
}

func (a Args) List(name string) []any {
	l, _ := a[name].([]any)
	return l
}

// Payload copies the named arguments that are present and non-nil, for
// forwarding as a request body.
func (a Args) Payload(names ...string) map[string]any {
	out := make(map[string]any, len(names))
	for _, n := range names {
		if a.Has(n) {
			out[n] = a[n]
		}
	}
	return out
}

// Require returns an error naming the first absent argument.
func (a Args) Require(names ...string) error {
	for _, n := range names {
		if !a.Has(n) {
			return fmt.Errorf("argument %q is required", n)
		}
	}
	return nil
}
