// Package schema describes tool request shapes as explicit data, derives the
// strict argument records exposed to MCP clients, renders them as JSON
// schema, and validates incoming arguments against them.
package schema

// Kind tags the variant held by a Type.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindInteger
	KindBoolean
	KindObject
	KindArray
	KindUnion
	KindNull
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindInteger:
		return "integer"
	case KindBoolean:
		return "boolean"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindUnion:
		return "union"
	case KindNull:
		return "null"
	default:
		return "unknown"
	}
}

// Coercion is applied to a value before its Type is checked.
type Coercion int

const (
	CoerceNone Coercion = iota
	// CoerceInteger accepts any JSON number with no fractional part and
	// hands the handler an int64.
	CoerceInteger
)

// Type is a tagged variant. Record is set for KindObject, Elem for
// KindArray and Variants for KindUnion.
type Type struct {
	Kind     Kind
	Record   *Record
	Elem     *Type
	Variants []*Type
	Coerce   Coercion
}

func String() *Type  { return &Type{Kind: KindString} }
func Number() *Type  { return &Type{Kind: KindNumber} }
func Integer() *Type { return &Type{Kind: KindInteger} }
func Boolean() *Type { return &Type{Kind: KindBoolean} }
func Null() *Type    { return &Type{Kind: KindNull} }

// Ref references a nested record.
func Ref(r *Record) *Type { return &Type{Kind: KindObject, Record: r} }

// Map is a free-form JSON object whose keys are not declared.
func Map() *Type { return &Type{Kind: KindObject} }

// ListOf is an array whose items are elem.
func ListOf(elem *Type) *Type { return &Type{Kind: KindArray, Elem: elem} }

// OneOf accepts a value matching any of the variants, tried in order.
func OneOf(variants ...*Type) *Type { return &Type{Kind: KindUnion, Variants: variants} }

// Optional is shorthand for OneOf(t, Null()).
func Optional(t *Type) *Type { return OneOf(t, Null()) }

// Nullable reports whether the type accepts JSON null.
func (t *Type) Nullable() bool {
	if t.Kind == KindNull {
		return true
	}
	if t.Kind == KindUnion {
		for _, v := range t.Variants {
			if v.Nullable() {
				return true
			}
		}
	}
	return false
}

// Field is one named input of a Record.
type Field struct {
	Name        string
	Type        *Type
	Required    bool
	Default     any
	Min         *float64
	Max         *float64
	Description string
}

// Record is an ordered set of fields. Strict records reject keys they do
// not declare. Records are treated as immutable once built; derivation and
// caching key on the *Record pointer.
type Record struct {
	Name        string
	Description string
	Fields      []Field
	Strict      bool
}

// NewRecord builds a record from fields in declaration order.
func NewRecord(name string, fields ...Field) *Record {
	return &Record{Name: name, Fields: fields}
}

// Field returns the named field.
func (r *Record) Field(name string) (Field, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// RequiredNames lists required fields in declaration order.
func (r *Record) RequiredNames() []string {
	out := make([]string, 0, len(r.Fields))
	for _, f := range r.Fields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

// Required declares a field the caller must supply.
func Required(name string, t *Type, description string) Field {
	return Field{Name: name, Type: t, Required: true, Description: description}
}

// Opt declares a field that falls back to def when omitted.
func Opt(name string, t *Type, def any, description string) Field {
	return Field{Name: name, Type: t, Default: def, Description: description}
}

// Between attaches inclusive numeric bounds to a field.
func (f Field) Between(min, max float64) Field {
	f.Min = &min
	f.Max = &max
	return f
}

// AtLeast attaches an inclusive lower bound to a field.
func (f Field) AtLeast(min float64) Field {
	f.Min = &min
	return f
}
