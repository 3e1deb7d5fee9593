package schema

import "sync"

// Deriver turns request records into strict argument records. Results are
// cached by source pointer, so deriving the same record twice returns the
// same *Record.
type Deriver struct {
	mu    sync.Mutex
	cache map[*Record]*Record
}

func NewDeriver() *Deriver {
	return &Deriver{cache: make(map[*Record]*Record)}
}

// Derive returns the argument record for src. Integer fields become numbers
// with integer coercion, nested records are derived recursively, and the
// result forbids undeclared keys.
func (d *Deriver) Derive(src *Record) *Record {
	if src == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.derive(src)
}

// Len reports how many records are cached.
func (d *Deriver) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.cache)
}

func (d *Deriver) derive(src *Record) *Record {
	if src == nil {
		return nil
	}
	if out, ok := d.cache[src]; ok {
		return out
	}
	out := &Record{
		Name:        src.Name + "Args",
		Description: src.Description,
		Strict:      true,
		Fields:      make([]Field, 0, len(src.Fields)),
	}
	// Registered before the fields are filled so self-referencing records
	// terminate.
	d.cache[src] = out
	for _, f := range src.Fields {
		f.Type = d.deriveType(f.Type)
		out.Fields = append(out.Fields, f)
	}
	return out
}

func (d *Deriver) deriveType(t *Type) *Type {
	if t == nil {
		return nil
	}
	switch t.Kind {
	case KindInteger:
		return &Type{Kind: KindNumber, Coerce: CoerceInteger}
	case KindObject:
		return &Type{Kind: KindObject, Record: d.derive(t.Record)}
	case KindArray:
		return &Type{Kind: KindArray, Elem: d.deriveType(t.Elem)}
	case KindUnion:
		variants := make([]*Type, len(t.Variants))
		for i, v := range t.Variants {
			variants[i] = d.deriveType(v)
		}
		return &Type{Kind: KindUnion, Variants: variants}
	default:
		return t
	}
}
