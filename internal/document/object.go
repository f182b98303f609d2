package document

import "slices"

// field is a single Object field in insertion order, mirroring bson2's
// internal `field` struct.
type field struct {
	name  string
	value Value
}

// Object is an order-preserving JSON object — the Document of spec §3.
// Key order must survive every insert/mutate/load/save round trip, so it
// is backed by a slice of fields rather than a Go map.
type Object struct {
	fields []field
}

// NewObject creates an empty Object with the given field capacity hint.
func NewObject(capacity int) *Object {
	return &Object{fields: make([]field, 0, capacity)}
}

// NewObjectFromPairs builds an Object from alternating key/value pairs,
// e.g. NewObjectFromPairs("a", int64(1), "b", "x"). Later pairs overwrite
// earlier ones with the same key, consistent with Set.
func NewObjectFromPairs(pairs ...any) *Object {
	obj := NewObject(len(pairs) / 2)

	for i := 0; i+1 < len(pairs); i += 2 {
		obj.Set(pairs[i].(string), pairs[i+1])
	}

	return obj
}

// Len returns the number of top-level fields.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}

	return len(o.fields)
}

// Keys returns field names in insertion order. The returned slice is a
// fresh copy, so callers may reorder or modify it.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}

	keys := make([]string, len(o.fields))
	for i, f := range o.fields {
		keys[i] = f.name
	}

	return keys
}

func (o *Object) indexOf(key string) int {
	for i, f := range o.fields {
		if f.name == key {
			return i
		}
	}

	return -1
}

// Get returns the value stored at key and whether it was present.
func (o *Object) Get(key string) (Value, bool) {
	if o == nil {
		return nil, false
	}

	if i := o.indexOf(key); i >= 0 {
		return o.fields[i].value, true
	}

	return nil, false
}

// Has reports whether key is present.
func (o *Object) Has(key string) bool {
	_, ok := o.Get(key)
	return ok
}

// Set assigns value to key, preserving the original position if key
// already existed, or appending it at the end otherwise.
func (o *Object) Set(key string, value Value) {
	if i := o.indexOf(key); i >= 0 {
		o.fields[i].value = value
		return
	}

	o.fields = append(o.fields, field{name: key, value: value})
}

// Remove deletes key if present. It is a no-op otherwise (spec §4.1:
// delete "succeeds as a no-op otherwise").
func (o *Object) Remove(key string) {
	if o == nil {
		return
	}

	if i := o.indexOf(key); i >= 0 {
		o.fields = slices.Delete(o.fields, i, i+1)
	}
}

// DeepCopy returns a fully independent copy of o, recursing into nested
// Objects and Arrays.
func (o *Object) DeepCopy() *Object {
	if o == nil {
		return nil
	}

	cp := NewObject(len(o.fields))
	for _, f := range o.fields {
		cp.fields = append(cp.fields, field{name: f.name, value: deepCopyValue(f.value)})
	}

	return cp
}

func deepCopyValue(v Value) Value {
	switch t := v.(type) {
	case *Object:
		return t.DeepCopy()
	case *Array:
		return t.DeepCopy()
	default:
		return v
	}
}

// Range calls fn for each field in insertion order. Iteration stops early
// if fn returns false.
func (o *Object) Range(fn func(key string, value Value) bool) {
	if o == nil {
		return
	}

	for _, f := range o.fields {
		if !fn(f.name, f.value) {
			return
		}
	}
}
