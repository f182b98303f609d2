package document

import "strings"

// Path is a parsed dotted path such as "address.city" (spec §4.1).
type Path []string

// ParsePath splits a dotted path string into segments. An empty string
// yields an empty Path, which resolves to the document itself.
func ParsePath(s string) Path {
	if s == "" {
		return nil
	}

	return strings.Split(s, ".")
}

// String reassembles the path into its dotted form.
func (p Path) String() string {
	return strings.Join(p, ".")
}

// Get walks obj along p and returns the leaf value. ok is false if any
// intermediate segment is missing or is not an Object, or if the final
// segment itself is missing.
func Get(obj *Object, p Path) (Value, bool) {
	if len(p) == 0 {
		return obj, true
	}

	cur := obj

	for _, seg := range p[:len(p)-1] {
		v, ok := cur.Get(seg)
		if !ok {
			return nil, false
		}

		child, ok := v.(*Object)
		if !ok {
			return nil, false
		}

		cur = child
	}

	return cur.Get(p[len(p)-1])
}

// Set walks obj along p, creating intermediate Objects as needed, then
// assigns value at the leaf. It returns TypeMismatchError if an
// intermediate segment already exists as a non-Object scalar value
// (spec §4.1).
func Set(obj *Object, p Path, value Value) error {
	if len(p) == 0 {
		return TypeMismatchError("object", value)
	}

	cur := obj

	for _, seg := range p[:len(p)-1] {
		v, ok := cur.Get(seg)
		if !ok {
			child := NewObject(1)
			cur.Set(seg, child)
			cur = child

			continue
		}

		child, ok := v.(*Object)
		if !ok {
			return TypeMismatchError("object", v)
		}

		cur = child
	}

	cur.Set(p[len(p)-1], value)

	return nil
}

// Delete walks obj along p and removes the leaf key if present. It is a
// no-op if any intermediate segment is missing or the leaf itself is
// absent (spec §4.1). A non-Object intermediate segment is also treated
// as "nothing to delete" rather than an error, matching the read-path
// semantics of Get.
func Delete(obj *Object, p Path) {
	if len(p) == 0 {
		return
	}

	cur := obj

	for _, seg := range p[:len(p)-1] {
		v, ok := cur.Get(seg)
		if !ok {
			return
		}

		child, ok := v.(*Object)
		if !ok {
			return
		}

		cur = child
	}

	cur.Remove(p[len(p)-1])
}
