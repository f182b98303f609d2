package document

import "slices"

// CompareResult is the outcome of comparing two Values, mirroring
// internal/types' CompareResult from the teacher pack.
type CompareResult int

// Recognized comparison results.
const (
	Less CompareResult = iota - 1
	Equal
	Greater
	Incomparable
)

// Compare orders two Values of the same comparable family (both numeric,
// or both strings). It returns Incomparable for any other pairing — the
// query interpreter's operator validation is responsible for rejecting
// incomparable operands before Compare is ever called (spec §4.4).
//
// Numeric comparison follows IEEE-754 semantics for floats: Compare(NaN,
// NaN) is Incomparable, so a $gt/$gte/$lt/$lte query against NaN matches
// nothing, which is the spec's chosen resolution of Open Question (b) for
// ordering (equality is handled separately by Equal).
func Compare(a, b Value) CompareResult {
	if af, aok := AsFloat(a); aok {
		if bf, bok := AsFloat(b); bok {
			return compareFloat(af, bf)
		}

		return Incomparable
	}

	if as, aok := a.(string); aok {
		if bs, bok := b.(string); bok {
			switch {
			case as < bs:
				return Less
			case as > bs:
				return Greater
			default:
				return Equal
			}
		}

		return Incomparable
	}

	return Incomparable
}

func compareFloat(a, b float64) CompareResult {
	switch {
	case a < b:
		return Less
	case a > b:
		return Greater
	case a == b:
		return Equal
	default:
		// a or b is NaN.
		return Incomparable
	}
}

// Equal reports deep equality between two Values, used for $eq/$ne and for
// bare-scalar filter leaves. Float equality is plain IEEE-754 equality
// (Open Question (b)): NaN never equals NaN.
func Equal(a, b Value) bool {
	ak, aok := KindOf(a)
	bk, bok := KindOf(b)

	if !aok || !bok || ak != bk {
		// Integer/Float cross-comparison: 10 and 10.0 are equal.
		if af, aok := AsFloat(a); aok {
			if bf, bok := AsFloat(b); bok {
				return af == bf
			}
		}

		return false
	}

	switch ak {
	case KindNull:
		return true
	case KindBool:
		return a.(bool) == b.(bool)
	case KindInteger:
		return a.(int64) == b.(int64)
	case KindFloat:
		return a.(float64) == b.(float64)
	case KindString:
		return a.(string) == b.(string)
	case KindArray:
		return arrayEqual(a.(*Array), b.(*Array))
	case KindObject:
		return objectEqual(a.(*Object), b.(*Object))
	default:
		return false
	}
}

func arrayEqual(a, b *Array) bool {
	if a.Len() != b.Len() {
		return false
	}

	for i, v := range a.Values() {
		bv, _ := b.Get(i)
		if !Equal(v, bv) {
			return false
		}
	}

	return true
}

// objectEqual compares two Objects field by field, ignoring key order —
// two documents with the same fields written in a different order are
// still the same document.
func objectEqual(a, b *Object) bool {
	if a.Len() != b.Len() {
		return false
	}

	keys := a.Keys()
	slices.Sort(keys)

	bKeys := b.Keys()
	slices.Sort(bKeys)

	if !slices.Equal(keys, bKeys) {
		return false
	}

	for _, k := range keys {
		av, _ := a.Get(k)
		bv, _ := b.Get(k)

		if !Equal(av, bv) {
			return false
		}
	}

	return true
}
