package document

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Canonical serializes v into a stable string form where Object keys are
// sorted lexicographically at every depth and numbers are preserved as-is
// (spec §4.6, §9). It is used to build result-cache keys from filter
// expressions; two filters that are structurally equal (ignoring key
// order) always produce the same Canonical string.
func Canonical(v Value) string {
	var b strings.Builder
	writeCanonical(&b, v)

	return b.String()
}

func writeCanonical(b *strings.Builder, v Value) {
	switch t := v.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		if t {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case int64:
		b.WriteString(strconv.FormatInt(t, 10))
	case float64:
		b.WriteString(strconv.FormatFloat(t, 'g', -1, 64))
	case string:
		b.WriteString(strconv.Quote(t))
	case *Array:
		b.WriteByte('[')

		for i, e := range t.Values() {
			if i > 0 {
				b.WriteByte(',')
			}

			writeCanonical(b, e)
		}

		b.WriteByte(']')
	case *Object:
		keys := t.Keys()
		sort.Strings(keys)

		b.WriteByte('{')

		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}

			val, _ := t.Get(k)
			b.WriteString(strconv.Quote(k))
			b.WriteByte(':')
			writeCanonical(b, val)
		}

		b.WriteByte('}')
	default:
		b.WriteString(fmt.Sprintf("%v", t))
	}
}
