// Package query implements the filter interpreter (spec §4.4): evaluating
// a nested filter expression against a document, with AND-combined
// comparison operators at every leaf.
package query

import (
	"strings"

	"github.com/bisondb/bison/internal/bisonerr"
	"github.com/bisondb/bison/internal/document"
)

// recognizedOperators is the set of "$"-prefixed keys the interpreter
// understands. Any other "$"-prefixed key inside an operator object is a
// validation error (spec §4.4).
var recognizedOperators = map[string]bool{
	"$eq":     true,
	"$ne":     true,
	"$gt":     true,
	"$gte":    true,
	"$lt":     true,
	"$lte":    true,
	"$exists": true,
}

// Validate walks filter and rejects anything the interpreter cannot
// evaluate: an unknown "$"-prefixed operator, or a $gt/$gte/$lt/$lte
// operand that isn't numeric or a string. Validate never touches a
// document, so it can run before any state is read (spec §4.4's
// "validation purity" requirement).
func Validate(filter *document.Object) error {
	return validateObject(filter)
}

func validateObject(obj *document.Object) error {
	if obj == nil {
		return nil
	}

	var err error

	obj.Range(func(key string, value document.Value) bool {
		err = validateField(key, value)
		return err == nil
	})

	return err
}

func validateField(key string, value document.Value) error {
	sub, ok := value.(*document.Object)
	if !ok {
		// bare scalar (or array) equality leaf: always valid.
		return nil
	}

	if !hasOperatorKey(sub) {
		// nested descent: the sub-object is itself a filter.
		return validateObject(sub)
	}

	return validateOperatorObject(key, sub)
}

func hasOperatorKey(obj *document.Object) bool {
	found := false

	obj.Range(func(key string, _ document.Value) bool {
		if strings.HasPrefix(key, "$") {
			found = true
			return false
		}

		return true
	})

	return found
}

func validateOperatorObject(field string, obj *document.Object) error {
	var err error

	obj.Range(func(op string, operand document.Value) bool {
		if !strings.HasPrefix(op, "$") {
			err = bisonerr.New(bisonerr.InvalidQuery,
				"field %q: operator object cannot mix plain keys with operators (got %q)", field, op)
			return false
		}

		if !recognizedOperators[op] {
			err = bisonerr.New(bisonerr.InvalidQuery, "field %q: unknown operator %q", field, op)
			return false
		}

		if isOrderingOperator(op) {
			if _, ok := document.AsFloat(operand); !ok {
				if _, ok := operand.(string); !ok {
					err = bisonerr.New(bisonerr.InvalidQuery,
						"field %q: operator %q requires a numeric or string operand", field, op)
					return false
				}
			}
		}

		return true
	})

	return err
}

func isOrderingOperator(op string) bool {
	switch op {
	case "$gt", "$gte", "$lt", "$lte":
		return true
	default:
		return false
	}
}

// Match reports whether doc satisfies filter. Callers must call Validate
// first; Match assumes the filter has already been validated and never
// itself returns a validation error.
func Match(doc *document.Object, filter *document.Object) bool {
	if filter.Len() == 0 {
		return true
	}

	matched := true

	filter.Range(func(key string, spec document.Value) bool {
		if !matchField(doc, key, spec) {
			matched = false
			return false
		}

		return true
	})

	return matched
}

func matchField(doc *document.Object, key string, spec document.Value) bool {
	actual, present := document.Get(doc, document.ParsePath(key))

	sub, ok := spec.(*document.Object)
	if !ok {
		// bare scalar/array equality.
		return present && document.Equal(actual, spec)
	}

	if !hasOperatorKey(sub) {
		// nested descent: doc's value at key must itself be an Object.
		child, ok := actual.(*document.Object)
		if !present || !ok {
			return false
		}

		return Match(child, sub)
	}

	return matchOperators(actual, present, sub)
}

func matchOperators(actual document.Value, present bool, ops *document.Object) bool {
	result := true

	ops.Range(func(op string, operand document.Value) bool {
		if !matchOperator(op, actual, present, operand) {
			result = false
			return false
		}

		return true
	})

	return result
}

// matchOperator evaluates a single "$op" constraint. A missing field
// (present=false) behaves as if its value were null for $eq/$ne, and
// never satisfies an ordering operator.
func matchOperator(op string, actual document.Value, present bool, operand document.Value) bool {
	var value document.Value
	if present {
		value = actual
	}

	switch op {
	case "$eq":
		return document.Equal(value, operand)
	case "$ne":
		return !document.Equal(value, operand)
	case "$exists":
		return present == isTruthy(operand)
	case "$gt":
		return present && document.Compare(value, operand) == document.Greater
	case "$gte":
		return present && (document.Compare(value, operand) == document.Greater || document.Compare(value, operand) == document.Equal)
	case "$lt":
		return present && document.Compare(value, operand) == document.Less
	case "$lte":
		return present && (document.Compare(value, operand) == document.Less || document.Compare(value, operand) == document.Equal)
	default:
		return false
	}
}

func isTruthy(v document.Value) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case int64:
		return t != 0
	case float64:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}

// Find validates filter and returns the subsequence of docs matching it,
// in their original order (spec §4.4).
func Find(docs []*document.Object, filter *document.Object) ([]*document.Object, error) {
	if err := Validate(filter); err != nil {
		return nil, err
	}

	result := make([]*document.Object, 0, len(docs))

	for _, doc := range docs {
		if Match(doc, filter) {
			result = append(result, doc)
		}
	}

	return result, nil
}
