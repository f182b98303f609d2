// Package update implements the update interpreter (spec §4.5): applying a
// mutation expression — structurally a mirror of a filter — to a document
// in place.
package update

import (
	"strings"

	"github.com/bisondb/bison/internal/bisonerr"
	"github.com/bisondb/bison/internal/document"
)

var recognizedOperators = map[string]bool{
	"$set":       true,
	"$inc":       true,
	"$dec":       true,
	"$add":       true,
	"$substract": true,
	"$subtract":  true, // accepted alias for $substract (spec §9 Open Question (a))
	"$delete":    true,
}

// Validate walks expr and rejects an unknown "$"-prefixed operator or a
// $add/$substract operand that isn't numeric, before any document is
// touched.
func Validate(expr *document.Object) error {
	return validateObject(expr)
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
		return nil
	}

	if !hasOperatorKey(sub) {
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
			err = bisonerr.New(bisonerr.InvalidUpdate,
				"field %q: operator object cannot mix plain keys with operators (got %q)", field, op)
			return false
		}

		if !recognizedOperators[op] {
			err = bisonerr.New(bisonerr.InvalidUpdate, "field %q: unknown operator %q", field, op)
			return false
		}

		if requiresNumericOperand(op) {
			if _, ok := document.AsFloat(operand); !ok {
				err = bisonerr.New(bisonerr.InvalidUpdate,
					"field %q: operator %q requires a numeric operand", field, op)
				return false
			}
		}

		return true
	})

	return err
}

func requiresNumericOperand(op string) bool {
	switch op {
	case "$add", "$substract", "$subtract":
		return true
	default:
		return false
	}
}

// Apply mutates doc according to expr and reports whether anything in doc
// actually changed. Callers must call Validate first; Apply assumes expr
// is already valid.
func Apply(doc *document.Object, expr *document.Object) (bool, error) {
	return applyObject(doc, nil, expr)
}

func applyObject(doc *document.Object, prefix document.Path, expr *document.Object) (changed bool, err error) {
	expr.Range(func(key string, v document.Value) bool {
		path := appendPath(prefix, key)

		sub, ok := v.(*document.Object)
		if !ok {
			if setErr := document.Set(doc, path, v); setErr != nil {
				err = bisonerr.Wrap(bisonerr.InvalidPath, setErr, "$set at %q", path.String())
				return false
			}

			changed = true

			return true
		}

		if !hasOperatorKey(sub) {
			var c bool

			c, err = applyObject(doc, path, sub)
			changed = changed || c

			return err == nil
		}

		var c bool

		c, err = applyOperators(doc, path, sub)
		changed = changed || c

		return err == nil
	})

	return changed, err
}

func appendPath(prefix document.Path, key string) document.Path {
	path := make(document.Path, len(prefix), len(prefix)+1)
	copy(path, prefix)

	return append(path, key)
}

func applyOperators(doc *document.Object, path document.Path, ops *document.Object) (changed bool, err error) {
	ops.Range(func(op string, operand document.Value) bool {
		var c bool

		c, err = applyOperator(doc, path, op, operand)
		changed = changed || c

		return err == nil
	})

	return changed, err
}

func applyOperator(doc *document.Object, path document.Path, op string, operand document.Value) (bool, error) {
	switch op {
	case "$set":
		if err := document.Set(doc, path, operand); err != nil {
			return false, bisonerr.Wrap(bisonerr.InvalidPath, err, "$set at %q", path.String())
		}

		return true, nil

	case "$delete":
		existed := has(doc, path)
		document.Delete(doc, path)

		return existed, nil

	case "$inc":
		return applyInc(doc, path)

	case "$dec":
		return applyDec(doc, path)

	case "$add":
		return applyDelta(doc, path, operand, 1)

	case "$substract", "$subtract":
		return applyDelta(doc, path, operand, -1)

	default:
		return false, bisonerr.New(bisonerr.InvalidUpdate, "unknown operator %q", op)
	}
}

func has(doc *document.Object, path document.Path) bool {
	_, ok := document.Get(doc, path)
	return ok
}

// numericLeaf resolves the value at path and reports its numeric value as
// both int64 and float64 forms, along with whether it was stored as an
// Integer.
func numericLeaf(doc *document.Object, path document.Path) (i int64, f float64, isInt bool, err error) {
	v, ok := document.Get(doc, path)
	if !ok {
		return 0, 0, false, bisonerr.New(bisonerr.InvalidUpdate, "path %q does not exist", path.String())
	}

	switch t := v.(type) {
	case int64:
		return t, float64(t), true, nil
	case float64:
		return 0, t, false, nil
	default:
		return 0, 0, false, bisonerr.New(bisonerr.InvalidUpdate, "path %q is not numeric", path.String())
	}
}

func applyInc(doc *document.Object, path document.Path) (bool, error) {
	i, _, isInt, err := numericLeaf(doc, path)
	if err != nil {
		return false, err
	}

	if !isInt {
		return false, bisonerr.New(bisonerr.InvalidUpdate, "$inc requires an integer leaf at %q", path.String())
	}

	return true, document.Set(doc, path, i+1)
}

func applyDec(doc *document.Object, path document.Path) (bool, error) {
	i, f, isInt, err := numericLeaf(doc, path)
	if err != nil {
		return false, err
	}

	if isInt {
		return true, document.Set(doc, path, i-1)
	}

	return true, document.Set(doc, path, f-1)
}

func applyDelta(doc *document.Object, path document.Path, operand document.Value, sign int64) (bool, error) {
	i, f, isInt, err := numericLeaf(doc, path)
	if err != nil {
		return false, err
	}

	operandInt, operandIsInt := operand.(int64)

	operandFloat, ok := document.AsFloat(operand)
	if !ok {
		return false, bisonerr.New(bisonerr.InvalidUpdate, "operand at %q must be numeric", path.String())
	}

	if isInt && operandIsInt {
		return true, document.Set(doc, path, i+sign*operandInt)
	}

	return true, document.Set(doc, path, f+float64(sign)*operandFloat)
}

// ApplyAll applies expr to every document in docs that matches filter
// (matchFn returns true for all docs when filter is empty/nil), returning
// the subsequence of documents that were actually mutated, in their
// original order. Validate is called once up front.
func ApplyAll(docs []*document.Object, expr *document.Object, matchFn func(*document.Object) bool) ([]*document.Object, error) {
	if err := Validate(expr); err != nil {
		return nil, err
	}

	var mutated []*document.Object

	for _, doc := range docs {
		if matchFn != nil && !matchFn(doc) {
			continue
		}

		changed, err := Apply(doc, expr)
		if err != nil {
			return nil, err
		}

		if changed {
			mutated = append(mutated, doc)
		}
	}

	return mutated, nil
}
