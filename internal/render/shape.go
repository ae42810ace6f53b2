package render

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"git.home.luguber.info/inful/docweaver/internal/sanitize"
)

// Shape is the explicit tagged variant the renderer dispatches on. It is
// computed once per value by static inspection, never re-derived mid-render.
type Shape int

const (
	// ShapeEmpty covers absent values, empty strings, empty lists, and
	// objects with no renderable fields. Empty sections are omitted.
	ShapeEmpty Shape = iota
	// ShapeScalar is a string, number, or boolean.
	ShapeScalar
	// ShapeStringList is a list whose elements are all scalars.
	ShapeStringList
	// ShapeObjectList is a list whose elements are all objects.
	ShapeObjectList
	// ShapeObject is a single nested object.
	ShapeObject
	// ShapeMixedList is a list mixing scalars and objects; each element is
	// rendered by its own shape.
	ShapeMixedList
)

// Classify computes the shape of a decoded value.
func Classify(v sanitize.Value) Shape {
	switch t := v.(type) {
	case nil:
		return ShapeEmpty
	case string:
		if strings.TrimSpace(t) == "" {
			return ShapeEmpty
		}
		return ShapeScalar
	case float64, bool:
		return ShapeScalar
	case *sanitize.Object:
		if t == nil || t.Len() == 0 {
			return ShapeEmpty
		}
		return ShapeObject
	case []sanitize.Value:
		if len(t) == 0 {
			return ShapeEmpty
		}
		objects, scalars := 0, 0
		for _, el := range t {
			switch el.(type) {
			case *sanitize.Object:
				objects++
			default:
				scalars++
			}
		}
		switch {
		case objects == len(t):
			return ShapeObjectList
		case scalars == len(t):
			return ShapeStringList
		default:
			return ShapeMixedList
		}
	default:
		return ShapeEmpty
	}
}

// formatScalar renders a scalar value verbatim. Numbers drop insignificant
// trailing zeros so re-encoding never perturbs output.
func formatScalar(v sanitize.Value) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

var titleCaser = cases.Title(language.English)

// fieldLabel humanizes an object field name: "market_opportunity" becomes
// "Market Opportunity".
func fieldLabel(key string) string {
	cleaned := strings.NewReplacer("_", " ", "-", " ").Replace(key)
	return titleCaser.String(strings.TrimSpace(cleaned))
}
