package render

import (
	"strings"

	"git.home.luguber.info/inful/docweaver/internal/sanitize"
)

// contentKey is the wrapper key some model responses put their real payload
// under, often as a JSON-encoded string.
const contentKey = "content"

// PayloadFromBody turns one fragment body into a renderable payload.
// Structured JSON is sanitized and unwrapped; a body that is not JSON at all
// is treated as plain markdown prose under the catch-all section.
func PayloadFromBody(body []byte) *sanitize.Object {
	obj, err := sanitize.Payload(body)
	if err != nil {
		doc := sanitize.NewObject()
		if prose := strings.TrimSpace(string(body)); prose != "" {
			doc.Set(ExtraContentKey, prose)
		}
		return doc
	}
	return UnwrapContent(obj)
}

// UnwrapContent resolves the content wrapper: if the top-level object carries
// a "content" key, everything operates on the unwrapped value. A string
// content that parses as JSON becomes the payload (converting escaped
// newlines, quotes, and backslashes on the way); one that doesn't is prose.
// Top-level siblings the inner object does not already define are carried
// over so run-metadata exclusion still sees them.
func UnwrapContent(obj *sanitize.Object) *sanitize.Object {
	v, ok := obj.Get(contentKey)
	if !ok {
		return obj
	}

	var inner *sanitize.Object
	switch t := v.(type) {
	case *sanitize.Object:
		inner = t
	case string:
		if parsed, err := sanitize.Payload([]byte(t)); err == nil {
			inner = parsed
		} else {
			inner = sanitize.NewObject()
			if prose := strings.TrimSpace(t); prose != "" {
				inner.Set(ExtraContentKey, prose)
			}
		}
	default:
		// A non-string, non-object content value renders as a regular
		// section; leave the payload as-is.
		return obj
	}

	for _, key := range obj.Keys() {
		if key == contentKey || inner.Has(key) {
			continue
		}
		sibling, _ := obj.Get(key)
		inner.Set(key, sibling)
	}
	return inner
}

// MergePayloads combines the parsed payloads of a document's fragments in
// chain order into one renderable object: each key appears once, in
// first-seen order, with later fragments' values concatenated under it.
// The result renders each section header exactly once with the chain's
// content in order, and re-merging the same inputs is byte-stable.
func MergePayloads(payloads []*sanitize.Object) *sanitize.Object {
	merged := sanitize.NewObject()
	for _, payload := range payloads {
		if payload == nil {
			continue
		}
		for _, key := range payload.Keys() {
			v, _ := payload.Get(key)
			if Classify(v) == ShapeEmpty {
				continue
			}
			existing, ok := merged.Get(key)
			if !ok {
				merged.Set(key, v)
				continue
			}
			merged.Set(key, combine(existing, v))
		}
	}
	return merged
}

// combine appends a later fragment's value onto an earlier one.
func combine(a, b sanitize.Value) sanitize.Value {
	as, aIsString := a.(string)
	bs, bIsString := b.(string)
	if aIsString && bIsString {
		return as + "\n\n" + bs
	}
	return append(toList(a), toList(b)...)
}

func toList(v sanitize.Value) []sanitize.Value {
	if list, ok := v.([]sanitize.Value); ok {
		out := make([]sanitize.Value, len(list))
		copy(out, list)
		return out
	}
	return []sanitize.Value{v}
}
