package render

import (
	"regexp"
	"strings"

	"git.home.luguber.info/inful/docweaver/internal/sanitize"
)

// ExtraContentKey is the catch-all section for fragment bodies that carried
// plain prose instead of structured JSON.
const ExtraContentKey = "_extra_content"

// metadataKeys are run-control keys that must never appear in rendered
// output, regardless of template content.
var metadataKeys = []string{
	"continuation_needed",
	"stop_reason",
	"finish_reason",
	"more_output_needed",
}

// perItemDelimiter separates repeated template renditions in per-item mode.
const perItemDelimiter = "\n\n---\n\n"

// Render converts a payload into markdown using the template. The payload is
// expected to be unwrapped (see PayloadFromBody) and, for multi-fragment
// documents, merged in chain order (see MergePayloads).
func Render(tpl *Template, payload *sanitize.Object) (string, error) {
	doc := stripMetadata(payload)

	if items, ok := perItemMode(tpl, doc); ok {
		parts := make([]string, 0, len(items))
		for _, item := range items {
			parts = append(parts, renderOnce(tpl, item))
		}
		return normalize(strings.Join(parts, perItemDelimiter)), nil
	}

	return normalize(renderOnce(tpl, doc)), nil
}

// perItemMode reports whether the payload consists of exactly one top-level
// key holding an array of objects whose fields match the template's own
// sections. In that mode the whole template is rendered once per element.
func perItemMode(tpl *Template, doc *sanitize.Object) ([]*sanitize.Object, bool) {
	if doc.Len() != 1 {
		return nil, false
	}
	soleKey := doc.Keys()[0]
	if tpl.HasSection(soleKey) {
		// The template addresses the array key directly; render it as a
		// regular section instead.
		return nil, false
	}
	v, _ := doc.Get(soleKey)
	if Classify(v) != ShapeObjectList {
		return nil, false
	}
	list := v.([]sanitize.Value)
	items := make([]*sanitize.Object, 0, len(list))
	for _, el := range list {
		items = append(items, el.(*sanitize.Object))
	}
	// The template must reference the inner objects' fields.
	matched := false
	for _, key := range items[0].Keys() {
		if tpl.HasSection(key) {
			matched = true
			break
		}
	}
	if !matched {
		return nil, false
	}
	return items, true
}

func renderOnce(tpl *Template, doc *sanitize.Object) string {
	// Render every present, non-empty value once; sections and placeholders
	// then pull from this map.
	values := make(map[string]string, doc.Len())
	for _, key := range doc.Keys() {
		v, _ := doc.Get(key)
		if rendered := renderValue(v); rendered != "" {
			values[key] = rendered
		}
	}

	var b strings.Builder
	for _, node := range tpl.nodes {
		if node.key == "" {
			b.WriteString(node.body)
			continue
		}
		if values[node.key] == "" {
			continue // absent or empty: no empty headers
		}
		b.WriteString(substitute(node.body, values))
	}
	return b.String()
}

// renderValue renders a decoded value by its shape.
func renderValue(v sanitize.Value) string {
	switch Classify(v) {
	case ShapeEmpty:
		return ""
	case ShapeScalar:
		return strings.TrimSpace(formatScalar(v))
	case ShapeStringList:
		list := v.([]sanitize.Value)
		lines := make([]string, 0, len(list))
		for _, el := range list {
			if s := strings.TrimSpace(formatScalar(el)); s != "" {
				lines = append(lines, s)
			}
		}
		return strings.Join(lines, "\n")
	case ShapeObject:
		return renderObjectBlock(v.(*sanitize.Object))
	case ShapeObjectList:
		list := v.([]sanitize.Value)
		blocks := make([]string, 0, len(list))
		for _, el := range list {
			if block := renderObjectBlock(el.(*sanitize.Object)); block != "" {
				blocks = append(blocks, block)
			}
		}
		// Objects are separated by a blank line; no horizontal rules
		// between array items.
		return strings.Join(blocks, "\n\n")
	case ShapeMixedList:
		list := v.([]sanitize.Value)
		parts := make([]string, 0, len(list))
		for _, el := range list {
			if part := renderValue(el); part != "" {
				parts = append(parts, part)
			}
		}
		return strings.Join(parts, "\n")
	default:
		return ""
	}
}

// renderObjectBlock formats one object as a readable sub-block: a humanized
// field label plus the value per field, nested string arrays indented as
// list items. Field order follows the source JSON.
func renderObjectBlock(obj *sanitize.Object) string {
	var lines []string
	for _, key := range obj.Keys() {
		v, _ := obj.Get(key)
		label := fieldLabel(key)
		switch Classify(v) {
		case ShapeEmpty:
			continue
		case ShapeScalar:
			lines = append(lines, "**"+label+":** "+strings.TrimSpace(formatScalar(v)))
		case ShapeStringList:
			lines = append(lines, "**"+label+":**")
			for _, el := range v.([]sanitize.Value) {
				if s := strings.TrimSpace(formatScalar(el)); s != "" {
					lines = append(lines, "- "+s)
				}
			}
		case ShapeObject:
			if nested := renderObjectBlock(v.(*sanitize.Object)); nested != "" {
				lines = append(lines, "**"+label+":**", indent(nested, "  "))
			}
		case ShapeObjectList:
			var blocks []string
			for _, el := range v.([]sanitize.Value) {
				if block := renderObjectBlock(el.(*sanitize.Object)); block != "" {
					blocks = append(blocks, indent(block, "  "))
				}
			}
			if len(blocks) > 0 {
				lines = append(lines, "**"+label+":**", strings.Join(blocks, "\n"))
			}
		case ShapeMixedList:
			if part := renderValue(v); part != "" {
				lines = append(lines, "**"+label+":**", part)
			}
		}
	}
	return strings.Join(lines, "\n")
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}

func stripMetadata(payload *sanitize.Object) *sanitize.Object {
	doc := sanitize.NewObject()
	for _, key := range payload.Keys() {
		v, _ := payload.Get(key)
		doc.Set(key, v)
	}
	for _, key := range metadataKeys {
		doc.Delete(key)
	}
	return doc
}

var blankRunRe = regexp.MustCompile(`\n{3,}`)

// normalize collapses runs of blank lines left by omitted sections and
// guarantees a single trailing newline.
func normalize(s string) string {
	s = blankRunRe.ReplaceAllString(s, "\n\n")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return s + "\n"
}
