// Package render converts a parsed JSON payload into markdown using a
// section-based template. Rendering is deterministic: section iteration
// follows the template's declaration order and object fields keep their
// source order, so the same (payload, template) pair always produces
// byte-identical output.
package render

import (
	"fmt"
	"regexp"
	"strings"
)

// Template is a parsed markdown skeleton. Literal text is emitted verbatim;
// a {{#section:KEY}}...{{/section:KEY}} block is emitted only when KEY is
// present and non-empty in the payload, with {KEY} placeholders inside the
// block substituted by the rendered value.
type Template struct {
	nodes       []templateNode
	sectionKeys []string
}

type templateNode struct {
	// literal text when key is empty, otherwise a section block
	key  string
	body string
}

var sectionOpenRe = regexp.MustCompile(`\{\{#section:([^}]+)\}\}\n?`)

// ParseTemplate parses a section-based template. Section blocks must not
// nest; an unterminated block is an error.
func ParseTemplate(text string) (*Template, error) {
	tpl := &Template{}
	rest := text
	for {
		loc := sectionOpenRe.FindStringSubmatchIndex(rest)
		if loc == nil {
			if rest != "" {
				tpl.nodes = append(tpl.nodes, templateNode{body: rest})
			}
			break
		}
		if loc[0] > 0 {
			tpl.nodes = append(tpl.nodes, templateNode{body: rest[:loc[0]]})
		}
		key := rest[loc[2]:loc[3]]
		closer := "{{/section:" + key + "}}"
		after := rest[loc[1]:]
		end := strings.Index(after, closer)
		if end < 0 {
			return nil, fmt.Errorf("section %q is not terminated", key)
		}
		body := after[:end]
		rest = after[end+len(closer):]
		// Swallow the newline that followed the closing marker so an
		// omitted section leaves no blank residue.
		rest = strings.TrimPrefix(rest, "\n")

		tpl.nodes = append(tpl.nodes, templateNode{key: key, body: body})
		tpl.sectionKeys = append(tpl.sectionKeys, key)
	}
	return tpl, nil
}

// SectionKeys returns the section keys in declaration order.
func (t *Template) SectionKeys() []string {
	out := make([]string, len(t.sectionKeys))
	copy(out, t.sectionKeys)
	return out
}

// HasSection reports whether the template declares a section for key.
func (t *Template) HasSection(key string) bool {
	for _, k := range t.sectionKeys {
		if k == key {
			return true
		}
	}
	return false
}

var placeholderRe = regexp.MustCompile(`\{([A-Za-z0-9_&-]+)\}`)

// substitute replaces {KEY} placeholders in a section body. Placeholders
// with no rendered value are removed rather than left as literal syntax.
func substitute(body string, values map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(body, func(m string) string {
		key := m[1 : len(m)-1]
		return values[key]
	})
}
