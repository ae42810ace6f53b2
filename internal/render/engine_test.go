package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docweaver/internal/sanitize"
)

const businessCaseTemplate = `{{#section:executive_summary}}
# Executive Summary
{executive_summary}
{{/section:executive_summary}}

{{#section:market_opportunity}}
# Market Opportunity
{market_opportunity}
{{/section:market_opportunity}}

{{#section:services}}
# Services
{services}
{{/section:services}}

{{#section:components}}
# Components
{components}
{{/section:components}}

{{#section:_extra_content}}
# Additional Content
{_extra_content}
{{/section:_extra_content}}
`

func mustTemplate(t *testing.T, text string) *Template {
	t.Helper()
	tpl, err := ParseTemplate(text)
	require.NoError(t, err)
	return tpl
}

func mustPayload(t *testing.T, raw string) *sanitize.Object {
	t.Helper()
	obj, err := sanitize.Payload([]byte(raw))
	require.NoError(t, err)
	return obj
}

func TestRenderScalarSections(t *testing.T) {
	tpl := mustTemplate(t, businessCaseTemplate)
	payload := mustPayload(t, `{
		"executive_summary": "A concise summary.",
		"market_opportunity": "A large market."
	}`)

	out, err := Render(tpl, payload)
	require.NoError(t, err)

	assert.Contains(t, out, "# Executive Summary\nA concise summary.")
	assert.Contains(t, out, "# Market Opportunity\nA large market.")
	assert.NotContains(t, out, "# Services", "absent key must not emit a header")
	assert.NotContains(t, out, "{executive_summary}")
}

func TestRenderStringListAsLines(t *testing.T) {
	tpl := mustTemplate(t, businessCaseTemplate)
	payload := mustPayload(t, `{"services": ["A: x", "B: y"]}`)

	out, err := Render(tpl, payload)
	require.NoError(t, err)

	assert.Contains(t, out, "# Services\nA: x\nB: y")
	assert.NotContains(t, out, `"`, "no raw JSON punctuation in output")
	assert.NotContains(t, out, "[")
}

func TestRenderObjectListAsSubBlocks(t *testing.T) {
	tpl := mustTemplate(t, businessCaseTemplate)
	payload := mustPayload(t, `{"components": [
		{"name": "API Gateway", "technology": "managed gateway", "responsibilities": ["routing", "auth"]},
		{"name": "Worker Pool", "technology": "queue consumers"}
	]}`)

	out, err := Render(tpl, payload)
	require.NoError(t, err)

	assert.Contains(t, out, "**Name:** API Gateway")
	assert.Contains(t, out, "**Technology:** managed gateway")
	assert.Contains(t, out, "**Responsibilities:**\n- routing\n- auth")
	assert.Contains(t, out, "**Name:** Worker Pool")
	assert.NotContains(t, out, `{"`, "no raw JSON leakage")
	// No horizontal rules between array items.
	assert.NotContains(t, out, "\n---\n")
	// Field order follows the source JSON, and the first object precedes
	// the second.
	assert.Less(t, strings.Index(out, "API Gateway"), strings.Index(out, "Worker Pool"))
}

func TestRenderExcludesMetadataKeys(t *testing.T) {
	tpl := mustTemplate(t, businessCaseTemplate+`
{{#section:stop_reason}}
# Stop Reason
{stop_reason}
{{/section:stop_reason}}
`)
	payload := mustPayload(t, `{
		"executive_summary": "Summary.",
		"continuation_needed": true,
		"stop_reason": "length",
		"finish_reason": "length"
	}`)

	out, err := Render(tpl, payload)
	require.NoError(t, err)

	assert.Contains(t, out, "Summary.")
	assert.NotContains(t, out, "continuation_needed")
	assert.NotContains(t, out, "stop_reason")
	assert.NotContains(t, out, "finish_reason")
	assert.NotContains(t, out, "# Stop Reason", "metadata is excluded even when the template asks for it")
}

func TestRenderIsDeterministic(t *testing.T) {
	tpl := mustTemplate(t, businessCaseTemplate)
	payload := mustPayload(t, `{
		"executive_summary": "Summary.",
		"services": ["one", "two"],
		"components": [{"name": "A"}, {"name": "B"}]
	}`)

	first, err := Render(tpl, payload)
	require.NoError(t, err)
	second, err := Render(tpl, payload)
	require.NoError(t, err)
	assert.Equal(t, first, second, "repeated rendering must be byte-identical")
}

func TestRenderSectionOrderFollowsTemplate(t *testing.T) {
	tpl := mustTemplate(t, businessCaseTemplate)
	// Payload declares keys in the opposite order of the template.
	payload := mustPayload(t, `{
		"market_opportunity": "Market.",
		"executive_summary": "Summary."
	}`)

	out, err := Render(tpl, payload)
	require.NoError(t, err)
	assert.Less(t, strings.Index(out, "# Executive Summary"), strings.Index(out, "# Market Opportunity"))
}

const featureSpecTemplate = `{{#section:feature_name}}
# Feature Name
{feature_name}
{{/section:feature_name}}

{{#section:objective}}
## Feature Objective
{objective}
{{/section:objective}}

{{#section:user_stories}}
## User Stories
{user_stories}
{{/section:user_stories}}
`

func TestPerItemMode(t *testing.T) {
	tpl := mustTemplate(t, featureSpecTemplate)
	payload := mustPayload(t, `{"features": [
		{"feature_name": "Accounts", "objective": "register and log in", "user_stories": ["As a user, I want to sign up"]},
		{"feature_name": "Notes", "objective": "create notes", "user_stories": ["As a user, I want to write a note"]},
		{"feature_name": "Reminders", "objective": "timely nudges", "user_stories": ["As a user, I want reminders"]}
	]}`)

	out, err := Render(tpl, payload)
	require.NoError(t, err)

	assert.Equal(t, 3, strings.Count(out, "# Feature Name"), "full template repeated once per item")
	assert.Equal(t, 3, strings.Count(out, "## Feature Objective"))
	assert.Equal(t, 2, strings.Count(out, "\n---\n"), "single consistent delimiter between items")
	assert.Contains(t, out, "Accounts")
	assert.Contains(t, out, "Notes")
	assert.Contains(t, out, "Reminders")
	assert.Less(t, strings.Index(out, "Accounts"), strings.Index(out, "Notes"))
	assert.Less(t, strings.Index(out, "Notes"), strings.Index(out, "Reminders"))
	assert.NotContains(t, out, `{"`)
}

func TestPerItemModeNotTriggeredWhenTemplateHasArrayKey(t *testing.T) {
	tpl := mustTemplate(t, `{{#section:features}}
# Features
{features}
{{/section:features}}
`)
	payload := mustPayload(t, `{"features": [{"feature_name": "Accounts"}]}`)

	out, err := Render(tpl, payload)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "# Features"), "array key addressed directly renders as one section")
	assert.Contains(t, out, "**Feature Name:** Accounts")
}

func TestPerItemModeIgnoresMetadataSiblings(t *testing.T) {
	tpl := mustTemplate(t, featureSpecTemplate)
	payload := mustPayload(t, `{
		"features": [{"feature_name": "Accounts", "objective": "x"}, {"feature_name": "Notes", "objective": "y"}],
		"stop_reason": "stop"
	}`)

	out, err := Render(tpl, payload)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "# Feature Name"))
}

func TestUnwrapContentString(t *testing.T) {
	tpl := mustTemplate(t, businessCaseTemplate)
	// Double-encoded payload: outer object wraps a JSON-encoded string.
	body := []byte(`{"content": "{\"executive_summary\": \"inner summary\"}"}`)
	payload := PayloadFromBody(body)

	out, err := Render(tpl, payload)
	require.NoError(t, err)
	assert.Contains(t, out, "# Executive Summary\ninner summary")
}

func TestPayloadFromBodyProse(t *testing.T) {
	tpl := mustTemplate(t, businessCaseTemplate)
	payload := PayloadFromBody([]byte("Just some markdown prose.\n\nWith two paragraphs."))

	out, err := Render(tpl, payload)
	require.NoError(t, err)
	assert.Contains(t, out, "# Additional Content\nJust some markdown prose.")
}

func TestUnwrapContentCarriesMetadataSiblings(t *testing.T) {
	body := []byte(`{"content": "{\"executive_summary\": \"s\"}", "stop_reason": "length"}`)
	payload := PayloadFromBody(body)
	assert.True(t, payload.Has("stop_reason"), "siblings carried so exclusion still sees them")

	tpl := mustTemplate(t, businessCaseTemplate)
	out, err := Render(tpl, payload)
	require.NoError(t, err)
	assert.NotContains(t, out, "stop_reason")
}

func TestMergePayloadsChainOrder(t *testing.T) {
	p1 := mustPayload(t, `{"executive_summary": "X1", "services": ["a"]}`)
	p2 := mustPayload(t, `{"executive_summary": "X2", "services": ["b"]}`)
	p3 := mustPayload(t, `{"executive_summary": "X3"}`)

	merged := MergePayloads([]*sanitize.Object{p1, p2, p3})

	v, _ := merged.Get("executive_summary")
	assert.Equal(t, "X1\n\nX2\n\nX3", v)
	services, _ := merged.Get("services")
	assert.Equal(t, []sanitize.Value{"a", "b"}, services)

	tpl := mustTemplate(t, businessCaseTemplate)
	out, err := Render(tpl, merged)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "# Executive Summary"), "merged sections render one header")
	assert.Less(t, strings.Index(out, "X1"), strings.Index(out, "X2"))
	assert.Less(t, strings.Index(out, "X2"), strings.Index(out, "X3"))
}

func TestMergePayloadsCumulative(t *testing.T) {
	tpl := mustTemplate(t, businessCaseTemplate)
	p1 := mustPayload(t, `{"executive_summary": "C1"}`)
	p2 := mustPayload(t, `{"executive_summary": "C2"}`)

	before, err := Render(tpl, MergePayloads([]*sanitize.Object{p1, p2}))
	require.NoError(t, err)

	p3 := mustPayload(t, `{"executive_summary": "C3"}`)
	after, err := Render(tpl, MergePayloads([]*sanitize.Object{p1, p2, p3}))
	require.NoError(t, err)

	assert.Contains(t, after, "C1")
	assert.Contains(t, after, "C2")
	assert.Contains(t, after, "C3")
	assert.True(t, strings.HasPrefix(after, strings.TrimSuffix(before, "\n")),
		"re-render with a new continuation preserves prior content as a prefix")
}

func TestParseTemplateUnterminatedSection(t *testing.T) {
	_, err := ParseTemplate(`{{#section:open}}
# Never Closed
`)
	assert.Error(t, err)
}

func TestTemplateSectionKeys(t *testing.T) {
	tpl := mustTemplate(t, businessCaseTemplate)
	assert.Equal(t, []string{
		"executive_summary", "market_opportunity", "services", "components", "_extra_content",
	}, tpl.SectionKeys())
	assert.True(t, tpl.HasSection("services"))
	assert.False(t, tpl.HasSection("features"))
}

func TestClassifyShapes(t *testing.T) {
	cases := []struct {
		raw  string
		key  string
		want Shape
	}{
		{`{"v": "text"}`, "v", ShapeScalar},
		{`{"v": 3.5}`, "v", ShapeScalar},
		{`{"v": true}`, "v", ShapeScalar},
		{`{"v": ""}`, "v", ShapeEmpty},
		{`{"v": []}`, "v", ShapeEmpty},
		{`{"v": null}`, "v", ShapeEmpty},
		{`{"v": ["a", "b"]}`, "v", ShapeStringList},
		{`{"v": [{"a": 1}]}`, "v", ShapeObjectList},
		{`{"v": ["a", {"b": 2}]}`, "v", ShapeMixedList},
		{`{"v": {"a": 1}}`, "v", ShapeObject},
	}
	for _, tc := range cases {
		obj := mustPayload(t, tc.raw)
		v, _ := obj.Get(tc.key)
		assert.Equal(t, tc.want, Classify(v), "raw %s", tc.raw)
	}
}

func TestFormatScalarNumbers(t *testing.T) {
	assert.Equal(t, "2", formatScalar(float64(2)))
	assert.Equal(t, "2.5", formatScalar(2.5))
	assert.Equal(t, "true", formatScalar(true))
}
