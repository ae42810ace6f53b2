package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "git.home.luguber.info/inful/docweaver/internal/errors"
	"git.home.luguber.info/inful/docweaver/internal/files"
	"git.home.luguber.info/inful/docweaver/internal/fragment"
	"git.home.luguber.info/inful/docweaver/internal/metastore"
	"git.home.luguber.info/inful/docweaver/internal/notify"
	"git.home.luguber.info/inful/docweaver/internal/objectstore"
	"git.home.luguber.info/inful/docweaver/internal/queue"
	"git.home.luguber.info/inful/docweaver/internal/render"
	"git.home.luguber.info/inful/docweaver/internal/resolver"
)

const workerTemplate = `{{#section:executive_summary}}
# Executive Summary
{executive_summary}
{{/section:executive_summary}}

{{#section:services}}
# Services
{services}
{{/section:services}}
`

type stubTemplates map[string]*render.Template

func (s stubTemplates) Lookup(_, documentKey string) (*render.Template, bool) {
	tpl, ok := s[documentKey]
	return tpl, ok
}

type fixture struct {
	meta    *metastore.SQLiteStore
	objects *objectstore.MemStore
	gateway *files.Gateway
	events  *notify.Recorder
	worker  *Worker
	seq     int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	meta, err := metastore.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = meta.Close() })

	tpl, err := render.ParseTemplate(workerTemplate)
	require.NoError(t, err)

	objects := objectstore.NewMemStore()
	gateway := files.NewGateway(objects, meta, "contributions", nil)
	events := notify.NewRecorder()

	fx := &fixture{meta: meta, objects: objects, gateway: gateway, events: events}
	fx.worker = New(Deps{
		Resolver:  resolver.New(meta, objects, nil),
		Templates: stubTemplates{"business_case": tpl},
		Gateway:   gateway,
		Notifier:  events,
	})
	return fx
}

func (fx *fixture) addFragment(t *testing.T, id, parentID, rootID, body string) *fragment.Fragment {
	return fx.addFragmentOfKind(t, id, parentID, rootID, "business_case", body)
}

func (fx *fixture) addFragmentOfKind(t *testing.T, id, parentID, rootID, key, body string) *fragment.Fragment {
	t.Helper()
	fx.seq++
	root := rootID
	if root == "" {
		root = id
	}
	f := &fragment.Fragment{
		ID:            id,
		SessionID:     "sess-1",
		Stage:         "thesis",
		Iteration:     1,
		EditVersion:   fx.seq,
		CreatedAt:     time.Unix(1700000000, int64(fx.seq)*1e6).UTC(),
		TargetID:      parentID,
		IsLatestEdit:  true,
		Relationships: fragment.Relationships{fragment.StageKey("thesis"): root},
		DocumentKey:   key,
		ModelSlug:     "gpt-5",
	}
	spec := files.PathSpec{ProjectID: "proj-1", SessionID: "sess-1", Iteration: 1, Stage: "thesis"}
	require.NoError(t, fx.gateway.StoreFragment(context.Background(), spec, f, []byte(body)))
	return f
}

func renderRequest(identity string) queue.RenderRequest {
	return queue.RenderRequest{
		ProjectID:            "proj-1",
		SessionID:            "sess-1",
		IterationNumber:      1,
		StageSlug:            "thesis",
		DocumentIdentity:     identity,
		DocumentKey:          "business_case",
		SourceContributionID: identity,
	}
}

func (fx *fixture) rendered(t *testing.T) string {
	t.Helper()
	spec := files.PathSpec{ProjectID: "proj-1", SessionID: "sess-1", Iteration: 1, Stage: "thesis"}
	body, err := fx.gateway.LoadRendered(context.Background(), spec, "business_case")
	require.NoError(t, err)
	return string(body)
}

func TestProcessRenderRequestOrdersChain(t *testing.T) {
	fx := newFixture(t)
	fx.addFragment(t, "root", "", "", `{"executive_summary": "X1"}`)
	fx.addFragment(t, "c1", "root", "root", `{"executive_summary": "X2"}`)
	fx.addFragment(t, "c2", "c1", "root", `{"executive_summary": "X3"}`)

	require.NoError(t, fx.worker.ProcessRenderRequest(context.Background(), renderRequest("root")))

	out := fx.rendered(t)
	assert.Equal(t, 1, strings.Count(out, "# Executive Summary"), "merged chain renders one header")
	assert.Less(t, strings.Index(out, "X1"), strings.Index(out, "X2"))
	assert.Less(t, strings.Index(out, "X2"), strings.Index(out, "X3"))

	assert.Len(t, fx.events.ByType(notify.EventRenderStarted), 1)
	assert.Len(t, fx.events.ByType(notify.EventRenderChunkCompleted), 1)
	completed := fx.events.ByType(notify.EventRenderCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, "Executive Summary", completed[0].Title)
	assert.Contains(t, completed[0].Path, "documents/business_case.md")
}

func TestProcessRenderRequestIdempotent(t *testing.T) {
	fx := newFixture(t)
	fx.addFragment(t, "root", "", "", `{"executive_summary": "once"}`)

	require.NoError(t, fx.worker.ProcessRenderRequest(context.Background(), renderRequest("root")))
	first := fx.rendered(t)
	require.NoError(t, fx.worker.ProcessRenderRequest(context.Background(), renderRequest("root")))
	assert.Equal(t, first, fx.rendered(t), "re-render from the same fragment set is byte-identical")
}

func TestProcessRenderRequestCumulativeGrowth(t *testing.T) {
	fx := newFixture(t)
	fx.addFragment(t, "root", "", "", `{"executive_summary": "C1"}`)
	require.NoError(t, fx.worker.ProcessRenderRequest(context.Background(), renderRequest("root")))
	before := fx.rendered(t)

	fx.addFragment(t, "c1", "root", "root", `{"executive_summary": "C2", "services": ["one"]}`)
	require.NoError(t, fx.worker.ProcessRenderRequest(context.Background(), renderRequest("root")))

	after := fx.rendered(t)
	assert.Contains(t, after, "C1")
	assert.Contains(t, after, "C2")
	assert.Contains(t, after, "# Services\none")
	assert.NotEqual(t, before, after)
}

func TestProcessRenderRequestProseFragment(t *testing.T) {
	fx := newFixture(t)
	fx.addFragment(t, "root", "", "", `{"executive_summary": "structured"}`)
	fx.addFragment(t, "c1", "root", "root", "Plain markdown continuation.")

	tpl, err := render.ParseTemplate(workerTemplate + `
{{#section:_extra_content}}
# Additional Content
{_extra_content}
{{/section:_extra_content}}
`)
	require.NoError(t, err)
	fx.worker.templates = stubTemplates{"business_case": tpl}

	require.NoError(t, fx.worker.ProcessRenderRequest(context.Background(), renderRequest("root")))
	out := fx.rendered(t)
	assert.Contains(t, out, "structured")
	assert.Contains(t, out, "# Additional Content\nPlain markdown continuation.")
}

func TestFailedRenderLeavesPreviousArtifact(t *testing.T) {
	fx := newFixture(t)
	fx.addFragment(t, "root", "", "", `{"executive_summary": "good"}`)
	require.NoError(t, fx.worker.ProcessRenderRequest(context.Background(), renderRequest("root")))
	before := fx.rendered(t)

	f := fx.addFragment(t, "c1", "root", "root", `{"executive_summary": "never rendered"}`)
	fx.objects.FailDownload(f.StorageBucket, f.StoragePath, errors.New("bucket gone"))

	err := fx.worker.ProcessRenderRequest(context.Background(), renderRequest("root"))
	require.Error(t, err)
	assert.True(t, derrors.IsCategory(err, derrors.CategoryContentUnavailable))
	assert.Equal(t, before, fx.rendered(t), "failed render leaves the previous artifact untouched")

	failed := fx.events.ByType(notify.EventRenderFailed)
	require.Len(t, failed, 1)
	assert.NotEmpty(t, failed[0].Reason)
}

func TestProcessRenderRequestUnknownDocument(t *testing.T) {
	fx := newFixture(t)
	err := fx.worker.ProcessRenderRequest(context.Background(), renderRequest("missing"))
	require.Error(t, err)
	assert.True(t, derrors.IsCategory(err, derrors.CategoryDocumentNotFound))
}

func TestProcessRenderRequestNoTemplate(t *testing.T) {
	fx := newFixture(t)
	fx.addFragment(t, "root", "", "", `{"executive_summary": "x"}`)
	req := renderRequest("root")
	req.DocumentKey = "undeclared_kind"

	err := fx.worker.ProcessRenderRequest(context.Background(), req)
	require.Error(t, err)
	assert.True(t, derrors.IsCategory(err, derrors.CategoryRender))
}

func TestProcessRenderRequestValidatesFirst(t *testing.T) {
	fx := newFixture(t)
	req := renderRequest("root")
	req.DocumentKey = ""

	err := fx.worker.ProcessRenderRequest(context.Background(), req)
	require.Error(t, err)
	assert.True(t, derrors.IsCategory(err, derrors.CategoryMissingDocumentKey))
	assert.Empty(t, fx.events.Events(), "validation happens before any side effect")
}

type kindSet map[string]bool

func (k kindSet) IsMarkdownKind(key string) bool { return k[key] }

func TestSweepEnqueuesActiveMarkdownDocuments(t *testing.T) {
	fx := newFixture(t)
	fx.addFragment(t, "root", "", "", `{"executive_summary": "x"}`)

	fx.addFragmentOfKind(t, "raw-root", "", "", "raw_analysis", `{"data": 1}`)

	q := queue.NewMemQueue()
	sweeper, err := NewSweeper(fx.meta, q, kindSet{"business_case": true},
		time.Minute, 100*365*24*time.Hour, nil)
	require.NoError(t, err)

	sweeper.Sweep(context.Background())

	reqs := q.Requests()
	require.NotEmpty(t, reqs)
	for _, req := range reqs {
		assert.Equal(t, "business_case", req.DocumentKey)
		assert.Equal(t, "proj-1", req.ProjectID)
		assert.Equal(t, "root", req.DocumentIdentity)
	}
}

func TestSweepSkipsStaleDocuments(t *testing.T) {
	fx := newFixture(t)
	// Fragments are timestamped well outside a one-hour window.
	fx.addFragment(t, "root", "", "", `{"executive_summary": "x"}`)

	q := queue.NewMemQueue()
	sweeper, err := NewSweeper(fx.meta, q, kindSet{"business_case": true},
		time.Minute, time.Hour, nil)
	require.NoError(t, err)

	sweeper.Sweep(context.Background())
	assert.Empty(t, q.Requests())
}

func TestSweepRenderLandsIdentically(t *testing.T) {
	fx := newFixture(t)
	fx.addFragment(t, "root", "", "", `{"executive_summary": "swept"}`)

	require.NoError(t, fx.worker.ProcessRenderRequest(context.Background(), renderRequest("root")))
	direct := fx.rendered(t)

	// The sweep builds its own request with the identity as source.
	req := renderRequest("root")
	req.SourceContributionID = "root"
	require.NoError(t, fx.worker.ProcessRenderRequest(context.Background(), req))
	assert.Equal(t, direct, fx.rendered(t))
}

func TestProcessRenderRequestMergesAllFragments(t *testing.T) {
	fx := newFixture(t)
	for i := 0; i < 3; i++ {
		parent, root := "", ""
		if i > 0 {
			parent, root = fmt.Sprintf("f%d", i-1), "f0"
		}
		fx.addFragment(t, fmt.Sprintf("f%d", i), parent, root, `{"executive_summary": "part"}`)
	}
	require.NoError(t, fx.worker.ProcessRenderRequest(context.Background(), renderRequest("f0")))
	out := fx.rendered(t)
	assert.Equal(t, 3, strings.Count(out, "part"))
}
