// Package resolver finds and orders every fragment belonging to one logical
// document, honoring edits and continuations, and fetches their bodies from
// the object store.
package resolver

import (
	"context"
	"log/slog"

	"github.com/sourcegraph/conc/pool"

	derrors "git.home.luguber.info/inful/docweaver/internal/errors"
	"git.home.luguber.info/inful/docweaver/internal/fragment"
	"git.home.luguber.info/inful/docweaver/internal/metastore"
	"git.home.luguber.info/inful/docweaver/internal/objectstore"
)

// ResolvedFragment pairs a fragment's metadata with its downloaded body.
type ResolvedFragment struct {
	Fragment *fragment.Fragment
	Body     []byte
}

// Resolver resolves a document identity into its ordered fragment bodies.
type Resolver struct {
	meta        metastore.Store
	objects     objectstore.Store
	logger      *slog.Logger
	maxParallel int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMaxParallelDownloads bounds the number of concurrent body downloads.
func WithMaxParallelDownloads(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxParallel = n
		}
	}
}

// New creates a Resolver over the given stores.
func New(meta metastore.Store, objects objectstore.Store, logger *slog.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{
		meta:        meta,
		objects:     objects,
		logger:      logger,
		maxParallel: 4,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the ordered fragment bodies composing one document.
//
// The chain query filters server-side on session, iteration, and the
// relationships entry for the stage; ordering is ascending by
// (edit_version, created_at). Fragments superseded by a user edit are
// excluded; the edit's body takes their place in the chain. Bodies are
// downloaded in parallel but returned in chain order.
func (r *Resolver) Resolve(ctx context.Context, ref fragment.DocumentRef) ([]ResolvedFragment, error) {
	chain, err := r.meta.ListChain(ctx, metastore.ChainQuery{
		SessionID: ref.SessionID,
		Iteration: ref.Iteration,
		Stage:     ref.Stage,
		Identity:  ref.Identity,
	})
	if err != nil {
		return nil, derrors.PersistenceFailure(err, "listing document chain")
	}
	if len(chain) == 0 {
		return nil, derrors.DocumentNotFound(ref.Identity)
	}

	if err := checkChainIntegrity(chain, ref.Identity); err != nil {
		return nil, err
	}

	selected := selectContributions(chain)
	if len(selected) == 0 {
		return nil, derrors.DocumentNotFound(ref.Identity)
	}

	r.logger.Debug("resolved document chain",
		slog.String("document_identity", ref.Identity),
		slog.String("stage", ref.Stage),
		slog.Int("chain_size", len(chain)),
		slog.Int("selected", len(selected)))

	return r.download(ctx, selected)
}

// selectContributions applies edit preference to an ordered chain: a
// fragment is dropped when a latest-edit fragment points at it via
// original_fragment_id, and stale edits (is_latest_edit false with an
// original set) are dropped too. Chain order is otherwise preserved.
func selectContributions(chain []*fragment.Fragment) []*fragment.Fragment {
	edited := make(map[string]bool, len(chain))
	for _, f := range chain {
		if f.IsUserEdit() && f.IsLatestEdit {
			edited[f.OriginalID] = true
		}
	}

	out := make([]*fragment.Fragment, 0, len(chain))
	for _, f := range chain {
		if edited[f.ID] {
			continue // replaced by a newer user edit
		}
		if f.IsUserEdit() && !f.IsLatestEdit {
			continue
		}
		out = append(out, f)
	}
	return out
}

// checkChainIntegrity models the chain as an arena of fragments with a
// parent-to-children adjacency map and walks it iteratively from every entry
// point (a fragment whose parent is absent or outside the chain). Each
// fragment carries a single parent link, so any fragment the walk cannot
// reach sits on a cycle, which is data corruption rather than a valid chain.
func checkChainIntegrity(chain []*fragment.Fragment, identity string) error {
	byID := make(map[string]*fragment.Fragment, len(chain))
	children := make(map[string][]string, len(chain))
	for _, f := range chain {
		byID[f.ID] = f
	}

	var stack []string
	for _, f := range chain {
		if _, hasParent := byID[f.TargetID]; f.TargetID != "" && hasParent {
			children[f.TargetID] = append(children[f.TargetID], f.ID)
			continue
		}
		stack = append(stack, f.ID)
	}

	visited := make(map[string]bool, len(chain))
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		visited[id] = true
		stack = append(stack, children[id]...)
	}

	for _, f := range chain {
		if !visited[f.ID] {
			return derrors.New(derrors.CategoryInternal, derrors.SeverityFatal,
				"document chain contains a cycle").
				WithContext("document_identity", identity).
				WithContext("fragment_id", f.ID)
		}
	}
	return nil
}

// download fetches all bodies concurrently, preserving chain order in the
// result. Any failed download aborts the resolve: a partial render must
// never be produced.
func (r *Resolver) download(ctx context.Context, selected []*fragment.Fragment) ([]ResolvedFragment, error) {
	out := make([]ResolvedFragment, len(selected))

	p := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(r.maxParallel)
	for i, f := range selected {
		i, f := i, f
		p.Go(func(ctx context.Context) error {
			body, err := r.objects.Download(ctx, f.StorageBucket, f.StoragePath)
			if err != nil {
				return derrors.ContentUnavailable(err, f.ID)
			}
			out[i] = ResolvedFragment{Fragment: f, Body: body}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
