package files

import (
	"context"
	"log/slog"

	derrors "git.home.luguber.info/inful/docweaver/internal/errors"
	"git.home.luguber.info/inful/docweaver/internal/fragment"
	"git.home.luguber.info/inful/docweaver/internal/metastore"
	"git.home.luguber.info/inful/docweaver/internal/objectstore"
)

// Gateway persists fragment bodies and rendered artifacts to the object
// store and registers fragment metadata rows.
type Gateway struct {
	objects objectstore.Store
	meta    metastore.Store
	bucket  string
	logger  *slog.Logger
}

// NewGateway creates a Gateway writing to the given bucket.
func NewGateway(objects objectstore.Store, meta metastore.Store, bucket string, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{objects: objects, meta: meta, bucket: bucket, logger: logger}
}

// Bucket returns the bucket the gateway writes to.
func (g *Gateway) Bucket() string { return g.bucket }

// StoreFragment uploads a fragment body and inserts its metadata row. The
// fragment's storage coordinates are filled in from the path layout before
// the write. The body is uploaded first: a row must never reference a body
// that was not stored.
func (g *Gateway) StoreFragment(ctx context.Context, spec PathSpec, f *fragment.Fragment, body []byte) error {
	fileName := FragmentFileName(f.ModelSlug, f.ID, f.Attempt, f.Relationships.SourceGroup())
	f.ProjectID = spec.ProjectID
	f.FileName = fileName
	f.StorageBucket = g.bucket
	f.StoragePath = FragmentPath(spec, fileName)
	f.RawPath = f.StoragePath

	if err := g.objects.Upload(ctx, f.StorageBucket, f.StoragePath, body, "application/json"); err != nil {
		return derrors.PersistenceFailure(err, "uploading fragment body")
	}
	if err := g.meta.Insert(ctx, f); err != nil {
		return derrors.PersistenceFailure(err, "registering fragment metadata")
	}

	g.logger.Debug("fragment stored",
		slog.String("fragment_id", f.ID),
		slog.String("path", f.StoragePath))
	return nil
}

// StoreRendered writes a rendered markdown artifact to its deterministic
// path, overwriting any previous version, and returns the path. On failure
// nothing is written, so the previous artifact stays intact.
func (g *Gateway) StoreRendered(ctx context.Context, spec PathSpec, documentKey string, markdown []byte) (string, error) {
	p := RenderedPath(spec, documentKey)
	if err := g.objects.Upload(ctx, g.bucket, p, markdown, "text/markdown"); err != nil {
		return "", derrors.PersistenceFailure(err, "storing rendered document")
	}
	g.logger.Debug("rendered document stored",
		slog.String("document_key", documentKey),
		slog.String("path", p))
	return p, nil
}

// LoadRendered downloads the current rendered artifact for a document, if
// any. A missing artifact returns objectstore.ErrNotFound.
func (g *Gateway) LoadRendered(ctx context.Context, spec PathSpec, documentKey string) ([]byte, error) {
	return g.objects.Download(ctx, g.bucket, RenderedPath(spec, documentKey))
}
