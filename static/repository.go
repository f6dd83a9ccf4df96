package static

import (
	"context"
	"strings"

	"github.com/vitec-memorix/OaiPmh"
	"github.com/vitec-memorix/OaiPmh/internal/token"
)

// DefaultPageSize is the number of sets or records per list response.
const DefaultPageSize = 100

var _ oaipmh.Repository = (*Repository)(nil)

// Repository serves a catalog from memory. It never changes after creation
// and is safe for concurrent use.
type Repository struct {
	catalog  *Catalog
	baseURL  string
	pageSize int
	index    map[string]int
}

// Option configures a Repository.
type Option func(*Repository)

// WithBaseURL overrides the base URL of the catalog.
func WithBaseURL(u string) Option {
	return func(r *Repository) {
		if u != "" {
			r.baseURL = u
		}
	}
}

// WithPageSize sets the number of entries per page.
func WithPageSize(n int) Option {
	return func(r *Repository) {
		if n > 0 {
			r.pageSize = n
		}
	}
}

// New creates a repository for c.
func New(c *Catalog, opts ...Option) *Repository {
	r := &Repository{
		catalog:  c,
		baseURL:  c.BaseURL,
		pageSize: DefaultPageSize,
		index:    make(map[string]int, len(c.Items)),
	}
	for i, item := range c.Items {
		r.index[item.Header.Identifier] = i
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Repository) BaseURL() string {
	return r.baseURL
}

func (r *Repository) Granularity() oaipmh.Granularity {
	return r.catalog.Identity.Granularity
}

func (r *Repository) Identify(ctx context.Context) (oaipmh.Identity, error) {
	return r.catalog.Identity, nil
}

func (r *Repository) ListSets(ctx context.Context) (oaipmh.SetList, error) {
	return r.setPage(0), nil
}

func (r *Repository) ListSetsByToken(ctx context.Context, tok string) (oaipmh.SetList, error) {
	s, err := token.Decode(tok, token.Sets)
	if err != nil || s.Offset >= len(r.catalog.Sets) {
		return oaipmh.SetList{}, oaipmh.TokenInvalid(tok)
	}
	return r.setPage(s.Offset), nil
}

func (r *Repository) setPage(offset int) oaipmh.SetList {
	sets := r.catalog.Sets
	start, end := token.Bounds(offset, r.pageSize, len(sets))
	return token.Page(sets[start:end], len(sets), start, token.State{Kind: token.Sets})
}

func (r *Repository) GetRecord(ctx context.Context, prefix, identifier string) (oaipmh.Record, error) {
	i, ok := r.index[identifier]
	if !ok {
		return oaipmh.Record{}, oaipmh.IdentifierUnknown(identifier)
	}
	item := r.catalog.Items[i]
	if !item.Supports(prefix) {
		return oaipmh.Record{}, oaipmh.FormatUnavailable()
	}
	return item.Record(prefix), nil
}

func (r *Repository) ListMetadataFormats(ctx context.Context, identifier string) ([]oaipmh.MetadataFormat, error) {
	if identifier == "" {
		return r.catalog.Formats, nil
	}
	i, ok := r.index[identifier]
	if !ok {
		return nil, oaipmh.IdentifierUnknown(identifier)
	}
	item := r.catalog.Items[i]
	var formats []oaipmh.MetadataFormat
	for _, f := range r.catalog.Formats {
		if item.Supports(f.Prefix) {
			formats = append(formats, f)
		}
	}
	return formats, nil
}

func (r *Repository) ListRecords(ctx context.Context, q oaipmh.RecordQuery) (oaipmh.RecordList, error) {
	return r.recordPage(ctx, stateFromQuery(q), "")
}

func (r *Repository) ListRecordsByToken(ctx context.Context, tok string) (oaipmh.RecordList, error) {
	s, err := token.Decode(tok, token.Records)
	if err != nil {
		return oaipmh.RecordList{}, oaipmh.TokenInvalid(tok)
	}
	return r.recordPage(ctx, s, tok)
}

// recordPage filters the items for s and returns the page at s.Offset. The
// token is empty on the first request of a list.
func (r *Repository) recordPage(ctx context.Context, s token.State, tok string) (oaipmh.RecordList, error) {
	w, err := NewWindow(s.From, s.Until, oaipmh.Granularity(s.UntilGranularity))
	if err != nil {
		if tok != "" {
			return oaipmh.RecordList{}, oaipmh.TokenInvalid(tok)
		}
		return oaipmh.RecordList{}, err
	}
	var matches []oaipmh.Record
	for _, item := range r.catalog.Items {
		if err := ctx.Err(); err != nil {
			return oaipmh.RecordList{}, err
		}
		if !item.Supports(s.Prefix) || !w.Contains(item.Header.Datestamp) {
			continue
		}
		if s.Set != "" && !InSet(item.Header.SetSpecs, s.Set) {
			continue
		}
		matches = append(matches, item.Record(s.Prefix))
	}
	if tok != "" && s.Offset >= len(matches) {
		return oaipmh.RecordList{}, oaipmh.TokenInvalid(tok)
	}
	start, end := token.Bounds(s.Offset, r.pageSize, len(matches))
	return token.Page(matches[start:end], len(matches), start, s), nil
}

// InSet reports whether any of specs is set or lies below it in the set
// hierarchy.
func InSet(specs []string, set string) bool {
	for _, spec := range specs {
		if spec == set || strings.HasPrefix(spec, set+":") {
			return true
		}
	}
	return false
}

func stateFromQuery(q oaipmh.RecordQuery) token.State {
	return token.State{
		Kind:             token.Records,
		Prefix:           q.MetadataPrefix,
		From:             q.From,
		Until:            q.Until,
		UntilGranularity: string(q.UntilGranularity),
		Set:              q.Set,
	}
}
