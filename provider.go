package oaipmh

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Provider answers OAI-PMH requests from a Repository. A provider keeps no
// state between requests and can be shared by concurrent HTTP handlers, every
// call to Handle uses its own document builder and error list.
type Provider struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger, default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock replaces time.Now for the responseDate, useful in tests.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}

// NewProvider creates a provider for repo.
func NewProvider(repo Repository, opts ...Option) *Provider {
	p := &Provider{repo: repo, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handle runs a single request to completion. The result is always a complete
// OAI-PMH document, protocol errors are rendered as error elements.
func (p *Provider) Handle(ctx context.Context, params Values) *Response {
	b := NewBuilder()
	b.AddElement("responseDate", FormatDatestamp(p.now()))
	requestNode := b.AddElement("request", p.repo.BaseURL())

	verb, err := ValidateRequest(params)
	var verbNode *Element
	if err == nil {
		h := &handler{repo: p.repo, params: params, b: b}
		verbNode, err = h.do(ctx, verb)
	}
	if err != nil {
		for _, e := range multierr.Errors(err) {
			perr, ok := asProtocolError(e)
			if !ok {
				p.logger.Warn("unclassified failure", zap.Stringer("verb", verb), zap.Error(e))
			}
			b.AddError(perr)
		}
		return b.Response()
	}

	// In cases where the request that generated this response did not result
	// in an error or exception condition, the attributes and attribute values
	// of the request element must match the key=value pairs of the protocol
	// request (3.2 XML Response Format).
	requestNode.SetAttr("verb", verb.String())
	for _, k := range params.Keys() {
		if k != "verb" {
			requestNode.SetAttr(k, params.Get(k))
		}
	}
	b.Root().Append(verbNode)
	return b.Response()
}
