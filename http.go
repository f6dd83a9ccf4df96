package oaipmh

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// httpHandler adapts a Provider to net/http.
type httpHandler struct {
	provider *Provider
	logger   *zap.Logger
}

// NewHandler returns an http.Handler serving OAI-PMH requests from p. GET and
// POST are supported, everything else is answered with 405.
func NewHandler(p *Provider, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &httpHandler{provider: p, logger: logger}
}

func (h *httpHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	params, err := ParseRequest(r)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrMethodNotAllowed) {
			status = http.StatusMethodNotAllowed
			w.Header().Set("Allow", "GET, POST")
		}
		h.logger.Info("rejected request",
			zap.String("method", r.Method),
			zap.Int("status", status),
			zap.Error(err))
		http.Error(w, err.Error(), status)
		return
	}
	resp := h.provider.Handle(r.Context(), params)
	if err := resp.WriteTo(w); err != nil {
		h.logger.Warn("writing response failed", zap.Error(err))
	}
	h.logger.Info("request",
		zap.String("method", r.Method),
		zap.String("verb", params.Get("verb")),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(resp.Body)),
		zap.Duration("took", time.Since(started)))
}
