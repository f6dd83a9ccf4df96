package oaipmh

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestHandler(t *testing.T) http.Handler {
	p := NewProvider(newMockRepository(), WithClock(fixedClock))
	return NewHandler(p, zaptest.NewLogger(t))
}

func TestHandlerGet(t *testing.T) {
	h := newTestHandler(t)
	r := httptest.NewRequest(http.MethodGet, "/oai?verb=Identify", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ContentType, w.Header().Get("Content-Type"))
	n := parseNode(t, w.Body.Bytes())
	assert.Equal(t, "testRepo", n.find("Identify", "repositoryName")[0].text())
}

func TestHandlerPost(t *testing.T) {
	h := newTestHandler(t)
	form := url.Values{"verb": {"GetRecord"}, "identifier": {"a"}, "metadataPrefix": {"oai_dc"}}
	r := httptest.NewRequest(http.MethodPost, "/oai", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	n := parseNode(t, w.Body.Bytes())
	assert.Equal(t, "a", n.find("GetRecord", "record", "header", "identifier")[0].text())
	verb, _ := n.find("request")[0].attr("verb")
	assert.Equal(t, "GetRecord", verb)
}

func TestHandlerProtocolError(t *testing.T) {
	h := newTestHandler(t)
	r := httptest.NewRequest(http.MethodGet, "/oai?verb=Identify&verb=ListSets", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ContentType, w.Header().Get("Content-Type"))
	assert.Equal(t, []string{"badVerb"}, parseNode(t, w.Body.Bytes()).errorCodes())
}

func TestHandlerRejects(t *testing.T) {
	h := newTestHandler(t)

	for _, method := range []string{http.MethodPut, http.MethodHead} {
		r := httptest.NewRequest(method, "/oai?verb=Identify", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, method)
		assert.Equal(t, "GET, POST", w.Header().Get("Allow"), method)
	}

	r := httptest.NewRequest(http.MethodPost, "/oai", strings.NewReader("verb=%zz"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEqual(t, ContentType, w.Header().Get("Content-Type"))
}
