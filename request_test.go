package oaipmh

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestParseRequest(t *testing.T) {
	get := httptest.NewRequest(http.MethodGet, "/oai?verb=GetRecord&identifier=a&identifier=b", nil)
	v, err := ParseRequest(get)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, v.Values["identifier"])
	assert.Equal(t, []string{"identifier", "verb"}, v.Keys())

	post := httptest.NewRequest(http.MethodPost, "/oai?ignored=1", strings.NewReader("verb=Identify&empty="))
	post.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	v, err = ParseRequest(post)
	require.NoError(t, err)
	assert.Equal(t, "Identify", v.Get("verb"))
	assert.True(t, v.Has("empty"))
	assert.False(t, v.Has("ignored"))

	for _, method := range []string{http.MethodPut, http.MethodHead, http.MethodDelete} {
		_, err = ParseRequest(httptest.NewRequest(method, "/oai?verb=Identify", nil))
		assert.ErrorIs(t, err, ErrMethodNotAllowed, method)
	}
}

func TestValidateRequest(t *testing.T) {
	var tests = []struct {
		about string
		query string
		verb  Verb
		codes []Code
	}{
		{"missing verb", "identifier=a", VerbUnknown, []Code{BadVerb}},
		{"empty query", "", VerbUnknown, []Code{BadVerb}},
		{"repeated verb", "verb=Identify&verb=Identify", VerbUnknown, []Code{BadVerb}},
		{"unknown verb", "verb=ListEverything", VerbUnknown, []Code{BadVerb}},
		{"verbs are case sensitive", "verb=identify", VerbUnknown, []Code{BadVerb}},
		{"plain identify", "verb=Identify", Identify, nil},
		{"three bad arguments", "verb=Identify&a=1&b=2&c=3", Identify, []Code{BadArgument, BadArgument, BadArgument}},
		{"allowed arguments", "verb=ListRecords&metadataPrefix=oai_dc&from=2001-01-01&set=a", ListRecords, nil},
		{"repeated argument", "verb=GetRecord&identifier=a&identifier=b", GetRecord, []Code{BadArgument}},
		{"token alone", "verb=ListSets&resumptionToken=x", ListSets, nil},
		{"token with argument", "verb=ListRecords&resumptionToken=x&metadataPrefix=oai_dc", ListRecords, []Code{BadArgument}},
		{"token with bad argument", "verb=ListRecords&resumptionToken=x&foo=1", ListRecords, []Code{BadArgument, BadArgument}},
		{"token not allowed", "verb=GetRecord&resumptionToken=x", GetRecord, []Code{BadArgument}},
	}

	for _, test := range tests {
		q, err := url.ParseQuery(test.query)
		require.NoError(t, err)
		verb, err := ValidateRequest(Values{q})
		assert.Equal(t, test.verb, verb, test.about)
		var codes []Code
		for _, e := range multierr.Errors(err) {
			codes = append(codes, e.(*Error).Code)
		}
		assert.Equal(t, test.codes, codes, test.about)
	}
}

func TestValidateRequestMessagesAreDistinct(t *testing.T) {
	_, err := ValidateRequest(ValuesFromMap(map[string]string{"verb": "Identify", "a": "1", "b": "2", "c": "3"}))
	errs := multierr.Errors(err)
	require.Len(t, errs, 3)
	seen := make(map[string]bool)
	for i, e := range errs {
		msg := e.(*Error).Message
		assert.False(t, seen[msg], msg)
		seen[msg] = true
		// Sorted by argument name.
		assert.Contains(t, msg, "Argument "+[]string{"a", "b", "c"}[i]+" ")
	}
}

func TestVerb(t *testing.T) {
	for _, name := range []string{"Identify", "ListMetadataFormats", "ListSets", "GetRecord", "ListIdentifiers", "ListRecords"} {
		v := ParseVerb(name)
		assert.NotEqual(t, VerbUnknown, v, name)
		assert.Equal(t, name, v.String())
	}
	assert.Equal(t, VerbUnknown, ParseVerb(""))
	assert.Equal(t, "", Verb(42).String())

	// Arguments hands out copies.
	args := ListRecords.Arguments()
	args[0] = "changed"
	assert.Equal(t, "from", ListRecords.Arguments()[0])
	assert.Empty(t, Identify.Arguments())
	assert.True(t, ListIdentifiers.allows("set"))
	assert.False(t, GetRecord.allows("set"))
}
