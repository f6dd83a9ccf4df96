package oaipmh

import (
	"context"
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// node is a generic XML tree for assertions on responses.
type node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
	Children []node     `xml:",any"`
}

func parseNode(t *testing.T, b []byte) node {
	t.Helper()
	var n node
	require.NoError(t, xml.Unmarshal(b, &n), string(b))
	return n
}

// find returns all descendants along path, e.g. find("GetRecord", "record").
func (n node) find(path ...string) []node {
	if len(path) == 0 {
		return []node{n}
	}
	var result []node
	for _, c := range n.Children {
		if c.XMLName.Local == path[0] {
			result = append(result, c.find(path[1:]...)...)
		}
	}
	return result
}

func (n node) text() string {
	return strings.TrimSpace(n.Text)
}

func (n node) attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == name && a.Name.Space == "" {
			return a.Value, true
		}
	}
	return "", false
}

// errorCodes lists the codes of all error elements, in document order.
func (n node) errorCodes() []string {
	var codes []string
	for _, e := range n.find("error") {
		code, _ := e.attr("code")
		codes = append(codes, code)
	}
	return codes
}

var fixedTime = time.Date(2015, 3, 18, 10, 30, 0, 0, time.UTC)

func fixedClock() time.Time {
	return fixedTime
}

// handle runs a request against a provider with a fixed clock.
func handle(t *testing.T, repo Repository, params Values) (*Response, node) {
	t.Helper()
	resp := NewProvider(repo, WithClock(fixedClock)).Handle(context.Background(), params)
	return resp, parseNode(t, resp.Body)
}
