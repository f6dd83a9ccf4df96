//  Copyright 2015 by Leipzig University Library, http://ub.uni-leipzig.de
//                    The Finc Authors, http://finc.info
//                    Martin Czygan, <martin.czygan@uni-leipzig.de>
//
// This file is part of some open source application.
//
// Some open source application is free software: you can redistribute
// it and/or modify it under the terms of the GNU General Public
// License as published by the Free Software Foundation, either
// version 3 of the License, or (at your option) any later version.
//
// Some open source application is distributed in the hope that it will
// be useful, but WITHOUT ANY WARRANTY; without even the implied warranty
// of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Foobar.  If not, see <http://www.gnu.org/licenses/>.
//
// @license GPL-3.0+ <http://spdx.org/licenses/GPL-3.0+>
//
package oaipmh

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	ErrNoRootElement        = errors.New("document: no root element")
	ErrMultipleRootElements = errors.New("document: more than one root element")
	ErrTextOutsideRoot      = errors.New("document: text outside of root element")
	ErrUnresolvedPayload    = errors.New("document: placeholder without payload")
)

// Document is a well-formed XML document, e.g. the metadata of a record. Only
// the root element is kept, any XML declaration, comment or whitespace around
// it is dropped.
type Document struct {
	root []byte
	// unqualified is set when elements of the payload are in no namespace
	// and the root does not declare a default namespace itself.
	unqualified bool
}

// ParseDocument checks that b is well-formed and has a single root element.
func ParseDocument(b []byte) (*Document, error) {
	dec := xml.NewDecoder(bytes.NewReader(b))
	var (
		depth      int
		start, end int64 = -1, -1
		defaultNS  bool
		noNS       bool
	)
	for {
		offset := dec.InputOffset()
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("document: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				if start >= 0 {
					return nil, ErrMultipleRootElements
				}
				start = offset
				for _, a := range t.Attr {
					if a.Name.Space == "" && a.Name.Local == "xmlns" {
						defaultNS = true
					}
				}
			}
			if t.Name.Space == "" {
				noNS = true
			}
			depth++
		case xml.EndElement:
			depth--
			if depth == 0 {
				end = dec.InputOffset()
			}
		case xml.CharData:
			if depth == 0 && len(bytes.TrimSpace(t)) > 0 {
				return nil, ErrTextOutsideRoot
			}
		}
	}
	if start < 0 || end < 0 {
		return nil, ErrNoRootElement
	}
	root := make([]byte, end-start)
	copy(root, b[start:end])
	return &Document{root: root, unqualified: noNS && !defaultNS}, nil
}

// ParseDocumentString is a convenience wrapper around ParseDocument.
func ParseDocumentString(s string) (*Document, error) {
	return ParseDocument([]byte(s))
}

// MustParseDocument panics on malformed input, for fixtures and tests.
func MustParseDocument(s string) *Document {
	doc, err := ParseDocumentString(s)
	if err != nil {
		panic(err)
	}
	return doc
}

// Root returns the verbatim bytes of the root element.
func (d *Document) Root() []byte {
	return d.root
}

// embedded returns the root element for use inside the OAI-PMH envelope. The
// envelope declares a default namespace, so unqualified payloads get an
// xmlns="" on their root to stay in no namespace.
func (d *Document) embedded() []byte {
	if !d.unqualified {
		return d.root
	}
	i := bytes.IndexAny(d.root[1:], " \t\r\n/>") + 1
	b := make([]byte, 0, len(d.root)+len(` xmlns=""`))
	b = append(b, d.root[:i]...)
	b = append(b, ` xmlns=""`...)
	return append(b, d.root[i:]...)
}

// String returns the root element as string.
func (d *Document) String() string {
	return string(d.root)
}

// Element is a node in the response tree. All elements live in the OAI-PMH
// namespace, which is declared once on the root.
type Element struct {
	Name     string
	Text     string
	Attrs    []xml.Attr
	Children []*Element
	// payload is a one based handle into the builders payload list, zero for
	// ordinary elements.
	payload int
	raw     []byte
}

// SetAttr sets or replaces an attribute.
func (e *Element) SetAttr(name, value string) {
	for i, a := range e.Attrs {
		if a.Name.Local == name {
			e.Attrs[i].Value = value
			return
		}
	}
	e.Attrs = append(e.Attrs, xml.Attr{Name: xml.Name{Local: name}, Value: value})
}

// Attr returns the value of an attribute and whether it is set.
func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// Append adds children and returns e.
func (e *Element) Append(children ...*Element) *Element {
	e.Children = append(e.Children, children...)
	return e
}

// Builder assembles a single OAI-PMH response document. A Builder is used for
// one response only.
type Builder struct {
	root     *Element
	payloads []*Document
	status   int
}

// NewBuilder creates the document root with namespace and schema location.
func NewBuilder() *Builder {
	root := &Element{Name: "OAI-PMH"}
	root.SetAttr("xmlns", Namespace)
	root.SetAttr("xmlns:xsi", XSINamespace)
	root.SetAttr("xsi:schemaLocation", SchemaLocation)
	return &Builder{root: root, status: http.StatusOK}
}

// Root returns the document element.
func (b *Builder) Root() *Element {
	return b.root
}

// CreateElement creates an element with an optional text value, without
// attaching it anywhere.
func (b *Builder) CreateElement(name string, value string) *Element {
	return &Element{Name: name, Text: value}
}

// AddElement creates an element and appends it to the root.
func (b *Builder) AddElement(name string, value string) *Element {
	e := b.CreateElement(name, value)
	b.root.Append(e)
	return e
}

// CreatePlaceholder creates an empty element, that will contain the root of
// doc once the document is serialized.
func (b *Builder) CreatePlaceholder(name string, doc *Document) *Element {
	b.payloads = append(b.payloads, doc)
	return &Element{Name: name, payload: len(b.payloads)}
}

// AddError appends an error element and marks the response as failed.
func (b *Builder) AddError(err *Error) {
	e := b.AddElement("error", err.Message)
	e.SetAttr("code", string(err.Code))
	b.status = http.StatusBadRequest
}

// Status is 200 as long as no error has been added, 400 otherwise.
func (b *Builder) Status() int {
	return b.status
}

// resolve attaches every queued payload to its placeholder.
func (b *Builder) resolve(e *Element) error {
	if e.payload > 0 {
		if e.payload > len(b.payloads) || b.payloads[e.payload-1] == nil {
			return fmt.Errorf("%w: %s", ErrUnresolvedPayload, e.Name)
		}
		e.raw = b.payloads[e.payload-1].embedded()
	}
	for _, c := range e.Children {
		if err := b.resolve(c); err != nil {
			return err
		}
	}
	return nil
}

// Bytes serializes the document.
func (b *Builder) Bytes() ([]byte, error) {
	if err := b.resolve(b.root); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := encodeElement(enc, &buf, b.root); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// encodeElement writes e and its subtree. Payloads are written verbatim to w,
// right after the start tag of their placeholder.
func encodeElement(enc *xml.Encoder, w io.Writer, e *Element) error {
	start := xml.StartElement{Name: xml.Name{Local: e.Name}, Attr: e.Attrs}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if e.Text != "" {
		if err := enc.EncodeToken(xml.CharData(e.Text)); err != nil {
			return err
		}
	}
	if e.raw != nil {
		if err := enc.Flush(); err != nil {
			return err
		}
		if _, err := w.Write(e.raw); err != nil {
			return err
		}
	}
	for _, c := range e.Children {
		if err := encodeElement(enc, w, c); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

// Response is what goes back over the wire.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Response serializes the document. A document that cannot be serialized is
// a programming error and is reported as a plain 500.
func (b *Builder) Response() *Response {
	header := http.Header{}
	header.Set("Content-Type", ContentType)
	body, err := b.Bytes()
	if err != nil {
		header.Set("Content-Type", "text/plain; charset=utf-8")
		return &Response{
			StatusCode: http.StatusInternalServerError,
			Header:     header,
			Body:       []byte(strings.TrimSpace(err.Error()) + "\n"),
		}
	}
	return &Response{StatusCode: b.status, Header: header, Body: body}
}

// WriteTo writes headers, status and body to w.
func (r *Response) WriteTo(w http.ResponseWriter) error {
	for k, vs := range r.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(r.StatusCode)
	_, err := w.Write(r.Body)
	return err
}
