package oaipmh

import (
	"fmt"
	"time"
)

// Version
const Version = "0.2.0"

const (
	// Namespace of all elements in an OAI-PMH response.
	Namespace = "http://www.openarchives.org/OAI/2.0/"
	// SchemaLocation points to the canonical OAI-PMH 2.0 schema.
	SchemaLocation = Namespace + " http://www.openarchives.org/OAI/2.0/OAI-PMH.xsd"
	// XSINamespace is the XML Schema instance namespace.
	XSINamespace = "http://www.w3.org/2001/XMLSchema-instance"
	// ProtocolVersion is reported in Identify responses.
	ProtocolVersion = "2.0"
	// ContentType of every response.
	ContentType = "text/xml; charset=utf-8"
)

var (
	// UserAgent is used by outgoing requests, e.g. the probe.
	UserAgent = fmt.Sprintf("oaipmh/%s (https://github.com/vitec-memorix/OaiPmh)", Version)
	// DefaultFormat should be supported by every repository (4.4 ListMetadataFormats).
	DefaultFormat = MetadataFormat{
		Prefix:    "oai_dc",
		Schema:    "http://www.openarchives.org/OAI/2.0/oai_dc.xsd",
		Namespace: "http://www.openarchives.org/OAI/2.0/oai_dc/",
	}
)

// FormatDatestamp renders t as UTC datetime with seconds granularity, the
// format used for responseDate.
func FormatDatestamp(t time.Time) string {
	return t.UTC().Format(layoutSecond)
}
