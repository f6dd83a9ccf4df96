//
// Package oaipmh implements the data provider side of the Open Archives
// Initiative Protocol for Metadata Harvesting (OAI-PMH 2.0). The protocol is a
// low-barrier mechanism for repository interoperability.
//
// A Provider takes the flat parameters of a single request, validates the verb
// and its arguments, asks a Repository for data and renders a schema compliant
// OAI-PMH document. Validation problems are collected and reported together as
// error elements.
//
// Basic usage:
//
//     provider := oaipmh.NewProvider(repo)
//     http.Handle("/oai", oaipmh.NewHandler(provider, logger))
//
// The static and sqlstore packages contain ready to use repositories, the
// oaipmh command serves them over HTTP.
//
package oaipmh
