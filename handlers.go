package oaipmh

import (
	"context"
	"strconv"
	"time"
)

// handler builds the verb specific part of one response.
type handler struct {
	repo   Repository
	params Values
	b      *Builder
}

// do executes the right function for the verb.
func (h *handler) do(ctx context.Context, verb Verb) (*Element, error) {
	switch verb {
	case Identify:
		return h.identify(ctx)
	case ListMetadataFormats:
		return h.listMetadataFormats(ctx)
	case ListSets:
		return h.listSets(ctx)
	case GetRecord:
		return h.getRecord(ctx)
	case ListIdentifiers:
		return h.listRecords(ctx, false)
	case ListRecords:
		return h.listRecords(ctx, true)
	}
	return nil, NewError(BadVerb, "%s is not a valid verb", verb)
}

// param returns the value of an argument and whether it was given.
func (h *handler) param(key string) (string, bool) {
	if !h.params.Has(key) {
		return "", false
	}
	return h.params.Get(key), true
}

func (h *handler) identify(ctx context.Context) (*Element, error) {
	identity, err := h.repo.Identify(ctx)
	if err != nil {
		return nil, err
	}
	b := h.b
	node := b.CreateElement("Identify", "")
	node.Append(
		b.CreateElement("repositoryName", identity.RepositoryName),
		b.CreateElement("baseURL", h.repo.BaseURL()),
		b.CreateElement("protocolVersion", ProtocolVersion),
	)
	for _, email := range identity.AdminEmails {
		node.Append(b.CreateElement("adminEmail", email))
	}
	node.Append(
		b.CreateElement("earliestDatestamp", identity.Granularity.Format(identity.EarliestDatestamp)),
		b.CreateElement("deletedRecord", identity.DeletedRecord),
		b.CreateElement("granularity", string(identity.Granularity)),
	)
	if identity.Compression != "" {
		node.Append(b.CreateElement("compression", identity.Compression))
	}
	if identity.Description != nil {
		node.Append(b.CreatePlaceholder("description", identity.Description))
	}
	return node, nil
}

func (h *handler) listMetadataFormats(ctx context.Context) (*Element, error) {
	identifier, _ := h.param("identifier")
	formats, err := h.repo.ListMetadataFormats(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if len(formats) == 0 {
		return nil, NewError(NoMetadataFormats, "There are no metadata formats available for the specified item.")
	}
	b := h.b
	node := b.CreateElement("ListMetadataFormats", "")
	for _, f := range formats {
		node.Append(b.CreateElement("metadataFormat", "").Append(
			b.CreateElement("metadataPrefix", f.Prefix),
			b.CreateElement("schema", f.Schema),
			b.CreateElement("metadataNamespace", f.Namespace),
		))
	}
	return node, nil
}

func (h *handler) listSets(ctx context.Context) (*Element, error) {
	var sets SetList
	var err error
	// The empty check only applies to the first page, a continuation may
	// legitimately be empty.
	if token, ok := h.param("resumptionToken"); ok {
		if sets, err = h.repo.ListSetsByToken(ctx, token); err != nil {
			return nil, err
		}
	} else {
		if sets, err = h.repo.ListSets(ctx); err != nil {
			return nil, err
		}
		if len(sets.Items) == 0 {
			return nil, NewError(NoSetHierarchy, "The repository does not support sets.")
		}
	}
	b := h.b
	node := b.CreateElement("ListSets", "")
	for _, set := range sets.Items {
		setNode := b.CreateElement("set", "").Append(
			b.CreateElement("setSpec", set.Spec),
			b.CreateElement("setName", set.Name),
		)
		if set.Description != nil {
			setNode.Append(b.CreatePlaceholder("setDescription", set.Description))
		}
		node.Append(setNode)
	}
	addResumptionToken(h.b, node, sets)
	return node, nil
}

func (h *handler) getRecord(ctx context.Context) (*Element, error) {
	identifier, hasIdentifier := h.param("identifier")
	prefix, hasPrefix := h.param("metadataPrefix")
	err := runChecks(
		func() error {
			if !hasIdentifier {
				return NewError(BadArgument, "Missing required argument identifier")
			}
			return nil
		},
		func() error {
			if !hasPrefix {
				return NewError(BadArgument, "Missing required argument metadataPrefix")
			}
			return h.checkMetadataPrefix(ctx, prefix, identifier)
		},
	)
	if err != nil {
		return nil, err
	}
	record, err := h.repo.GetRecord(ctx, prefix, identifier)
	if err != nil {
		return nil, err
	}
	return h.b.CreateElement("GetRecord", "").Append(h.recordNode(record)), nil
}

// listRecords handles ListRecords and ListIdentifiers, the latter only shows
// headers.
func (h *handler) listRecords(ctx context.Context, withMetadata bool) (*Element, error) {
	var records RecordList
	if token, ok := h.param("resumptionToken"); ok {
		var err error
		if records, err = h.repo.ListRecordsByToken(ctx, token); err != nil {
			return nil, err
		}
	} else {
		query, err := h.recordListParams(ctx)
		if err != nil {
			return nil, err
		}
		if records, err = h.repo.ListRecords(ctx, query); err != nil {
			return nil, err
		}
		if len(records.Items) == 0 {
			// Maybe this is because someone asks for a set and there are no sets.
			if query.Set != "" {
				sets, err := h.repo.ListSets(ctx)
				if err != nil {
					return nil, err
				}
				if len(sets.Items) == 0 {
					return nil, NewError(NoSetHierarchy, "The repository does not support sets.")
				}
			}
			return nil, NewError(NoRecordsMatch,
				"The combination of the values of the from, until, set and metadataPrefix arguments "+
					"results in an empty list.")
		}
	}

	name := "ListIdentifiers"
	if withMetadata {
		name = "ListRecords"
	}
	node := h.b.CreateElement(name, "")
	for _, record := range records.Items {
		if withMetadata {
			node.Append(h.recordNode(record))
		} else {
			node.Append(h.headerNode(record.Header))
		}
	}
	addResumptionToken(h.b, node, records)
	return node, nil
}

// recordListParams parses the arguments shared by ListRecords and
// ListIdentifiers. All checks run, so a single response can report every
// problem with the request.
func (h *handler) recordListParams(ctx context.Context) (RecordQuery, error) {
	fromValue, hasFrom := h.param("from")
	untilValue, hasUntil := h.param("until")
	prefix, hasPrefix := h.param("metadataPrefix")
	set, hasSet := h.param("set")
	repositoryGranularity := h.repo.Granularity()

	var (
		from, until         time.Time
		fromGran, untilGran Granularity
	)
	err := runChecks(
		func() (err error) {
			if hasFrom {
				from, fromGran, err = ParseDate(fromValue)
			}
			return err
		},
		func() (err error) {
			if hasUntil {
				until, untilGran, err = ParseDate(untilValue)
			}
			return err
		},
		func() error {
			if fromGran != "" && untilGran != "" && from.After(until) {
				return NewError(BadArgument, "The `from` argument must be less than or equal to the `until` argument")
			}
			return nil
		},
		func() error {
			if fromGran != "" && untilGran != "" && fromGran != untilGran {
				return NewError(BadArgument, "The `from` and `until` arguments have different granularity")
			}
			return nil
		},
		func() error {
			if fromGran.Finer(repositoryGranularity) {
				return NewError(BadArgument, "The granularity of the `from` argument is not supported by this repository")
			}
			return nil
		},
		func() error {
			if untilGran.Finer(repositoryGranularity) {
				return NewError(BadArgument, "The granularity of the `until` argument is not supported by this repository")
			}
			return nil
		},
		func() error {
			if hasSet && !ValidSetSpec(set) {
				return NewError(BadArgument, "%s is not a valid setSpec", set)
			}
			return nil
		},
		func() error {
			if !hasPrefix {
				return NewError(BadArgument, "Missing required argument metadataPrefix")
			}
			return h.checkMetadataPrefix(ctx, prefix, "")
		},
	)
	if err != nil {
		return RecordQuery{}, err
	}
	query := RecordQuery{
		MetadataPrefix:   prefix,
		From:             from,
		Until:            until,
		UntilGranularity: untilGran,
		Set:              set,
	}
	return query, nil
}

// checkMetadataPrefix checks that prefix is among the formats of the item or,
// without identifier, of the repository.
func (h *handler) checkMetadataPrefix(ctx context.Context, prefix, identifier string) error {
	formats, err := h.repo.ListMetadataFormats(ctx, identifier)
	if err != nil {
		return err
	}
	for _, f := range formats {
		if f.Prefix == prefix {
			return nil
		}
	}
	return FormatUnavailable()
}

// headerNode renders a header, used by GetRecord, ListRecords and
// ListIdentifiers.
func (h *handler) headerNode(header Header) *Element {
	b := h.b
	node := b.CreateElement("header", "")
	if header.Deleted {
		node.SetAttr("status", "deleted")
	}
	node.Append(
		b.CreateElement("identifier", header.Identifier),
		b.CreateElement("datestamp", h.repo.Granularity().Format(header.Datestamp)),
	)
	for _, spec := range header.SetSpecs {
		node.Append(b.CreateElement("setSpec", spec))
	}
	return node
}

// recordNode renders header, metadata and about. Deleted records only get a
// header.
func (h *handler) recordNode(record Record) *Element {
	b := h.b
	node := b.CreateElement("record", "").Append(h.headerNode(record.Header))
	if record.Header.Deleted {
		return node
	}
	// Both repositories refuse records without metadata when loading, a nil
	// here comes from a custom Repository and is left out instead of
	// rendering an empty, schema invalid metadata element.
	if record.Metadata != nil {
		node.Append(b.CreatePlaceholder("metadata", record.Metadata))
	}
	if record.About != nil {
		node.Append(b.CreatePlaceholder("about", record.About))
	}
	return node
}

// addResumptionToken appends a resumptionToken element, if the list has a
// token or any of its attributes. An empty token with attributes marks the
// last page of a list.
func addResumptionToken[T any](b *Builder, node *Element, l ResultList[T]) {
	if !l.hasResumptionToken() {
		return
	}
	rt := b.CreateElement("resumptionToken", l.Token)
	if !l.ExpirationDate.IsZero() {
		rt.SetAttr("expirationDate", FormatDatestamp(l.ExpirationDate))
	}
	if l.CompleteListSize != nil {
		rt.SetAttr("completeListSize", strconv.Itoa(*l.CompleteListSize))
	}
	if l.Cursor != nil {
		rt.SetAttr("cursor", strconv.Itoa(*l.Cursor))
	}
	node.Append(rt)
}
