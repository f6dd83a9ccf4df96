package oaipmh

import (
	"context"
	"time"
)

const (
	testBaseURL  = "http://example.com/oai"
	testMetadata = `<oai_dc:dc xmlns:oai_dc="http://www.openarchives.org/OAI/2.0/oai_dc/" ` +
		`xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:title>Tom &amp; Jerry</dc:title></oai_dc:dc>`
	testAbout    = `<provenance xmlns="http://www.openarchives.org/OAI/2.0/provenance"><baseURL>x</baseURL></provenance>`
)

// mockRepository serves a handful of fixed records: a, b, c and deleted.
type mockRepository struct {
	granularity Granularity
	sets        []Set
	records     RecordList
	// listErr is returned by ListRecords, if set.
	listErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		granularity: GranularitySecond,
		sets: []Set{
			{Spec: "a", Name: "Set A"},
			{Spec: "b", Name: "Set B", Description: MustParseDocument(testMetadata)},
		},
		records: RecordList{
			Items: []Record{
				mockRecord("a", false),
				mockRecord("b", false),
				mockRecord("deleted", true),
			},
			Token:            "resumptionToken",
			CompleteListSize: IntPtr(100),
			Cursor:           IntPtr(0),
		},
	}
}

func mockRecord(identifier string, deleted bool) Record {
	r := Record{
		Header: Header{
			Identifier: identifier,
			Datestamp:  time.Date(2015, 1, 2, 3, 4, 5, 0, time.UTC),
			SetSpecs:   []string{"a"},
			Deleted:    deleted,
		},
		// Deleted records carry metadata here on purpose, it must not show.
		Metadata: MustParseDocument(testMetadata),
		About:    MustParseDocument(testAbout),
	}
	if deleted {
		r.Header.SetSpecs = []string{"deleted:set"}
	}
	return r
}

func (m *mockRepository) Identify(ctx context.Context) (Identity, error) {
	return Identity{
		RepositoryName:    "testRepo",
		EarliestDatestamp: time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC),
		DeletedRecord:     DeletedRecordPersistent,
		Granularity:       m.granularity,
		AdminEmails:       []string{"one@example.com", "two@example.com"},
		Description:       MustParseDocument(`<description xmlns="urn:test">Test &lt;repo&gt;</description>`),
	}, nil
}

func (m *mockRepository) ListSets(ctx context.Context) (SetList, error) {
	return SetList{Items: m.sets}, nil
}

func (m *mockRepository) ListSetsByToken(ctx context.Context, token string) (SetList, error) {
	if token != "token" {
		return SetList{}, TokenInvalid(token)
	}
	return SetList{}, nil
}

func (m *mockRepository) GetRecord(ctx context.Context, prefix, identifier string) (Record, error) {
	switch identifier {
	case "a", "b", "c":
		return mockRecord(identifier, false), nil
	case "deleted":
		return mockRecord(identifier, true), nil
	}
	return Record{}, IdentifierUnknown(identifier)
}

func (m *mockRepository) ListRecords(ctx context.Context, q RecordQuery) (RecordList, error) {
	if m.listErr != nil {
		return RecordList{}, m.listErr
	}
	return m.records, nil
}

func (m *mockRepository) ListRecordsByToken(ctx context.Context, token string) (RecordList, error) {
	if token != "resumptionToken" {
		return RecordList{}, TokenInvalid(token)
	}
	return m.records, nil
}

func (m *mockRepository) ListMetadataFormats(ctx context.Context, identifier string) ([]MetadataFormat, error) {
	switch identifier {
	case "", "a", "b", "c", "deleted":
		return []MetadataFormat{DefaultFormat}, nil
	case "bare":
		return nil, nil
	}
	return nil, IdentifierUnknown(identifier)
}

func (m *mockRepository) BaseURL() string {
	return testBaseURL
}

func (m *mockRepository) Granularity() Granularity {
	return m.granularity
}
