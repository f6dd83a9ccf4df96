package sqlstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitec-memorix/OaiPmh"
	"github.com/vitec-memorix/OaiPmh/internal/token"
	"github.com/vitec-memorix/OaiPmh/static"
)

var compareDocuments = cmp.Comparer(func(a, b *oaipmh.Document) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.String() == b.String()
})

func loadCatalog(t *testing.T) *static.Catalog {
	t.Helper()
	c, err := static.LoadFile("../static/testdata/catalog.yaml")
	require.NoError(t, err)
	return c
}

func openStore(t *testing.T, c *static.Catalog, opts ...Option) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := Open(ctx, ":memory:", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Import(ctx, c))
	return s
}

func TestStoreMatchesStaticRepository(t *testing.T) {
	c := loadCatalog(t)
	mem := static.New(c, static.WithPageSize(2))
	db := openStore(t, c, WithPageSize(2))
	ctx := context.Background()

	wantID, err := mem.Identify(ctx)
	require.NoError(t, err)
	gotID, err := db.Identify(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(wantID, gotID, compareDocuments); diff != "" {
		t.Errorf("Identify() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, mem.BaseURL(), db.BaseURL())
	assert.Equal(t, mem.Granularity(), db.Granularity())

	day := func(d int) time.Time { return time.Date(2001, 12, d, 0, 0, 0, 0, time.UTC) }
	queries := []oaipmh.RecordQuery{
		{MetadataPrefix: "oai_dc"},
		{MetadataPrefix: "mods"},
		{MetadataPrefix: "oai_dc", Set: "music"},
		{MetadataPrefix: "oai_dc", Set: "music:(muzak)"},
		{MetadataPrefix: "oai_dc", From: day(15), Until: day(15), UntilGranularity: oaipmh.GranularityDay},
		{MetadataPrefix: "oai_dc", Until: day(16), UntilGranularity: oaipmh.GranularitySecond},
		{MetadataPrefix: "marc21"},
	}
	for _, q := range queries {
		want := harvest(t, mem, q)
		got := harvest(t, db, q)
		if diff := cmp.Diff(want, got, compareDocuments); diff != "" {
			t.Errorf("ListRecords(%+v) mismatch (-want +got):\n%s", q, diff)
		}
	}

	for _, id := range []string{"", "oai:sound.example.org:1", "oai:sound.example.org:4"} {
		want, err := mem.ListMetadataFormats(ctx, id)
		require.NoError(t, err)
		got, err := db.ListMetadataFormats(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got, id)
	}

	wantRecord, err := mem.GetRecord(ctx, "oai_dc", "oai:sound.example.org:1")
	require.NoError(t, err)
	gotRecord, err := db.GetRecord(ctx, "oai_dc", "oai:sound.example.org:1")
	require.NoError(t, err)
	if diff := cmp.Diff(wantRecord, gotRecord, compareDocuments); diff != "" {
		t.Errorf("GetRecord() mismatch (-want +got):\n%s", diff)
	}
}

// harvest follows resumption tokens to the end of a list.
func harvest(t *testing.T, repo oaipmh.Repository, q oaipmh.RecordQuery) []oaipmh.Record {
	t.Helper()
	ctx := context.Background()
	l, err := repo.ListRecords(ctx, q)
	require.NoError(t, err)
	records := l.Items
	for l.Token != "" {
		l, err = repo.ListRecordsByToken(ctx, l.Token)
		require.NoError(t, err)
		records = append(records, l.Items...)
	}
	return records
}

func TestStoreErrors(t *testing.T) {
	s := openStore(t, loadCatalog(t))
	ctx := context.Background()

	_, err := s.GetRecord(ctx, "oai_dc", "oai:nowhere:1")
	assert.True(t, oaipmh.IsCode(err, oaipmh.IDDoesNotExist))

	_, err = s.GetRecord(ctx, "mods", "oai:sound.example.org:2")
	assert.True(t, oaipmh.IsCode(err, oaipmh.CannotDisseminateFormat))

	_, err = s.ListMetadataFormats(ctx, "oai:nowhere:1")
	assert.True(t, oaipmh.IsCode(err, oaipmh.IDDoesNotExist))

	_, err = s.ListRecordsByToken(ctx, "garbage")
	assert.True(t, oaipmh.IsCode(err, oaipmh.BadResumptionToken))

	_, err = s.ListSetsByToken(ctx, "garbage")
	assert.True(t, oaipmh.IsCode(err, oaipmh.BadResumptionToken))

	reversed := token.Encode(token.State{
		Kind:   token.Records,
		Prefix: "oai_dc",
		From:   time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		Until:  time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	_, err = s.ListRecordsByToken(ctx, reversed)
	assert.True(t, oaipmh.IsCode(err, oaipmh.BadResumptionToken))
}

func TestStoreSetPaging(t *testing.T) {
	s := openStore(t, loadCatalog(t), WithPageSize(2))
	ctx := context.Background()

	l, err := s.ListSets(ctx)
	require.NoError(t, err)
	require.Len(t, l.Items, 2)
	assert.Equal(t, "music", l.Items[0].Spec)
	require.NotEmpty(t, l.Token)
	require.NotNil(t, l.Items[1].Description)

	l, err = s.ListSetsByToken(ctx, l.Token)
	require.NoError(t, err)
	require.Len(t, l.Items, 1)
	assert.Equal(t, "video", l.Items[0].Spec)
	assert.Empty(t, l.Token)
	assert.Equal(t, 3, *l.CompleteListSize)
}

func TestStoreEarliestDatestampFallback(t *testing.T) {
	c := loadCatalog(t)
	c.Identity.EarliestDatestamp = time.Time{}
	s := openStore(t, c)

	id, err := s.Identify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2001, 12, 14, 10, 0, 0, 0, time.UTC), id.EarliestDatestamp)
}

func TestStoreWithoutImport(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Identify(ctx)
	assert.ErrorIs(t, err, ErrNoIdentity)
	assert.Equal(t, oaipmh.GranularitySecond, s.Granularity())

	// Failed loads are not kept.
	require.NoError(t, s.Import(ctx, loadCatalog(t)))
	id, err := s.Identify(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Sound Archive", id.RepositoryName)
}

func TestStoreReopen(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "oaipmh.db")

	s, err := Open(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, s.Import(ctx, loadCatalog(t)))
	require.NoError(t, s.Close())

	s, err = Open(ctx, dsn, WithBaseURL("https://example.org/oai"))
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, "https://example.org/oai", s.BaseURL())
	l, err := s.ListRecords(ctx, oaipmh.RecordQuery{MetadataPrefix: "oai_dc"})
	require.NoError(t, err)
	assert.Len(t, l.Items, 5)
}

func TestStoreSeesImportsFromOtherHandles(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "oaipmh.db")

	server, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer server.Close()
	_, err = server.Identify(ctx)
	assert.ErrorIs(t, err, ErrNoIdentity)
	assert.Equal(t, "", server.BaseURL())

	importer, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer importer.Close()
	c := loadCatalog(t)
	require.NoError(t, importer.Import(ctx, c))

	id, err := server.Identify(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Sound Archive", id.RepositoryName)
	assert.Equal(t, c.BaseURL, server.BaseURL())

	// A second import replaces the loaded identity.
	c.Identity.RepositoryName = "Sound Archive II"
	c.BaseURL = "https://example.org/oai"
	require.NoError(t, importer.Import(ctx, c))

	id, err = server.Identify(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Sound Archive II", id.RepositoryName)
	assert.Equal(t, "https://example.org/oai", server.BaseURL())
}

func TestStoreImportRejectsMissingMetadata(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, loadCatalog(t))

	c := loadCatalog(t)
	c.Identity.RepositoryName = "Broken"
	for i := range c.Items {
		if !c.Items[i].Header.Deleted {
			delete(c.Items[i].Metadata, "oai_dc")
			break
		}
	}
	err := s.Import(ctx, c)
	assert.ErrorIs(t, err, ErrMissingMetadata)

	// The failed import left the previous catalog in place.
	id, err := s.Identify(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Sound Archive", id.RepositoryName)
	l, err := s.ListRecords(ctx, oaipmh.RecordQuery{MetadataPrefix: "oai_dc"})
	require.NoError(t, err)
	assert.Len(t, l.Items, 5)
}
