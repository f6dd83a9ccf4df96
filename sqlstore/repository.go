package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/vitec-memorix/OaiPmh"
	"github.com/vitec-memorix/OaiPmh/internal/token"
	"github.com/vitec-memorix/OaiPmh/static"
)

type row interface {
	Scan(dest ...interface{}) error
}

// loadIdentity reads the identity and the stored base URL.
func (s *Store) loadIdentity(ctx context.Context) (oaipmh.Identity, string, error) {
	var (
		id          oaipmh.Identity
		baseURL     string
		earliest    sql.NullInt64
		granularity string
		emails      string
		description sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `SELECT base_url, repository_name, earliest_datestamp, deleted_record,
		granularity, admin_emails, compression, description FROM identity WHERE id = 1`).Scan(
		&baseURL, &id.RepositoryName, &earliest, &id.DeletedRecord,
		&granularity, &emails, &id.Compression, &description)
	if errors.Is(err, sql.ErrNoRows) {
		return id, "", ErrNoIdentity
	}
	if err != nil {
		return id, "", err
	}
	if !earliest.Valid {
		if err := s.db.QueryRowContext(ctx, "SELECT MIN(datestamp) FROM records").Scan(&earliest); err != nil {
			return id, "", err
		}
	}
	if earliest.Valid {
		id.EarliestDatestamp = time.Unix(earliest.Int64, 0).UTC()
	}
	id.Granularity = oaipmh.Granularity(granularity)
	if emails != "" {
		id.AdminEmails = strings.Split(emails, "\n")
	}
	if id.Description, err = parseDoc(description); err != nil {
		return id, "", err
	}
	return id, baseURL, nil
}

func (s *Store) Identify(ctx context.Context) (oaipmh.Identity, error) {
	return s.currentIdentity(ctx).cache.Get(ctx)
}

func (s *Store) BaseURL() string {
	if s.baseURL != "" {
		return s.baseURL
	}
	ctx := context.Background()
	memo := s.currentIdentity(ctx)
	if _, err := memo.cache.Get(ctx); err != nil {
		return ""
	}
	return memo.baseURL
}

func (s *Store) Granularity() oaipmh.Granularity {
	ctx := context.Background()
	id, err := s.currentIdentity(ctx).cache.Get(ctx)
	if err != nil || !id.Granularity.Valid() {
		return oaipmh.GranularitySecond
	}
	return id.Granularity
}

func (s *Store) ListSets(ctx context.Context) (oaipmh.SetList, error) {
	return s.setPage(ctx, 0, "")
}

func (s *Store) ListSetsByToken(ctx context.Context, tok string) (oaipmh.SetList, error) {
	st, err := token.Decode(tok, token.Sets)
	if err != nil {
		return oaipmh.SetList{}, oaipmh.TokenInvalid(tok)
	}
	return s.setPage(ctx, st.Offset, tok)
}

func (s *Store) setPage(ctx context.Context, offset int, tok string) (oaipmh.SetList, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return oaipmh.SetList{}, err
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM sets").Scan(&total); err != nil {
		return oaipmh.SetList{}, err
	}
	if tok != "" && offset >= total {
		return oaipmh.SetList{}, oaipmh.TokenInvalid(tok)
	}
	rows, err := tx.QueryContext(ctx, "SELECT spec, name, description FROM sets ORDER BY position LIMIT ? OFFSET ?",
		s.pageSize, offset)
	if err != nil {
		return oaipmh.SetList{}, err
	}
	defer rows.Close()
	var sets []oaipmh.Set
	for rows.Next() {
		var set oaipmh.Set
		var description sql.NullString
		if err := rows.Scan(&set.Spec, &set.Name, &description); err != nil {
			return oaipmh.SetList{}, err
		}
		if set.Description, err = parseDoc(description); err != nil {
			return oaipmh.SetList{}, err
		}
		sets = append(sets, set)
	}
	if err := rows.Err(); err != nil {
		return oaipmh.SetList{}, err
	}
	return token.Page(sets, total, offset, token.State{Kind: token.Sets}), nil
}

func (s *Store) ListMetadataFormats(ctx context.Context, identifier string) ([]oaipmh.MetadataFormat, error) {
	query := "SELECT prefix, schema, namespace FROM formats ORDER BY position"
	var args []interface{}
	if identifier != "" {
		var exists int
		err := s.db.QueryRowContext(ctx, "SELECT 1 FROM records WHERE identifier = ?", identifier).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, oaipmh.IdentifierUnknown(identifier)
		}
		if err != nil {
			return nil, err
		}
		query = `SELECT f.prefix, f.schema, f.namespace FROM formats f
			JOIN record_formats rf ON rf.prefix = f.prefix
			WHERE rf.identifier = ? ORDER BY f.position`
		args = append(args, identifier)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var formats []oaipmh.MetadataFormat
	for rows.Next() {
		var f oaipmh.MetadataFormat
		if err := rows.Scan(&f.Prefix, &f.Schema, &f.Namespace); err != nil {
			return nil, err
		}
		formats = append(formats, f)
	}
	return formats, rows.Err()
}

func (s *Store) GetRecord(ctx context.Context, prefix, identifier string) (oaipmh.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return oaipmh.Record{}, err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM records WHERE identifier = ?", identifier).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return oaipmh.Record{}, oaipmh.IdentifierUnknown(identifier)
	}
	if err != nil {
		return oaipmh.Record{}, err
	}
	record, err := scanRecord(tx.QueryRowContext(ctx, `SELECT r.identifier, r.datestamp, r.deleted, r.about, rf.metadata
		FROM records r JOIN record_formats rf ON rf.identifier = r.identifier
		WHERE r.identifier = ? AND rf.prefix = ?`, identifier, prefix))
	if errors.Is(err, sql.ErrNoRows) {
		return oaipmh.Record{}, oaipmh.FormatUnavailable()
	}
	if err != nil {
		return oaipmh.Record{}, err
	}
	if record.Header.SetSpecs, err = setSpecs(ctx, tx, identifier); err != nil {
		return oaipmh.Record{}, err
	}
	return record, nil
}

func (s *Store) ListRecords(ctx context.Context, q oaipmh.RecordQuery) (oaipmh.RecordList, error) {
	st := token.State{
		Kind:             token.Records,
		Prefix:           q.MetadataPrefix,
		From:             q.From,
		Until:            q.Until,
		UntilGranularity: string(q.UntilGranularity),
		Set:              q.Set,
	}
	return s.recordPage(ctx, st, "")
}

func (s *Store) ListRecordsByToken(ctx context.Context, tok string) (oaipmh.RecordList, error) {
	st, err := token.Decode(tok, token.Records)
	if err != nil {
		return oaipmh.RecordList{}, oaipmh.TokenInvalid(tok)
	}
	return s.recordPage(ctx, st, tok)
}

// recordFilter translates a list state into a WHERE clause.
func recordFilter(st token.State) (string, []interface{}, error) {
	w, err := static.NewWindow(st.From, st.Until, oaipmh.Granularity(st.UntilGranularity))
	if err != nil {
		return "", nil, err
	}
	where := []string{"rf.prefix = ?"}
	args := []interface{}{st.Prefix}
	if !w.From.IsZero() {
		where = append(where, "r.datestamp >= ?")
		args = append(args, w.From.Unix())
	}
	if !w.Until.IsZero() {
		where = append(where, "r.datestamp <= ?")
		args = append(args, w.Until.Unix())
	}
	if st.Set != "" {
		// A set includes all sets below it in the hierarchy.
		where = append(where, `EXISTS (SELECT 1 FROM record_sets rs WHERE rs.identifier = r.identifier
			AND (rs.spec = ? OR substr(rs.spec, 1, ?) = ?))`)
		args = append(args, st.Set, len(st.Set)+1, st.Set+":")
	}
	return strings.Join(where, " AND "), args, nil
}

func (s *Store) recordPage(ctx context.Context, st token.State, tok string) (oaipmh.RecordList, error) {
	where, args, err := recordFilter(st)
	if err != nil {
		if tok != "" {
			return oaipmh.RecordList{}, oaipmh.TokenInvalid(tok)
		}
		return oaipmh.RecordList{}, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return oaipmh.RecordList{}, err
	}
	defer tx.Rollback()

	const from = " FROM records r JOIN record_formats rf ON rf.identifier = r.identifier WHERE "
	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*)"+from+where, args...).Scan(&total); err != nil {
		return oaipmh.RecordList{}, err
	}
	if tok != "" && st.Offset >= total {
		return oaipmh.RecordList{}, oaipmh.TokenInvalid(tok)
	}
	rows, err := tx.QueryContext(ctx,
		"SELECT r.identifier, r.datestamp, r.deleted, r.about, rf.metadata"+from+where+
			" ORDER BY r.datestamp, r.identifier LIMIT ? OFFSET ?",
		append(args, s.pageSize, st.Offset)...)
	if err != nil {
		return oaipmh.RecordList{}, err
	}
	var records []oaipmh.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			rows.Close()
			return oaipmh.RecordList{}, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return oaipmh.RecordList{}, err
	}
	rows.Close()
	// Only one connection is open, the set query has to wait for the
	// records cursor to close.
	for i := range records {
		specs, err := setSpecs(ctx, tx, records[i].Header.Identifier)
		if err != nil {
			return oaipmh.RecordList{}, err
		}
		records[i].Header.SetSpecs = specs
	}
	return token.Page(records, total, st.Offset, st), nil
}

func scanRecord(r row) (oaipmh.Record, error) {
	var (
		record    oaipmh.Record
		datestamp int64
		about     sql.NullString
		metadata  sql.NullString
	)
	if err := r.Scan(&record.Header.Identifier, &datestamp, &record.Header.Deleted, &about, &metadata); err != nil {
		return record, err
	}
	record.Header.Datestamp = time.Unix(datestamp, 0).UTC()
	var err error
	if record.About, err = parseDoc(about); err != nil {
		return record, err
	}
	if record.Metadata, err = parseDoc(metadata); err != nil {
		return record, err
	}
	return record, nil
}

func setSpecs(ctx context.Context, tx *sql.Tx, identifier string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, "SELECT spec FROM record_sets WHERE identifier = ? ORDER BY position", identifier)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var specs []string
	for rows.Next() {
		var spec string
		if err := rows.Scan(&spec); err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, rows.Err()
}
