package oaipmh

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"time"
)

// Deleted record support levels (4.2 Identify).
const (
	DeletedRecordNo         = "no"
	DeletedRecordPersistent = "persistent"
	DeletedRecordTransient  = "transient"
)

var (
	ErrNoRepositoryName = errors.New("identity: repository name is required")
	ErrNoAdminEmail     = errors.New("identity: at least one admin email is required")
	ErrDeletedRecord    = errors.New("identity: deletedRecord must be no, persistent or transient")
	ErrGranularity      = errors.New("identity: unknown granularity")

	setSpecPattern = regexp.MustCompile(`^[A-Za-z0-9\-_.!~*'()]+(:[A-Za-z0-9\-_.!~*'()]+)*$`)
)

// Repository is everything the provider needs to know about the data it
// serves. Protocol conditions like an unknown identifier or an expired
// resumption token are signalled by returning an *Error, any other error is
// reported with its message.
type Repository interface {
	Identify(ctx context.Context) (Identity, error)
	ListSets(ctx context.Context) (SetList, error)
	ListSetsByToken(ctx context.Context, token string) (SetList, error)
	GetRecord(ctx context.Context, metadataPrefix, identifier string) (Record, error)
	ListRecords(ctx context.Context, query RecordQuery) (RecordList, error)
	ListRecordsByToken(ctx context.Context, token string) (RecordList, error)
	// ListMetadataFormats returns the formats of a single item, or of the
	// whole repository if identifier is empty.
	ListMetadataFormats(ctx context.Context, identifier string) ([]MetadataFormat, error)
	BaseURL() string
	Granularity() Granularity
}

// Identity describes a repository.
type Identity struct {
	RepositoryName    string
	EarliestDatestamp time.Time
	// DeletedRecord is one of no, persistent or transient.
	DeletedRecord string
	Granularity   Granularity
	AdminEmails   []string
	// Compression is optional, e.g. gzip.
	Compression string
	Description *Document
}

// Validate checks the fields the schema requires.
func (id Identity) Validate() error {
	if id.RepositoryName == "" {
		return ErrNoRepositoryName
	}
	if len(id.AdminEmails) == 0 {
		return ErrNoAdminEmail
	}
	switch id.DeletedRecord {
	case DeletedRecordNo, DeletedRecordPersistent, DeletedRecordTransient:
	default:
		return ErrDeletedRecord
	}
	if !id.Granularity.Valid() {
		return ErrGranularity
	}
	return nil
}

// IdentityCache resolves an identity once and keeps the result. It is meant
// for repositories where building the identity is expensive, e.g. because the
// earliest datestamp requires a query. Failed loads are not kept, the next Get
// tries again.
type IdentityCache struct {
	mu       sync.Mutex
	loaded   bool
	identity Identity
	load     func(context.Context) (Identity, error)
}

// NewIdentityCache wraps a loader function.
func NewIdentityCache(load func(context.Context) (Identity, error)) *IdentityCache {
	return &IdentityCache{load: load}
}

// Get returns the identity, calling the loader until it succeeded once.
// Concurrent callers wait for a running load.
func (c *IdentityCache) Get(ctx context.Context) (Identity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return c.identity, nil
	}
	identity, err := c.load(ctx)
	if err != nil {
		return Identity{}, err
	}
	c.identity, c.loaded = identity, true
	return identity, nil
}

// Reset drops a loaded identity.
func (c *IdentityCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = false
	c.identity = Identity{}
}

// MetadataFormat is a metadata encoding the repository can disseminate.
type MetadataFormat struct {
	Prefix    string
	Schema    string
	Namespace string
}

// Set is a grouping of items for selective harvesting. Spec is a colon
// separated hierarchy, e.g. music:(muzak).
type Set struct {
	Spec        string
	Name        string
	Description *Document
}

// ValidSetSpec reports whether spec follows the setSpec syntax.
func ValidSetSpec(spec string) bool {
	return setSpecPattern.MatchString(spec)
}

// Header is the part of a record that is shown in ListIdentifiers.
type Header struct {
	Identifier string
	Datestamp  time.Time
	SetSpecs   []string
	Deleted    bool
}

// Record is a header plus metadata in a single format. Metadata and About are
// never rendered for deleted records.
type Record struct {
	Header   Header
	Metadata *Document
	About    *Document
}

// ResultList is a single page of a list response. A zero Token means this is
// the last page.
type ResultList[T any] struct {
	Items []T
	Token string
	// CompleteListSize and Cursor are optional, nil means absent.
	CompleteListSize *int
	Cursor           *int
	// ExpirationDate of the token, zero means absent.
	ExpirationDate time.Time
}

type (
	SetList    = ResultList[Set]
	RecordList = ResultList[Record]
)

// hasResumptionToken reports whether a resumptionToken element is needed.
func (l ResultList[T]) hasResumptionToken() bool {
	return l.Token != "" || l.CompleteListSize != nil || l.Cursor != nil || !l.ExpirationDate.IsZero()
}

// RecordQuery selects records for ListRecords and ListIdentifiers. Zero
// values mean no restriction.
type RecordQuery struct {
	MetadataPrefix string
	From           time.Time
	Until          time.Time
	// UntilGranularity tells whether Until was given as a day, in which case
	// the whole day is included.
	UntilGranularity Granularity
	Set              string
}

// IntPtr is a small helper for the optional ResultList fields.
func IntPtr(i int) *int {
	return &i
}
