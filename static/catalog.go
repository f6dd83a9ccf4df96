package static

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/vitec-memorix/OaiPmh"
)

var ErrBadCatalog = errors.New("catalog: invalid")

// Catalog is the complete content of a repository, as loaded from YAML.
type Catalog struct {
	BaseURL  string
	Identity oaipmh.Identity
	Formats  []oaipmh.MetadataFormat
	Sets     []oaipmh.Set
	Items    []Item
}

// Item is a record in every format it is available in.
type Item struct {
	Header oaipmh.Header
	// Formats are the metadata prefixes of the item.
	Formats  []string
	Metadata map[string]*oaipmh.Document
	About    *oaipmh.Document
}

// Supports reports whether the item is available as prefix.
func (it Item) Supports(prefix string) bool {
	for _, f := range it.Formats {
		if f == prefix {
			return true
		}
	}
	return false
}

// Record returns the item as a record in the given format.
func (it Item) Record(prefix string) oaipmh.Record {
	return oaipmh.Record{Header: it.Header, Metadata: it.Metadata[prefix], About: it.About}
}

type yamlCatalog struct {
	BaseURL  string       `yaml:"base_url"`
	Identity yamlIdentity `yaml:"identity"`
	Formats  []yamlFormat `yaml:"formats"`
	Sets     []yamlSet    `yaml:"sets"`
	Records  []yamlRecord `yaml:"records"`
}

type yamlIdentity struct {
	Name              string   `yaml:"name"`
	EarliestDatestamp string   `yaml:"earliest_datestamp"`
	DeletedRecord     string   `yaml:"deleted_record"`
	Granularity       string   `yaml:"granularity"`
	AdminEmails       []string `yaml:"admin_emails"`
	Compression       string   `yaml:"compression"`
	Description       string   `yaml:"description"`
}

type yamlFormat struct {
	Prefix    string `yaml:"prefix"`
	Schema    string `yaml:"schema"`
	Namespace string `yaml:"namespace"`
}

type yamlSet struct {
	Spec        string `yaml:"spec"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type yamlRecord struct {
	Identifier string            `yaml:"identifier"`
	Datestamp  string            `yaml:"datestamp"`
	Sets       []string          `yaml:"sets"`
	Deleted    bool              `yaml:"deleted"`
	Formats    []string          `yaml:"formats"`
	Metadata   map[string]string `yaml:"metadata"`
	About      string            `yaml:"about"`
}

// LoadFile reads a catalog from a plain or gzip compressed YAML file.
func LoadFile(filename string) (*Catalog, error) {
	f, err := openMaybeCompressed(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	c, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return c, nil
}

// Load decodes and validates a YAML catalog. All problems are reported at
// once.
func Load(r io.Reader) (*Catalog, error) {
	var yc yamlCatalog
	if err := yaml.NewDecoder(r).Decode(&yc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCatalog, err)
	}
	return yc.catalog()
}

func (yc yamlCatalog) catalog() (*Catalog, error) {
	var errs error
	fail := func(format string, a ...interface{}) {
		errs = multierr.Append(errs, fmt.Errorf("%w: %s", ErrBadCatalog, fmt.Sprintf(format, a...)))
	}
	parseDoc := func(what, s string) *oaipmh.Document {
		if s == "" {
			return nil
		}
		doc, err := oaipmh.ParseDocumentString(s)
		if err != nil {
			fail("%s: %v", what, err)
		}
		return doc
	}

	c := &Catalog{BaseURL: yc.BaseURL}

	known := make(map[string]bool)
	for _, f := range yc.Formats {
		if f.Prefix == "" {
			fail("format without prefix")
			continue
		}
		if known[f.Prefix] {
			fail("duplicate format %s", f.Prefix)
			continue
		}
		known[f.Prefix] = true
		c.Formats = append(c.Formats, oaipmh.MetadataFormat{Prefix: f.Prefix, Schema: f.Schema, Namespace: f.Namespace})
	}

	specs := make(map[string]bool)
	for _, s := range yc.Sets {
		if !oaipmh.ValidSetSpec(s.Spec) {
			fail("invalid setSpec %q", s.Spec)
			continue
		}
		if specs[s.Spec] {
			fail("duplicate set %s", s.Spec)
			continue
		}
		specs[s.Spec] = true
		c.Sets = append(c.Sets, oaipmh.Set{
			Spec:        s.Spec,
			Name:        s.Name,
			Description: parseDoc("set "+s.Spec, s.Description),
		})
	}

	identifiers := make(map[string]bool)
	for _, r := range yc.Records {
		item, err := r.item(known, parseDoc)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if identifiers[item.Header.Identifier] {
			fail("duplicate identifier %s", item.Header.Identifier)
			continue
		}
		identifiers[item.Header.Identifier] = true
		c.Items = append(c.Items, item)
	}
	sort.SliceStable(c.Items, func(i, j int) bool {
		a, b := c.Items[i].Header, c.Items[j].Header
		if a.Datestamp.Equal(b.Datestamp) {
			return a.Identifier < b.Identifier
		}
		return a.Datestamp.Before(b.Datestamp)
	})

	id := yc.Identity
	c.Identity = oaipmh.Identity{
		RepositoryName: id.Name,
		DeletedRecord:  id.DeletedRecord,
		Granularity:    oaipmh.Granularity(id.Granularity),
		AdminEmails:    id.AdminEmails,
		Compression:    id.Compression,
		Description:    parseDoc("identity description", id.Description),
	}
	if c.Identity.DeletedRecord == "" {
		c.Identity.DeletedRecord = oaipmh.DeletedRecordNo
	}
	if c.Identity.Granularity == "" {
		c.Identity.Granularity = oaipmh.GranularitySecond
	}
	switch {
	case id.EarliestDatestamp != "":
		t, _, err := oaipmh.ParseDate(id.EarliestDatestamp)
		if err != nil {
			fail("earliest_datestamp: %v", err)
		}
		c.Identity.EarliestDatestamp = t
	case len(c.Items) > 0:
		c.Identity.EarliestDatestamp = c.Items[0].Header.Datestamp
	}
	if err := c.Identity.Validate(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("%w: %v", ErrBadCatalog, err))
	}
	if errs != nil {
		return nil, errs
	}
	return c, nil
}

func (r yamlRecord) item(known map[string]bool, parseDoc func(string, string) *oaipmh.Document) (Item, error) {
	var errs error
	fail := func(format string, a ...interface{}) {
		errs = multierr.Append(errs, fmt.Errorf("%w: record %q: %s", ErrBadCatalog, r.Identifier, fmt.Sprintf(format, a...)))
	}
	if r.Identifier == "" {
		fail("missing identifier")
	}
	var datestamp time.Time
	if t, _, err := oaipmh.ParseDate(r.Datestamp); err != nil {
		fail("datestamp: %v", err)
	} else {
		datestamp = t
	}
	for _, spec := range r.Sets {
		if !oaipmh.ValidSetSpec(spec) {
			fail("invalid setSpec %q", spec)
		}
	}

	// Formats may be listed explicitly, which is needed for deleted records,
	// or follow from the metadata.
	formats := append([]string(nil), r.Formats...)
	var prefixes []string
	for prefix := range r.Metadata {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)
	for _, prefix := range prefixes {
		if !contains(formats, prefix) {
			formats = append(formats, prefix)
		}
	}

	metadata := make(map[string]*oaipmh.Document)
	for _, prefix := range formats {
		if !known[prefix] {
			fail("unknown format %s", prefix)
			continue
		}
		s, ok := r.Metadata[prefix]
		if !ok {
			if !r.Deleted {
				fail("no metadata for %s", prefix)
			}
			continue
		}
		if doc := parseDoc(fmt.Sprintf("record %q metadata %s", r.Identifier, prefix), s); doc != nil {
			metadata[prefix] = doc
		}
	}

	item := Item{
		Header: oaipmh.Header{
			Identifier: r.Identifier,
			Datestamp:  datestamp,
			SetSpecs:   r.Sets,
			Deleted:    r.Deleted,
		},
		Formats:  formats,
		Metadata: metadata,
		About:    parseDoc(fmt.Sprintf("record %q about", r.Identifier), r.About),
	}
	return item, errs
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
