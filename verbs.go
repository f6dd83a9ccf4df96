package oaipmh

// Verb is one of the six protocol requests (4. Protocol Requests and
// Responses).
type Verb int

const (
	VerbUnknown Verb = iota
	Identify
	ListMetadataFormats
	ListSets
	GetRecord
	ListIdentifiers
	ListRecords
)

// verbNames are the wire names, indexed by Verb.
var verbNames = [...]string{
	VerbUnknown:         "",
	Identify:            "Identify",
	ListMetadataFormats: "ListMetadataFormats",
	ListSets:            "ListSets",
	GetRecord:           "GetRecord",
	ListIdentifiers:     "ListIdentifiers",
	ListRecords:         "ListRecords",
}

// verbArguments lists the arguments each verb accepts, besides verb itself.
// The table must not be modified.
var verbArguments = map[Verb][]string{
	Identify:            {},
	ListMetadataFormats: {"identifier"},
	ListSets:            {"resumptionToken"},
	GetRecord:           {"identifier", "metadataPrefix"},
	ListIdentifiers:     {"from", "until", "metadataPrefix", "set", "resumptionToken"},
	ListRecords:         {"from", "until", "metadataPrefix", "set", "resumptionToken"},
}

// ParseVerb maps a wire name to a Verb, VerbUnknown if there is no such verb.
// Names are case sensitive.
func ParseVerb(s string) Verb {
	for v, name := range verbNames {
		if name != "" && name == s {
			return Verb(v)
		}
	}
	return VerbUnknown
}

// String returns the wire name.
func (v Verb) String() string {
	if v < 0 || int(v) >= len(verbNames) {
		return ""
	}
	return verbNames[v]
}

// Arguments returns a copy of the arguments allowed for v.
func (v Verb) Arguments() []string {
	args := verbArguments[v]
	result := make([]string, len(args))
	copy(result, args)
	return result
}

// allows reports whether name is a valid argument for v.
func (v Verb) allows(name string) bool {
	for _, a := range verbArguments[v] {
		if a == name {
			return true
		}
	}
	return false
}
