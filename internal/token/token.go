// Package token encodes the paging state of list requests into opaque
// resumption tokens. Tokens are stateless, everything needed to continue a list
// travels with the token itself.
package token

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

var ErrInvalid = errors.New("token: invalid resumption token")

// Kind tells which list a token continues.
type Kind string

const (
	Sets    Kind = "s"
	Records Kind = "r"
)

// State is the position in a list and the query that produced it.
type State struct {
	Kind             Kind      `json:"k"`
	Prefix           string    `json:"p,omitempty"`
	From             time.Time `json:"f,omitempty"`
	Until            time.Time `json:"u,omitempty"`
	UntilGranularity string    `json:"g,omitempty"`
	Set              string    `json:"s,omitempty"`
	Offset           int       `json:"o"`
}

// Encode returns an URL safe token for s.
func Encode(s State) string {
	b, err := json.Marshal(s)
	if err != nil {
		// State only contains strings, ints and times.
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// Decode parses a token and checks it is meant for the given kind of list.
func Decode(tok string, kind Kind) (State, error) {
	var s State
	b, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil {
		return s, ErrInvalid
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return s, ErrInvalid
	}
	if s.Kind != kind || s.Offset < 0 {
		return s, ErrInvalid
	}
	return s, nil
}
