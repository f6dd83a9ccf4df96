//  Copyright 2015 by Leipzig University Library, http://ub.uni-leipzig.de
//                    The Finc Authors, http://finc.info
//                    Martin Czygan, <martin.czygan@uni-leipzig.de>
//
// This file is part of some open source application.
//
// Some open source application is free software: you can redistribute
// it and/or modify it under the terms of the GNU General Public
// License as published by the Free Software Foundation, either
// version 3 of the License, or (at your option) any later version.
//
// Some open source application is distributed in the hope that it will
// be useful, but WITHOUT ANY WARRANTY; without even the implied warranty
// of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Foobar.  If not, see <http://www.gnu.org/licenses/>.
//
// @license GPL-3.0+ <http://spdx.org/licenses/GPL-3.0+>
//
package oaipmh

import (
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

var ErrMethodNotAllowed = errors.New("request: only GET and POST are supported")

// Values is a thin wrapper around url.Values. Keys may carry more than one
// value, which is an error for every protocol argument.
type Values struct {
	url.Values
}

// NewValues returns a new empty struct.
func NewValues() Values {
	return Values{url.Values{}}
}

// ValuesFromMap is a shortcut for single valued parameters.
func ValuesFromMap(m map[string]string) Values {
	v := NewValues()
	for k, s := range m {
		v.Add(k, s)
	}
	return v
}

// Has reports whether key was given at all, even with an empty value.
func (v Values) Has(key string) bool {
	_, ok := v.Values[key]
	return ok
}

// Keys returns the parameter names in sorted order.
func (v Values) Keys() []string {
	var keys []string
	for k := range v.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParseRequest extracts the protocol parameters from an HTTP request. GET
// requests carry them in the query string, POST requests in a form encoded
// body (3.1.1 HTTP Request Format).
func ParseRequest(r *http.Request) (Values, error) {
	switch r.Method {
	case http.MethodGet:
		return Values{r.URL.Query()}, nil
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			return NewValues(), err
		}
		return Values{r.PostForm}, nil
	}
	return NewValues(), ErrMethodNotAllowed
}

// ValidateRequest checks the verb and that only arguments allowed for that
// verb are present. All argument problems are reported together.
func ValidateRequest(params Values) (Verb, error) {
	names, ok := params.Values["verb"]
	if !ok {
		return VerbUnknown, NewError(BadVerb, "Verb is missing")
	}
	if len(names) > 1 {
		return VerbUnknown, NewError(BadVerb, "Only 1 verb allowed, multiple given")
	}
	verb := ParseVerb(names[0])
	if verb == VerbUnknown {
		return VerbUnknown, NewError(BadVerb, "%s is not a valid verb", names[0])
	}

	var checks []func() error
	var others int
	for _, key := range params.Keys() {
		if key == "verb" {
			continue
		}
		others++
		key := key
		switch {
		case !verb.allows(key):
			checks = append(checks, func() error {
				return NewError(BadArgument, "Argument %s is not allowed for verb %s. Allowed arguments are: %s",
					key, verb, strings.Join(verb.Arguments(), ", "))
			})
		case len(params.Values[key]) > 1:
			checks = append(checks, func() error {
				return NewError(BadArgument, "Only one %s allowed, multiple given", key)
			})
		}
	}
	// An exclusive argument (3.5 Flow Control).
	if params.Has("resumptionToken") && others > 1 {
		checks = append(checks, func() error {
			return NewError(BadArgument, "resumptionToken can not be used together with other arguments")
		})
	}
	if err := runChecks(checks...); err != nil {
		return verb, err
	}
	return verb, nil
}
