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
package probe

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sethgrid/pester"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/vitec-memorix/OaiPmh"
)

var (
	ErrNoEndpoint       = errors.New("probe: no endpoint given")
	ErrUnexpectedStatus = errors.New("probe: unexpected HTTP status")
	ErrTooManyRequests  = errors.New("probe: too many requests")
)

// HttpRequestDoer is the interface of http.Client and pester.Client.
type HttpRequestDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client sends single OAI-PMH requests and decodes the answers.
type Client struct {
	// doer is a delegate for HTTP requests.
	doer   HttpRequestDoer
	logger *zap.Logger
}

// NewClientDoer uses a custom HTTP client.
func NewClientDoer(doer HttpRequestDoer, logger *zap.Logger) Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Client{doer: doer, logger: logger}
}

// NewClient uses a retrying HTTP client, making up to attempts requests.
func NewClient(timeout time.Duration, attempts int, logger *zap.Logger) Client {
	if attempts < 1 {
		attempts = 1
	}
	c := pester.New()
	c.Timeout = timeout
	c.MaxRetries = attempts
	c.Backoff = pester.ExponentialBackoff
	return NewClientDoer(c, logger)
}

// Response is the subset of an OAI-PMH response the probe looks at.
type Response struct {
	Date                string `xml:"responseDate"`
	Request             struct {
		BaseURL string `xml:",chardata"`
		Verb    string `xml:"verb,attr"`
	} `xml:"request"`
	Identify            Identify `xml:"Identify"`
	ListMetadataFormats struct {
		Formats []Format `xml:"metadataFormat"`
	} `xml:"ListMetadataFormats"`
	ListSets            struct {
		Sets  []Set `xml:"set"`
		Token struct {
			Value string `xml:",chardata"`
			Size  string `xml:"completeListSize,attr"`
		} `xml:"resumptionToken"`
	} `xml:"ListSets"`
	Errors              []struct {
		Code    string `xml:"code,attr"`
		Message string `xml:",chardata"`
	} `xml:"error"`
}

// Identify describes the repository.
type Identify struct {
	Name              string   `xml:"repositoryName" json:"name"`
	URL               string   `xml:"baseURL" json:"url"`
	Version           string   `xml:"protocolVersion" json:"version"`
	AdminEmails       []string `xml:"adminEmail" json:"emails"`
	EarliestDatestamp string   `xml:"earliestDatestamp" json:"earliest"`
	DeletePolicy      string   `xml:"deletedRecord" json:"delete"`
	Granularity       string   `xml:"granularity" json:"granularity"`
	Compression       []string `xml:"compression" json:"compression,omitempty"`
}

// Format is a metadata format as listed by the repository.
type Format struct {
	Prefix    string `xml:"metadataPrefix" json:"prefix"`
	Schema    string `xml:"schema" json:"schema"`
	Namespace string `xml:"metadataNamespace" json:"namespace"`
}

// Set is a set as listed by the repository.
type Set struct {
	Spec string `xml:"setSpec" json:"spec"`
	Name string `xml:"setName" json:"name"`
}

// err combines all error elements of the response.
func (r Response) err() error {
	var err error
	for _, e := range r.Errors {
		err = multierr.Append(err, &oaipmh.Error{Code: oaipmh.Code(e.Code), Message: e.Message})
	}
	return err
}

// Do sends a GET request to endpoint. OAI errors in the response are
// returned as *oaipmh.Error, together with the decoded response.
func (c Client) Do(ctx context.Context, endpoint string, params url.Values) (Response, error) {
	var response Response
	if endpoint == "" {
		return response, ErrNoEndpoint
	}
	link := endpoint + "?" + params.Encode()
	c.logger.Debug("request", zap.String("url", link))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return response, err
	}
	req.Header.Set("User-Agent", oaipmh.UserAgent)
	resp, err := c.doer.Do(req)
	if err != nil {
		return response, err
	}
	defer resp.Body.Close()
	// Protocol errors come with 400, everything else non 2xx is a failure.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusBadRequest {
		return response, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}
	if err := xml.NewDecoder(resp.Body).Decode(&response); err != nil {
		return response, fmt.Errorf("probe: decode %s: %w", params.Get("verb"), err)
	}
	return response, response.err()
}
