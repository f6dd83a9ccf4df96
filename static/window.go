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
package static

import (
	"errors"
	"time"

	"github.com/jinzhu/now"

	"github.com/vitec-memorix/OaiPmh"
)

var ErrInvalidDateRange = errors.New("invalid date range")

// Window represent a span of time, from and until including. A zero From or
// Until leaves that side open.
type Window struct {
	From  time.Time
	Until time.Time
}

// NewWindow returns the window of a record query. An until given as a day
// covers that whole day.
func NewWindow(from, until time.Time, untilGranularity oaipmh.Granularity) (Window, error) {
	w := Window{From: from, Until: until}
	if !until.IsZero() && untilGranularity == oaipmh.GranularityDay {
		w.Until = now.New(until.UTC()).EndOfDay()
	}
	if !w.From.IsZero() && !w.Until.IsZero() && w.From.After(w.Until) {
		return w, ErrInvalidDateRange
	}
	return w, nil
}

// Contains reports whether t falls into the window.
func (w Window) Contains(t time.Time) bool {
	if !w.From.IsZero() && t.Before(w.From) {
		return false
	}
	if !w.Until.IsZero() && t.After(w.Until) {
		return false
	}
	return true
}
