package token

import "github.com/vitec-memorix/OaiPmh"

// Page wraps one page of a list. Items is the page itself, starting at offset
// in a list of total entries. A list that fits on a single page gets no
// resumption token, the last page of a longer list gets an empty one.
func Page[T any](items []T, total, offset int, next State) oaipmh.ResultList[T] {
	l := oaipmh.ResultList[T]{Items: items}
	if offset == 0 && len(items) >= total {
		return l
	}
	l.CompleteListSize = oaipmh.IntPtr(total)
	l.Cursor = oaipmh.IntPtr(offset)
	if offset+len(items) < total {
		next.Offset = offset + len(items)
		l.Token = Encode(next)
	}
	return l
}

// Bounds returns the slice bounds of the page at offset.
func Bounds(offset, size, total int) (int, int) {
	if offset > total {
		offset = total
	}
	end := offset + size
	if end > total {
		end = total
	}
	return offset, end
}
