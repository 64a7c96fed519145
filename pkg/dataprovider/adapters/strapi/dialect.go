package strapi

import (
	"fmt"
	"strings"
)

// TotalSource is a place a list response can carry its total count.
type TotalSource int

const (
	// TotalFromHeader reads the count after the last "/" of Content-Range.
	TotalFromHeader TotalSource = iota
	// TotalFromMeta reads meta.pagination.total from the response body.
	TotalFromMeta
	// TotalFromCount reads the companion count request's response.
	TotalFromCount
)

func (s TotalSource) String() string {
	switch s {
	case TotalFromHeader:
		return "content-range header"
	case TotalFromMeta:
		return "meta.pagination.total"
	case TotalFromCount:
		return "count endpoint"
	default:
		return fmt.Sprintf("TotalSource(%d)", int(s))
	}
}

// Dialect describes how one backend generation encodes list queries and
// shapes its responses. A Provider selects one dialect at construction; the
// query encoder and the response normalizer read everything they need from it.
type Dialect struct {
	Name string

	// Sorting.
	SortParam        string
	DefaultSortField string
	DefaultSortOrder string
	LowercaseOrder   bool

	// Pagination.
	StartParam string
	LimitParam string

	// Filtering. FilterKeyFormat receives the field name.
	FilterKeyFormat string
	FullTextParam   string

	// Native batch lookup by id. InFilterKey is the parameter name; with
	// IndexedIn each value gets its own [i] suffix.
	NativeGetMany bool
	InFilterKey   string
	IndexedIn     bool

	// Populate, when set, is appended to every request URL as populate=<value>.
	Populate string

	// TotalSources lists where list totals are read from, by priority.
	TotalSources []TotalSource

	// CountPath, when set, is requested as /<resource>/<CountPath> in parallel
	// with every list request.
	CountPath string

	// AttributeRecords marks records shaped as {id, attributes} with relations
	// wrapped in {data: ...} envelopes.
	AttributeRecords bool

	// WrapBody sends JSON write bodies as {"data": record}.
	WrapBody bool
}

// Legacy is the offset/limit dialect (Strapi v3): flat records, totals in
// the Content-Range header.
var Legacy = Dialect{
	Name:             "legacy",
	SortParam:        "_sort",
	DefaultSortField: "updated_at",
	DefaultSortOrder: "DESC",
	StartParam:       "_start",
	LimitParam:       "_limit",
	FilterKeyFormat:  "%s",
	FullTextParam:    "_q",
	InFilterKey:      "id_in",
	TotalSources:     []TotalSource{TotalFromHeader, TotalFromCount},
}

// Modern is the bracket-notation dialect (Strapi v4): {id, attributes}
// records, relation envelopes, totals in meta.pagination.total.
var Modern = Dialect{
	Name:             "modern",
	SortParam:        "sort",
	DefaultSortField: "updated_at",
	DefaultSortOrder: "desc",
	LowercaseOrder:   true,
	StartParam:       "pagination[start]",
	LimitParam:       "pagination[limit]",
	FilterKeyFormat:  "filters[%s]_eq",
	FullTextParam:    "_q",
	InFilterKey:      "filters[id][$in]",
	IndexedIn:        true,
	Populate:         "*",
	TotalSources:     []TotalSource{TotalFromMeta, TotalFromCount},
	AttributeRecords: true,
	WrapBody:         true,
}

// DialectByName returns a copy of a built-in dialect. "v3" and "v4" are
// accepted as aliases.
func DialectByName(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "legacy", "v3":
		return Legacy, nil
	case "modern", "v4", "":
		return Modern, nil
	default:
		return Dialect{}, fmt.Errorf("unknown dialect %q (want legacy or modern)", name)
	}
}

func (d Dialect) order(order string) string {
	if d.LowercaseOrder {
		return strings.ToLower(order)
	}
	return order
}

func (d Dialect) filterKey(field string) string {
	return fmt.Sprintf(d.FilterKeyFormat, field)
}

func (d Dialect) hasTotalSource(s TotalSource) bool {
	for _, src := range d.TotalSources {
		if src == s {
			return true
		}
	}
	return false
}
