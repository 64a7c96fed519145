package strapi

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/nazirov91/ra-strapi-rest/pkg/dataprovider"
)

// referenceSuffix marks a foreign-key target field ("post_id").
const referenceSuffix = "_id"

// EncodeQuery builds the query string of a list request: sort, pagination,
// filter terms and the reference-scoping term, joined by "&". The result
// never has a leading or trailing separator.
func EncodeQuery(d Dialect, params dataprovider.ListParams) string {
	terms := []string{encodeSort(d, params.Sort)}
	terms = append(terms, encodePagination(d, params.Pagination)...)
	terms = append(terms, filterTerms(d, params)...)
	return strings.Join(terms, "&")
}

// EncodeFilter encodes the filter and reference-scoping terms only, as used
// by the companion count request.
func EncodeFilter(d Dialect, params dataprovider.ListParams) string {
	return strings.Join(filterTerms(d, params), "&")
}

// Start returns the zero-based offset of the first record of a page.
func Start(p dataprovider.Pagination) int {
	return (p.Page - 1) * p.PerPage
}

func encodeSort(d Dialect, s dataprovider.Sort) string {
	if s.Field == "" {
		return d.SortParam + "=" + d.DefaultSortField + ":" + d.DefaultSortOrder
	}
	return d.SortParam + "=" + s.Field + ":" + d.order(s.Order)
}

func encodePagination(d Dialect, p dataprovider.Pagination) []string {
	return []string{
		d.StartParam + "=" + strconv.Itoa(Start(p)),
		d.LimitParam + "=" + strconv.Itoa(p.PerPage),
	}
}

func filterTerms(d Dialect, params dataprovider.ListParams) []string {
	terms := make([]string, 0, len(params.Filter)+1)
	for _, t := range params.Filter {
		if t.Key == dataprovider.FullTextKey && stringify(t.Value) != "" {
			terms = append(terms, d.FullTextParam+"="+encodeValue(t.Value))
			continue
		}
		terms = append(terms, d.filterKey(t.Key)+"="+encodeValue(t.Value))
	}
	if term, ok := referenceTerm(d, params); ok {
		terms = append(terms, term)
	}
	return terms
}

// referenceTerm binds the de-suffixed target field to the referenced id:
// target "post_id" with id 7 scopes the list to post=7.
func referenceTerm(d Dialect, params dataprovider.ListParams) (string, bool) {
	if !params.HasReference() || !strings.HasSuffix(params.Target, referenceSuffix) {
		return "", false
	}
	field := strings.TrimSuffix(params.Target, referenceSuffix)
	if field == "" {
		return "", false
	}
	return d.filterKey(field) + "=" + encodeValue(params.ID), true
}

// encodeInFilter encodes a native batch lookup by id.
func encodeInFilter(d Dialect, ids []any) string {
	terms := make([]string, 0, len(ids)+1)
	for i, id := range ids {
		key := d.InFilterKey
		if d.IndexedIn {
			key = fmt.Sprintf("%s[%d]", key, i)
		}
		terms = append(terms, key+"="+encodeValue(id))
	}
	terms = append(terms, d.LimitParam+"="+strconv.Itoa(len(ids)))
	return strings.Join(terms, "&")
}

func encodeValue(v any) string {
	return url.QueryEscape(stringify(v))
}
