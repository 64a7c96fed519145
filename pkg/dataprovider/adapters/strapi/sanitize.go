package strapi

import (
	"github.com/iancoleman/strcase"

	"github.com/nazirov91/ra-strapi-rest/pkg/dataprovider"
)

// serverManagedFields holds the timestamp fields the backend maintains
// itself, in both the SQL (snake_case) and document store (camelCase)
// spellings.
var serverManagedFields = func() map[string]struct{} {
	fields := make(map[string]struct{})
	for _, name := range []string{"created_at", "updated_at"} {
		fields[name] = struct{}{}
		fields[strcase.ToLowerCamel(name)] = struct{}{}
	}
	return fields
}()

// Sanitize returns a shallow copy of a record without server-managed
// timestamp fields. Nested values are shared with the input.
func Sanitize(r dataprovider.Record) dataprovider.Record {
	if r == nil {
		return nil
	}
	out := make(dataprovider.Record, len(r))
	for k, v := range r {
		if _, managed := serverManagedFields[k]; managed {
			continue
		}
		out[k] = v
	}
	return out
}
