// Package strapi provides a data provider that translates the abstract CRUD
// protocol of pkg/dataprovider into requests against a Strapi REST API.
//
// # Overview
//
// The provider speaks two dialects, selected once per provider instance:
//
//   - legacy (Strapi v3): flat records, offset/limit query parameters, list
//     totals in the Content-Range response header.
//   - modern (Strapi v4): records shaped as {id, attributes}, relations
//     wrapped in {data: ...} envelopes, bracket-notation query parameters,
//     list totals in meta.pagination.total.
//
// Dialect differences are data (see Dialect), consumed by the query encoder
// and the response normalizer; call sites never branch on the dialect name.
//
// # Configuration Example
//
//	backend {
//	  base_url        = "http://localhost:1337/api"
//	  dialect         = "modern"
//	  timeout         = "30s"
//	  count_endpoint  = "count"
//	  native_get_many = true
//	  media_fields    = ["cover"]
//	}
//
// # Routing
//
// Every operation is routed in priority order:
//
//  1. Upload: when the record of a create, update or update-many holds a new
//     file anywhere, the record is sent as one multipart request with a
//     "files.<field>" part per new file and a "data" part with the remaining
//     fields. Update-many with files updates the first id only.
//  2. Batch fallback: get-many (unless native lookups are enabled),
//     update-many and delete-many issue one request per id in parallel. The
//     result keeps the order of the ids; any failure fails the whole batch.
//  3. Single request: the query encoder builds the URL, the record sanitizer
//     strips server-managed timestamps from write bodies, and the response
//     normalizer shapes the reply as {data, total?}.
//
// # Requests
//
//	Operation           Method  URL
//	GET_LIST            GET     /<resource>?<sort>&<start>&<limit>&<filters>
//	GET_MANY_REFERENCE  GET     /<resource>?...&<target without _id>=<id>
//	GET_ONE             GET     /<resource>/<id>
//	GET_MANY            GET     /<resource>/<id> per id, or /<resource>?<in filter>
//	CREATE              POST    /<resource>
//	UPDATE              PUT     /<resource>/<id>
//	UPDATE_MANY         PUT     /<resource>/<id> per id
//	DELETE              DELETE  /<resource>/<id>
//	DELETE_MANY         DELETE  /<resource>/<id> per id
//
// The id "SingleType" addresses a singleton resource: its URL has no id
// segment. The modern dialect appends populate=* to every read and write.
//
// # Errors
//
// Transport errors are returned unchanged. List responses without any total
// signal fail with *MissingCountError (ErrMissingCount); relations without an
// id fail with *MalformedPayloadError (ErrMalformedPayload). HTTPTransport
// reports non-2xx responses as *HTTPError. No request is ever retried.
package strapi
