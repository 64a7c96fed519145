package strapi

import (
	"context"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/nazirov91/ra-strapi-rest/pkg/dataprovider"
)

// RefKey reduces an id reference to the key used for a lookup. A reference
// is a bare id, a record or file carrying an id, or a relation envelope
// {data: {id}}. ok is false for absent references (nil, "", {data: null});
// those are skipped rather than requested.
func RefKey(ref any) (key any, ok bool, err error) {
	switch r := ref.(type) {
	case nil:
		return nil, false, nil
	case *dataprovider.File:
		if r == nil || dataprovider.IsEmptyID(r.ID) {
			return nil, false, nil
		}
		return r.ID, true, nil
	}

	m, isMap := asMap(ref)
	if !isMap {
		if dataprovider.IsEmptyID(ref) {
			return nil, false, nil
		}
		return ref, true, nil
	}

	if isEnvelope(m) {
		return RefKey(m["data"])
	}
	if id, found := dataprovider.IDOf(m); found {
		return RefKey(id)
	}
	return nil, false, &MalformedPayloadError{Reason: "id reference has neither id nor _id"}
}

// refKeys resolves every reference, dropping absent ones.
func refKeys(refs []any) ([]any, error) {
	keys := make([]any, 0, len(refs))
	for _, ref := range refs {
		key, ok, err := RefKey(ref)
		if err != nil {
			return nil, err
		}
		if ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// fanOut runs call for every index in parallel. Result i is the value of
// call(i). The first failure is returned as soon as it happens; calls still in
// flight run to completion and their results are dropped.
func fanOut[T any](n int, call func(i int) (T, error)) ([]T, error) {
	results := make([]T, n)
	if n == 0 {
		return results, nil
	}

	failed := make(chan error, 1)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			v, err := call(i)
			if err != nil {
				select {
				case failed <- err:
				default:
				}
				return err
			}
			results[i] = v
			return nil
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-failed:
		return nil, err
	case err := <-done:
		if err != nil {
			return nil, err
		}
		return results, nil
	}
}

// batch issues one single-record request per id and joins the normalized
// records in id order.
func (p *Provider) batch(ctx context.Context, op dataprovider.OperationType, resource string, ids []any, method string, body dataprovider.Record) (*dataprovider.Result, error) {
	logger := loggerFrom(ctx, p.logger)
	logger.Debug("dispatching batch fallback",
		"operation", op,
		"resource", resource,
		"count", len(ids))

	var encoded []byte
	if body != nil {
		var err error
		encoded, err = p.encodeBody(body)
		if err != nil {
			return nil, err
		}
	}

	records, err := fanOut(len(ids), func(i int) (dataprovider.Record, error) {
		opts := RequestOptions{Method: method, Body: encoded}
		target := p.recordURL(resource, ids[i])
		if method == http.MethodGet {
			target = p.withPopulate(target)
		}
		resp, err := p.transport.Request(ctx, target, opts)
		if err != nil {
			return nil, err
		}
		return p.normalizer.Record(resp)
	})
	if err != nil {
		logger.Debug("batch fallback failed", "operation", op, "resource", resource, "error", err)
		return nil, err
	}

	data := make([]any, len(records))
	for i, r := range records {
		data[i] = r
	}
	return &dataprovider.Result{Data: data}, nil
}
