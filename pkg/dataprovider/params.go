package dataprovider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

var filterType = reflect.TypeOf(Filter{})

// filterDecodeHook turns a map into a Filter, sorted by key.
func filterDecodeHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != filterType {
		return data, nil
	}
	switch v := data.(type) {
	case map[string]any:
		return NewFilter(v), nil
	case Record:
		return NewFilter(v), nil
	case nil:
		return Filter(nil), nil
	}
	return data, nil
}

// newParams returns a pointer to the zero params struct of op.
func newParams(op OperationType) (any, error) {
	switch op {
	case GetList, GetManyReference:
		return &ListParams{}, nil
	case GetOne:
		return &GetOneParams{}, nil
	case GetMany:
		return &GetManyParams{}, nil
	case Create:
		return &CreateParams{}, nil
	case Update:
		return &UpdateParams{}, nil
	case UpdateMany:
		return &UpdateManyParams{}, nil
	case Delete:
		return &DeleteParams{}, nil
	case DeleteMany:
		return &DeleteManyParams{}, nil
	default:
		return nil, &UnsupportedOperationError{Op: op}
	}
}

// DecodeParams converts loosely typed params (typically Go maps) into the
// params struct of the given operation. Params that already have the right
// type are returned as they are. Filters given as maps are sorted by key; use
// DecodeParamsJSON to keep the key order of a JSON document.
func DecodeParams(op OperationType, raw any) (any, error) {
	target, err := newParams(op)
	if err != nil {
		return nil, err
	}
	zero := reflect.ValueOf(target).Elem()

	if raw == nil {
		return zero.Interface(), nil
	}
	if reflect.TypeOf(raw) == zero.Type() {
		return raw, nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       filterDecodeHook,
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create params decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return nil, InvalidParams(op, err)
	}

	return zero.Interface(), nil
}

// DecodeParamsJSON decodes a JSON document straight into the params struct of
// the given operation. Filter terms keep the key order of the document.
func DecodeParamsJSON(op OperationType, data []byte) (any, error) {
	target, err := newParams(op)
	if err != nil {
		return nil, err
	}
	zero := reflect.ValueOf(target).Elem()

	if len(bytes.TrimSpace(data)) == 0 {
		return zero.Interface(), nil
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("params are not valid JSON")
	}
	if err := json.Unmarshal(data, target); err != nil {
		return nil, InvalidParams(op, err)
	}

	return zero.Interface(), nil
}
