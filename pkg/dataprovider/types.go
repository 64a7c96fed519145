package dataprovider

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// SingleType is the id used to address a singleton resource. Requests for a
// singleton carry no id path segment.
const SingleType = "SingleType"

// Sort orders.
const (
	SortAsc  = "ASC"
	SortDesc = "DESC"
)

// Record is one resource record: field name to value. Values are scalars,
// nested records, slices, or file values (*File, *RawFile). A persisted
// record carries an "id" (string or number).
type Record map[string]any

// ID returns the record's identifier, accepting the "_id" spelling used by
// document stores.
func (r Record) ID() (any, bool) {
	return IDOf(map[string]any(r))
}

// IDOf returns m["id"], falling back to m["_id"]. Nil ids count as absent.
func IDOf(m map[string]any) (any, bool) {
	if id, ok := m["id"]; ok && id != nil {
		return id, true
	}
	if id, ok := m["_id"]; ok && id != nil {
		return id, true
	}
	return nil, false
}

// Pagination selects a page. Page is 1-based.
type Pagination struct {
	Page    int `json:"page" mapstructure:"page"`
	PerPage int `json:"perPage" mapstructure:"perPage"`
}

// Sort selects the sort field and order. An empty field selects the
// backend's default sort.
type Sort struct {
	Field string `json:"field" mapstructure:"field"`
	Order string `json:"order" mapstructure:"order"`
}

// ListParams are the params of GetList and GetManyReference. Target and ID
// are only set for GetManyReference.
type ListParams struct {
	Pagination Pagination `json:"pagination" mapstructure:"pagination"`
	Sort       Sort       `json:"sort" mapstructure:"sort"`
	Filter     Filter     `json:"filter" mapstructure:"filter"`
	Target     string     `json:"target,omitempty" mapstructure:"target"`
	ID         any        `json:"id,omitempty" mapstructure:"id"`
}

// Validate checks the pagination invariants: page >= 1 and perPage > 0.
func (p ListParams) Validate() error {
	pg := p.Pagination
	return validation.ValidateStruct(&pg,
		validation.Field(&pg.Page, validation.Required, validation.Min(1)),
		validation.Field(&pg.PerPage, validation.Required, validation.Min(1)),
	)
}

// HasReference reports whether the params scope the list to a referencing
// record.
func (p ListParams) HasReference() bool {
	return p.Target != "" && !IsEmptyID(p.ID)
}

type GetOneParams struct {
	ID any `json:"id" mapstructure:"id"`
}

type GetManyParams struct {
	IDs []any `json:"ids" mapstructure:"ids"`
}

type CreateParams struct {
	Data Record `json:"data" mapstructure:"data"`
}

type UpdateParams struct {
	ID           any    `json:"id" mapstructure:"id"`
	Data         Record `json:"data" mapstructure:"data"`
	PreviousData Record `json:"previousData,omitempty" mapstructure:"previousData"`
}

type UpdateManyParams struct {
	IDs  []any  `json:"ids" mapstructure:"ids"`
	Data Record `json:"data" mapstructure:"data"`
}

type DeleteParams struct {
	ID           any    `json:"id" mapstructure:"id"`
	PreviousData Record `json:"previousData,omitempty" mapstructure:"previousData"`
}

type DeleteManyParams struct {
	IDs []any `json:"ids" mapstructure:"ids"`
}

// Result is the normalized response envelope. Total is set for list-type
// operations only.
type Result struct {
	Data  any  `json:"data"`
	Total *int `json:"total,omitempty"`
}

// Records returns Data as a slice of records when it holds one.
func (r *Result) Records() ([]Record, error) {
	switch v := r.Data.(type) {
	case []Record:
		return v, nil
	case []any:
		out := make([]Record, 0, len(v))
		for i, item := range v {
			switch rec := item.(type) {
			case Record:
				out = append(out, rec)
			case map[string]any:
				out = append(out, Record(rec))
			default:
				return nil, fmt.Errorf("item %d is %T, not a record", i, item)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("result data is %T, not a list", r.Data)
	}
}

// IsSingleType reports whether id addresses a singleton resource.
func IsSingleType(id any) bool {
	s, ok := id.(string)
	return ok && s == SingleType
}

// IsEmptyID reports whether id is absent: nil or the empty string.
func IsEmptyID(id any) bool {
	if id == nil {
		return true
	}
	s, ok := id.(string)
	return ok && s == ""
}
