package dataprovider

import (
	"context"
	"fmt"
	"strings"

	"github.com/iancoleman/strcase"
)

// ===================================================================
// CORE INTERFACE: DataProvider
// ===================================================================
//
// DataProvider is the framework-agnostic CRUD protocol. Every operation
// takes a resource name (e.g. "posts") and an operation-specific params
// struct, and returns a Result shaped as {data, total?}.
//
// List-type operations (GetList, GetManyReference) always return a total.
// Batch operations (GetMany, UpdateMany, DeleteMany) return their records in
// the order of the requested ids.
type DataProvider interface {
	// GetList returns one page of a resource, with the total match count.
	GetList(ctx context.Context, resource string, params ListParams) (*Result, error)

	// GetOne returns a single record.
	GetOne(ctx context.Context, resource string, params GetOneParams) (*Result, error)

	// GetMany returns the records for a list of ids, in id order.
	GetMany(ctx context.Context, resource string, params GetManyParams) (*Result, error)

	// GetManyReference returns one page of the records whose Target field
	// references params.ID.
	GetManyReference(ctx context.Context, resource string, params ListParams) (*Result, error)

	// Create stores a new record and returns it with its server-assigned id.
	Create(ctx context.Context, resource string, params CreateParams) (*Result, error)

	// Update replaces the fields of an existing record.
	Update(ctx context.Context, resource string, params UpdateParams) (*Result, error)

	// UpdateMany applies the same field values to several records.
	UpdateMany(ctx context.Context, resource string, params UpdateManyParams) (*Result, error)

	// Delete removes a record. The returned data is always {id: nil}.
	Delete(ctx context.Context, resource string, params DeleteParams) (*Result, error)

	// DeleteMany removes several records.
	DeleteMany(ctx context.Context, resource string, params DeleteManyParams) (*Result, error)
}

// Dispatcher is the single-entry form of the protocol: an operation type,
// a resource and loosely typed params.
type Dispatcher interface {
	Dispatch(ctx context.Context, op OperationType, resource string, params any) (*Result, error)
}

// OperationType names one of the protocol operations.
type OperationType string

const (
	GetList          OperationType = "GET_LIST"
	GetOne           OperationType = "GET_ONE"
	GetMany          OperationType = "GET_MANY"
	GetManyReference OperationType = "GET_MANY_REFERENCE"
	Create           OperationType = "CREATE"
	Update           OperationType = "UPDATE"
	UpdateMany       OperationType = "UPDATE_MANY"
	Delete           OperationType = "DELETE"
	DeleteMany       OperationType = "DELETE_MANY"
)

// Operations lists every supported operation type.
var Operations = []OperationType{
	GetList, GetOne, GetMany, GetManyReference,
	Create, Update, UpdateMany, Delete, DeleteMany,
}

// IsList reports whether the operation returns a paginated list with a total.
func (o OperationType) IsList() bool {
	return o == GetList || o == GetManyReference
}

// IsBatch reports whether the operation addresses several ids at once.
func (o OperationType) IsBatch() bool {
	return o == GetMany || o == UpdateMany || o == DeleteMany
}

// String implements fmt.Stringer.
func (o OperationType) String() string {
	return string(o)
}

// ParseOperation accepts both the constant form ("GET_MANY_REFERENCE") and
// the method form ("getManyReference").
func ParseOperation(s string) (OperationType, error) {
	name := strings.TrimSpace(s)
	if name == "" {
		return "", fmt.Errorf("operation name is required")
	}
	op := OperationType(strcase.ToScreamingSnake(name))
	for _, known := range Operations {
		if op == known {
			return op, nil
		}
	}
	return "", &UnsupportedOperationError{Op: OperationType(name)}
}
