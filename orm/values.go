package orm

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lodge-db/lodge/lodge_errors"
	"github.com/lodge-db/lodge/rdt"
)

// Get reads a field as a native Go type. Null reads as the type's
// zero; asking for a type the field does not carry fails with a kind
// mismatch.
func Get[T any](o *Object, name string) (out T, err error) {
	v, err := o.Get(name)
	if err != nil {
		return out, err
	}
	if v.IsNull() {
		return out, nil
	}
	switch p := any(&out).(type) {
	case *bool:
		*p = v.Bool()
	case *int64:
		*p = v.Int64()
	case *float64:
		*p = v.Float64()
	case *string:
		*p = v.Str()
	case *[]byte:
		*p = v.Blob()
	case *time.Time:
		*p = v.Date()
	case *uuid.UUID:
		*p = v.UUID()
	case *rdt.ID:
		*p = v.Ref()
	case *rdt.Value:
		*p = v
	default:
		err = lodge_errors.ErrTypeMismatch
	}
	return out, err
}

// Set writes a native Go value into a field.
func Set[T any](ctx context.Context, o *Object, name string, val T) error {
	var v rdt.Value
	switch x := any(val).(type) {
	case bool:
		v = rdt.NewBool(x)
	case int64:
		v = rdt.NewInteger(x)
	case int:
		v = rdt.NewInteger(int64(x))
	case float64:
		v = rdt.NewFloat(x)
	case string:
		v = rdt.NewString(x)
	case []byte:
		v = rdt.NewBytes(x)
	case time.Time:
		v = rdt.NewDate(x)
	case uuid.UUID:
		v = rdt.NewIdentifier(x)
	case rdt.ID:
		v = rdt.NewLink(x)
	case rdt.Value:
		v = x
	default:
		return lodge_errors.ErrTypeMismatch
	}
	return o.Set(ctx, name, v)
}
