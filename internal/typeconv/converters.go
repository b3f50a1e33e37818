package typeconv

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/goliatone/go-schema-migrate/internal/domain"
	"github.com/goliatone/go-schema-migrate/internal/store"
)

// Func rewrites every matching document's value of one field in place.
type Func func(ctx context.Context, coll store.Collection, dbField string, from, to Type) error

// Converter is a named store-mutation routine. The name makes resolved
// converters observable in tests and logs; routines themselves are not
// comparable.
type Converter struct {
	Name string
	run  Func
}

// Run executes the converter against one collection field.
func (c Converter) Run(ctx context.Context, coll store.Collection, dbField string, from, to Type) error {
	if c.run == nil {
		return domain.MigrationErrorf("converter %q has no routine", c.Name)
	}
	return c.run(ctx, coll, dbField, from, to)
}

// IsZero reports whether the converter is unset.
func (c Converter) IsZero() bool { return c.Name == "" && c.run == nil }

// Nothing leaves the data as is.
var Nothing = Converter{
	Name: "nothing",
	run: func(context.Context, store.Collection, string, Type, Type) error {
		return nil
	},
}

// Deny refuses conversions the engine cannot perform automatically.
var Deny = Converter{
	Name: "deny",
	run: func(_ context.Context, coll store.Collection, dbField string, from, to Type) error {
		return domain.MigrationErrorf("convertion from %q to %q is denied for %s.%s",
			from.Key, to.Key, coll.Name(), dbField)
	},
}

// DropField removes the field from every document, used when the
// destination is a synthetic counter type that stores no per-document data.
var DropField = Converter{
	Name: "drop_field",
	run: func(ctx context.Context, coll store.Collection, dbField string, _, _ Type) error {
		_, err := coll.UpdateMany(ctx,
			store.Filter{dbField: bson.M{"$exists": true}},
			store.Update{"$unset": bson.M{dbField: ""}},
		)
		return err
	},
}

// ItemToList wraps scalar values into single-element sequences.
var ItemToList = transformConverter("item_to_list", func(value any) (any, bool, error) {
	switch value.(type) {
	case bson.A, []any:
		return value, false, nil
	case nil:
		return bson.A{}, true, nil
	default:
		return bson.A{value}, true, nil
	}
})

// ExtractFromList replaces a sequence with its first element, or null for an
// empty sequence.
var ExtractFromList = transformConverter("extract_from_list", func(value any) (any, bool, error) {
	var items []any
	switch v := value.(type) {
	case bson.A:
		items = v
	case []any:
		items = v
	default:
		return value, false, nil
	}
	if len(items) == 0 {
		return nil, true, nil
	}
	return items[0], true, nil
})

// ToString renders scalars as strings.
var ToString = castConverter("to_string", func(value any) (any, bool, error) {
	switch v := value.(type) {
	case string:
		return v, false, nil
	case nil:
		return value, false, nil
	case primitive.ObjectID:
		return v.Hex(), true, nil
	default:
		return fmt.Sprintf("%v", v), true, nil
	}
})

// ToInt casts to a 32-bit integer.
var ToInt = castConverter("to_int", func(value any) (any, bool, error) {
	switch v := value.(type) {
	case int32, nil:
		return value, false, nil
	case int:
		return int32(v), true, nil
	case int64:
		return int32(v), true, nil
	case float64:
		return int32(v), true, nil
	case bool:
		if v {
			return int32(1), true, nil
		}
		return int32(0), true, nil
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 32)
		if err != nil {
			return nil, false, err
		}
		return int32(parsed), true, nil
	default:
		return nil, false, fmt.Errorf("value %v is not convertible to int", value)
	}
})

// ToLong casts to a 64-bit integer.
var ToLong = castConverter("to_long", func(value any) (any, bool, error) {
	switch v := value.(type) {
	case int64, nil:
		return value, false, nil
	case int:
		return int64(v), true, nil
	case int32:
		return int64(v), true, nil
	case float64:
		return int64(v), true, nil
	case bool:
		if v {
			return int64(1), true, nil
		}
		return int64(0), true, nil
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, false, err
		}
		return parsed, true, nil
	default:
		return nil, false, fmt.Errorf("value %v is not convertible to long", value)
	}
})

// ToDouble casts to a double-precision float.
var ToDouble = castConverter("to_double", func(value any) (any, bool, error) {
	switch v := value.(type) {
	case float64, nil:
		return value, false, nil
	case int:
		return float64(v), true, nil
	case int32:
		return float64(v), true, nil
	case int64:
		return float64(v), true, nil
	case bool:
		if v {
			return float64(1), true, nil
		}
		return float64(0), true, nil
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, false, err
		}
		return parsed, true, nil
	default:
		return nil, false, fmt.Errorf("value %v is not convertible to double", value)
	}
})

// ToDecimal casts to a 128-bit decimal.
var ToDecimal = castConverter("to_decimal", func(value any) (any, bool, error) {
	switch v := value.(type) {
	case primitive.Decimal128, nil:
		return value, false, nil
	case string:
		parsed, err := primitive.ParseDecimal128(strings.TrimSpace(v))
		if err != nil {
			return nil, false, err
		}
		return parsed, true, nil
	case int, int32, int64, float64, bool:
		parsed, err := primitive.ParseDecimal128(fmt.Sprintf("%v", v))
		if err != nil {
			return nil, false, err
		}
		return parsed, true, nil
	default:
		return nil, false, fmt.Errorf("value %v is not convertible to decimal", value)
	}
})

// ToBool coerces any value to a boolean: null, zero numbers, and empty
// strings become false, everything else true.
var ToBool = castConverter("to_bool", func(value any) (any, bool, error) {
	switch v := value.(type) {
	case bool:
		return v, false, nil
	case nil:
		return false, true, nil
	case int:
		return v != 0, true, nil
	case int32:
		return v != 0, true, nil
	case int64:
		return v != 0, true, nil
	case float64:
		return v != 0, true, nil
	case string:
		return v != "", true, nil
	default:
		return true, true, nil
	}
})

// ToDate casts to a timestamp; strings are parsed as RFC 3339 or plain
// dates, numbers as unix seconds.
var ToDate = castConverter("to_date", func(value any) (any, bool, error) {
	switch v := value.(type) {
	case time.Time, primitive.DateTime, nil:
		return value, false, nil
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
			if parsed, err := time.Parse(layout, strings.TrimSpace(v)); err == nil {
				return primitive.NewDateTimeFromTime(parsed), true, nil
			}
		}
		return nil, false, fmt.Errorf("value %q is not a recognized date", v)
	case int:
		return primitive.NewDateTimeFromTime(time.Unix(int64(v), 0).UTC()), true, nil
	case int32:
		return primitive.NewDateTimeFromTime(time.Unix(int64(v), 0).UTC()), true, nil
	case int64:
		return primitive.NewDateTimeFromTime(time.Unix(v, 0).UTC()), true, nil
	case float64:
		return primitive.NewDateTimeFromTime(time.Unix(int64(v), 0).UTC()), true, nil
	default:
		return nil, false, fmt.Errorf("value %v is not convertible to date", value)
	}
})

// ToUUID casts string representations to canonical UUID text.
var ToUUID = castConverter("to_uuid", func(value any) (any, bool, error) {
	switch v := value.(type) {
	case uuid.UUID:
		return v.String(), true, nil
	case nil:
		return value, false, nil
	case string:
		parsed, err := uuid.Parse(strings.TrimSpace(v))
		if err != nil {
			return nil, false, err
		}
		canonical := parsed.String()
		if canonical == v {
			return v, false, nil
		}
		return canonical, true, nil
	default:
		return nil, false, fmt.Errorf("value %v is not convertible to uuid", value)
	}
})

// ToObjectID casts hex strings to object ids.
var ToObjectID = castConverter("to_object_id", func(value any) (any, bool, error) {
	switch v := value.(type) {
	case primitive.ObjectID, nil:
		return value, false, nil
	case string:
		parsed, err := primitive.ObjectIDFromHex(strings.TrimSpace(v))
		if err != nil {
			return nil, false, err
		}
		return parsed, true, nil
	default:
		return nil, false, fmt.Errorf("value %v is not convertible to object id", value)
	}
})

// transformConverter runs a value rewrite over every document carrying the
// field.
func transformConverter(name string, fn store.TransformFunc) Converter {
	return Converter{
		Name: name,
		run: func(ctx context.Context, coll store.Collection, dbField string, _, _ Type) error {
			_, err := coll.TransformField(ctx, dbField, fn)
			return err
		},
	}
}

// castConverter is a transformConverter whose per-value failures surface as
// migration errors naming the collection and field.
func castConverter(name string, fn store.TransformFunc) Converter {
	return Converter{
		Name: name,
		run: func(ctx context.Context, coll store.Collection, dbField string, from, to Type) error {
			_, err := coll.TransformField(ctx, dbField, fn)
			if err != nil {
				return domain.MigrationErrorf("convert %s.%s from %q to %q: %v",
					coll.Name(), dbField, from.Key, to.Key, err)
			}
			return nil
		},
	}
}
