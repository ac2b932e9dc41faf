package proto

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/spf13/cast"
)

// ActionRecord is one entry of a receive_action payload.
type ActionRecord struct {
	ID    int
	RawID any // id as received
	Value any
}

var (
	ErrMalformedRecord = errors.New("malformed action record")
	// ErrNonIntegerID marks a numeric id with a fractional part. No action can
	// be registered under it.
	ErrNonIntegerID = errors.New("action id is not an integer")
)

// ParseActionRecord validates a single record. Both "id" and "value" must be
// present. The id must be an integral number or a base-10 integer string; a
// fractional number yields ErrNonIntegerID with RawID and Value set.
func ParseActionRecord(entry any) (ActionRecord, error) {
	fields, ok := entry.(map[string]any)
	if !ok {
		return ActionRecord{}, fmt.Errorf("%w: got %T, expected an object", ErrMalformedRecord, entry)
	}
	rawID, hasID := fields["id"]
	value, hasValue := fields["value"]
	if !hasID || !hasValue {
		return ActionRecord{}, fmt.Errorf("%w: record must define both id and value", ErrMalformedRecord)
	}
	rec := ActionRecord{RawID: rawID, Value: value}
	id, err := actionID(rawID)
	if err != nil {
		return rec, err
	}
	rec.ID = id
	return rec, nil
}

func actionID(raw any) (int, error) {
	switch v := raw.(type) {
	case nil:
		return 0, fmt.Errorf("%w: id is null", ErrMalformedRecord)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		id, err := cast.ToIntE(v)
		if err != nil {
			return 0, fmt.Errorf("%w: invalid id %v: %v", ErrMalformedRecord, v, err)
		}
		return id, nil
	case float32:
		return floatID(float64(v))
	case float64:
		return floatID(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return cast.ToIntE(i)
		}
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: invalid id %s: %v", ErrMalformedRecord, v, err)
		}
		return floatID(f)
	case string:
		id, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%w: invalid id %q", ErrMalformedRecord, v)
		}
		return id, nil
	default:
		return 0, fmt.Errorf("%w: id is %T, expected an integer", ErrMalformedRecord, raw)
	}
}

func floatID(f float64) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: invalid id %v", ErrMalformedRecord, f)
	}
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: %v", ErrNonIntegerID, f)
	}
	return int(f), nil
}
