package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"

	"github.com/cockroachdb/errors"

	"invoicequeue/pkg/schema"
)

// decodeRecord unmarshals validated JSON text into target. The schema treats numbers with a zero
// fractional part (1.0, 1e2) as integers, so they are rewritten in integer form before decoding into
// int64 fields. Failures are marked with schema.ErrDecode.
func decodeRecord(text []byte, target any) error {
	dec := json.NewDecoder(bytes.NewReader(text))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return errors.Mark(err, schema.ErrDecode)
	}

	normalized, err := json.Marshal(integralNumbers(value))
	if err != nil {
		return errors.Mark(err, schema.ErrDecode)
	}
	if err := json.Unmarshal(normalized, target); err != nil {
		return errors.Mark(err, schema.ErrDecode)
	}
	return nil
}

// integralNumbers rewrites every json.Number holding a whole value in integer form.
func integralNumbers(value any) any {
	switch v := value.(type) {
	case map[string]any:
		for key, elem := range v {
			v[key] = integralNumbers(elem)
		}
	case []any:
		for idx, elem := range v {
			v[idx] = integralNumbers(elem)
		}
	case json.Number:
		if _, err := v.Int64(); err == nil {
			return v
		}
		f, err := v.Float64()
		if err != nil || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return v
		}
		return json.Number(strconv.FormatInt(int64(f), 10))
	}
	return value
}
