package goodreads

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/lepinkainen/bookmeta/internal/metadata"
)

// object is a loosely typed JSON object. Accessors return nil for missing
// keys, JSON null, the literal string "null" and values of the wrong shape.
type object map[string]json.RawMessage

func decodeObject(raw json.RawMessage) (object, error) {
	var o object
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, err
	}
	return o, nil
}

func (o object) object(key string) object {
	raw, ok := o[key]
	if !ok {
		return nil
	}
	child, err := decodeObject(raw)
	if err != nil {
		return nil
	}
	return child
}

// scalar returns the value as text: strings unquoted, numbers and booleans
// verbatim. Objects, arrays and null report false.
func (o object) scalar(key string) (string, bool) {
	raw, ok := o[key]
	if !ok {
		return "", false
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	case '{', '[', 'n':
		return "", false
	default:
		return string(raw), true
	}
}

func (o object) text(key string) *string {
	s, ok := o.scalar(key)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return nil
	}
	return &s
}

func (o object) integer(key string) *int {
	s := o.text(key)
	if s == nil {
		return nil
	}
	if n, err := strconv.Atoi(*s); err == nil {
		return &n
	}
	// "123.0" style values
	f, err := strconv.ParseFloat(*s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		slog.Debug("GoodReads: ignoring non-integer value", "key", key, "value", *s)
		return nil
	}
	n := int(f)
	return &n
}

func (o object) float(key string) *float64 {
	s := o.text(key)
	if s == nil {
		return nil
	}
	f, err := strconv.ParseFloat(*s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		slog.Debug("GoodReads: ignoring non-numeric value", "key", key, "value", *s)
		return nil
	}
	return &f
}

// epochMillisDate reads a millisecond timestamp as a UTC calendar date.
func (o object) epochMillisDate(key string) *time.Time {
	s := o.text(key)
	if s == nil {
		return nil
	}
	millis, err := strconv.ParseInt(*s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(*s, 64)
		if ferr != nil {
			slog.Debug("GoodReads: invalid publication time", "value", *s)
			return nil
		}
		millis = int64(f)
	}
	d := metadata.Date(time.UnixMilli(millis))
	return &d
}
