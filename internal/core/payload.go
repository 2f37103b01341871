package core

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Payload is a loosely typed record body as decoded from JSON.
// Keys not in [Fields] are ignored; "bin" names the record key.
type Payload map[string]any

// parsedPayload is a validated Payload.
type parsedPayload struct {
	bin    string
	hasBIN bool
	update Update
}

// parsePayload validates p against the field allow-list. Coordinates must
// be numeric and descriptive values must be scalars.
func parsePayload(op string, p Payload, requireBIN bool) (parsedPayload, error) {
	var out parsedPayload

	if len(p) == 0 {
		return out, validationError(op, "", "", "No data provided")
	}

	if raw, ok := p["bin"]; ok {
		bin, ok := scalarText(raw)
		if !ok {
			return out, validationError(op, "", "bin", "BIN must be a string")
		}
		out.bin = strings.TrimSpace(bin)
		out.hasBIN = true
	}
	if requireBIN && out.bin == "" {
		return out, validationError(op, "", "bin", "BIN is required")
	}

	for _, f := range Fields {
		raw, ok := p[f.Key]
		if !ok {
			continue
		}
		switch f.Kind {
		case FieldCoord:
			v, ok := numericValue(raw)
			if !ok {
				return out, validationError(op, out.bin, f.Key, fmt.Sprintf("Invalid %s value", coordName(f.Key)))
			}
			if f.Key == "lat" {
				out.update.Lat = &v
			} else {
				out.update.Lon = &v
			}
		default:
			s, ok := scalarText(raw)
			if !ok {
				return out, validationError(op, out.bin, f.Key, fmt.Sprintf("Invalid value for %s", f.Key))
			}
			out.update.SetText(f.Key, s)
		}
	}

	return out, nil
}

func coordName(key string) string {
	if key == "lat" {
		return "latitude"
	}
	return "longitude"
}

// scalarText renders a JSON scalar as text. null becomes "".
func scalarText(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", true
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case json.Number:
		return t.String(), true
	case float64:
		return formatNumber(t), true
	case float32:
		return formatNumber(float64(t)), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	}
	return "", false
}

// numericValue accepts numbers and numeric strings. Non-finite values are rejected.
func numericValue(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case int32:
		f = float64(t)
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// formatNumber prints whole numbers without a fractional part, so a
// spreadsheet cell holding 1001 yields "1001" rather than "1001.0".
func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
