package features

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/miradorstack/attrition-predictor/internal/models"
	"github.com/miradorstack/attrition-predictor/internal/utils"
)

const opCoerce = "features.coerce"

// readInt resolves field to an integer. Integral floats and numeric strings are
// accepted because JSON decoders and form posts produce them.
func readInt(rec models.RawRecord, field string) (int64, error) {
	raw, ok := rec[field]
	if !ok || raw == nil {
		return 0, missing(field)
	}

	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, invalid(field, "integer overflows int64")
		}
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, invalid(field, "integer overflows int64")
		}
		return int64(v), nil
	case float32:
		return integral(field, float64(v))
	case float64:
		return integral(field, v)
	case json.Number:
		return parseIntString(field, v.String())
	case string:
		return parseIntString(field, v)
	case bool:
		return 0, invalid(field, "expected an integer, got a boolean")
	}
	return 0, invalid(field, fmt.Sprintf("expected an integer, got %T", raw))
}

func parseIntString(field, s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, missing(field)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, invalid(field, fmt.Sprintf("%q is not a number", s))
	}
	return integral(field, f)
}

func integral(field string, f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, invalid(field, "value is not finite")
	}
	if f != math.Trunc(f) {
		return 0, invalid(field, fmt.Sprintf("expected an integer, got %v", f))
	}
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, invalid(field, "integer overflows int64")
	}
	return int64(f), nil
}

// readLevel resolves a categorical field to one of its trained levels.
func readLevel(rec models.RawRecord, c categorical) (string, error) {
	raw, ok := rec[c.Name]
	if !ok || raw == nil {
		return "", missing(c.Name)
	}

	var level string
	switch v := raw.(type) {
	case string:
		level = strings.TrimSpace(v)
		if level == "" {
			return "", missing(c.Name)
		}
	case bool:
		if !c.yesNo() {
			return "", invalid(c.Name, "expected a category label, got a boolean")
		}
		level = "No"
		if v {
			level = "Yes"
		}
	default:
		return "", invalid(c.Name, fmt.Sprintf("expected a category label, got %T", raw))
	}

	for _, known := range c.Levels {
		if level == known {
			return level, nil
		}
	}
	return "", utils.NewFieldError(utils.KindUnknownCategoryLevel, opCoerce, c.Name,
		fmt.Sprintf("level %q was not seen at training time", level))
}

func missing(field string) error {
	return utils.NewFieldError(utils.KindMissingField, opCoerce, field, "required field is absent")
}

func invalid(field, msg string) error {
	return utils.NewFieldError(utils.KindValidation, opCoerce, field, msg)
}
