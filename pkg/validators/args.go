package validators

import (
	"strconv"
	"strings"

	pkgerrors "github.com/thequtt/qutt-client/pkg/errors"
)

// SanitizeString trims input and caps it at maxLen bytes when maxLen > 0.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen > 0 && len(trimmed) > maxLen {
		return trimmed[:maxLen]
	}
	return trimmed
}

// ParseID parses a positive integer identifier supplied as text.
func ParseID(field, raw string) (int64, error) {
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, field+" must be numeric").WithDetails(map[string]any{"field": field})
	}
	if value <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, field+" must be positive").WithDetails(map[string]any{"field": field})
	}
	return value, nil
}

// ParseQuantity parses a quantity argument. Zero and negatives are allowed;
// the cart treats them as removal.
func ParseQuantity(raw string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be numeric").WithDetails(map[string]any{"field": "quantity"})
	}
	return value, nil
}
