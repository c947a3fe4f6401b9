// Package validate provides shared input validation used across the
// locate and region pipelines.
package validate

import (
	"fmt"
	"math"
	"strings"
)

// Error represents a validation error with a specific code and message.
type Error struct {
	Code    string
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Coords validates latitude and longitude coordinates.
func Coords(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return Error{
			Code:    "INVALID_COORDINATES",
			Message: "coordinates must be valid numbers",
		}
	}

	if lat < -90 || lat > 90 {
		return Error{
			Code:    "INVALID_LATITUDE",
			Message: "latitude must be between -90 and 90 degrees",
		}
	}

	if lon < -180 || lon > 180 {
		return Error{
			Code:    "INVALID_LONGITUDE",
			Message: "longitude must be between -180 and 180 degrees",
		}
	}

	return nil
}

// Radius validates a search/accuracy radius in meters.
func Radius(radius, maxRadius float64) error {
	if math.IsNaN(radius) {
		return Error{
			Code:    "INVALID_RADIUS",
			Message: "radius must be a valid number",
		}
	}

	if radius < 0 {
		return Error{
			Code:    "INVALID_RADIUS",
			Message: "radius must not be negative",
		}
	}

	if maxRadius > 0 && radius > maxRadius {
		return Error{
			Code:    "RADIUS_TOO_LARGE",
			Message: fmt.Sprintf("radius must not exceed %.0f meters", maxRadius),
		}
	}

	return nil
}

// SanitizeString removes control characters and trims whitespace from
// a string, used before logging or storing submitted lookup fields
// (SSIDs, API key names).
func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(s)
}

// StringLength checks that a string falls within acceptable length
// bounds.
func StringLength(s string, min, max int) error {
	length := len(s)
	if length < min {
		return Error{
			Code:    "STRING_TOO_SHORT",
			Message: fmt.Sprintf("string must be at least %d characters long", min),
		}
	}
	if length > max {
		return Error{
			Code:    "STRING_TOO_LONG",
			Message: fmt.Sprintf("string must not exceed %d characters", max),
		}
	}
	return nil
}

// NumericRange checks that a number falls within acceptable bounds.
func NumericRange(n, min, max float64) error {
	if n < min {
		return Error{
			Code:    "VALUE_TOO_SMALL",
			Message: fmt.Sprintf("value must be at least %g", min),
		}
	}
	if n > max {
		return Error{
			Code:    "VALUE_TOO_LARGE",
			Message: fmt.Sprintf("value must not exceed %g", max),
		}
	}
	return nil
}
