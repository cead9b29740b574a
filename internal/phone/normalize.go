// Package phone canonicalizes phone numbers into E.164 so they can serve as
// the per-business deduplication key for leads and customers.
package phone

import (
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"

	"gitlab.com/timkado/api/daisi-crm-engine/internal/apperrors"
)

// DefaultRegion is assumed when a raw number carries no country prefix and
// the caller supplies no region hint.
const DefaultRegion = "US"

// Normalize parses raw and returns it in E.164 format. region is an ISO
// 3166-1 alpha-2 hint for numbers without a country prefix; empty falls back
// to DefaultRegion. Pure function, no side effects.
func Normalize(raw, region string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty phone number", apperrors.ErrInvalidIdentifier)
	}
	if region == "" {
		region = DefaultRegion
	}

	number, err := phonenumbers.Parse(trimmed, region)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", apperrors.ErrInvalidIdentifier, trimmed, err)
	}
	if !phonenumbers.IsValidNumber(number) {
		return "", fmt.Errorf("%w: %q is not a valid number for region %s", apperrors.ErrInvalidIdentifier, trimmed, region)
	}

	return phonenumbers.Format(number, phonenumbers.E164), nil
}
