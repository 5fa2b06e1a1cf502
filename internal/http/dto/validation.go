package dto

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/cesargomez89/odyvault/internal/domain"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) ToMap() map[string]string {
	return map[string]string{e.Field: e.Message}
}

func ToMap(errs []ValidationError) map[string]string {
	result := make(map[string]string)
	for _, e := range errs {
		result[e.Field] = e.Message
	}
	return result
}

func ToResponse(errs []ValidationError) string {
	var msgs []string
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// FromDomain converts a store-level validation failure, if err is one.
func FromDomain(err error) ([]ValidationError, bool) {
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		return nil, false
	}
	return []ValidationError{{Field: verr.Field, Message: verr.Message}}, true
}

// claim ids are 40 hex chars on chain; shorter ids are accepted for local use.
var claimIDRegex = regexp.MustCompile(`^[A-Za-z0-9_:@#.\-]{1,255}$`)

func validateClaimID(id string) []ValidationError {
	var errs []ValidationError
	if strings.TrimSpace(id) == "" {
		errs = append(errs, ValidationError{Field: "claim_id", Message: "is required"})
	} else if !claimIDRegex.MatchString(id) {
		errs = append(errs, ValidationError{Field: "claim_id", Message: "contains invalid characters"})
	}
	return errs
}

func validateURL(field string, urlVal *string) []ValidationError {
	var errs []ValidationError
	if urlVal != nil && *urlVal != "" {
		u, err := url.ParseRequestURI(*urlVal)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, ValidationError{Field: field, Message: "invalid URL format"})
		}
	}
	return errs
}

func validateJSON(field string, raw json.RawMessage) []ValidationError {
	var errs []ValidationError
	if len(raw) > 0 && !json.Valid(raw) {
		errs = append(errs, ValidationError{Field: field, Message: "must be valid JSON"})
	}
	return errs
}

func validateQuality(q *string) []ValidationError {
	var errs []ValidationError
	if q != nil && *q != "" && !domain.Quality(*q).Valid() {
		errs = append(errs, ValidationError{Field: "quality", Message: "must be one of: " + strings.Join(domain.QualityNames(), ", ")})
	}
	return errs
}

func validateNonNegative(field string, v *int64) []ValidationError {
	var errs []ValidationError
	if v != nil && *v < 0 {
		errs = append(errs, ValidationError{Field: field, Message: "must not be negative"})
	}
	return errs
}

func validateName(name *string) []ValidationError {
	var errs []ValidationError
	if name == nil || strings.TrimSpace(*name) == "" {
		errs = append(errs, ValidationError{Field: "name", Message: "is required"})
	} else if len(*name) > 200 {
		errs = append(errs, ValidationError{Field: "name", Message: "must be at most 200 characters"})
	}
	return errs
}
