package validation

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	apperrors "github.com/anime-shed/vision-analysis-go/internal/errors"
)

// Messages returned by URLValidator
const (
	MsgURLRequired    = "image URL is required"
	MsgURLMalformed   = "image URL is not a valid absolute URL"
	MsgURLNoHost      = "image URL must have a host"
	MsgSchemeRejected = "image URL scheme is not allowed"
)

// URLValidator checks that an image reference is something the vision
// service and the source fetcher can retrieve
type URLValidator struct {
	allowedSchemes []string
}

// NewURLValidator accepts http and https URLs
func NewURLValidator() *URLValidator {
	return &URLValidator{allowedSchemes: []string{"http", "https"}}
}

// NewURLValidatorWithSchemes accepts only the given schemes
func NewURLValidatorWithSchemes(schemes ...string) *URLValidator {
	return &URLValidator{allowedSchemes: schemes}
}

// Validate returns a validation AppError when imageURL is empty, not an
// absolute URL, uses a scheme outside the allowed list or has no host.
func (v *URLValidator) Validate(imageURL string) error {
	if strings.TrimSpace(imageURL) == "" {
		return apperrors.NewValidationError(MsgURLRequired, nil)
	}

	parsed, err := url.Parse(strings.TrimSpace(imageURL))
	if err != nil {
		return apperrors.NewValidationError(MsgURLMalformed, err)
	}
	if !parsed.IsAbs() {
		return apperrors.NewValidationError(MsgURLMalformed, nil)
	}
	if !slices.Contains(v.allowedSchemes, strings.ToLower(parsed.Scheme)) {
		appErr := apperrors.NewValidationError(MsgSchemeRejected, nil)
		appErr.Details = fmt.Sprintf("scheme %q, allowed: %s", parsed.Scheme, strings.Join(v.allowedSchemes, ", "))
		return appErr
	}
	if parsed.Host == "" {
		return apperrors.NewValidationError(MsgURLNoHost, nil)
	}
	return nil
}
