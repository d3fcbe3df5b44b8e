package coordinator

import (
	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/flexauth/internal/errors"
	appValidation "github.com/allisson/flexauth/internal/validation"
)

// maxUserAgentLen caps the User-Agent header per SPEC_FULL.md §4.8.
const maxUserAgentLen = 512

func validateNotBlank(field, value string) error {
	if err := validation.Validate(value, validation.Required, appValidation.NotBlank); err != nil {
		return apperrors.New(apperrors.KindInvalidPayload, field+" is required")
	}
	return nil
}

func validateEmail(email string) error {
	if err := validation.Validate(email,
		validation.Required,
		appValidation.NotBlank,
		appValidation.Email,
	); err != nil {
		return apperrors.New(apperrors.KindInvalidEmail, "invalid email address")
	}
	return nil
}

func validateUserAgent(userAgent string) error {
	if err := validation.Validate(userAgent,
		validation.Required,
		appValidation.NotBlank,
		validation.Length(1, maxUserAgentLen),
	); err != nil {
		return apperrors.New(apperrors.KindInvalidUserAgent, "invalid user agent")
	}
	return nil
}
