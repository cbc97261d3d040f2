package authsvc

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/mkrupp/homecase-authsvc/internal/domain"
)

const simpleEmailTag = "simple_email"

// emailPattern only checks the local@domain.tld shape.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// RegisterRequest is the body of a registration.
type RegisterRequest struct {
	Email    string `json:"email"    validate:"required,simple_email"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginRequest is the body of a login. Token is the current TOTP code.
type LoginRequest struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
	Token    string `json:"token"    validate:"required"`
}

// RequestValidator checks request structs and translates failures into
// *domain.ValidationError with one English message per JSON field.
type RequestValidator struct {
	validate *validator.Validate
	trans    ut.Translator
}

// NewRequestValidator registers the custom tags and the English translations.
func NewRequestValidator() (*RequestValidator, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}

		return name
	})

	if err := validate.RegisterValidation(simpleEmailTag, func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	}); err != nil {
		return nil, fmt.Errorf("register %s: %w", simpleEmailTag, err)
	}

	locale := en.New()

	trans, _ := ut.New(locale, locale).GetTranslator("en")

	if err := en_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, fmt.Errorf("register translations: %w", err)
	}

	if err := validate.RegisterTranslation(simpleEmailTag, trans,
		func(t ut.Translator) error {
			return t.Add(simpleEmailTag, "{0} must be a valid email address", true) //nolint:wrapcheck
		},
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T(simpleEmailTag, fe.Field())

			return msg
		},
	); err != nil {
		return nil, fmt.Errorf("register %s translation: %w", simpleEmailTag, err)
	}

	return &RequestValidator{validate: validate, trans: trans}, nil
}

// Validate returns nil or a *domain.ValidationError. Missing fields take
// precedence over a malformed email.
func (v *RequestValidator) Validate(req any) error {
	err := v.validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: validate: %w", domain.ErrInternal, err)
	}

	verr := &domain.ValidationError{
		Kind:   domain.ErrInvalidEmail,
		Fields: make(map[string]string, len(fieldErrs)),
	}

	for _, fe := range fieldErrs {
		verr.Fields[fe.Field()] = fe.Translate(v.trans)

		if fe.Tag() == "required" {
			verr.Kind = domain.ErrMissingFields
		}
	}

	return verr
}
