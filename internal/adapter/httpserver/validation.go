package httpserver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	apperrors "github.com/pscheid92/boardsync/internal/platform/errors"
)

// requestValidator adapts validator/v10 to echo.Validator. Failures come back
// as validation errors with one context entry per offending field.
type requestValidator struct {
	validate *validator.Validate
}

func newValidator() *requestValidator {
	return &requestValidator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

func (v *requestValidator) Validate(i any) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.ValidationError("invalid request body").WithCause(err)
	}

	appErr := apperrors.ValidationError(formatFieldError(fieldErrs[0]))
	for _, fe := range fieldErrs {
		appErr = appErr.WithField(fieldPath(fe), formatFieldError(fe))
	}
	return appErr
}

// fieldPath strips the root struct name: "BoardUpdate.Lists[0].Name" becomes
// "Lists[0].Name".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func formatFieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
