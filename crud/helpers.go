package crud

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"sociapi/errs"
)

// conflictRetries bounds how often an idempotent read-modify-write of a
// profile is retried after losing a race.
const conflictRetries = 3

// retryOnConflict runs fn until it does not fail with a concurrent update
// of a profile. fn must reload everything it writes.
func retryOnConflict(ctx context.Context, fn func() error) error {
	var err error
	for i := 0; i < conflictRetries; i++ {
		if err = fn(); !errors.Is(err, errs.ErrConcurrentUpdate) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}

// validateStruct runs the struct tag validations of v and turns the first
// failure into an EINVALID error.
func validateStruct(validate *validator.Validate, v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "max":
		if fe.Kind().String() == "slice" {
			return errs.Errorf(errs.EINVALID, "At most %s %s are allowed.", fe.Param(), field)
		}
		return errs.Errorf(errs.EINVALID, "The %s must not have more than %s characters.", field, fe.Param())
	case "min":
		return errs.Errorf(errs.EINVALID, "The %s must have at least %s characters.", field, fe.Param())
	case "oneof":
		return errs.Errorf(errs.EINVALID, "The %s must be one of: %s.", field, fe.Param())
	case "required":
		return errs.Errorf(errs.EINVALID, "The %s is required.", field)
	default:
		return errs.Errorf(errs.EINVALID, "The %s is invalid.", field)
	}
}

// notFoundAs replaces an ENOTFOUND error with replacement and wraps any
// other failure.
func notFoundAs(err error, replacement error) error {
	if errs.ErrorCode(err) == errs.ENOTFOUND {
		return replacement
	}
	return fmt.Errorf("lookup: %w", err)
}
