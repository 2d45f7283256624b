package validators

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mylittlestore/pos-backend/pkg/enums"
	pkgerrors "github.com/mylittlestore/pos-backend/pkg/errors"
)

// Request bodies are small JSON documents; anything larger is rejected.
const maxBodyBytes = 64 << 10

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})
	if err := v.RegisterValidation("payment_method_type", func(fl validator.FieldLevel) bool {
		return enums.PaymentMethodType(fl.Field().String()).IsValid()
	}); err != nil {
		panic(err)
	}
	return v
}

// DecodeJSONBody decodes exactly one JSON object into dest, trims its
// strings and runs the struct's validate tags.
func DecodeJSONBody(r *http.Request, dest any) error {
	body := io.LimitReader(r.Body, maxBodyBytes+1)
	defer io.Copy(io.Discard, body)

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return bodyError(err)
	}
	if dec.More() {
		return bodyError(errors.New("body must contain a single JSON object"))
	}
	if dec.InputOffset() > maxBodyBytes {
		return bodyError(fmt.Errorf("body exceeds %d bytes", maxBodyBytes))
	}

	trimStrings(reflect.ValueOf(dest))
	if err := validate.Struct(dest); err != nil {
		return validationError(err)
	}
	return nil
}

func bodyError(err error) error {
	details := map[string]any{"error": err.Error()}

	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	switch {
	case errors.Is(err, io.EOF):
		details["error"] = "request body is required"
	case errors.As(err, &typeErr):
		details["field"] = typeErr.Field
		details["error"] = fmt.Sprintf("must be %s", typeErr.Type)
	case errors.As(err, &syntaxErr):
		details["offset"] = syntaxErr.Offset
	case errors.Is(err, io.ErrUnexpectedEOF):
		details["error"] = "truncated JSON"
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").WithDetails(details)
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fieldPath(fe)] = describeRule(fe)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
}

// fieldPath drops the root struct name: "storeBody.address.city" becomes
// "address.city".
func fieldPath(fe validator.FieldError) string {
	if _, rest, ok := strings.Cut(fe.Namespace(), "."); ok {
		return rest
	}
	return fe.Field()
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "payment_method_type":
		return fmt.Sprintf("must be one of %v", enums.PaymentMethodTypes())
	}
	return "is invalid"
}
