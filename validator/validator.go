package validator

import (
	"reflect"
	"strings"

	"github.com/tiagossm/Compia20251207-sub001/errors"
	"github.com/tiagossm/Compia20251207-sub001/identity"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

/* ========================================================================
 * Request validation
 * ========================================================================
 * go-playground rules on request DTOs, reported by JSON field name with
 * optional per-rule messages from the error_msg tag. Bind decodes and
 * validates a body and maps failures to InvalidArgument.
 * ======================================================================== */

type Validator struct {
	validate *validator.Validate
	messages *messageCache
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)
	// role accepts any spelling NormalizeRole understands.
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return identity.NormalizeRole(fl.Field().String()) != identity.RoleUnknown
	})
	return &Validator{validate: v, messages: &messageCache{}}
}

// Validate returns *ValidationError for rule failures.
func (v *Validator) Validate(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	t := reflect.TypeOf(s)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	out := &ValidationError{}
	for _, fe := range fieldErrs {
		msg := v.messages.lookup(t, fe.StructNamespace(), fe.Tag())
		if msg == "" {
			msg = defaultMessage(fe)
		}
		out.Add(fieldPath(fe.Namespace()), msg)
	}
	return out
}

// Bind decodes the request body into out and validates it.
func (v *Validator) Bind(c fiber.Ctx, out any) error {
	if err := c.Bind().Body(out); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidArgument, "malformed request body", err)
	}
	if err := v.Validate(out); err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			return errors.New(errors.ErrCodeInvalidArgument, "validation failed").WithDetail("fields", ve.Fields)
		}
		return errors.Wrap(errors.ErrCodeInternal, "validation failed", err)
	}
	return nil
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}

// fieldPath drops the root struct name: "AssignRequest.organization_id"
// becomes "organization_id".
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

func defaultMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "role":
		return "is not a known role"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gt", "gte", "lt", "lte", "min", "max", "len":
		return "must satisfy " + fe.Tag() + "=" + fe.Param()
	}
	return "failed rule " + fe.Tag()
}
