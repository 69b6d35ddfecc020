package core

import (
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"blueprint/internal/types"
)

// Validator wraps go-playground/validator with domain-specific rules so
// handlers can validate decoded request structs in one call.
//
// Registered custom tags:
//   - toolkind: the value must be a recognized document tool kind.
//   - plantier: the value must be a recognized plan tier.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a new Validator and registers custom validation tags.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report field names from json tags so validation errors match the wire
	// format clients actually send.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("toolkind", func(fl validator.FieldLevel) bool {
		return types.ValidToolKind(types.ToolKind(fl.Field().String()))
	})
	_ = v.RegisterValidation("plantier", func(fl validator.FieldLevel) bool {
		return types.ValidPlanTier(types.PlanTier(fl.Field().String()))
	})

	return &Validator{
		validate: v,
		logger:   logger,
	}
}

// ValidateStruct validates the given struct against its `validate` tags and
// returns a *types.AppError describing every failing field, or nil when the
// struct is valid. The error code reflects the first failure; the Details map
// carries one entry per failing field.
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		// InvalidValidationError: the caller passed something that is not a
		// struct. That is a programming error, not a client error.
		v.logger.Error("validator invoked with non-struct value", "error", err)
		return types.NewAppError(types.ErrCodeInternalUnexpected, "internal validation failure", err)
	}

	details := make(map[string]any, len(validationErrs))
	for _, fe := range validationErrs {
		details[fe.Field()] = describeFailure(fe)
	}

	first := validationErrs[0]
	return types.NewAppErrorWithDetails(
		codeForTag(first.Tag()),
		"request validation failed",
		err,
		details,
	)
}

// codeForTag maps a failed validation tag to the client-facing error code.
func codeForTag(tag string) types.ErrorCode {
	switch tag {
	case "required":
		return types.ErrCodeValidationMissingField
	case "toolkind":
		return types.ErrCodeValidationInvalidTool
	case "plantier":
		return types.ErrCodeValidationInvalidPlan
	default:
		return types.ErrCodeValidationFieldFormat
	}
}

// describeFailure renders a short human-readable reason for a field failure.
func describeFailure(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "toolkind":
		return "must be one of: prd, architecture, database, userflow"
	case "plantier":
		return "must be one of: free, starter, pro"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "failed validation rule: " + fe.Tag()
	}
}
