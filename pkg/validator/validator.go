package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/famalink/telemed-api/pkg/format"
)

// FieldError is one failed rule in a request body.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Register installs the custom tags on gin's binding validator:
//
//	ci_phone       Ivorian phone number
//	slot_duration  appointment length in minutes, one of allowed
func Register(allowedDurations []int) error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin binding engine is not go-playground/validator")
	}
	return Install(v, allowedDurations)
}

// Install adds the custom tags and JSON field naming to v.
func Install(v *validator.Validate, allowedDurations []int) error {
	allowed := make(map[int64]bool, len(allowedDurations))
	for _, d := range allowedDurations {
		allowed[int64(d)] = true
	}

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	if err := v.RegisterValidation("ci_phone", func(fl validator.FieldLevel) bool {
		return format.IsValidIvorianPhone(fl.Field().String())
	}); err != nil {
		return err
	}
	return v.RegisterValidation("slot_duration", func(fl validator.FieldLevel) bool {
		switch fl.Field().Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return allowed[fl.Field().Int()]
		}
		return false
	})
}

// Describe turns a binding error into per-field messages. Errors that are
// not validation failures (malformed JSON, wrong types) yield nil.
func Describe(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Message: message(fe),
		})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email", fe.Field())
	case "ci_phone":
		return fmt.Sprintf("%s must be an Ivorian phone number (+225 or 0 followed by 8 to 10 digits)", fe.Field())
	case "slot_duration":
		return fmt.Sprintf("%s is not an allowed appointment duration", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must not exceed %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag())
}
