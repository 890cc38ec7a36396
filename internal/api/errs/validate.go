package errs

import (
	"errors"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their json name so the messages line up with the
	// request bodies clients actually send.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return v
}()

// Check validates the provided model against its declared tags. A failure is
// returned as an InvalidArgument Error carrying one entry per bad field.
func Check(val any) error {
	err := validate.Struct(val)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return New(InvalidArgument, err)
	}

	fields := make(map[string]string, len(verrs))
	names := make([]string, 0, len(verrs))
	for _, verr := range verrs {
		field := verr.Field()
		fields[field] = fieldMessage(verr)
		names = append(names, field)
	}
	sort.Strings(names)

	e := Newf(InvalidArgument, "validation failed for: %s", strings.Join(names, ", "))
	e.Fields = fields
	return e
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "uuid", "uuid4":
		return "must be a valid uuid"
	default:
		return "failed on " + fe.Tag()
	}
}
