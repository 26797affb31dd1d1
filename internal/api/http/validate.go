package http

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// checkStruct runs the request DTO through the validator and flattens
// the first failure into one readable detail line.
func checkStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	ve, ok := err.(validator.ValidationErrors)
	if !ok || len(ve) == 0 {
		return err
	}
	fe := ve[0]
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is verplicht", fieldName(fe))
	case "email":
		return fmt.Errorf("%s is geen geldig e-mailadres", fieldName(fe))
	case "oneof":
		return fmt.Errorf("%s moet een van [%s] zijn", fieldName(fe), fe.Param())
	case "min":
		return fmt.Errorf("%s is te kort (minimaal %s)", fieldName(fe), fe.Param())
	default:
		return fmt.Errorf("%s is ongeldig", fieldName(fe))
	}
}

func fieldName(fe validator.FieldError) string {
	return strings.ToLower(fe.Field())
}
