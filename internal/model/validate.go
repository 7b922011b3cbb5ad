package model

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// FieldError describes one failed validation rule.
type FieldError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Param string `json:"param,omitempty"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared validator with the domain rules registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
		_ = validate.RegisterValidation("paymentmethod", func(fl validator.FieldLevel) bool {
			return ParsePaymentMethod(fl.Field().String()) != ""
		})
		_ = validate.RegisterValidation("refundreason", func(fl validator.FieldLevel) bool {
			return ParseRefundReason(fl.Field().String()) != ""
		})
		_ = validate.RegisterValidation("securityquestion", func(fl validator.FieldLevel) bool {
			_, ok := SecurityQuestions[fl.Field().String()]
			return ok
		})
	})
	return validate
}

// ValidateStruct runs the shared validator on s and converts failures into a
// VALIDATION_ERROR AppError listing each failed field.
func ValidateStruct(s any) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewError(ErrValidation, err.Error())
	}
	details := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, FieldError{Field: fe.Field(), Tag: fe.Tag(), Param: fe.Param()})
	}
	first := details[0]
	return WithDetails(NewError(ErrValidation, fmt.Sprintf("field '%s' failed on '%s'", first.Field, first.Tag)), details)
}
