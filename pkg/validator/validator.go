// Package validator wires the request-body rules into gin's binding engine and
// turns binding failures into client-facing messages.
package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/livsafe/livsafe-api/internal/model"
	apperrors "github.com/livsafe/livsafe-api/pkg/errors"
)

var once sync.Once

// Register installs the custom tags and the json field-name func on gin's
// validator. Safe to call more than once.
func Register() {
	once.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(jsonName)
		mustRegister(v, "grade", func(fl validator.FieldLevel) bool {
			return model.Grade(fl.Field().String()).Valid()
		})
		mustRegister(v, "gender", func(fl validator.FieldLevel) bool {
			return model.Gender(strings.ToLower(fl.Field().String())).Valid()
		})
		mustRegister(v, "orgtype", func(fl validator.FieldLevel) bool {
			return model.OrganizationType(fl.Field().String()).Valid()
		})
	})
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validator: %v", tag, err))
	}
}

func jsonName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "" || name == "-" {
		return fld.Name
	}
	return name
}

// Translate converts a ShouldBind error into a validation AppError whose
// message names the first offending field.
func Translate(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return apperrors.Validation(message(verrs[0]), err)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &typeErr):
		return apperrors.Validation(fmt.Sprintf("%s has the wrong type", typeErr.Field), err)
	case errors.As(err, &syntaxErr):
		return apperrors.Validation("malformed JSON body", err)
	}
	return apperrors.Validation("invalid request body", err)
}

func message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must not exceed %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must not exceed %s", field, fe.Param())
	case "grade":
		return fmt.Sprintf("%s must be one of F0, F1, F2, F3, F4", field)
	case "gender":
		return fmt.Sprintf("%s must be one of male, female, other", field)
	case "orgtype":
		return fmt.Sprintf("%s must be one of hospital, clinic, research, other", field)
	}
	return fmt.Sprintf("%s is invalid", field)
}
