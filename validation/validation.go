package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator"
	"github.com/meghashyamc/iiifsearch/logger"
	"github.com/meghashyamc/iiifsearch/query"
)

type Validator struct {
	validator                *validator.Validate
	logger                   logger.Logger
	tagValidationDetailsOnce sync.Once
	tagValidationDetailsMap  map[string]tagValidationDetails
}

type tagValidationDetails struct {
	validatorFunc validator.Func
	err           error
}

func New(logger logger.Logger) (*Validator, error) {
	validator := &Validator{validator: validator.New(), logger: logger}
	validator.validator.RegisterTagNameFunc(useJSONFieldNames)
	if err := validator.registerCustomValidatorsForTags(); err != nil {
		return nil, err
	}

	return validator, nil
}

func (v *Validator) Validate(i any) error {

	if err := v.validator.Struct(i); err != nil {
		v.logger.Warn("validation failed", "err", err.Error())
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) && len(validationErrs) > 0 {

			tagValidationDetails, ok := v.getTagValidationDetails()[validationErrs[0].Tag()]
			if ok {
				return fmt.Errorf("%w '%s'", tagValidationDetails.err, validationErrs[0].Field())
			}

			switch validationErrs[0].Tag() {
			case "required":
				return fmt.Errorf("missing required field '%s'", validationErrs[0].Field())

			case "min", "max":
				return fmt.Errorf("value or length of field '%s' is not in the expected range", validationErrs[0].Field())

			}
		}
		return err
	}
	return nil
}

func (v *Validator) getTagValidationDetails() map[string]tagValidationDetails {
	v.tagValidationDetailsOnce.Do(func() {
		v.tagValidationDetailsMap = map[string]tagValidationDetails{
			"valid_identifier":  {validatorFunc: v.isValidIdentifier, err: errors.New("invalid identifier in field")},
			"valid_search_type": {validatorFunc: v.isValidSearchType, err: errors.New("unknown search type in field")},
			"valid_direction":   {validatorFunc: v.isValidDirection, err: errors.New("direction must be ascending or descending in field")},
		}
	})
	return v.tagValidationDetailsMap
}

func (v *Validator) registerCustomValidatorsForTags() error {

	tagValidationDetailsMap := v.getTagValidationDetails()

	for tag, tagValidationDetails := range tagValidationDetailsMap {
		if err := v.validator.RegisterValidation(tag, tagValidationDetails.validatorFunc); err != nil {
			v.logger.Error("failed to register customer validator function", "err", err.Error())
			return err
		}
	}
	return nil
}

func useJSONFieldNames(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

// isValidIdentifier accepts resource and context ids: not blank and free of
// control characters. The unit separator is used in storage keys.
func (v *Validator) isValidIdentifier(fl validator.FieldLevel) bool {
	id := fl.Field().String()
	if strings.TrimSpace(id) == "" {
		v.logger.Warn("identifier is empty", "id", id)
		return false
	}

	if strings.ContainsFunc(id, unicode.IsControl) {
		v.logger.Warn("identifier has control characters", "id", id)
		return false
	}

	return true
}

func (v *Validator) isValidSearchType(fl validator.FieldLevel) bool {
	searchType := fl.Field().String()
	if len(searchType) == 0 {
		return true
	}
	return query.IsSearchType(searchType)
}

func (v *Validator) isValidDirection(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "", "ascending", "descending":
		return true
	}
	return false
}
