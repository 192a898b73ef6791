// Package validator checks trainee input and reports per-field messages.
package validator

import (
	"errors"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/pavelanni/techcert/internal/model"
)

// Validator wraps a go-playground validator with English messages.
type Validator struct {
	v     *govalidator.Validate
	trans ut.Translator
}

// New builds a validator with the trainee rules and short field messages.
func New() (*Validator, error) {
	v := govalidator.New()

	// Use JSON tag name for field names in error messages.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("nospace", noSpace); err != nil {
		return nil, err
	}

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ := uni.GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(v, trans); err != nil {
		return nil, err
	}

	short := map[string]string{
		"required": "Required.",
		"min":      "Min {0} chars.",
		"nospace":  "No spaces.",
		"email":    "Invalid email.",
	}
	for tag, text := range short {
		tag, text := tag, text
		err := v.RegisterTranslation(tag, trans,
			func(ut ut.Translator) error { return ut.Add(tag, text, true) },
			func(ut ut.Translator, fe govalidator.FieldError) string {
				msg, err := ut.T(fe.Tag(), fe.Param())
				if err != nil {
					return fe.Error()
				}
				return msg
			},
		)
		if err != nil {
			return nil, err
		}
	}
	return &Validator{v: v, trans: trans}, nil
}

func noSpace(fl govalidator.FieldLevel) bool {
	return !strings.ContainsFunc(fl.Field().String(), unicode.IsSpace)
}

// Normalize trims surrounding whitespace from every field.
func Normalize(nt model.NewTrainee) model.NewTrainee {
	nt.Username = strings.TrimSpace(nt.Username)
	nt.Password = strings.TrimSpace(nt.Password)
	nt.Name = strings.TrimSpace(nt.Name)
	nt.Email = strings.TrimSpace(nt.Email)
	nt.ID = strings.TrimSpace(nt.ID)
	return nt
}

// Trainee validates a new trainee. It returns nil when the input is valid,
// otherwise a map of JSON field name to message.
func (v *Validator) Trainee(nt model.NewTrainee) map[string]string {
	if err := v.v.Struct(Normalize(nt)); err != nil {
		return v.TranslateErrors(err)
	}
	return nil
}

// TranslateErrors takes a validation error and returns a map of
// field name to human-readable message. If the error is not a
// validation error, it returns a single-key map with "detail".
func (v *Validator) TranslateErrors(err error) map[string]string {
	fields := make(map[string]string)

	var ve govalidator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			fields[fe.Field()] = fe.Translate(v.trans)
		}
		return fields
	}

	fields["detail"] = err.Error()
	return fields
}
