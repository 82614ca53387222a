package jobcard

import (
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	validate   *validator.Validate
	translator ut.Translator

	// custom validation tags
	carNumberTag   = "carnumber"
	chassisTag     = "chassis"
	simpleEmailTag = "simpleemail"
	trimLenTag     = "trimlen"
	intRangeTag    = "intrange"
	numRangeTag    = "numrange"

	emailRe     = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	carNumberRe = regexp.MustCompile(`(?i)^[A-Z]{2}[-\s]?[0-9]{2}[-\s]?[A-Z]{1,3}[-\s]?[0-9]{4}$`)
	chassisRe   = regexp.MustCompile(`^[A-Z0-9]{17}$`)

	// fieldTags maps a JSON field name to its validate tag.
	fieldTags = map[string]string{}
	// fieldOrder is the form order, used to pick the first blocking error.
	fieldOrder []string
)

// Instantiate the validator for use.
func init() {
	validate = validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(jsonName)

	_ = validate.RegisterValidation(carNumberTag, carNumberValidation)
	_ = validate.RegisterValidation(chassisTag, chassisValidation)
	_ = validate.RegisterValidation(simpleEmailTag, simpleEmailValidation)
	_ = validate.RegisterValidation(trimLenTag, trimLenValidation)
	_ = validate.RegisterValidation(intRangeTag, intRangeValidation)
	_ = validate.RegisterValidation(numRangeTag, numRangeValidation)

	t := reflect.TypeOf(JobCard{})
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := jsonName(f)
		if name == "" || name == "_id" || name == "jobDetails" {
			continue
		}
		fieldOrder = append(fieldOrder, name)
		if tag := f.Tag.Get("validate"); tag != "" && tag != "-" {
			fieldTags[name] = tag
		}
	}
}

func jsonName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

// fieldMessages holds the operator-facing message per field and failing tag.
// An entry under "" applies to any tag of that field.
var fieldMessages = map[string]map[string]string{
	"customerName": {
		"required": "Customer name is required",
		trimLenTag: "Customer name must be 2-50 characters",
	},
	"contactNumber": {
		"required": "Contact number is required",
		"":         "Contact number must be exactly 10 digits",
	},
	"email": {
		"": "Please enter a valid email address",
	},
	"carNumber": {
		"required": "Car number is required",
		"":         "Please enter a valid car number (e.g. MH12AB1234)",
	},
	"model": {
		"required": "Model is required",
		"":         "Model must be at least 2 characters",
	},
	"company": {
		"": "Company must be at least 2 characters",
	},
	"kilometer": {
		"": "Kilometer must be a whole number between 0 and 9999999",
	},
	"fuelType": {
		"required": "Fuel type is required",
		"":         "Please select a valid fuel type",
	},
	"fuelLevel": {
		"": "Fuel level must be between 1 and 5",
	},
	"chassisNumber": {
		"": "Chassis number must be exactly 17 letters or digits",
	},
	"registrationNumber": {
		"": "Registration number must be 5-20 characters",
	},
	"insuranceProvider": {
		"": "Insurance provider must be at least 2 characters",
	},
	"policyNumber": {
		"": "Policy number must be 5-20 characters",
	},
	"excessAmount": {
		"": "Excess amount must be a number between 0 and 1000000",
	},
	"status": {
		"required": "Status is required",
		"":         "Please select a valid status",
	},
}

func message(field string, fe validator.FieldError) string {
	if m, ok := fieldMessages[field]; ok {
		if s, ok := m[fe.Tag()]; ok {
			return s
		}
		if s, ok := m[""]; ok {
			return s
		}
	}
	return fe.Translate(translator)
}

// Fields returns every form field name in display order.
func Fields() []string {
	return append([]string(nil), fieldOrder...)
}

// KnownField reports whether name is a form field.
func KnownField(name string) bool {
	for _, f := range fieldOrder {
		if f == name {
			return true
		}
	}
	return false
}

// Validate checks one field's value in isolation. It returns the error
// message, or "" when the value is acceptable.
func Validate(field, value string) string {
	tag, ok := fieldTags[field]
	if !ok {
		return ""
	}
	if field == "fuelLevel" {
		if value == "" {
			return ""
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return fieldMessages["fuelLevel"][""]
		}
		return varMessage(field, n, tag)
	}
	return varMessage(field, value, tag)
}

func varMessage(field string, value any, tag string) string {
	err := validate.Var(value, tag)
	if err == nil {
		return ""
	}
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		return message(field, errs[0])
	}
	return err.Error()
}

// ValidateAll checks every field of card and returns the messages keyed by
// field name. An empty map means the card is valid.
func ValidateAll(card *JobCard) map[string]string {
	out := map[string]string{}
	err := validate.Struct(card)
	if err == nil {
		return out
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		out[""] = err.Error()
		return out
	}
	for _, fe := range errs {
		if _, seen := out[fe.Field()]; !seen {
			out[fe.Field()] = message(fe.Field(), fe)
		}
	}
	return out
}

// Normalize applies the input transforms for field: plate, chassis, policy
// number and insurance type are upper-cased (chassis also loses all
// whitespace); email is trimmed and lower-cased.
func Normalize(field, value string) string {
	switch field {
	case "carNumber", "policyNumber", "insuranceType":
		return strings.ToUpper(value)
	case "chassisNumber":
		return strings.ToUpper(strings.Map(func(r rune) rune {
			if unicode.IsSpace(r) {
				return -1
			}
			return r
		}, value))
	case "email":
		return strings.ToLower(strings.TrimSpace(value))
	default:
		return value
	}
}

// Custom Validators

func carNumberValidation(fl validator.FieldLevel) bool {
	return carNumberRe.MatchString(fl.Field().String())
}

// chassisValidation normalizes before matching so that unnormalized input
// fed straight to Validate behaves like form input.
func chassisValidation(fl validator.FieldLevel) bool {
	return chassisRe.MatchString(Normalize("chassisNumber", fl.Field().String()))
}

func simpleEmailValidation(fl validator.FieldLevel) bool {
	return emailRe.MatchString(fl.Field().String())
}

// trimLenValidation checks the trimmed rune length against "min max" or
// "min".
func trimLenValidation(fl validator.FieldLevel) bool {
	lo, hi, ok := parseRange(fl.Param())
	if !ok {
		return false
	}
	n := float64(utf8.RuneCountInString(strings.TrimSpace(fl.Field().String())))
	return n >= lo && n <= hi
}

func intRangeValidation(fl validator.FieldLevel) bool {
	lo, hi, ok := parseRange(fl.Param())
	if !ok {
		return false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(fl.Field().String()), 10, 64)
	if err != nil {
		return false
	}
	return float64(n) >= lo && float64(n) <= hi
}

func numRangeValidation(fl validator.FieldLevel) bool {
	lo, hi, ok := parseRange(fl.Param())
	if !ok {
		return false
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(fl.Field().String()), 64)
	if err != nil {
		return false
	}
	return n >= lo && n <= hi
}

// parseRange reads "min max" or "min". A missing max is unbounded.
func parseRange(param string) (lo, hi float64, ok bool) {
	parts := strings.Fields(param)
	if len(parts) == 0 || len(parts) > 2 {
		return 0, 0, false
	}
	lo, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, 0, false
	}
	hi = 1e308
	if len(parts) == 2 {
		if hi, err = strconv.ParseFloat(parts[1], 64); err != nil {
			return 0, 0, false
		}
	}
	return lo, hi, true
}
