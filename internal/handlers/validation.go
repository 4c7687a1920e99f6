package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/BradenHooton/roster/internal/models"
	pkgauth "github.com/BradenHooton/roster/pkg/auth"
)

// DateLayout is the wire format of dates such as the birthday
const DateLayout = "2006-01-02"

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Global validator instance (reused across all handlers)
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return pkgauth.ValidatePassword(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("pastdate", func(fl validator.FieldLevel) bool {
		d, err := time.Parse(DateLayout, fl.Field().String())
		if err != nil {
			return false
		}
		return !d.After(time.Now().UTC().Truncate(24 * time.Hour))
	})

	return v
}

// ValidateRequest validates a request struct using go-playground/validator.
// Failures come back as a *models.ValidationError keyed by JSON field name.
func ValidateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return fmt.Errorf("validation failed: %w", err)
	}

	out := &models.ValidationError{}
	for _, fe := range ve {
		field := fieldKey(fe)
		for _, msg := range formatValidationError(fe) {
			out.Add(field, msg)
		}
	}
	return out
}

// fieldKey is the JSON name of the failing field. Confirmation mismatches
// are reported on the confirmed field.
func fieldKey(fe validator.FieldError) string {
	if fe.Tag() == "eqfield" {
		return strings.TrimSuffix(fe.Field(), "_confirmation")
	}
	return fe.Field()
}

func attribute(fe validator.FieldError) string {
	return strings.ReplaceAll(fieldKey(fe), "_", " ")
}

// formatValidationError converts a validator FieldError to user-facing messages
func formatValidationError(fe validator.FieldError) []string {
	attr := attribute(fe)

	switch fe.Tag() {
	case "required", "required_with":
		return []string{fmt.Sprintf("The %s field is required.", attr)}
	case "email":
		return []string{fmt.Sprintf("The %s field must be a valid email address.", attr)}
	case "min":
		if fe.Kind() == reflect.String {
			return []string{fmt.Sprintf("The %s field must be at least %s characters.", attr, fe.Param())}
		}
		if fe.Kind() == reflect.Slice {
			return []string{fmt.Sprintf("The %s field must have at least %s items.", attr, fe.Param())}
		}
		return []string{fmt.Sprintf("The %s field must be at least %s.", attr, fe.Param())}
	case "max":
		if fe.Kind() == reflect.String {
			return []string{fmt.Sprintf("The %s field must not be greater than %s characters.", attr, fe.Param())}
		}
		return []string{fmt.Sprintf("The %s field must not be greater than %s.", attr, fe.Param())}
	case "gt", "gte":
		return []string{fmt.Sprintf("The %s field must be at least %s.", attr, fe.Param())}
	case "eqfield":
		return []string{fmt.Sprintf("The %s field confirmation does not match.", attr)}
	case "oneof":
		values := strings.Fields(fe.Param())
		quoted := make([]string, len(values))
		for i, v := range values {
			quoted[i] = "`" + v + "`"
		}
		return []string{fmt.Sprintf("Valid values for the %s field are %s.", attr, joinAnd(quoted))}
	case "datetime":
		return []string{fmt.Sprintf("The %s field must match the format Y-m-d.", attr)}
	case "pastdate":
		return []string{fmt.Sprintf("The %s field must be a valid date before or equal to today.", attr)}
	case "e164":
		return []string{fmt.Sprintf("The %s field must be a valid international phone number.", attr)}
	case "username":
		return []string{fmt.Sprintf("The %s field must only contain letters, numbers, dashes, underscores and dots.", attr)}
	case "password":
		return passwordMessages(attr, fe.Value())
	default:
		return []string{fmt.Sprintf("The %s field is invalid.", attr)}
	}
}

func passwordMessages(attr string, value any) []string {
	s, _ := value.(string)
	var pe *pkgauth.PasswordValidationError
	if err := pkgauth.ValidatePassword(s); errors.As(err, &pe) {
		msgs := make([]string, 0, len(pe.Errors))
		for _, e := range pe.Errors {
			msgs = append(msgs, fmt.Sprintf("The %s field %s.", attr, e))
		}
		return msgs
	}
	return []string{fmt.Sprintf("The %s field is invalid.", attr)}
}

func joinAnd(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}

// decodeAndValidate reads a JSON body into dst and validates it. It writes
// the error response itself and reports whether the handler may continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		writeBadJSON(w)
		return false
	}
	if err := ValidateRequest(dst); err != nil {
		writeServiceError(w, err)
		return false
	}
	return true
}

// parseDate parses an already validated Y-m-d value
func parseDate(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	d, err := time.Parse(DateLayout, *s)
	if err != nil {
		return nil
	}
	return &d
}
