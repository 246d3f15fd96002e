package board

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"taskboard-cli/internal/gateway"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateInput runs struct validation and maps the first failure into the
// gateway error taxonomy, so callers and the UI treat local and remote
// validation failures identically. It runs before any optimistic apply.
func validateInput(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return gateway.ValidationError{
			Field:  strings.ToLower(fe.Field()),
			Detail: "failed " + fe.Tag(),
		}
	}
	return err
}

func newUUID() string { return uuid.NewString() }

func nowUTC() time.Time { return time.Now().UTC() }
