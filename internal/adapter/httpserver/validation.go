package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/ai-career-coach/internal/domain"
)

var (
	vldOnce sync.Once
	vld     *validator.Validate
	idRe    = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() {
		vld = validator.New(validator.WithRequiredStructEnabled())
		vld.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		_ = vld.RegisterValidation("resid", func(fl validator.FieldLevel) bool {
			return idRe.MatchString(fl.Field().String())
		})
	})
	return vld
}

// decodeJSON reads a capped JSON body into dst and validates its tags.
// Failures are ErrInvalidArgument with per-field details.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) (map[string]string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return map[string]string{"body": "too_large"}, fmt.Errorf("%w: body exceeds %d bytes", domain.ErrInvalidArgument, maxBytes)
		}
		return nil, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument)
	}
	if err := getValidator().Struct(dst); err != nil {
		details := map[string]string{}
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			for _, fe := range ve {
				details[fe.Field()] = fe.Tag()
			}
		}
		return details, fmt.Errorf("%w: validation failed", domain.ErrInvalidArgument)
	}
	return nil, nil
}

// validID checks a path or body identifier.
func validID(id string) bool { return idRe.MatchString(id) }
