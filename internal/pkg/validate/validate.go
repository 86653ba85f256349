package validate

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phone-otp-gate/internal/pkg/phone"
)

// v is the package-level singleton validator. Custom tags are registered in
// init() before the first call to Struct.
var v = validator.New()

// minPhoneDigits is the shortest phone accepted by the "phone" tag.
const minPhoneDigits = 10

func init() {
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return len(phone.Digits(fl.Field().String())) >= minPhoneDigits
	})
}

// Struct validates the given struct using its validate tags.
// Returns a human-readable error string or nil.
func Struct(s interface{}) error {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		var msgs []string
		for _, fe := range ve {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}

// Phone reports whether raw has enough digits to be a dialable number.
func Phone(raw string) bool {
	return v.Var(raw, "required,phone") == nil
}
