// Package validation содержит правила проверки телефонов и денежных сумм.
package validation

import (
	"fmt"
	"regexp"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

// MessageInvalidPhone - текст ошибки для клиента.
const MessageInvalidPhone = "Invalid phone format. Use +1234567890 or 123-456-7890."

// Международный формат (7-15 цифр, опциональный +) или NNN-NNN-NNNN.
var phonePattern = regexp.MustCompile(`^(\+?\d{7,15}|\d{3}-\d{3}-\d{4})$`)

// PhoneError описывает некорректный телефон.
type PhoneError struct {
	Input string
}

func (e *PhoneError) Error() string {
	return fmt.Sprintf("invalid phone %q", e.Input)
}

func (e *PhoneError) Is(target error) bool {
	return target == domain.ErrInvalidPhone
}

// ValidatePhone проверяет телефон. Пустая строка означает отсутствие телефона и допустима.
func ValidatePhone(phone string) error {
	if phone == "" {
		return nil
	}
	if !phonePattern.MatchString(phone) {
		return &PhoneError{Input: phone}
	}
	return nil
}
