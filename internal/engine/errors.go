package engine

import (
	"errors"
	"strconv"
)

// Ошибки компиляции условий.
var (
	// ErrUnknownOperator — оператор не входит в допустимую десятку.
	ErrUnknownOperator = errors.New("unknown condition operator")

	// ErrMissingField — body-оператор без непустого field.
	ErrMissingField = errors.New("body operator requires field")

	// ErrBadConditionValue — форма value не соответствует семейству оператора.
	ErrBadConditionValue = errors.New("condition value does not match operator")

	// ErrBadPattern — невалидное регулярное выражение в операторе regex.
	ErrBadPattern = errors.New("invalid regex pattern")
)

// Ошибки правил извлечения.
var (
	// ErrEmptyExtractKey — пустое имя переменной в extract_variables.
	ErrEmptyExtractKey = errors.New("extract variable name is empty")

	// ErrEmptyExtractPath — пустое path-выражение в extract_variables.
	ErrEmptyExtractPath = errors.New("extract path expression is empty")
)

// ValidationError — ошибка конфигурации с контекстом шага.
// Используется границей сохранения (api) при валидации chain'ов.
type ValidationError struct {
	StepOrder int    // step_order шага, где произошла ошибка
	Field     string // поле, вызвавшее ошибку
	Message   string // описание ошибки
	Err       error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.StepOrder > 0 {
		return "step " + strconv.Itoa(e.StepOrder) + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(stepOrder int, field, message string, err error) *ValidationError {
	return &ValidationError{
		StepOrder: stepOrder,
		Field:     field,
		Message:   message,
		Err:       err,
	}
}
