package engine

import (
	"github.com/tidwall/gjson"
)

// Extract применяет правила {имя переменной → path-выражение} к телу ответа.
//
// Возвращает только найденные значения: промах path'а или непарсящееся
// тело оставляют ключ отсутствующим — никогда не пустую строку.
// Грамматика path-выражений — gjson ("data.items.0.id", "user.name").
func Extract(body []byte, rules map[string]string) map[string]string {
	if len(rules) == 0 {
		return nil
	}
	if !gjson.ValidBytes(body) {
		return nil
	}

	extracted := make(map[string]string, len(rules))
	for name, path := range rules {
		res := gjson.GetBytes(body, path)
		if !res.Exists() {
			continue
		}
		extracted[name] = resultString(res)
	}

	if len(extracted) == 0 {
		return nil
	}
	return extracted
}

// resultString приводит результат gjson к строковому binding'у.
// Строки — без кавычек, составные значения — сырым JSON.
func resultString(res gjson.Result) string {
	switch res.Type {
	case gjson.String:
		return res.Str
	case gjson.JSON:
		return res.Raw
	default:
		return res.String()
	}
}

// ValidateExtractRules проверяет правила извлечения на границе сохранения:
// имена непусты и уникальны в рамках шага, path-выражения непусты.
// Сама грамматика path делегирована gjson и здесь непрозрачна.
func ValidateExtractRules(stepOrder int, rules map[string]string) error {
	for name, path := range rules {
		if name == "" {
			return NewValidationError(stepOrder, "extract_variables",
				"extract variable with empty name", ErrEmptyExtractKey)
		}
		if path == "" {
			return NewValidationError(stepOrder, "extract_variables",
				"extract variable "+name+" has empty path", ErrEmptyExtractPath)
		}
	}
	return nil
}
