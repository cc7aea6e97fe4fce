package engine

import (
	"regexp"
	"strings"
)

// placeholderRe — грамматика плейсхолдера: {{name}}, опциональные пробелы
// вокруг имени. Имя — идентификатор с точками/дефисами.
var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_.\-]*)\s*\}\}`)

// Render подставляет {{name}} плейсхолдеры значениями из bindings.
//
// Неизвестный плейсхолдер остаётся в тексте дословно — это не ошибка:
// ссылка на переменную, которую предыдущий шаг не извлёк, должна быть
// видна в итоговом URL/body как есть.
//
// Намеренно не text/template: тот падает или печатает <no value> на
// неизвестных ключах, а здесь грамматика — плоские имена с verbatim-прохождением.
func Render(tmpl string, b Bindings) string {
	// Быстрый путь: строка без плейсхолдеров
	if !strings.Contains(tmpl, "{{") {
		return tmpl
	}

	return placeholderRe.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := placeholderRe.FindStringSubmatch(match)[1]
		if v, ok := b.Lookup(name); ok {
			return v
		}
		return match
	})
}

// RenderHeaders интерполирует значения заголовков.
// Ключи заголовков не интерполируются.
func RenderHeaders(headers map[string]string, b Bindings) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	result := make(map[string]string, len(headers))
	for k, v := range headers {
		result[k] = Render(v, b)
	}
	return result
}

// Placeholders возвращает имена всех плейсхолдеров в шаблоне.
// Используется api для подсказок при сохранении.
func Placeholders(tmpl string) []string {
	if !strings.Contains(tmpl, "{{") {
		return nil
	}
	matches := placeholderRe.FindAllStringSubmatch(tmpl, -1)
	names := make([]string, 0, len(matches))
	seen := make(map[string]bool, len(matches))
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}
