// Package engine содержит вычислительные листья execution core.
//
// Включает:
//   - bindings.go  — run-scoped переменные ({{var}}) со снапшотами по шагам
//   - template.go  — интерполяция {{var}} плейсхолдеров в url/headers/body
//   - condition.go — компиляция и вычисление StepCondition (десять операторов)
//   - extract.go   — извлечение переменных из тела ответа по path-выражениям
//
// Engine не делает I/O: ему дают конфигурацию шага и исход вызова,
// он возвращает данные. Сетевая часть живёт в пакете executor.
package engine
