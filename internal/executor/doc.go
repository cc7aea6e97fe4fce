// Package executor выполняет runs: chain'ы HTTP-вызовов и вырожденные
// одношаговые chain'ы для single-call tasks.
//
// Включает:
//   - step.go  — выполнение одного шага: интерполяция → вызов → классификация
//     → condition → извлечение переменных, с per-step retry
//   - chain.go — последовательный прогон шагов, эволюция binding'ов,
//     общий дедлайн run'а, агрегация статусов в Execution
//
// Executor не трогает БД и очереди: ему дают chain и Execution-запись,
// он возвращает заполненные StepExecution. Персистентность — забота
// оркестратора.
package executor
