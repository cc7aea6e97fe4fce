// Package orchestrator принимает due runs и доводит их до терминального
// статуса.
//
// Включает:
//   - admission.go    — admission-контроль: overlap policy, слоты, FIFO-очередь
//   - orchestrator.go — жизненный цикл daemon'а: consumer + polling fallback
//   - handlers.go     — обработка одного run'а: admission → выполнение →
//     персистентность → событие завершения → передача слота
//
// Runs приходят двумя путями: событием run.requested из RabbitMQ
// (event-driven) и периодическим опросом pending executions в БД
// (fallback при недоступном брокере и для подхвата runs, созданных
// пока orchestrator был выключен).
//
// Каждый принятый run выполняется в собственной горутине; число
// одновременных runs ограничивается только admission-контролем.
package orchestrator
