// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений в очереди
//   - consumer.go   — потребление сообщений из очередей
//
// Типы сообщений:
//   - deployment.pending — создан run, ожидающий отправки в SageMaker
//   - run.submitted      — run отправлен, выполнение началось
//   - run.status         — статус run изменился
//
// Exchanges:
//   - conveyor.deployments — события deployments
//   - conveyor.runs        — события runs
//   - conveyor.dlq         — dead letter queue
package mq
