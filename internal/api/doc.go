// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go          — Handler с DI (репозитории, publisher, logger)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (logging, recovery)
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - dto.go              — Data Transfer Objects (request/response)
//   - pipeline_handler.go — обработчики для /pipelines и /deployments
//   - run_handler.go      — обработчики для /runs
//   - steprun_handler.go  — обработчики для /step-runs
//   - registry_handler.go — обработчики для /artifacts и /models
//   - schedule_handler.go — обработчики для /schedules
//
// API — единственная точка записи в store: CLI, entrypoint в контейнерах
// SageMaker и внешние клиенты работают только через эти endpoints.
package api
