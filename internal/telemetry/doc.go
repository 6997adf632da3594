// Package telemetry обеспечивает наблюдаемость системы.
//
// Включает structured logging через slog; формат и уровень
// управляются переменными LOG_FORMAT и LOG_LEVEL.
//
// Все сервисы используют единый формат логирования
// и экспортируют Prometheus метрики на /metrics endpoint.
package telemetry
