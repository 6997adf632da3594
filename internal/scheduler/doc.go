// Package scheduler вычисляет времена запуска расписаний на стороне store.
//
// Фактическое срабатывание расписаний делегировано EventBridge Scheduler
// (его создаёт Launcher); этот пакет нужен для валидации cron-выражений
// при создании schedule через API и для вычисления информационного
// next_due_at ("первый запуск в ...").
package scheduler
