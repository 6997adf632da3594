// Package launcher отправляет pending runs в SageMaker.
//
// Launcher — компонент системы, который:
//   - Получает новые runs из очереди RabbitMQ (event-driven)
//   - Периодически проверяет pending runs в БД (polling fallback)
//   - Строит definition-документ pipeline из deployment
//   - Создаёт или обновляет pipeline на стороне SageMaker
//   - Запускает выполнение либо создаёт EventBridge schedule
//   - Записывает метаданные оркестратора (execution ARN, ссылки)
//
// Структура:
//   - launcher.go — жизненный цикл сервиса (consumer + poll loop)
//   - submit.go   — отправка одного run в SageMaker
package launcher
