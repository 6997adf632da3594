// Package poller отслеживает статусы запущенных в SageMaker выполнений.
//
// Poller получает события run.submitted из RabbitMQ и дополнительно
// периодически обходит незавершённые runs в store (fallback на случай
// потерянных сообщений или рестарта). Для каждого run он запрашивает
// DescribePipelineExecution, транслирует статус AWS во внутренний
// статус и фиксирует переходы: обновляет запись run и публикует
// событие run.status.
//
// Фактическое выполнение шагов происходит на стороне SageMaker;
// poller — только наблюдатель.
package poller
