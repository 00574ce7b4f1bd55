// Package pipeline реализует исполнитель производственного pipeline.
//
// Executor — per-schedule машина состояний, которая:
//   - Получает due schedules из очереди RabbitMQ (event-driven)
//   - Периодически проверяет running schedules в БД (polling fallback)
//   - Прогоняет стадии в фиксированном порядке script → video → upload → publish
//   - Ждёт завершения асинхронных стадий событием task.completed
//   - Повторяет упавшие стадии в рамках retry-бюджета
//   - Финализирует schedule (completed/failed) и title
//   - На терминальном провале инициирует возврат кредитов
//
// Состояние стадий авторитетно хранится в БД (pipeline_stages): после
// рестарта Executor восстанавливает in-memory состояние из строк
// стадий и продолжает с первой незавершённой.
package pipeline
