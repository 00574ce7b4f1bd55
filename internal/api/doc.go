// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go          — Handler с DI (репозитории, publisher, logger)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (logging, recovery)
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - dto.go              — Data Transfer Objects (request/response)
//   - title_handler.go    — обработчики для /titles
//   - schedule_handler.go — обработчики для /schedules и pipeline detail
//   - channel_handler.go  — обработчики для /channels
//   - task_handler.go     — обработчики для /tasks (просмотр, отмена)
//   - credit_handler.go   — обработчики для /users/{id}/balance, deposit
//
// API предоставляет REST endpoints для управления titles, schedules и
// каналами. Ошибки валидации (прошедшее время без force, неизвестный
// content type, кривая cadence-конфигурация) отклоняются синхронно,
// до записи в БД.
package api
