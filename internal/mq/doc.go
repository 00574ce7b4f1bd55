// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений в очереди
//   - consumer.go   — потребление сообщений из очередей
//
// Типы сообщений:
//   - schedule.due    — время schedule наступило, pipeline может запускаться
//   - task.ready      — задача поставлена в очередь
//   - task.completed  — задача завершена
//   - task.cancel     — команда отмены выполняющейся задачи
//
// Exchanges:
//   - fabrika.schedules — события schedules
//   - fabrika.tasks     — события tasks
//   - fabrika.control   — fanout для управляющих команд
//   - fabrika.dlq       — dead letter queue
//
// MQ ускоряет реакцию, но не является источником истины: состояние
// живёт в PostgreSQL, и каждый демон имеет polling-цикл, который
// подхватывает работу даже при полной потере брокера.
package mq
