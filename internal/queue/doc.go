// Package queue реализует сервис durable-очереди задач.
//
// Очередь живёт в PostgreSQL: задача переживает рестарты всех демонов,
// а захват реализован одним условным UPDATE — два воркера не могут
// получить одну задачу. RabbitMQ используется только как «толчок» для
// немедленной реакции воркера; потеря сообщения не теряет задачу,
// её подхватит polling.
//
// Семантика retry: fail с retry=true возвращает задачу в waiting с
// RetryCount+1, пока бюджет MaxRetries не исчерпан; после — терминальный
// failed. Release (graceful shutdown) возвращает задачу в waiting, не
// расходуя бюджет.
package queue
