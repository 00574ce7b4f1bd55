// Package scheduler реализует планировщик публикаций.
//
// Две обязанности:
//   - Tick — ежесекундный проход по due schedules: атомарный захват
//     условным UPDATE (pending → running) и публикация schedule.due
//     для pipeline. Двойной запуск исключён на уровне БД.
//   - Plan — cadence-планирование: для каждого активного канала без
//     предстоящего schedule вычисляет следующее время по политике
//     канала (fixed_interval / weekday_time / cron), выбирает самый
//     приоритетный pending title и создаёт schedule со списанием
//     кредитов в одной транзакции.
//
// Leader Election:
//
// Scheduler не реализует leader election самостоятельно.
// Это делается в main.go через pg_try_advisory_lock.
// Методы Tick() и Plan() вызывает только лидер.
package scheduler
