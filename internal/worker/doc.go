// Package worker выполняет задачи durable-очереди.
//
// Worker захватывает waiting-задачи атомарным claim и выполняет их
// executor'ом, выбранным по kind:
//
//   - video-render, image-crawl → ProcessExecutor: внешний процесс,
//     payload JSON на stdin, progress-строки со stdout в логи
//     (с троттлингом), wall-clock таймаут, kill при отмене
//   - http-call → HTTPExecutor: HTTP-запрос по конфигурации из payload
//
// Источник задач — БД; события tasks.ready только будят цикл
// (потерянный nudge компенсируется polling fallback). Результат
// публикуется в tasks.completed — его ждёт Pipeline Executor.
//
// Классификация исходов:
//
//   - exit 0 / HTTP < 400 → completed
//   - ненулевой exit, таймаут, HTTP >= 400 → неудачная попытка,
//     retry в пределах бюджета задачи
//   - ошибка запуска процесса → терминальный failed, бюджет не тронут
//   - отмена через control exchange → неудачная попытка: waiting,
//     пока есть retry-бюджет, иначе терминальный failed
//   - graceful shutdown → задача возвращается в waiting
//
// Отмена: каждый воркер слушает эксклюзивную очередь, привязанную к
// fanout control exchange; событие task.cancel убивает процесс только
// у воркера, который держит задачу.
package worker
