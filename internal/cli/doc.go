// Package cli реализует инструмент командной строки Fabrika.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Fabrika API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// CLI используется для управления titles, schedules, channels,
// задачами очереди и кредитами.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Fabrika API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	titles, err := client.ListTitles("", "")
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: fabrika schedule list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - title: list, create, show, delete
//   - schedule: list, create, show, pipeline, reschedule, delete
//   - channel: list, create, show, update, delete
//   - task: list, cancel
//   - credit: balance, deposit
//
// Каждая группа создаётся через фабричную функцию (NewTitleCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
