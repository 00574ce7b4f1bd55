// Package cadence вычисляет следующий слот публикации канала.
//
// Поддерживаются три режима:
//   - fixed_interval — "каждые N часов/дней"
//   - weekday_time   — "по Пн/Ср/Пт в 09:00"
//   - cron           — произвольное cron-выражение
//
// Вычисление — чистая функция без побочных эффектов; "сейчас" передаётся
// аргументом, что делает пакет тривиально тестируемым. Расчёты идут в
// таймзоне настройки, чтобы избежать DST-неоднозначности, результат
// нормализуется в UTC.
package cadence
