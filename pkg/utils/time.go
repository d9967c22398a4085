package utils

import (
	"time"
)

// time.go - утилиты для работы с 15-минутными интервалами
//
// Назначение:
// Границы интервалов бинарных рынков. Все рынки живут на сетке
// :00/:15/:30/:45, функции ниже считают начало/конец интервала
// для произвольного момента времени.

// IntervalDuration - длительность одного рыночного интервала
const IntervalDuration = 15 * time.Minute

// FloorInterval возвращает начало интервала, содержащего t (UTC)
func FloorInterval(t time.Time) time.Time {
	return t.UTC().Truncate(IntervalDuration)
}

// IntervalEnd возвращает конец интервала, содержащего t
func IntervalEnd(t time.Time) time.Time {
	return FloorInterval(t).Add(IntervalDuration)
}

// NextIntervalStart возвращает начало следующего интервала после t
func NextIntervalStart(t time.Time) time.Time {
	return IntervalEnd(t)
}

// TimeToEnd возвращает время до конца текущего интервала.
// На границе интервала возвращает полную длительность следующего.
func TimeToEnd(t time.Time) time.Duration {
	return IntervalEnd(t).Sub(t.UTC())
}
