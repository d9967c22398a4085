package utils

import (
	"math"
)

// math.go - математические утилиты торгового эмулятора
//
// Назначение:
// Чистые функции без побочных эффектов: округление денежных
// значений для отчётов и расчёт относительного изменения цены.

// Round2 округляет до центов. Только для отображения,
// внутренние расчёты идут без округления.
func Round2(value float64) float64 {
	return math.Round(value*100) / 100
}

// RoundTo округляет value до decimals знаков после запятой
func RoundTo(value float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	return math.Round(value*factor) / factor
}

// PercentChange возвращает относительное изменение цены от from к to.
// Положительное значение - рост. При from == 0 возвращает 0.
func PercentChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from
}
