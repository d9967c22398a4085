package bot

import "updown/internal/models"

// ValidTransitions определяет допустимые переходы статуса серии
var ValidTransitions = map[models.SeriesStatus][]models.SeriesStatus{
	models.SeriesActive:    {models.SeriesWon, models.SeriesLost, models.SeriesCancelled},
	models.SeriesCooldown:  {}, // запись живёт до истечения ended_at, переходов нет
	models.SeriesWon:       {},
	models.SeriesLost:      {},
	models.SeriesCancelled: {},
}

// ValidMarketTransitions определяет жизненный цикл рынка текущего шага
var ValidMarketTransitions = map[models.MarketState][]models.MarketState{
	models.MarketWaiting: {models.MarketActive},
	models.MarketActive:  {models.MarketClosed},
	models.MarketClosed:  {models.MarketWaiting}, // следующий шаг открывает новый интервал
}

// ValidValidationTransitions определяет переходы под-автомата валидации
var ValidValidationTransitions = map[models.ValidationState][]models.ValidationState{
	models.ValidationNone:       {models.ValidationValidating},
	models.ValidationValidating: {models.ValidationValidated, models.ValidationRejected},
	models.ValidationValidated:  {},
	models.ValidationRejected:   {},
}

// CanTransition проверяет допустимость перехода статуса серии
func CanTransition(from, to models.SeriesStatus) bool {
	for _, s := range ValidTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CanMarketTransition проверяет допустимость перехода состояния рынка
func CanMarketTransition(from, to models.MarketState) bool {
	for _, s := range ValidMarketTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// StateInfo возвращает описание статуса серии для уведомлений
func StateInfo(s models.SeriesStatus) string {
	switch s {
	case models.SeriesActive:
		return "Серия идёт"
	case models.SeriesWon:
		return "Серия выиграна"
	case models.SeriesLost:
		return "Серия проиграна"
	case models.SeriesCancelled:
		return "Серия отменена"
	case models.SeriesCooldown:
		return "Пауза после проигрыша"
	default:
		return "Неизвестное состояние"
	}
}
