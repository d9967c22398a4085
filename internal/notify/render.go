package notify

import (
	"fmt"
	"strings"

	"updown/internal/bot"
	"updown/internal/models"
)

// emoji по типу события таймлайна
var eventMarks = map[string]string{
	models.EventBuy:           "🟦",
	models.EventHedgeBuy:      "🛡",
	models.EventHedgeSell:     "↩️",
	models.EventHedgePromoted: "⏫",
	models.EventStepLost:      "▫️",
	models.EventWin:           "✅",
	models.EventLoss:          "❌",
	models.EventCancelled:     "🚫",
	models.EventCooldown:      "⏸",
	models.EventValidation:    "🔎",
}

// RenderSeries собирает текст уведомления: шапка с состоянием серии
// и хронология её событий
func RenderSeries(series *models.TradeSeries) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s · %s · %s\n",
		strings.ToUpper(series.Asset), series.BotID, bot.StateInfo(series.Status))
	fmt.Fprintf(&b, "Ставка на %s против сигнала %s (%s)\n",
		colorName(series.BetColor), colorName(series.SignalColor), series.SignalType)
	fmt.Fprintf(&b, "Шаг %d · вложено %.2f · комиссии %.2f\n",
		series.CurrentStep, series.TotalInvested, series.TotalCommission)
	if series.HedgeLosses > 0 {
		fmt.Fprintf(&b, "Потери на хеджах %.2f\n", series.HedgeLosses)
	}
	if series.Status != models.SeriesActive {
		fmt.Fprintf(&b, "Итог: %+.2f\n", series.TotalPnL)
	}

	if len(series.Events) > 0 {
		b.WriteString("\n")
		for _, ev := range series.Events {
			mark := eventMarks[ev.Type]
			if mark == "" {
				mark = "•"
			}
			fmt.Fprintf(&b, "%s %s", mark, ev.Timestamp.Format("15:04:05"))
			if ev.Step > 0 {
				fmt.Fprintf(&b, " [шаг %d]", ev.Step)
			}
			if ev.Message != "" {
				fmt.Fprintf(&b, " %s", ev.Message)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func colorName(c models.Color) string {
	switch c {
	case models.ColorGreen:
		return "зелёный"
	case models.ColorRed:
		return "красный"
	default:
		return string(c)
	}
}
