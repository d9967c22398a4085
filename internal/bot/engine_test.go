package bot

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"updown/internal/config"
	"updown/internal/market"
	"updown/internal/models"
)

// ============================================================
// Стабы окружения движка
// ============================================================

var errNoSeries = errors.New("series not found")

type memSeries struct {
	m map[string]*models.TradeSeries
}

func newMemSeries() *memSeries {
	return &memSeries{m: make(map[string]*models.TradeSeries)}
}

func (s *memSeries) Save(ts *models.TradeSeries) error {
	copied := *ts
	s.m[ts.ID] = &copied
	return nil
}

func (s *memSeries) FindOpen(botID string) ([]*models.TradeSeries, error) {
	var out []*models.TradeSeries
	for _, ts := range s.m {
		if ts.BotID == botID && (ts.Status == models.SeriesActive || ts.Status == models.SeriesCooldown) {
			copied := *ts
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *memSeries) FindOpenByAsset(botID, asset string) (*models.TradeSeries, error) {
	for _, ts := range s.m {
		if ts.BotID == botID && ts.Asset == asset &&
			(ts.Status == models.SeriesActive || ts.Status == models.SeriesCooldown) {
			copied := *ts
			return &copied, nil
		}
	}
	return nil, errNoSeries
}

func (s *memSeries) countByStatus(status models.SeriesStatus) int {
	n := 0
	for _, ts := range s.m {
		if ts.Status == status {
			n++
		}
	}
	return n
}

type memStats struct {
	m map[string]*models.TradingStats
}

func newMemStats() *memStats {
	return &memStats{m: make(map[string]*models.TradingStats)}
}

func (s *memStats) GetOrCreate(botID string, deposit float64) (*models.TradingStats, error) {
	if st, ok := s.m[botID]; ok {
		copied := *st
		return &copied, nil
	}
	st := models.NewTradingStats(botID, deposit)
	s.m[botID] = st
	copied := *st
	return &copied, nil
}

func (s *memStats) Save(st *models.TradingStats) error {
	copied := *st
	s.m[st.BotID] = &copied
	return nil
}

func (s *memStats) balance(botID string) float64 {
	if st, ok := s.m[botID]; ok {
		return st.CurrentBalance
	}
	return 0
}

type fakeOracle struct {
	buy  map[string]float64
	sell map[string]float64
	book map[string]models.OrderBook
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{
		buy:  make(map[string]float64),
		sell: make(map[string]float64),
		book: make(map[string]models.OrderBook),
	}
}

func priceKey(slug string, color models.Color) string {
	return slug + "/" + string(color)
}

func (o *fakeOracle) GetBuyPrice(ctx context.Context, slug string, color models.Color) (*models.PriceQuote, error) {
	p, ok := o.buy[priceKey(slug, color)]
	if !ok {
		return nil, market.ErrPriceUnavailable
	}
	return &models.PriceQuote{Price: p, TokenID: "tok-" + slug}, nil
}

func (o *fakeOracle) GetSellPrice(ctx context.Context, slug string, color models.Color) (*models.PriceQuote, error) {
	p, ok := o.sell[priceKey(slug, color)]
	if !ok {
		return nil, market.ErrPriceUnavailable
	}
	return &models.PriceQuote{Price: p, TokenID: "tok-" + slug}, nil
}

func (o *fakeOracle) GetOrderBook(ctx context.Context, tokenID string) (*models.OrderBook, error) {
	b, ok := o.book[tokenID]
	if !ok {
		return nil, market.ErrBookUnavailable
	}
	return &b, nil
}

type fakeContext struct {
	mctx models.MarketContext
	err  error
}

func (f *fakeContext) GetMarketContext(ctx context.Context, asset string) (*models.MarketContext, error) {
	if f.err != nil {
		return nil, f.err
	}
	copied := f.mctx
	return &copied, nil
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	eng    *Engine
	series *memSeries
	stats  *memStats
	oracle *fakeOracle
	mkt    *fakeContext
	clock  *fakeClock
}

// baseTime выровнено по 15-минутной сетке
var baseTime = time.Unix(1700000100, 0).UTC()

func slugAt(n int) string {
	return market.PolymarketSlug("eth", baseTime.Add(time.Duration(n)*utilsInterval))
}

const utilsInterval = 15 * time.Minute

func newFixture(t *testing.T, profile config.BotProfile) *fixture {
	t.Helper()
	f := &fixture{
		series: newMemSeries(),
		stats:  newMemStats(),
		oracle: newFakeOracle(),
		mkt:    &fakeContext{},
		clock:  &fakeClock{t: baseTime.Add(2 * time.Minute)},
	}
	f.eng = NewEngine(Options{
		Profile:        profile,
		Series:         f.series,
		Stats:          f.stats,
		Context:        f.mkt,
		Oracle:         f.oracle,
		SampleInterval: 10 * time.Second,
		Assets:         []string{"eth"},
		Now:            f.clock.now,
	})
	return f
}

func signalProfile() config.BotProfile {
	return config.BotProfile{
		ID:              "bot-test",
		SignalType:      models.SignalThreeCandles,
		BuyStrategy:     config.BuySignal,
		MaxSteps:        4,
		FirstBetPercent: 0.02,
		BaseDeposit:     100,
		MaxPrice:        0.55,
		EntryFee:        0.015,
		ExitFee:         0.015,
	}
}

func greenSignal() models.Signal {
	return models.Signal{
		Asset:          "eth",
		Color:          models.ColorGreen,
		MarketSlug:     slugAt(0),
		NextMarketSlug: slugAt(1),
		Type:           models.SignalThreeCandles,
		DetectedAt:     baseTime,
	}
}

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

// ============================================================
// Вход по сигналу
// ============================================================

func TestOnSignal_OpensSeries(t *testing.T) {
	f := newFixture(t, signalProfile())
	f.oracle.buy[priceKey(slugAt(1), models.ColorRed)] = 0.40

	f.eng.OnSignal(context.Background(), greenSignal())

	series, ok := f.eng.active["eth"]
	if !ok {
		t.Fatal("серия не открыта")
	}
	if series.BetColor != models.ColorRed {
		t.Errorf("bet color = %s, want red", series.BetColor)
	}
	if series.CurrentStep != 1 || series.CurrentMarketSlug != slugAt(1) {
		t.Errorf("step=%d market=%s", series.CurrentStep, series.CurrentMarketSlug)
	}
	if series.MarketState != models.MarketWaiting {
		t.Errorf("market state = %s, want waiting", series.MarketState)
	}

	// ставка из уравнения безубыточности: выигрыш возвращает
	// вложенное плюс целевую прибыль 100*0.02
	denom := (1-0.015)*(1-0.015)/0.40 - 1
	wantStake := 2.0 / denom
	pos := series.ActivePosition()
	if pos == nil {
		t.Fatal("нет активной позиции первого шага")
	}
	approx(t, "stake", pos.Amount, wantStake)
	approx(t, "invested", series.TotalInvested, wantStake)
	approx(t, "balance", f.stats.balance("bot-test"), 100-wantStake)
}

func TestOnSignal_SecondSignalIsNoop(t *testing.T) {
	f := newFixture(t, signalProfile())
	f.oracle.buy[priceKey(slugAt(1), models.ColorRed)] = 0.40

	f.eng.OnSignal(context.Background(), greenSignal())
	balance := f.stats.balance("bot-test")

	f.eng.OnSignal(context.Background(), greenSignal())

	if got := f.series.countByStatus(models.SeriesActive); got != 1 {
		t.Errorf("active series = %d, want 1", got)
	}
	approx(t, "balance after duplicate", f.stats.balance("bot-test"), balance)
}

func TestOnSignal_WrongTypeIgnored(t *testing.T) {
	f := newFixture(t, signalProfile())
	f.oracle.buy[priceKey(slugAt(1), models.ColorRed)] = 0.40

	sig := greenSignal()
	sig.Type = models.SignalTwoCandles
	f.eng.OnSignal(context.Background(), sig)

	if len(f.eng.active) != 0 {
		t.Error("серия открыта по чужому типу сигнала")
	}
}

func TestOnSignal_UntrackedAssetIgnored(t *testing.T) {
	f := newFixture(t, signalProfile())
	sig := greenSignal()
	sig.Asset = "sol"
	sig.MarketSlug = market.PolymarketSlug("sol", baseTime)
	sig.NextMarketSlug = market.PolymarketSlug("sol", baseTime.Add(utilsInterval))
	f.oracle.buy[priceKey(sig.NextMarketSlug, models.ColorRed)] = 0.40

	f.eng.OnSignal(context.Background(), sig)

	if len(f.eng.active) != 0 {
		t.Error("серия открыта по неотслеживаемому активу")
	}
}

func TestOnSignal_PriceCeiling(t *testing.T) {
	tests := []struct {
		name   string
		price  float64
		opened bool
	}{
		{"exactly at ceiling", 0.55, true},
		{"above ceiling", 0.56, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, signalProfile())
			f.oracle.buy[priceKey(slugAt(1), models.ColorRed)] = tt.price

			f.eng.OnSignal(context.Background(), greenSignal())

			_, opened := f.eng.active["eth"]
			if opened != tt.opened {
				t.Errorf("opened = %v, want %v", opened, tt.opened)
			}
		})
	}
}

func TestOnSignal_PriceUnavailable(t *testing.T) {
	f := newFixture(t, signalProfile())

	f.eng.OnSignal(context.Background(), greenSignal())

	if len(f.eng.active) != 0 {
		t.Error("серия открыта без цены входа")
	}
	if got := f.stats.balance("bot-test"); got != 0 {
		// статистика вообще не создаётся, пока не было ни одной покупки
		t.Errorf("balance = %v, want untouched", got)
	}
}

// ============================================================
// Расчёт закрытых рынков
// ============================================================

func TestWin_OnFirstStep(t *testing.T) {
	f := newFixture(t, signalProfile())
	f.oracle.buy[priceKey(slugAt(1), models.ColorRed)] = 0.40
	f.eng.OnSignal(context.Background(), greenSignal())

	// рынок шага закрылся красным, ставка красная - выигрыш
	f.clock.advance(20 * time.Minute)
	f.mkt.mctx = models.MarketContext{
		Asset:       "eth",
		CurrentSlug: slugAt(2),
		NextSlug:    slugAt(3),
		Color:       models.ColorGreen,
		Active:      true,
		TimeToEnd:   10 * time.Minute,
		Previous:    [2]models.Color{models.ColorGreen, models.ColorRed},
	}
	f.eng.Tick(context.Background())

	stored, err := f.series.FindOpenByAsset("bot-test", "eth")
	if err == nil {
		t.Fatalf("серия всё ещё открыта: %s", stored.Status)
	}
	if got := f.series.countByStatus(models.SeriesWon); got != 1 {
		t.Fatalf("won series = %d, want 1", got)
	}

	// выплата шага покрывает вложенное плюс ровно целевую прибыль
	var won *models.TradeSeries
	for _, s := range f.series.m {
		won = s
	}
	approx(t, "pnl", won.TotalPnL, 2.0)
	approx(t, "balance", f.stats.balance("bot-test"), 102.0)
	if st := f.stats.m["bot-test"]; st.WonTrades != 1 || st.WinsByStep[1] != 1 {
		t.Errorf("wins=%d winsByStep[1]=%d", st.WonTrades, st.WinsByStep[1])
	}
}

func TestLoss_BuysNextStep(t *testing.T) {
	f := newFixture(t, signalProfile())
	f.oracle.buy[priceKey(slugAt(1), models.ColorRed)] = 0.40
	f.eng.OnSignal(context.Background(), greenSignal())
	firstStake := f.eng.active["eth"].TotalInvested

	// рынок шага закрылся зелёным - проигрыш, второй шаг покупается
	// на текущем живом интервале
	f.clock.advance(20 * time.Minute)
	f.oracle.buy[priceKey(slugAt(2), models.ColorRed)] = 0.45
	f.mkt.mctx = models.MarketContext{
		Asset:       "eth",
		CurrentSlug: slugAt(2),
		NextSlug:    slugAt(3),
		Color:       models.ColorRed,
		Active:      true,
		TimeToEnd:   10 * time.Minute,
		Previous:    [2]models.Color{models.ColorGreen, models.ColorGreen},
	}
	f.eng.Tick(context.Background())

	series := f.eng.active["eth"]
	if series == nil {
		t.Fatal("серия закрылась вместо продолжения")
	}
	if series.CurrentStep != 2 || series.CurrentMarketSlug != slugAt(2) {
		t.Errorf("step=%d market=%s", series.CurrentStep, series.CurrentMarketSlug)
	}
	if series.MarketState != models.MarketActive {
		t.Errorf("market state = %s, want active", series.MarketState)
	}
	if len(series.Positions) != 2 {
		t.Fatalf("positions = %d, want 2", len(series.Positions))
	}
	if series.Positions[0].Status != models.PositionLost {
		t.Errorf("первый шаг не помечен проигранным: %s", series.Positions[0].Status)
	}

	denom := (1-0.015)*(1-0.015)/0.45 - 1
	wantStake := (firstStake + 2.0) / denom
	approx(t, "second stake", series.Positions[1].Amount, wantStake)
}

func TestFullLoss_OpensCooldown(t *testing.T) {
	profile := signalProfile()
	profile.MaxSteps = 1
	profile.CooldownAfterFullLoss = 900 * time.Second
	f := newFixture(t, profile)
	f.oracle.buy[priceKey(slugAt(1), models.ColorRed)] = 0.40
	f.eng.OnSignal(context.Background(), greenSignal())

	f.clock.advance(20 * time.Minute)
	lossAt := f.clock.now()
	f.mkt.mctx = models.MarketContext{
		Asset:       "eth",
		CurrentSlug: slugAt(2),
		NextSlug:    slugAt(3),
		Color:       models.ColorRed,
		Active:      true,
		TimeToEnd:   10 * time.Minute,
		Previous:    [2]models.Color{models.ColorGreen, models.ColorGreen},
	}
	f.eng.Tick(context.Background())

	if got := f.series.countByStatus(models.SeriesLost); got != 1 {
		t.Fatalf("lost series = %d, want 1", got)
	}
	cd, ok := f.eng.cooldowns["eth"]
	if !ok {
		t.Fatal("карантин не открыт")
	}
	if want := lossAt.Add(900 * time.Second); !cd.EndedAt.Equal(want) {
		t.Errorf("cooldown until %v, want %v", cd.EndedAt, want)
	}

	// сигнал внутри карантина игнорируется
	f.clock.advance(500 * time.Second)
	f.oracle.buy[priceKey(slugAt(3), models.ColorRed)] = 0.40
	sig := greenSignal()
	sig.MarketSlug = slugAt(2)
	sig.NextMarketSlug = slugAt(3)
	f.eng.OnSignal(context.Background(), sig)
	if len(f.eng.active) != 0 {
		t.Error("сигнал принят внутри карантина")
	}

	// после истечения карантина тот же сигнал принимается
	f.clock.advance(401 * time.Second)
	f.eng.OnSignal(context.Background(), sig)
	if len(f.eng.active) != 1 {
		t.Error("сигнал не принят после карантина")
	}
}

// ============================================================
// Хеджирование
// ============================================================

func TestHedge_BoughtAndPromoted(t *testing.T) {
	f := newFixture(t, signalProfile())
	f.oracle.buy[priceKey(slugAt(1), models.ColorRed)] = 0.40
	f.eng.OnSignal(context.Background(), greenSignal())

	// интервал шага идёт, живой цвет совпал с сигнальным:
	// шаг проигрывает, хедж покупается на следующем интервале
	f.clock.advance(16 * time.Minute)
	f.oracle.buy[priceKey(slugAt(2), models.ColorRed)] = 0.35
	f.mkt.mctx = models.MarketContext{
		Asset:       "eth",
		CurrentSlug: slugAt(1),
		NextSlug:    slugAt(2),
		Color:       models.ColorGreen,
		Active:      true,
		TimeToEnd:   5 * time.Minute,
		Previous:    [2]models.Color{models.ColorGreen, models.ColorGreen},
	}
	f.eng.Tick(context.Background())

	series := f.eng.active["eth"]
	if !series.NextStepBought || series.NextMarketSlug != slugAt(2) {
		t.Fatalf("хедж не куплен: bought=%v slug=%s", series.NextStepBought, series.NextMarketSlug)
	}
	hedge := hedgePosition(series)
	if hedge == nil || hedge.Step != 2 {
		t.Fatal("нет хедж-позиции второго шага")
	}

	// шаг проигран: хедж повышается без новой покупки
	f.clock.advance(11 * time.Minute)
	f.mkt.mctx = models.MarketContext{
		Asset:       "eth",
		CurrentSlug: slugAt(2),
		NextSlug:    slugAt(3),
		Color:       models.ColorRed,
		Active:      true,
		TimeToEnd:   10 * time.Minute,
		Previous:    [2]models.Color{models.ColorGreen, models.ColorGreen},
	}
	f.eng.Tick(context.Background())

	series = f.eng.active["eth"]
	if series.CurrentStep != 2 || series.CurrentMarketSlug != slugAt(2) {
		t.Errorf("step=%d market=%s после повышения", series.CurrentStep, series.CurrentMarketSlug)
	}
	if series.NextStepBought {
		t.Error("флаг хеджа не снят после повышения")
	}
	if len(series.Positions) != 2 {
		t.Errorf("positions = %d, want 2 (новая покупка не нужна)", len(series.Positions))
	}
	if pos := series.ActivePosition(); pos == nil || !pos.Hedge {
		t.Error("активная позиция второго шага не бывший хедж")
	}
}

func TestHedge_SoldOnFlipBack(t *testing.T) {
	f := newFixture(t, signalProfile())
	f.oracle.buy[priceKey(slugAt(1), models.ColorRed)] = 0.40
	f.eng.OnSignal(context.Background(), greenSignal())

	f.clock.advance(16 * time.Minute)
	f.oracle.buy[priceKey(slugAt(2), models.ColorRed)] = 0.35
	f.mkt.mctx = models.MarketContext{
		Asset:       "eth",
		CurrentSlug: slugAt(1),
		NextSlug:    slugAt(2),
		Color:       models.ColorGreen,
		Active:      true,
		TimeToEnd:   5 * time.Minute,
		Previous:    [2]models.Color{models.ColorGreen, models.ColorGreen},
	}
	f.eng.Tick(context.Background())

	series := f.eng.active["eth"]
	hedge := hedgePosition(series)
	if hedge == nil {
		t.Fatal("хедж не куплен")
	}
	investedWithHedge := series.TotalInvested

	// под закрытие рынок развернулся в пользу ставки: хедж лишний
	f.clock.advance(4*time.Minute + 45*time.Second)
	f.oracle.sell[priceKey(slugAt(2), models.ColorRed)] = 0.30
	f.mkt.mctx.Color = models.ColorRed
	f.mkt.mctx.TimeToEnd = 15 * time.Second
	f.eng.Tick(context.Background())

	series = f.eng.active["eth"]
	if series.NextStepBought {
		t.Error("флаг хеджа не снят после продажи")
	}
	proceeds := hedge.Shares * 0.30 * (1 - 0.015)
	wantLoss := hedge.Amount - proceeds
	approx(t, "hedge losses", series.HedgeLosses, wantLoss)
	approx(t, "invested", series.TotalInvested, investedWithHedge-hedge.Amount)
	if hedge.Status != models.PositionSold {
		t.Errorf("hedge status = %s, want sold", hedge.Status)
	}
}

// ============================================================
// Отмена по развороту сигнального рынка
// ============================================================

func TestSignalFlip_CancelsFirstStep(t *testing.T) {
	f := newFixture(t, signalProfile())
	f.oracle.buy[priceKey(slugAt(1), models.ColorRed)] = 0.40
	f.eng.OnSignal(context.Background(), greenSignal())
	series := f.eng.active["eth"]
	stake := series.TotalInvested

	// сигнальный рынок под самое закрытие стал красным: предпосылка
	// серии опровергнута, позиция продаётся не дожидаясь расчёта
	f.clock.advance(14 * time.Minute)
	f.oracle.sell[priceKey(slugAt(1), models.ColorRed)] = 0.38
	f.mkt.mctx = models.MarketContext{
		Asset:       "eth",
		CurrentSlug: slugAt(0),
		NextSlug:    slugAt(1),
		Color:       models.ColorRed,
		Active:      true,
		TimeToEnd:   15 * time.Second,
		Previous:    [2]models.Color{models.ColorGreen, models.ColorGreen},
	}
	f.eng.Tick(context.Background())

	if len(f.eng.active) != 0 {
		t.Fatal("серия не отменена")
	}
	if got := f.series.countByStatus(models.SeriesCancelled); got != 1 {
		t.Fatalf("cancelled series = %d, want 1", got)
	}

	var cancelled *models.TradeSeries
	for _, s := range f.series.m {
		cancelled = s
	}
	shares := stake * (1 - 0.015) / 0.40
	proceeds := shares * 0.38 * (1 - 0.015)
	approx(t, "pnl", cancelled.TotalPnL, proceeds-stake)
	approx(t, "balance", f.stats.balance("bot-test"), 100-stake+proceeds)
	if st := f.stats.m["bot-test"]; st.CancelledTrades != 1 {
		t.Errorf("cancellations = %d, want 1", st.CancelledTrades)
	}
}

// ============================================================
// Устойчивость к недоступности данных
// ============================================================

func TestTick_ContextUnavailable(t *testing.T) {
	f := newFixture(t, signalProfile())
	f.oracle.buy[priceKey(slugAt(1), models.ColorRed)] = 0.40
	f.eng.OnSignal(context.Background(), greenSignal())

	f.mkt.err = market.ErrMarketNotFound
	f.eng.Tick(context.Background())

	series := f.eng.active["eth"]
	if series == nil || series.Status != models.SeriesActive {
		t.Error("серия пострадала от недоступного контекста")
	}
}

func TestResolve_UnresolvedColorDefers(t *testing.T) {
	f := newFixture(t, signalProfile())
	f.oracle.buy[priceKey(slugAt(1), models.ColorRed)] = 0.40
	f.eng.OnSignal(context.Background(), greenSignal())

	// рынок шага позади, но его итоговый цвет в истории пуст:
	// движок обязан ждать, а не угадывать
	f.clock.advance(20 * time.Minute)
	f.mkt.mctx = models.MarketContext{
		Asset:       "eth",
		CurrentSlug: slugAt(2),
		NextSlug:    slugAt(3),
		Color:       models.ColorRed,
		Active:      true,
		TimeToEnd:   10 * time.Minute,
		Previous:    [2]models.Color{models.ColorGreen, ""},
	}
	f.eng.Tick(context.Background())

	series := f.eng.active["eth"]
	if series == nil || series.Status != models.SeriesActive {
		t.Fatal("серия закрыта по неопределённому цвету")
	}
	if len(series.Positions) != 1 || series.Positions[0].Status != models.PositionActive {
		t.Error("позиция тронута до появления итогового цвета")
	}
}

// ============================================================
// Восстановление после рестарта
// ============================================================

func TestResume_AdoptsOpenSeries(t *testing.T) {
	f := newFixture(t, signalProfile())
	now := f.clock.now()
	until := now.Add(10 * time.Minute)
	expired := now.Add(-time.Minute)

	seed := []*models.TradeSeries{
		{ID: "s1", BotID: "bot-test", Asset: "eth", Status: models.SeriesActive, CurrentStep: 2},
		{ID: "s2", BotID: "bot-test", Asset: "btc", Status: models.SeriesCooldown, EndedAt: &until},
		{ID: "s3", BotID: "bot-test", Asset: "sol", Status: models.SeriesCooldown, EndedAt: &expired},
		{ID: "s4", BotID: "bot-test", Asset: "eth", Status: models.SeriesWon},
	}
	for _, s := range seed {
		if err := f.series.Save(s); err != nil {
			t.Fatal(err)
		}
	}

	if err := f.eng.Resume(); err != nil {
		t.Fatal(err)
	}

	if _, ok := f.eng.active["eth"]; !ok {
		t.Error("активная серия не восстановлена")
	}
	if _, ok := f.eng.cooldowns["btc"]; !ok {
		t.Error("действующий карантин не восстановлен")
	}
	if _, ok := f.eng.cooldowns["sol"]; ok {
		t.Error("истёкший карантин восстановлен")
	}
	if len(f.eng.active) != 1 {
		t.Errorf("active = %d, want 1", len(f.eng.active))
	}
}
