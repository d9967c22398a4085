package market

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"updown/internal/models"
	"updown/pkg/ratelimit"
)

func TestBinanceProvider_GetMarketContext(t *testing.T) {
	var gotSymbol string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSymbol = r.URL.Query().Get("symbol")
		// три свечи: red, green, текущая red
		fmt.Fprint(w, `[
			[1699998300000, "2000.0", "2010.0", "1980.0", "1990.0", "1", 0, "0", 0, "0", "0", "0"],
			[1699999200000, "1990.0", "2005.0", "1985.0", "2001.0", "1", 0, "0", 0, "0", "0", "0"],
			[1700000100000, "2001.0", "2002.0", "1970.0", "1985.0", "1", 0, "0", 0, "0", "0", "0"]
		]`)
	}))
	defer srv.Close()

	p := NewBinanceProvider(srv.URL,
		NewHTTPClient(DefaultHTTPClientConfig()),
		ratelimit.NewRateLimiter(1000, 1000),
		zap.NewNop())
	p.SetNow(func() time.Time { return time.Unix(1700000100+60, 0).UTC() })

	mctx, err := p.GetMarketContext(context.Background(), "eth")
	if err != nil {
		t.Fatalf("ошибка контекста: %v", err)
	}

	if gotSymbol != "ETHUSDT" {
		t.Errorf("символ = %q, ожидался ETHUSDT", gotSymbol)
	}
	if mctx.CurrentSlug != "binance-ethusdt-1700000100000" {
		t.Errorf("current slug = %q", mctx.CurrentSlug)
	}
	if mctx.NextSlug != "binance-ethusdt-1700001000000" {
		t.Errorf("next slug = %q", mctx.NextSlug)
	}
	if mctx.Color != models.ColorRed {
		t.Errorf("текущий цвет = %s, ожидался red", mctx.Color)
	}
	if mctx.Previous[0] != models.ColorRed || mctx.Previous[1] != models.ColorGreen {
		t.Errorf("previous = %v", mctx.Previous)
	}
	if mctx.TimeToEnd != 14*time.Minute {
		t.Errorf("time to end = %v, ожидалось 14m", mctx.TimeToEnd)
	}
}

func TestParseKlines_Doji(t *testing.T) {
	// свеча с равными open/close считается зелёной
	body := []byte(`[[1700000100000, "2000.0", "2001.0", "1999.0", "2000.0", "1", 0, "0", 0, "0", "0", "0"]]`)
	klines, err := parseKlines(body)
	if err != nil {
		t.Fatalf("ошибка разбора: %v", err)
	}
	if klines[0].color() != models.ColorGreen {
		t.Error("дожи должен считаться зелёным")
	}
}

func TestParseKlines_Malformed(t *testing.T) {
	cases := [][]byte{
		[]byte(`not json`),
		[]byte(`[[1700000100000, "2000.0"]]`),
		[]byte(`[["bad", "2000.0", "x", "x", "1990.0", "1", 0, "0", 0, "0", "0", "0"]]`),
	}
	for i, body := range cases {
		if _, err := parseKlines(body); err == nil {
			t.Errorf("случай %d: ожидалась ошибка разбора", i)
		}
	}
}
