package market

import (
	"testing"
	"time"
)

func TestPolymarketSlug(t *testing.T) {
	// произвольный момент внутри интервала округляется к его началу
	start := time.Unix(1700000137, 0)
	slug := PolymarketSlug("ETH", start)

	if slug != "eth-updown-15m-1700000100" {
		t.Fatalf("неожиданный слаг %q", slug)
	}

	wantStart := time.Unix(1700000100, 0).UTC()
	gotStart, err := SlugStart(slug)
	if err != nil {
		t.Fatalf("ошибка разбора слага: %v", err)
	}
	if !gotStart.Equal(wantStart) {
		t.Errorf("SlugStart = %v, ожидалось %v", gotStart, wantStart)
	}

	asset, err := SlugAsset(slug)
	if err != nil || asset != "eth" {
		t.Errorf("SlugAsset = %q, %v; ожидалось eth", asset, err)
	}
}

func TestShiftSlug(t *testing.T) {
	tests := []struct {
		name string
		slug string
		n    int
		want string
	}{
		{"следующий polymarket", "eth-updown-15m-1700000100", 1, "eth-updown-15m-1700001000"},
		{"предыдущий polymarket", "eth-updown-15m-1700000100", -1, "eth-updown-15m-1699999200"},
		{"следующий binance", "binance-ethusdt-1700000100000", 1, "binance-ethusdt-1700001000000"},
		{"без сдвига", "eth-updown-15m-1700000100", 0, "eth-updown-15m-1700000100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ShiftSlug(tt.slug, tt.n)
			if err != nil {
				t.Fatalf("ошибка сдвига: %v", err)
			}
			if got != tt.want {
				t.Errorf("ShiftSlug(%q, %d) = %q, ожидалось %q", tt.slug, tt.n, got, tt.want)
			}
		})
	}
}

func TestShiftSlug_Malformed(t *testing.T) {
	for _, slug := range []string{"", "eth", "eth-updown-15m-", "eth-updown-15m-abc"} {
		if _, err := ShiftSlug(slug, 1); err == nil {
			t.Errorf("слаг %q должен давать ошибку", slug)
		}
	}
}

func TestToPolymarketSlug(t *testing.T) {
	// binance-слаг конвертируется в polymarket-слаг того же интервала
	got, err := ToPolymarketSlug("binance-ethusdt-1700000100000", "eth")
	if err != nil {
		t.Fatalf("ошибка конвертации: %v", err)
	}
	want := "eth-updown-15m-1700000100"
	if got != want {
		t.Errorf("ToPolymarketSlug = %q, ожидалось %q", got, want)
	}

	// polymarket-слаг возвращается как есть
	got, err = ToPolymarketSlug(want, "eth")
	if err != nil || got != want {
		t.Errorf("идемпотентность нарушена: %q, %v", got, err)
	}
}
