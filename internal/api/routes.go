package api

import (
	"database/sql"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"updown/internal/api/handlers"
	"updown/internal/api/middleware"
	"updown/internal/bot"
	"updown/internal/config"
	"updown/internal/websocket"
)

// Dependencies собирает всё, что нужно HTTP-слою
type Dependencies struct {
	Config  *config.Config
	DB      *sql.DB
	Engines []*bot.Engine
	Series  handlers.SeriesReader
	Stats   handlers.StatsReader
	Signals handlers.SignalReader
	Hub     *websocket.Hub
	Logger  *zap.Logger
}

// NewRouter настраивает все маршруты приложения
func NewRouter(deps Dependencies) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.Logging(deps.Logger))
	router.Use(middleware.CORS(deps.Config.Server.AllowedOrigins))

	health := handlers.NewHealthHandler(deps.DB)
	router.HandleFunc("/healthz", health.Check).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	checker := websocket.NewOriginChecker(deps.Config.Server.AllowedOrigins)
	router.HandleFunc("/ws/stream", deps.Hub.ServeWS(websocket.Upgrader(checker)))

	bots := handlers.NewBotsHandler(deps.Engines, deps.Series, deps.Stats, deps.Logger)
	signals := handlers.NewSignalsHandler(deps.Signals, deps.Logger)

	// дашборд read-only: мутирующих маршрутов нет
	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.Use(middleware.BasicAuth(deps.Config.Server.DashboardUser, deps.Config.Server.DashboardHash))
	v1.HandleFunc("/bots", bots.List).Methods(http.MethodGet)
	v1.HandleFunc("/bots/{botId}/stats", bots.Stats).Methods(http.MethodGet)
	v1.HandleFunc("/bots/{botId}/series", bots.Series).Methods(http.MethodGet)
	v1.HandleFunc("/bots/{botId}/series/active", bots.ActiveSeries).Methods(http.MethodGet)
	v1.HandleFunc("/signals", signals.List).Methods(http.MethodGet)

	return router
}
