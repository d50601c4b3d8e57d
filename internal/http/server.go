package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/carpool-companion/internal/config"
	"github.com/example/carpool-companion/internal/dispatch"
	"github.com/example/carpool-companion/internal/eco"
	"github.com/example/carpool-companion/internal/geocode"
	"github.com/example/carpool-companion/internal/ingest"
	"github.com/example/carpool-companion/internal/matching"
	"github.com/example/carpool-companion/internal/payments"
	"github.com/example/carpool-companion/internal/storage"
)

type Server struct {
	Store      storage.Store
	Eco        *eco.Service
	Geocoder   *geocode.Service
	Payments   payments.Charger      // nil when STRIPE_API_KEY is unset
	Producer   *ingest.KafkaProducer // nil when KAFKA_BROKERS is unset
	Notifier   dispatch.Notifier
	WSReg      *dispatch.WSRegistry
	Completion matching.Client // nil when COMPLETION_API_KEY is unset
	TopN       int

	logger *slog.Logger
	mux    *mux.Router
}

// NewServer wires the API from config with graceful fallbacks: memory
// store without PG_DSN, in-process geocode cache without REDIS_ADDR, no
// event publishing without KAFKA_BROKERS.
func NewServer(cfg config.ServerConfig, logger *slog.Logger) (*Server, error) {
	var store storage.Store
	if cfg.PGDSN != "" {
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		store = ps
	} else {
		store = storage.NewMemoryStore()
	}

	var cache geocode.Cache
	if cfg.RedisAddr != "" {
		cache = geocode.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.GeocodeTTL)
	} else {
		cache = geocode.NewMemoryCache(cfg.GeocodeTTL)
	}

	var producer *ingest.KafkaProducer
	if len(cfg.KafkaBrokers) > 0 {
		producer = ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	}

	// The adapter constructor is the single place the credential check
	// lives; a missing key leaves Completion nil and the AI endpoints
	// report the configuration error without ever dialing out.
	var completion matching.Client
	if client, err := matching.NewHTTPClient(cfg.CompletionEndpoint, cfg.CompletionModel, cfg.CompletionAPIKey); err == nil {
		completion = client
	}

	var charger payments.Charger
	if cfg.StripeAPIKey != "" {
		charger = payments.NewStripeClient(cfg.StripeAPIKey, cfg.PremiumPrice, cfg.PremiumCurrency)
	}

	wsreg := dispatch.NewWSRegistry(logger)
	var notifier dispatch.Notifier = wsreg
	if cfg.PushEndpoint != "" {
		notifier = dispatch.NewPushDispatcher(cfg.PushEndpoint, cfg.PushKey, wsreg)
	}

	s := &Server{
		Store:      store,
		Eco:        &eco.Service{Store: store},
		Geocoder:   geocode.NewService(cfg.GeocodeEndpoint, cache),
		Payments:   charger,
		Producer:   producer,
		Notifier:   notifier,
		WSReg:      wsreg,
		Completion: completion,
		TopN:       cfg.MatcherTopN,
		logger:     logger,
		mux:        mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/profiles", s.handleCreateProfile).Methods("POST")
	s.mux.HandleFunc("/api/v1/profiles/{id}", s.handleGetProfile).Methods("GET")

	s.mux.HandleFunc("/api/v1/rides", s.handleCreateRide).Methods("POST")
	s.mux.HandleFunc("/api/v1/rides", s.handleListRides).Methods("GET")
	s.mux.HandleFunc("/api/v1/rides/{id}/status", s.handleRideStatus).Methods("POST")

	s.mux.HandleFunc("/api/v1/matches", s.handleCreateMatch).Methods("POST")
	s.mux.HandleFunc("/api/v1/matches", s.handleListMatches).Methods("GET")
	s.mux.HandleFunc("/api/v1/matches/{id}/status", s.handleMatchStatus).Methods("POST")
	s.mux.HandleFunc("/api/v1/matches/ai", s.handleAIMatch).Methods("POST")

	s.mux.HandleFunc("/api/v1/wallet", s.handleWallet).Methods("GET")
	s.mux.HandleFunc("/api/v1/costs/compare", s.handleCostCompare).Methods("POST")
	s.mux.HandleFunc("/api/v1/geocode", s.handleGeocode).Methods("GET")
	s.mux.HandleFunc("/api/v1/assistant/chat", s.handleAssistantChat).Methods("POST")
	s.mux.HandleFunc("/api/v1/upgrade", s.handleUpgrade).Methods("POST")

	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/{driver_id}", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }
