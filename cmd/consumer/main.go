package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/example/carpool-companion/internal/eco"
	"github.com/example/carpool-companion/internal/logging"
	"github.com/example/carpool-companion/internal/models"
	"github.com/example/carpool-companion/internal/storage"
)

var (
	msgsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_consumed_total",
		Help: "Total status events consumed",
	})
	msgsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_invalid_total",
		Help: "Total invalid messages received",
	})
	reconciles = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_reconciles_total",
		Help: "Total successful wallet reconciliations",
	})
	reconcileErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_reconcile_errors_total",
		Help: "Total failed wallet reconciliations",
	})
	leaderboardUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_leaderboard_updates_total",
		Help: "Total successful leaderboard updates",
	})
	leaderboardErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_leaderboard_errors_total",
		Help: "Total redis leaderboard errors",
	})
)

func init() {
	prometheus.MustRegister(msgsConsumed, msgsInvalid, reconciles, reconcileErrors, leaderboardUpdates, leaderboardErrors)
}

const leaderboardKey = "eco_leaderboard"

func main() {
	var metricsAddr string
	flag.StringVar(&metricsAddr, "metrics-addr", ":2112", "address to serve prometheus metrics on")
	flag.Parse()

	logger := logging.NewLogger("carpool-eco-consumer", os.Getenv("LOG_LEVEL"))

	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		logger.Error("PG_DSN is required; the consumer recomputes wallets from ride history")
		os.Exit(1)
	}
	store, err := storage.NewPostgresStore(dsn)
	if err != nil {
		logger.Error("postgres open failed", "error", err)
		os.Exit(1)
	}
	svc := &eco.Service{Store: store}

	brokersEnv := os.Getenv("KAFKA_BROKERS")
	if brokersEnv == "" {
		brokersEnv = "localhost:9092"
	}
	var brokers []string
	for _, b := range strings.Split(brokersEnv, ",") {
		if s := strings.TrimSpace(b); s != "" {
			brokers = append(brokers, s)
		}
	}

	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		topic = "ride-events"
	}
	group := os.Getenv("KAFKA_GROUP")
	if group == "" {
		group = "carpool-eco-consumer"
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	rc := redis.NewClient(&redis.Options{Addr: redisAddr, Password: os.Getenv("REDIS_PASSWORD")})
	lb := &redisLeaderboard{c: rc}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := rc.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis not ready", 503)
				return
			}
			w.WriteHeader(200)
			w.Write([]byte("ready"))
		})
		logger.Info("metrics/health listening", "addr", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			logger.Warn("metrics server stopped", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: brokers, Topic: topic, GroupID: group, MinBytes: 10e3, MaxBytes: 10e6})
	defer func() {
		_ = r.Close()
		_ = rc.Close()
	}()

	logger.Info("consumer listening", "topic", topic, "brokers", brokers, "group", group)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("shutting down consumer")
				return
			}
			logger.Warn("kafka read error", "error", err, "backoff", backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second

		msgsConsumed.Inc()

		var ev models.StatusEvent
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			msgsInvalid.Inc()
			logger.Warn("invalid message", "error", err)
			continue
		}

		for _, userID := range uniqueUsers(ev) {
			wallet, err := svc.Wallet(ctx, userID)
			if err != nil {
				reconcileErrors.Inc()
				logger.Warn("wallet reconcile failed", "user_id", userID, "error", err)
				continue
			}
			reconciles.Inc()

			if err := updateLeaderboardWithRetry(ctx, lb, userID, float64(wallet.EcoCoins), 3, 200*time.Millisecond); err != nil {
				leaderboardErrors.Inc()
				logger.Warn("leaderboard update failed", "user_id", userID, "error", err)
				continue
			}
			leaderboardUpdates.Inc()
		}
	}
}

func uniqueUsers(ev models.StatusEvent) []string {
	seen := map[string]bool{}
	var out []string
	for _, id := range ev.UserIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// LeaderboardUpdater is the subset of redis operations the consumer needs,
// kept small for tests.
type LeaderboardUpdater interface {
	ZAdd(ctx context.Context, key, member string, score float64) error
}

type redisLeaderboard struct{ c *redis.Client }

func (r *redisLeaderboard) ZAdd(ctx context.Context, key, member string, score float64) error {
	_, err := r.c.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Result()
	return err
}

// updateLeaderboardWithRetry writes the user's coin balance into the sorted
// set with retry and exponential backoff.
func updateLeaderboardWithRetry(ctx context.Context, lb LeaderboardUpdater, userID string, coins float64, attempts int, delay time.Duration) error {
	for i := 0; i < attempts; i++ {
		err := lb.ZAdd(ctx, leaderboardKey, userID, coins)
		if err == nil {
			return nil
		}
		if i == attempts-1 {
			return err
		}
		time.Sleep(delay)
		delay *= 2
	}
	return nil
}
