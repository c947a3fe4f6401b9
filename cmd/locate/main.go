// Command locate wires the locate pipeline's collaborators together
// and exposes Prometheus metrics and health endpoints. The inbound
// client-facing HTTP transport is an external collaborator (spec.md
// §1); this binary is the library-level service a transport adapter
// would sit in front of.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/ichnaea-go/locate/pkg/apikey"
	"github.com/ichnaea-go/locate/pkg/geoipdb"
	"github.com/ichnaea-go/locate/pkg/locate/service"
	"github.com/ichnaea-go/locate/pkg/locate/sources"
	"github.com/ichnaea-go/locate/pkg/monitoring"
	"github.com/ichnaea-go/locate/pkg/ratelimit"
	"github.com/ichnaea-go/locate/pkg/rediscache"
	"github.com/ichnaea-go/locate/pkg/region"
	"github.com/ichnaea-go/locate/pkg/sqlstation"
	"github.com/ichnaea-go/locate/pkg/tracing"
	ver "github.com/ichnaea-go/locate/pkg/version"
)

var (
	showVersionFlag bool
	debug           bool

	regionsPath string
	geoipPath   string
	stationDSN  string
	redisAddr   string

	fallbackURL       string
	fallbackRPS       float64
	fallbackBurst     int
	fallbackTimeout   time.Duration

	monitoringAddr string
	localCacheSize int

	demoKeyName  string
	demoKeyValue string
)

func init() {
	flag.BoolVar(&showVersionFlag, "version", false, "Display version information")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")

	flag.StringVar(&regionsPath, "regions", "", "Path to a gzip-compressed GeoJSON region dataset")
	flag.StringVar(&geoipPath, "geoip-db", "", "Path to a MaxMind GeoIP2 City mmdb file")
	flag.StringVar(&stationDSN, "station-dsn", ":memory:", "SQLite DSN for the station store")
	flag.StringVar(&redisAddr, "redis-addr", "", "Redis address for the fallback cache and rate limiter (empty disables Redis, using in-process substitutes)")

	flag.StringVar(&fallbackURL, "fallback-url", "", "External fallback geolocation service URL (empty disables the fallback source)")
	flag.Float64Var(&fallbackRPS, "fallback-rps", 10.0, "Fallback service rate limit in requests per second")
	flag.IntVar(&fallbackBurst, "fallback-burst", 5, "Fallback service rate limit burst size")
	flag.DurationVar(&fallbackTimeout, "fallback-timeout", 5*time.Second, "Per-call timeout for the fallback service")

	flag.StringVar(&monitoringAddr, "monitoring-addr", ":9090", "Prometheus metrics and health endpoint address")
	flag.IntVar(&localCacheSize, "fallback-local-cache-size", 4096, "In-process LRU entries held in front of the fallback result cache")

	flag.StringVar(&demoKeyName, "demo-key-name", "", "Name of a statically provisioned API key (local/dev use)")
	flag.StringVar(&demoKeyValue, "demo-key-value", "", "Value of the statically provisioned API key (local/dev use)")
}

func main() {
	flag.Parse()

	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if showVersionFlag {
		fmt.Println(ver.Info())
		return
	}

	ctx := context.Background()
	shutdownTracing, err := tracing.InitTracing(ctx, ver.Version)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
	} else {
		defer func() {
			if err := shutdownTracing(ctx); err != nil {
				logger.Error("error shutting down tracing", "error", err)
			}
		}()
	}

	geocoder, err := loadGeocoder(logger)
	if err != nil {
		logger.Error("failed to load region geocoder", "error", err)
		os.Exit(1)
	}

	geoDB, err := loadGeoIP(logger)
	if err != nil {
		logger.Error("failed to load geoip database", "error", err)
		os.Exit(1)
	}

	store, err := sqlstation.Open(stationDSN)
	if err != nil {
		logger.Error("failed to open station store", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		logger.Error("failed to migrate station store", "error", err)
		os.Exit(1)
	}

	dailyLimiter, fallbackCache, redisClient := buildRedisBackedCollaborators(logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	src := buildSources(store, geocoder, geoDB, fallbackCache)

	healthChecker := monitoring.NewHealthChecker(monitoring.ServiceName, ver.Version)
	defer healthChecker.Shutdown()
	probeDependenciesOnce(ctx, healthChecker, redisClient, geoDB)

	svc := &service.Service{
		APIKeys:    demoAPIKeyStore(),
		DailyLimit: dailyLimiter,
		GeoDB:      geoDB,
		Geocoder:   geocoder,
		Sources:    src,
	}
	_ = svc // exercised by a transport adapter; kept constructed here so startup fails fast on misconfiguration

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/__heartbeat__", healthChecker.ReadinessHandler())
	mux.HandleFunc("/__lbheartbeat__", healthChecker.LivenessHandler())
	mux.HandleFunc("/__monitor__", healthChecker.HealthHandler())
	mux.HandleFunc("/__version__", versionHandler)

	monitoringServer := &http.Server{
		Addr:              monitoringAddr,
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("starting monitoring server", "addr", monitoringAddr)
		if err := monitoringServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("monitoring server error", "error", err)
		}
	}()

	logger.Info("locate service ready",
		"version", ver.Version,
		"monitoring_addr", monitoringAddr,
		"fallback_enabled", fallbackURL != "",
		"redis_enabled", redisAddr != "")

	<-shutdownCtx.Done()
	logger.Info("shutdown signal received")

	shutdownTimeout, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := monitoringServer.Shutdown(shutdownTimeout); err != nil {
		logger.Error("failed to shutdown monitoring server", "error", err)
	}
}

func loadGeocoder(logger *slog.Logger) (*region.Geocoder, error) {
	if regionsPath == "" {
		logger.Warn("no -regions dataset configured; region lookups will always miss")
		return nil, nil
	}
	f, err := os.Open(regionsPath)
	if err != nil {
		return nil, fmt.Errorf("opening region dataset: %w", err)
	}
	defer f.Close()
	return region.NewGeocoder(f)
}

func loadGeoIP(logger *slog.Logger) (geoipdb.DB, error) {
	if geoipPath == "" {
		logger.Warn("no -geoip-db configured; GeoIP lookups will always miss")
		return nil, nil
	}
	return geoipdb.NewMMDB(geoipPath)
}

// buildRedisBackedCollaborators wires the Redis-backed daily rate
// limiter and fallback cache when -redis-addr is set, falling back to
// in-process substitutes otherwise (spec.md §5: a missing cache tier
// degrades the service, it never blocks it).
func buildRedisBackedCollaborators(logger *slog.Logger) (ratelimit.DailyLimiter, sources.FallbackResultCache, *redis.Client) {
	if redisAddr == "" {
		logger.Warn("no -redis-addr configured; using in-process rate limiter and no fallback cache")
		return ratelimit.NewMemoryDailyLimiter(), nil, nil
	}

	client := redis.NewClient(&redis.Options{Addr: redisAddr})
	daily := rediscache.NewDailyCounter(client)
	backing := rediscache.NewFallbackCache(client)

	tiered, err := rediscache.NewTieredFallbackCache(localCacheSize, backing)
	if err != nil {
		logger.Error("failed to build local fallback cache tier, using redis directly", "error", err)
		return daily, backing, client
	}
	return daily, tiered, client
}

func buildSources(store *sqlstation.Store, geocoder *region.Geocoder, geoDB geoipdb.DB, fallbackCache sources.FallbackResultCache) []sources.Source {
	src := []sources.Source{sources.NewInternalSource(store, geocoder)}

	if fallbackURL != "" {
		limiter := ratelimit.NewHostLimiter(rate.Limit(fallbackRPS), fallbackBurst)
		httpClient := &http.Client{Timeout: fallbackTimeout}
		src = append(src, sources.NewFallbackSource(fallbackURL, httpClient, fallbackCache,
			sources.WithTimeout(fallbackTimeout),
			sources.WithHostLimiter(limiter),
		))
	}

	src = append(src, sources.NewGeoIPSource())
	return src
}

func probeDependenciesOnce(ctx context.Context, hc *monitoring.HealthChecker, redisClient *redis.Client, geoDB geoipdb.DB) {
	var probes []monitoring.DependencyProbe
	if redisClient != nil {
		probes = append(probes, monitoring.DependencyProbe{
			Name: "redis",
			Check: func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		})
	}
	if geoDB != nil {
		probes = append(probes, monitoring.DependencyProbe{
			Name: "geoip",
			Check: func(context.Context) error {
				if geoDB.AgeInDays() > 30 {
					return fmt.Errorf("geoip database is %.0f days old", geoDB.AgeInDays())
				}
				return nil
			},
		})
	}
	hc.ProbeDependencies(ctx, probes, 4)
}

func demoAPIKeyStore() apikey.Store {
	if demoKeyName == "" || demoKeyValue == "" {
		return apikey.NewStaticStore(nil)
	}
	return apikey.NewStaticStore([]apikey.APIKey{{
		Name:          demoKeyName,
		ValidKey:      demoKeyValue,
		AllowFallback: true,
		LogLocate:     true,
		LogRegion:     true,
	}})
}

func versionHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	info := ver.Info()
	fmt.Fprintf(w, `{"version":%q,"go_version":%q,"commit":%q,"build_date":%q}`,
		info["version"], info["go_version"], info["commit"], info["build_date"])
}
