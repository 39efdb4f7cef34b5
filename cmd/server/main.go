// Command server starts the HearingVault archive HTTP service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"hearingvault/internal/api"
	"hearingvault/internal/auth"
	"hearingvault/internal/blob"
	"hearingvault/internal/casemgmt"
	"hearingvault/internal/ingest"
	"hearingvault/internal/maintenance"
	"hearingvault/internal/mp4"
	"hearingvault/internal/observability/logging"
	"hearingvault/internal/observability/metrics"
	"hearingvault/internal/server"
	"hearingvault/internal/storage"
)

type yearsTableFlag map[string]int

func (yt *yearsTableFlag) String() string {
	if yt == nil || len(*yt) == 0 {
		return ""
	}
	parts := make([]string, 0, len(*yt))
	for code, years := range *yt {
		parts = append(parts, fmt.Sprintf("%s=%d", code, years))
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func (yt *yearsTableFlag) Set(value string) error {
	parts := strings.SplitN(value, "=", 2)
	if len(parts) != 2 {
		return fmt.Errorf("invalid format %q, expected code=years", value)
	}
	code := strings.ToUpper(strings.TrimSpace(parts[0]))
	if code == "" {
		return fmt.Errorf("retention code is required")
	}
	years, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || years <= 0 {
		return fmt.Errorf("invalid retention years %q for %s", parts[1], code)
	}
	if *yt == nil {
		*yt = make(map[string]int)
	}
	(*yt)[code] = years
	return nil
}

func main() {
	addr := flag.String("addr", "", "HTTP listen address")
	mode := flag.String("mode", "", "server runtime mode (development or production)")
	storageDriver := flag.String("storage-driver", "", "datastore driver (memory or postgres)")
	postgresDSN := flag.String("postgres-dsn", "", "Postgres connection string")
	postgresMaxConns := flag.Int("postgres-max-conns", 0, "maximum connections in the Postgres pool")
	postgresMinConns := flag.Int("postgres-min-conns", 0, "minimum idle connections maintained by the Postgres pool")
	postgresMaxConnLifetime := flag.Duration("postgres-max-conn-lifetime", 0, "maximum lifetime for a pooled Postgres connection")
	postgresMaxConnIdle := flag.Duration("postgres-max-conn-idle", 0, "maximum idle time for a pooled Postgres connection")
	postgresAcquireTimeout := flag.Duration("postgres-acquire-timeout", 0, "timeout when acquiring a Postgres connection from the pool")
	postgresAppName := flag.String("postgres-app-name", "", "application_name reported to Postgres")
	tlsCert := flag.String("tls-cert", "", "path to TLS certificate file")
	tlsKey := flag.String("tls-key", "", "path to TLS private key file")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "log output format (json or text)")
	objectEndpoint := flag.String("object-endpoint", "", "durable store endpoint (e.g. http://127.0.0.1:9000)")
	objectRegion := flag.String("object-region", "", "durable store region")
	objectAccessKey := flag.String("object-access-key", "", "durable store access key")
	objectSecretKey := flag.String("object-secret-key", "", "durable store secret key")
	objectBucket := flag.String("object-bucket", "", "durable store bucket name")
	objectUseSSL := flag.Bool("object-use-ssl", false, "enable TLS for durable store requests")
	objectPrefix := flag.String("object-prefix", "", "durable store key prefix for archived segments")
	objectTimeout := flag.Duration("object-timeout", 0, "timeout for durable store requests")
	sourceAccessKey := flag.String("source-access-key", "", "source platform access key for delegated reads")
	sourceSecretKey := flag.String("source-secret-key", "", "source platform secret key for delegated reads")
	sourceRegion := flag.String("source-region", "", "source platform signing region")
	copyPollInterval := flag.Duration("copy-poll-interval", 0, "interval between copy status polls")
	delegationSkew := flag.Duration("delegation-skew-window", 0, "clock skew tolerance applied to delegated read windows")
	intakeCapacity := flag.Int("intake-capacity", 0, "bounded intake queue capacity")
	syncCapacity := flag.Int("sync-capacity", 0, "bounded case sync queue capacity")
	casemgmtURL := flag.String("casemgmt-url", "", "case management service base URL")
	casemgmtToken := flag.String("casemgmt-token", "", "case management service API token")
	casemgmtTimeout := flag.Duration("casemgmt-timeout", 0, "timeout for case management requests")
	apiKeyHash := flag.String("api-key-hash", "", "pbkdf2 hash of the gateway intake API key")
	shareSecret := flag.String("share-token-secret", "", "HMAC secret for sharee access tokens")
	shareTTL := flag.Duration("share-token-ttl", 0, "validity window for sharee access tokens")
	shareFreshness := flag.Duration("share-freshness-window", 0, "maximum age of the governing share grant")
	retentionDefaultYears := flag.Int("retention-default-years", 0, "default retention period in years")
	var retentionServiceYears yearsTableFlag
	var retentionJurisdictionYears yearsTableFlag
	flag.Var(&retentionServiceYears, "retention-service-years", "retention override per service code (code=years)")
	flag.Var(&retentionJurisdictionYears, "retention-jurisdiction-years", "retention override per jurisdiction code (code=years)")
	globalRPS := flag.Float64("rate-global-rps", 0, "global request rate limit in requests per second")
	globalBurst := flag.Int("rate-global-burst", 0, "global rate limit burst allowance")
	intakeLimit := flag.Int("rate-intake-limit", 0, "maximum intake submissions per window for a single IP")
	intakeWindow := flag.Duration("rate-intake-window", 0, "window for counting intake submissions")
	redisAddr := flag.String("redis-addr", "", "Redis address for distributed locks and rate limiting")
	redisAddrs := flag.String("redis-addrs", "", "comma separated Redis addresses for distributed locks and rate limiting")
	redisUsername := flag.String("redis-username", "", "Redis username")
	redisPassword := flag.String("redis-password", "", "Redis password")
	redisMasterName := flag.String("redis-master-name", "", "Redis sentinel master name")
	redisPoolSize := flag.Int("redis-pool-size", 0, "maximum Redis connections")
	migrationInterval := flag.Duration("migration-interval", 0, "interval between retention migration runs")
	migrationBatchSize := flag.Int("migration-batch-size", 0, "recordings examined per migration batch")
	migrationWorkers := flag.Int("migration-workers", 0, "concurrent upstream lookups during migration")
	purgeInterval := flag.Duration("purge-interval", 0, "interval between stale in-progress marker purges")
	purgeMaxAge := flag.Duration("purge-max-age", 0, "age after which an in-progress marker is considered stale")
	maintenanceLockTTL := flag.Duration("maintenance-lock-ttl", 0, "TTL for distributed maintenance locks")
	flag.Parse()

	logger := logging.Init(logging.Config{
		Level:  firstNonEmpty(*logLevel, os.Getenv("HEARINGVAULT_LOG_LEVEL")),
		Format: firstNonEmpty(*logFormat, os.Getenv("HEARINGVAULT_LOG_FORMAT")),
	})
	recorder := metrics.NewRecorder()

	serverMode := modeValue(*mode, os.Getenv("HEARINGVAULT_MODE"))
	listenAddr := resolveListenAddr(*addr, serverMode, os.Getenv("HEARINGVAULT_ADDR"))

	postgresDefaultDSN := resolvePostgresDSN(*postgresDSN)
	driver, err := resolveStorageDriver(*storageDriver, os.Getenv("HEARINGVAULT_STORAGE_DRIVER"), postgresDefaultDSN)
	if err != nil {
		logger.Error("failed to resolve storage driver", "error", err)
		os.Exit(1)
	}
	if serverMode == "production" {
		if err := validateProductionConfig(driver, postgresDefaultDSN, *apiKeyHash); err != nil {
			logger.Error("production configuration validation failed", "error", err)
			os.Exit(1)
		}
	}

	var store storage.Repository
	switch driver {
	case "memory":
		store = storage.NewMemoryRepository()
	case "postgres":
		if postgresDefaultDSN == "" {
			logger.Error("postgres storage selected without DSN")
			os.Exit(1)
		}
		openCtx, openCancel := context.WithTimeout(context.Background(), 30*time.Second)
		pgStore, err := storage.NewPostgresRepository(openCtx, storage.PostgresConfig{
			DSN:             postgresDefaultDSN,
			MaxConnections:  int32(resolveInt(*postgresMaxConns, "HEARINGVAULT_POSTGRES_MAX_CONNS")),
			MinConnections:  int32(resolveInt(*postgresMinConns, "HEARINGVAULT_POSTGRES_MIN_CONNS")),
			MaxConnLifetime: resolveDuration(*postgresMaxConnLifetime, "HEARINGVAULT_POSTGRES_MAX_CONN_LIFETIME", 0),
			MaxConnIdleTime: resolveDuration(*postgresMaxConnIdle, "HEARINGVAULT_POSTGRES_MAX_CONN_IDLE", 0),
			AcquireTimeout:  resolveDuration(*postgresAcquireTimeout, "HEARINGVAULT_POSTGRES_ACQUIRE_TIMEOUT", 0),
			ApplicationName: firstNonEmpty(*postgresAppName, os.Getenv("HEARINGVAULT_POSTGRES_APP_NAME")),
		})
		openCancel()
		if err != nil {
			logger.Error("failed to open datastore", "error", err)
			os.Exit(1)
		}
		store = pgStore
	default:
		logger.Error("unsupported storage driver", "driver", driver)
		os.Exit(1)
	}

	blobs, err := blob.New(blob.Config{
		Endpoint:       firstNonEmpty(*objectEndpoint, os.Getenv("HEARINGVAULT_OBJECT_ENDPOINT")),
		Region:         firstNonEmpty(*objectRegion, os.Getenv("HEARINGVAULT_OBJECT_REGION")),
		AccessKey:      firstNonEmpty(*objectAccessKey, os.Getenv("HEARINGVAULT_OBJECT_ACCESS_KEY")),
		SecretKey:      firstNonEmpty(*objectSecretKey, os.Getenv("HEARINGVAULT_OBJECT_SECRET_KEY")),
		Bucket:         firstNonEmpty(*objectBucket, os.Getenv("HEARINGVAULT_OBJECT_BUCKET")),
		UseSSL:         resolveBool(*objectUseSSL, "HEARINGVAULT_OBJECT_USE_SSL"),
		Prefix:         strings.TrimSpace(firstNonEmpty(*objectPrefix, os.Getenv("HEARINGVAULT_OBJECT_PREFIX"))),
		RequestTimeout: resolveDuration(*objectTimeout, "HEARINGVAULT_OBJECT_TIMEOUT", 0),
	})
	if err != nil {
		logger.Error("failed to configure durable store", "error", err)
		os.Exit(1)
	}

	signer := blob.SourceDelegation{
		AccessKey: firstNonEmpty(*sourceAccessKey, os.Getenv("HEARINGVAULT_SOURCE_ACCESS_KEY")),
		SecretKey: firstNonEmpty(*sourceSecretKey, os.Getenv("HEARINGVAULT_SOURCE_SECRET_KEY")),
		Region:    firstNonEmpty(*sourceRegion, os.Getenv("HEARINGVAULT_SOURCE_REGION")),
	}
	if !signer.Enabled() {
		logger.Warn("source delegation credentials not configured, source reads will be anonymous")
	}

	cases, err := casemgmt.NewHTTPClient(casemgmt.Config{
		BaseURL:        firstNonEmpty(*casemgmtURL, os.Getenv("HEARINGVAULT_CASEMGMT_URL")),
		APIToken:       firstNonEmpty(*casemgmtToken, os.Getenv("HEARINGVAULT_CASEMGMT_TOKEN")),
		RequestTimeout: resolveDuration(*casemgmtTimeout, "HEARINGVAULT_CASEMGMT_TIMEOUT", 0),
	})
	if err != nil {
		logger.Error("failed to configure case management client", "error", err)
		os.Exit(1)
	}

	retention := resolveRetentionPolicy(
		resolveInt(*retentionDefaultYears, "HEARINGVAULT_RETENTION_DEFAULT_YEARS"),
		retentionServiceYears, retentionJurisdictionYears,
	)

	classifier := mp4.NewClassifier(blobs, logging.WithComponent(logger, "classifier"))
	replicator := ingest.NewReplicator(ingest.ReplicatorConfig{
		Store:        blobs,
		Signer:       signer,
		PollInterval: resolveDuration(*copyPollInterval, "HEARINGVAULT_COPY_POLL_INTERVAL", 0),
		SkewWindow:   resolveDuration(*delegationSkew, "HEARINGVAULT_DELEGATION_SKEW_WINDOW", 0),
		Logger:       logging.WithComponent(logger, "replicator"),
	})
	uploader := ingest.NewUploader(ingest.UploaderConfig{
		Repository: store,
		Cases:      cases,
		Classifier: classifier,
		Retention:  retention,
		Logger:     logging.WithComponent(logger, "case-sync"),
	})
	pipeline := ingest.NewPipeline(ingest.PipelineConfig{
		Repository:     store,
		Replicator:     replicator,
		Uploader:       uploader,
		IntakeCapacity: resolveInt(*intakeCapacity, "HEARINGVAULT_INTAKE_CAPACITY"),
		SyncCapacity:   resolveInt(*syncCapacity, "HEARINGVAULT_SYNC_CAPACITY"),
		Logger:         logging.WithComponent(logger, "pipeline"),
		Metrics:        recorder,
	})
	pipeline.Start()

	handler := api.NewHandler(store, blobs)
	handler.Pipeline = pipeline
	handler.Metrics = recorder
	handler.Logger = logging.WithComponent(logger, "api")
	handler.APIKeyHash = firstNonEmpty(*apiKeyHash, os.Getenv("HEARINGVAULT_API_KEY_HASH"))
	handler.FreshnessWindow = resolveDuration(*shareFreshness, "HEARINGVAULT_SHARE_FRESHNESS_WINDOW", 0)
	if handler.APIKeyHash == "" {
		logger.Warn("API key verification disabled, intake endpoints are unauthenticated")
	}

	shareSecretValue := firstNonEmpty(*shareSecret, os.Getenv("HEARINGVAULT_SHARE_TOKEN_SECRET"))
	if shareSecretValue != "" {
		issuer, err := auth.NewShareTokenIssuer(shareSecretValue, resolveDuration(*shareTTL, "HEARINGVAULT_SHARE_TOKEN_TTL", 0))
		if err != nil {
			logger.Error("failed to configure share tokens", "error", err)
			os.Exit(1)
		}
		handler.Shares = issuer
	} else {
		logger.Warn("share token secret not configured, share links disabled")
	}

	redisClient := configureRedis(redisOptions{
		Addr:       firstNonEmpty(*redisAddr, os.Getenv("HEARINGVAULT_REDIS_ADDR")),
		Addrs:      splitAndTrim(firstNonEmpty(*redisAddrs, os.Getenv("HEARINGVAULT_REDIS_ADDRS"))),
		Username:   firstNonEmpty(*redisUsername, os.Getenv("HEARINGVAULT_REDIS_USERNAME")),
		Password:   firstNonEmpty(*redisPassword, os.Getenv("HEARINGVAULT_REDIS_PASSWORD")),
		MasterName: firstNonEmpty(*redisMasterName, os.Getenv("HEARINGVAULT_REDIS_MASTER_NAME")),
		PoolSize:   resolveInt(*redisPoolSize, "HEARINGVAULT_REDIS_POOL_SIZE"),
	})

	var locker maintenance.Locker
	if redisClient != nil {
		locker = maintenance.NewRedisLocker(redisClient, "")
	} else {
		locker = maintenance.NewLocalLocker()
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	lockTTL := resolveDuration(*maintenanceLockTTL, "HEARINGVAULT_MAINTENANCE_LOCK_TTL", 5*time.Minute)
	migrationStop := maintenance.StartTask(workerCtx, logging.WithComponent(logger, "retention-migration"), locker,
		maintenance.NewRetentionMigration(maintenance.MigrationConfig{
			Repository: store,
			Cases:      cases,
			BatchSize:  resolveInt(*migrationBatchSize, "HEARINGVAULT_MIGRATION_BATCH_SIZE"),
			Workers:    resolveInt(*migrationWorkers, "HEARINGVAULT_MIGRATION_WORKERS"),
			Logger:     logging.WithComponent(logger, "retention-migration"),
		}),
		resolveDuration(*migrationInterval, "HEARINGVAULT_MIGRATION_INTERVAL", 24*time.Hour), lockTTL)
	defer migrationStop()
	purgeStop := maintenance.StartTask(workerCtx, logging.WithComponent(logger, "stale-jobs-purge"), locker,
		maintenance.NewStaleJobsPurge(store,
			resolveDuration(*purgeMaxAge, "HEARINGVAULT_PURGE_MAX_AGE", 0),
			logging.WithComponent(logger, "stale-jobs-purge")),
		resolveDuration(*purgeInterval, "HEARINGVAULT_PURGE_INTERVAL", time.Hour), lockTTL)
	defer purgeStop()

	tlsCfg := server.TLSConfig{
		CertFile: firstNonEmpty(*tlsCert, os.Getenv("HEARINGVAULT_TLS_CERT")),
		KeyFile:  firstNonEmpty(*tlsKey, os.Getenv("HEARINGVAULT_TLS_KEY")),
	}
	srv, err := server.New(handler, server.Config{
		Addr: listenAddr,
		TLS:  tlsCfg,
		RateLimit: server.RateLimitConfig{
			GlobalRPS:    resolveFloat(*globalRPS, "HEARINGVAULT_RATE_GLOBAL_RPS"),
			GlobalBurst:  resolveInt(*globalBurst, "HEARINGVAULT_RATE_GLOBAL_BURST"),
			IntakeLimit:  resolveInt(*intakeLimit, "HEARINGVAULT_RATE_INTAKE_LIMIT"),
			IntakeWindow: resolveDuration(*intakeWindow, "HEARINGVAULT_RATE_INTAKE_WINDOW", time.Minute),
			Redis:        redisClient,
		},
		Logger:  logger,
		Metrics: recorder,
	})
	if err != nil {
		logger.Error("failed to initialise server", "error", err)
		os.Exit(1)
	}

	errs := make(chan error, 1)
	go func() {
		logger.Info("HearingVault archive API listening", "addr", listenAddr, "mode", serverMode)
		if tlsCfg.CertFile != "" && tlsCfg.KeyFile != "" {
			logger.Info("TLS enabled", "cert_file", tlsCfg.CertFile)
		}
		logger.Info("metrics endpoint available", "path", "/metrics")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errs:
		logger.Error("server error", "error", err)
	}

	workerCancel()
	migrationStop()
	purgeStop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
	}

	if err := pipeline.Shutdown(ctx); err != nil {
		logger.Warn("failed to stop ingestion pipeline", "error", err)
	}

	if closer, ok := store.(interface{ Close(context.Context) error }); ok {
		if err := closer.Close(ctx); err != nil {
			logger.Warn("failed to close datastore", "error", err)
		}
	} else if closer, ok := store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Warn("failed to close datastore", "error", err)
		}
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Warn("failed to close redis client", "error", err)
		}
	}

	logger.Info("server stopped")
}

type redisOptions struct {
	Addr       string
	Addrs      []string
	Username   string
	Password   string
	MasterName string
	PoolSize   int
}

func configureRedis(opts redisOptions) redis.UniversalClient {
	addrs := opts.Addrs
	if len(addrs) == 0 && opts.Addr != "" {
		addrs = []string{opts.Addr}
	}
	if len(addrs) == 0 {
		return nil
	}
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:      addrs,
		Username:   opts.Username,
		Password:   opts.Password,
		MasterName: opts.MasterName,
		PoolSize:   opts.PoolSize,
	})
}

func resolveRetentionPolicy(defaultYears int, serviceYears, jurisdictionYears map[string]int) ingest.RetentionPolicy {
	policy := ingest.DefaultRetentionPolicy()
	if defaultYears > 0 {
		policy.DefaultYears = defaultYears
	}
	policy.ServiceYears = mergeYearsTable(serviceYears, os.Getenv("HEARINGVAULT_RETENTION_SERVICE_YEARS"))
	policy.JurisdictionYears = mergeYearsTable(jurisdictionYears, os.Getenv("HEARINGVAULT_RETENTION_JURISDICTION_YEARS"))
	return policy
}

// mergeYearsTable folds env-provided code=years pairs into the flag-provided
// table. Flags win on conflicting codes.
func mergeYearsTable(flagTable map[string]int, env string) map[string]int {
	merged := make(map[string]int, len(flagTable))
	table := yearsTableFlag(merged)
	for _, pair := range splitAndTrim(env) {
		if err := table.Set(pair); err != nil {
			continue
		}
	}
	for code, years := range flagTable {
		merged[code] = years
	}
	if len(merged) == 0 {
		return nil
	}
	return merged
}

func modeValue(flagMode, envMode string) string {
	mode := strings.ToLower(strings.TrimSpace(flagMode))
	if mode == "" {
		mode = strings.ToLower(strings.TrimSpace(envMode))
	}
	if mode == "" {
		mode = "development"
	}
	return mode
}

func resolveListenAddr(flagValue, mode, envAddr string) string {
	listenAddr := strings.TrimSpace(flagValue)
	if listenAddr == "" {
		listenAddr = strings.TrimSpace(envAddr)
	}
	if listenAddr == "" {
		listenAddr = defaultListenForMode(mode)
	}
	return listenAddr
}

func defaultListenForMode(mode string) string {
	if mode == "production" {
		return ":80"
	}
	return ":8080"
}

func resolveStorageDriver(flagValue, envValue, postgresDSN string) (string, error) {
	if driver := strings.ToLower(strings.TrimSpace(flagValue)); driver != "" {
		return driver, nil
	}
	if driver := strings.ToLower(strings.TrimSpace(envValue)); driver != "" {
		return driver, nil
	}
	if strings.TrimSpace(postgresDSN) != "" {
		return "postgres", nil
	}
	return "", fmt.Errorf("no datastore configured: provide --storage-driver memory or configure Postgres via HEARINGVAULT_POSTGRES_DSN, DATABASE_URL, or --postgres-dsn")
}

func validateProductionConfig(driver, postgresDSN, apiKeyHash string) error {
	if driver != "postgres" {
		return fmt.Errorf("production mode requires the postgres datastore driver, got %q", driver)
	}
	if strings.TrimSpace(postgresDSN) == "" {
		return fmt.Errorf("postgres storage selected without DSN")
	}
	if strings.TrimSpace(firstNonEmpty(apiKeyHash, os.Getenv("HEARINGVAULT_API_KEY_HASH"))) == "" {
		return fmt.Errorf("production mode requires an intake API key hash")
	}
	return nil
}

func resolvePostgresDSN(flagValue string) string {
	return strings.TrimSpace(firstNonEmpty(flagValue, os.Getenv("HEARINGVAULT_POSTGRES_DSN"), os.Getenv("DATABASE_URL")))
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func splitAndTrim(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func resolveFloat(flagValue float64, envKey string) float64 {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.ParseFloat(strings.TrimSpace(env), 64); err == nil {
			return value
		}
	}
	return 0
}

func resolveInt(flagValue int, envKey string) int {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.Atoi(strings.TrimSpace(env)); err == nil {
			return value
		}
	}
	return 0
}

func resolveDuration(flagValue time.Duration, envKey string, fallback time.Duration) time.Duration {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := time.ParseDuration(env); err == nil {
			return value
		}
	}
	if fallback > 0 {
		return fallback
	}
	return 0
}

func resolveBool(flagValue bool, envKey string) bool {
	if flagValue {
		return true
	}
	if env, ok := os.LookupEnv(envKey); ok {
		if value, err := strconv.ParseBool(strings.TrimSpace(env)); err == nil {
			return value
		}
	}
	return false
}
