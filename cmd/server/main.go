package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"roxtor/backend/internal/cache"
	"roxtor/backend/internal/cloudsync"
	"roxtor/backend/internal/config"
	"roxtor/backend/internal/drafting"
	"roxtor/backend/internal/httpapi"
	"roxtor/backend/internal/service"
	"roxtor/backend/internal/store"
	"roxtor/backend/internal/store/memory"
	pgstore "roxtor/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err := validateSecurityConfig(cfg); err != nil {
		logger.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			logger.Fatalf("postgres migration failed: %v", err)
		}
		repo = pg
		closers = append(closers, pg.Close)
		logger.Info("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		logger.Info("repository: in-memory")
	}

	draftCache := cache.DraftCache(cache.NoopDraftCache{})
	locker := cache.OrderLocker(cache.NewLocalLocker())
	if cfg.RedisAddr != "" {
		client := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := client.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("redis unavailable, using local cache and locks")
			_ = client.Close()
		} else {
			draftCache = cache.NewRedisDraftCache(client)
			locker = cache.NewRedisLocker(client)
			closers = append(closers, client.Close)
			logger.Info("cache: redis")
		}
	} else {
		logger.Info("cache: local")
	}

	drafter := drafting.Drafter(drafting.Disabled{})
	if cfg.OpenAIAPIKey != "" {
		agent, err := drafting.NewAgent(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		if err != nil {
			logger.WithError(err).Warn("drafting assistant disabled")
		} else {
			drafter = drafting.Cached{
				Next:   agent,
				Cache:  draftCache,
				TTL:    time.Duration(cfg.DraftCacheTTLSeconds) * time.Second,
				Logger: logger,
			}
			logger.WithField("model", cfg.OpenAIModel).Info("drafting assistant enabled")
		}
	}

	pusher := cloudsync.New(repo.Snapshot, cloudsync.Options{
		StoreID:  cfg.StoreID,
		Debounce: time.Duration(cfg.SyncDebounceSeconds) * time.Second,
		Logger:   logger,
	})

	svc := service.New(repo, service.Options{
		DefaultStoreID: cfg.StoreID,
		Location:       cfg.Location(),
		Locker:         locker,
		Drafter:        drafter,
		Sync:           pusher,
		Logger:         logger,
	})
	if err := svc.EnsurePINs(ctx, cfg.LoginPIN, cfg.MasterPIN); err != nil {
		logger.Fatalf("storing pins failed: %v", err)
	}

	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, svc)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, logger)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{"addr": cfg.Address(), "store_id": cfg.StoreID}).Info("roxtor backend listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		config.LogError(logger, "main", "Shutdown", nil, err)
	}
	if err := pusher.Flush(shutdownCtx); err != nil {
		logger.WithError(err).Warn("final cloud sync failed")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			config.LogError(logger, "main", "close", nil, err)
		}
	}

	logger.Info("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	for _, pin := range []struct {
		name  string
		value string
	}{
		{"LOGIN_PIN", cfg.LoginPIN},
		{"MASTER_PIN", cfg.MasterPIN},
	} {
		if len(pin.value) < 6 {
			return fmt.Errorf("%s must be set and at least 6 digits", pin.name)
		}
		if err := validatePINStrength(pin.value); err != nil {
			return fmt.Errorf("%s is too weak: %w", pin.name, err)
		}
	}
	if cfg.LoginPIN == cfg.MasterPIN {
		return fmt.Errorf("MASTER_PIN must differ from LOGIN_PIN")
	}
	return nil
}

// validatePINStrength rejects non-numeric PINs, PINs of one repeated digit,
// ascending or descending runs and a short list of common choices.
func validatePINStrength(pin string) error {
	for _, r := range pin {
		if r < '0' || r > '9' {
			return fmt.Errorf("PIN must be numeric")
		}
	}
	known := map[string]bool{
		"123456": true, "654321": true, "121212": true, "112233": true,
		"123123": true, "102030": true, "696969": true, "159753": true,
	}
	if known[pin] {
		return fmt.Errorf("common PIN not allowed")
	}

	allSame := true
	for i := 1; i < len(pin); i++ {
		if pin[i] != pin[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("all-same-digit PIN not allowed")
	}

	ascending, descending := true, true
	for i := 1; i < len(pin); i++ {
		diff := int(pin[i]) - int(pin[i-1])
		if diff != 1 {
			ascending = false
		}
		if diff != -1 {
			descending = false
		}
	}
	if ascending || descending {
		return fmt.Errorf("sequential PIN not allowed")
	}

	return nil
}
