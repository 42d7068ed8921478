// Package app builds the service graph from configuration.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/widechat/widechat/internal/calls"
	"github.com/widechat/widechat/internal/chat"
	"github.com/widechat/widechat/internal/config"
	"github.com/widechat/widechat/internal/events"
	"github.com/widechat/widechat/internal/httpapi"
	"github.com/widechat/widechat/internal/identity"
	"github.com/widechat/widechat/internal/media"
	"github.com/widechat/widechat/internal/observability"
	"github.com/widechat/widechat/internal/presence"
	"github.com/widechat/widechat/internal/signaling"
	"github.com/widechat/widechat/internal/store"
)

type BuildResult struct {
	Config   config.Config
	API      *httpapi.Server
	Registry *presence.Registry
	Router   *events.Router
	Metrics  *observability.Metrics

	// Cleanup should be called on shutdown to release external resources.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config, log zerolog.Logger) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	st, err := store.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("store init failed: %w", err)
	}

	marker, err := presence.NewMarker(ctx, cfg.RedisURL, cfg.EvictionThreshold)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("presence marker init failed: %w", err)
	}

	registry := presence.NewRegistry(cfg.EvictionThreshold, marker, log)
	router := events.NewRouter(registry, metrics, log)
	events.BindPresence(registry, router, metrics)

	relay := signaling.NewRelay(router, metrics, log)
	callService := calls.NewService(st, router, log)
	chatService := chat.NewService(st, router, log)
	issuer := identity.NewIssuer(cfg.JWTSecret, cfg.JWTExpiry)

	disk, err := media.NewDiskStorage(cfg.MediaDir, cfg.MediaBaseURL)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("media storage init failed: %w", err)
	}

	api := httpapi.New(cfg, httpapi.Deps{
		Registry: registry,
		Marker:   marker,
		Relay:    relay,
		Calls:    callService,
		Chat:     chatService,
		Store:    st,
		Issuer:   issuer,
		Media:    disk,
		MediaDir: disk.Dir(),
		Metrics:  metrics,
		Log:      log,
	})

	cleanup := func() error {
		var errs []string
		if closer, ok := marker.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err.Error())
			}
		}
		if err := st.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:   cfg,
		API:      api,
		Registry: registry,
		Router:   router,
		Metrics:  metrics,
		Cleanup:  cleanup,
	}, nil
}
