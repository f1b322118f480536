package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/vpncompare/internal/catalog"
	"github.com/sells-group/vpncompare/internal/lifecycle"
	"github.com/sells-group/vpncompare/internal/mail"
	"github.com/sells-group/vpncompare/internal/pricing"
	"github.com/sells-group/vpncompare/internal/store"
)

// serviceEnv holds the initialized store and services needed by the
// serve/leads/stats/pricing commands.
type serviceEnv struct {
	Store    store.Store
	Catalog  *catalog.Catalog
	Resolver *pricing.Resolver
	Service  *lifecycle.Service
}

// Close releases resources held by the environment.
func (e *serviceEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// openStore opens the configured backend without migrating.
func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver: %s", cfg.Store.Driver)
	}
}

// initEnv validates config, opens and migrates the store and wires the
// lifecycle service. Callers should defer env.Close().
func initEnv(ctx context.Context) (*serviceEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	cat := catalog.Default()
	resolver := pricing.NewResolver(cat, st)

	var sender mail.Sender
	if cfg.Mail.Host != "" {
		sender = mail.NewSMTPSender(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.User, cfg.Mail.Password, cfg.Mail.From)
		zap.L().Info("smtp delivery enabled", zap.String("host", cfg.Mail.Host))
	} else {
		sender = mail.NopSender{}
		zap.L().Warn("no smtp host configured, verification mail disabled")
	}

	svc := lifecycle.NewService(st, cat, resolver, sender, cfg.Server.BaseURL)

	return &serviceEnv{
		Store:    st,
		Catalog:  cat,
		Resolver: resolver,
		Service:  svc,
	}, nil
}
