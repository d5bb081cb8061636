package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"outbound-dialer/internal/audit"
	"outbound-dialer/internal/auth"
	"outbound-dialer/internal/campaign"
	"outbound-dialer/internal/config"
	"outbound-dialer/internal/httpapi"
	"outbound-dialer/internal/outcome"
	"outbound-dialer/internal/phone"
	"outbound-dialer/internal/prompt"
	"outbound-dialer/internal/reporting"
	"outbound-dialer/internal/routing"
	"outbound-dialer/internal/telephony"
	"outbound-dialer/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// auditRetention bounds the in-memory audit trail served by the admin API.
const auditRetention = 1000

// app holds the wired dependencies of one serve process.
type app struct {
	cfg config.Config

	auth     *auth.Manager
	manager  *campaign.Manager
	engine   *campaign.Engine
	reports  *reporting.Generator
	audit    *audit.Service
	router   *routing.Router
	override *routing.MemoryOverrideStore
	renderer telephony.Renderer

	closers []func() error
}

func buildApp(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	a := &app{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	var err error
	a.auth, err = auth.NewManager(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}

	dsn := ""
	if cfg.Store.Backend == config.StorePostgres {
		dsn = cfg.PostgresDSN()
	}
	repo, closeRepo, err := openRepo(ctx, cfg.Store.Backend, cfg.Store.Path, dsn, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeRepo)
	store := outcome.NewStore(repo)

	var ledger campaign.TerminalLedger
	if cfg.RedisEnabled() {
		rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.closers = append(a.closers, rdb.Close)
		ledger = campaign.NewRedisLedger(rdb)
		log.Info("terminal ledger backed by redis", "addr", cfg.RedisAddr())
	}

	provider, err := telephony.NewTwilioProvider(telephony.TwilioOptions{
		AccountSID:       cfg.Twilio.AccountSID,
		AuthToken:        cfg.Twilio.AuthToken,
		From:             cfg.Twilio.FromNumber,
		Region:           cfg.Twilio.Region,
		Edge:             cfg.Twilio.Edge,
		PublicBaseURL:    cfg.PublicBaseURL,
		MachineDetection: cfg.Twilio.MachineDetection,
		RingTimeout:      cfg.Twilio.RingTimeout,
	})
	if err != nil {
		return nil, err
	}
	checkProvider(ctx, provider, log)

	script, err := prompt.Load(cfg.Files.ScriptPath)
	if err != nil {
		return nil, err
	}
	a.renderer = telephony.NewRenderer(script, prompt.NewCatalog(cfg.Files.AudioDir, cfg.PublicBaseURL))

	a.audit = audit.NewService(audit.LogRepo{Log: log, Next: &audit.MemoryRepo{Limit: auditRetention}})

	lines, err := routing.ParseAgentLines(cfg.AgentNumbers)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		log.Warn("AGENT_NUMBERS is empty; transfers will be refused until an override is set")
	}
	a.override = routing.NewMemoryOverrideStore()
	a.router = routing.NewRouter(lines, rand.New(rand.NewSource(time.Now().UnixNano())))
	a.router.Overrides = routing.NewAdminOverrideEngine(a.override, routing.AuditAdapter{Audit: a.audit})

	a.reports = reporting.NewGenerator(cfg.Files.ReportDir)
	a.manager = campaign.NewManager(campaign.ManagerConfig{
		Store:    store,
		Ledger:   ledger,
		Dialer:   provider,
		Reporter: a.reports,
		From:     cfg.Twilio.FromNumber,
		Logger:   log,
	})

	publicBase := cfg.PublicBaseURL
	a.engine = campaign.NewEngine(
		a.manager,
		store,
		a.manager.Ledger(),
		campaign.NewKeywordClassifier(script.TransferDigit, script.TransferKeywords),
		a.router,
		func(p phone.Canonical, token string) string { return telephony.GatherURL(publicBase, p, token) },
	)

	ok = true
	return a, nil
}

func checkProvider(ctx context.Context, p telephony.TelephonyProvider, log *slog.Logger) {
	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.HealthCheck(hctx); err != nil {
		if te, ok := telephony.RestError(err); ok {
			log = log.With("twilio_code", te.Code, "more_info", te.MoreInfo)
		}
		log.Warn("telephony provider health check failed", "provider", p.Name(), "err", err)
		return
	}
	log.Info("telephony provider reachable", "provider", p.Name())
}

func (a *app) routes() routeDeps {
	d := routeDeps{
		Auth: a.auth,
		API: httpapi.Handlers{
			Auth:      a.auth,
			Campaign:  a.manager,
			Reports:   a.reports,
			Audit:     a.audit,
			Overrides: a.override,
			Router:    a.router,
		},
		Webhooks: telephony.TwilioWebhookHandler{Engine: a.engine, Renderer: a.renderer},
		AudioDir: a.cfg.Files.AudioDir,
	}
	if a.cfg.Twilio.ValidateSignature {
		d.WebhookAuth = []gin.HandlerFunc{telephony.ValidateSignature(a.cfg.Twilio.AuthToken, a.cfg.PublicBaseURL)}
	}
	return d
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
	a.closers = nil
}

// openRepo opens the outcome repository for a store backend.
func openRepo(ctx context.Context, backend, path, dsn string, log *slog.Logger) (outcome.Repository, func() error, error) {
	noop := func() error { return nil }
	switch backend {
	case "", config.StoreFile:
		r, err := outcome.OpenFileRepo(path, log)
		if err != nil {
			return nil, nil, err
		}
		return r, noop, nil
	case config.StoreSQLite, config.StorePostgres:
		driver, dialect, target := utils.DriverSQLite, outcome.DialectSQLite, path
		if backend == config.StorePostgres {
			driver, dialect, target = utils.DriverPostgres, outcome.DialectPostgres, dsn
		}
		if target == "" {
			return nil, nil, fmt.Errorf("%s store: connection target required", backend)
		}
		db, err := utils.OpenSQL(ctx, driver, target, utils.SQLPoolConfig{})
		if err != nil {
			return nil, nil, fmt.Errorf("%s store: %w", backend, err)
		}
		r := outcome.NewSQLRepo(db, dialect)
		if err := r.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("%s store: %w", backend, err)
		}
		return r, db.Close, nil
	default:
		return nil, nil, errors.New("unknown store backend " + backend)
	}
}
