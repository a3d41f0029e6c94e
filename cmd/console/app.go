package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"tenant-console/internal/account"
	"tenant-console/internal/audit"
	"tenant-console/internal/config"
	"tenant-console/internal/credstore"
	"tenant-console/internal/dashboard"
	"tenant-console/internal/gateway"
	"tenant-console/internal/invitation"
	"tenant-console/internal/project"
	"tenant-console/internal/session"
	"tenant-console/internal/tenant"
	"tenant-console/pkg/logger"
	"tenant-console/pkg/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// app holds the wired dependencies of one command invocation.
type app struct {
	cfg config.Config
	log *slog.Logger

	creds credstore.Store
	audit *audit.Service
	gw    *gateway.Client
	sess  *session.Store

	account     *account.Service
	tenants     *tenant.Service
	projects    *project.Service
	invitations *invitation.Service
	dashboard   *dashboard.Loader

	closers []io.Closer
}

func newApp(ctx context.Context, cfgPath string, stderr io.Writer) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	log := logger.NewWithWriter(cfg.App.Env, stderr).With("invocation", uuid.NewString())
	slog.SetDefault(log)

	a := &app{cfg: cfg, log: log}
	repo, err := a.openStores(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.audit = audit.NewService(repo)

	a.gw = gateway.New(gateway.Config{
		AuthURL:     cfg.Services.AuthURL,
		TenantsURL:  cfg.Services.TenantsURL,
		MembersURL:  cfg.Services.MembersURL,
		ProjectsURL: cfg.Services.ProjectsURL,
		Timeout:     cfg.HTTP.Timeout,
	}, log)
	a.sess = session.NewStore(a.creds, a.gw, session.WithAudit(a.audit), session.WithLogger(log))
	a.gw.Bind(a.sess)

	a.account = account.NewService(a.gw, a.sess)
	a.tenants = tenant.NewService(a.gw, a.sess)
	a.projects = project.NewService(a.gw, a.sess)
	a.invitations = invitation.NewService(a.gw, a.sess, a.audit, log)
	a.dashboard = dashboard.NewLoader(a.tenants, a.invitations, a.projects)

	a.sess.OnTeardown(func(r session.Reason) {
		if r == session.ReasonExpired {
			fmt.Fprintln(stderr, "session expired, run `console login` to sign in again")
		}
	})
	a.sess.Restore(ctx)
	return a, nil
}

// openStores opens the credential store and the matching audit repository.
func (a *app) openStores(ctx context.Context) (audit.Repository, error) {
	sc := a.cfg.Store
	switch sc.Kind {
	case config.StoreMemory:
		store := credstore.NewMemoryStore()
		a.creds = store
		a.closers = append(a.closers, store)
		return audit.NewMemoryRepo(), nil

	case config.StoreSQLite:
		db, err := utils.OpenSQLite(ctx, sc.SQLitePath)
		if err != nil {
			return nil, err
		}
		store := credstore.NewSQLiteStore(db, sc.Namespace)
		a.creds = store
		a.closers = append(a.closers, store)
		return a.sqlRepo(ctx, store, audit.NewSQLiteRepo(db))

	case config.StorePostgres:
		db, err := utils.OpenPostgres(ctx, a.cfg.PostgresDSN())
		if err != nil {
			return nil, err
		}
		store := credstore.NewPostgresStore(db, sc.Namespace)
		a.creds = store
		a.closers = append(a.closers, store)
		return a.sqlRepo(ctx, store, audit.NewPostgresRepo(db))

	case config.StoreRedis:
		rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{
			Addr:     a.cfg.RedisAddr(),
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		store := credstore.NewRedisStore(rdb, sc.Namespace)
		a.creds = store
		a.closers = append(a.closers, store)
		return audit.NewRedisRepo(rdb, sc.Namespace), nil

	default:
		return nil, fmt.Errorf("unsupported store kind %q", sc.Kind)
	}
}

type schemaOwner interface {
	EnsureSchema(ctx context.Context) error
}

func (a *app) sqlRepo(ctx context.Context, store schemaOwner, repo *audit.SQLRepo) (audit.Repository, error) {
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) && !errors.Is(err, redis.ErrClosed) {
			a.log.Warn("close failed", "err", err)
		}
	}
	a.closers = nil
}

// requireSession fails fast when no session could be restored.
func (a *app) requireSession() error {
	if _, ok := a.sess.Current(); !ok {
		return errNotLoggedIn
	}
	return nil
}
