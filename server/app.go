package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"staffdesk/config"
	"staffdesk/internal/auth"
	"staffdesk/internal/bootstrap"
	"staffdesk/internal/db"
	"staffdesk/internal/documents"
	"staffdesk/internal/docuseal"
	"staffdesk/internal/employees"
	"staffdesk/internal/expiry"
	"staffdesk/internal/forms"
	"staffdesk/internal/health"
	"staffdesk/internal/incidents"
	"staffdesk/internal/invitations"
	"staffdesk/internal/licenses"
	"staffdesk/internal/logs"
	"staffdesk/internal/middleware"
	"staffdesk/internal/models"
	"staffdesk/internal/onboarding"
	"staffdesk/internal/reports"
	"staffdesk/internal/secrets"
	"staffdesk/internal/tracing"
)

type App struct {
	cfg        *config.Config
	db         *gorm.DB
	Router     *mux.Router
	httpServer *http.Server

	sessions    *auth.Sessions
	invitations *invitations.Service
	worker      *forms.Worker
	bootstrap   *bootstrap.Setup
	docuseal    *docuseal.Client
}

// Initialize opens the database, builds every service and mounts the routes.
func (a *App) Initialize(cfg *config.Config) error {
	a.cfg = cfg

	logs.Init(logs.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})

	d, err := db.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	if err := db.Migrate(d); err != nil {
		return fmt.Errorf("db migrate: %w", err)
	}
	a.db = d
	st := newStores(d)

	cipher, err := secrets.New(cfg.Encryption.SecretKey, cfg.Encryption.KeySalt)
	if err != nil {
		return fmt.Errorf("field encryption: %w", err)
	}
	files, err := documents.NewDiskStorage(cfg.Storage.DocumentsRoot)
	if err != nil {
		return err
	}
	thresholds := expiry.Thresholds{
		High:         cfg.Expiry.HighDays,
		Medium:       cfg.Expiry.MediumDays,
		ExpiringSoon: cfg.Expiry.ExpiringSoonDays,
	}

	a.docuseal = docuseal.New(cfg.DocuSeal.BaseURL, cfg.DocuSeal.APIKey, cfg.DocuSeal.Timeout, cfg.DocuSeal.RetryCount)
	formsSvc := forms.NewService(st.submissions, st.employees, a.docuseal, forms.Options{
		OnboardingTemplates: cfg.DocuSeal.OnboardingTemplates,
		HREmail:             cfg.DocuSeal.HREmail,
	})
	a.worker = forms.NewWorker(formsSvc, cfg.DocuSeal.PollInterval, cfg.DocuSeal.WatchInterval, cfg.DocuSeal.WatchTicks)

	a.sessions = auth.NewSessions(st.sessions, cfg.Auth.SessionSecret, cfg.Auth.SessionTTL, cfg.Auth.SecureCookie)
	authSvc := auth.NewService(st.users, st.employees, st.invitations, st.tx,
		onboardingDispatcher{forms: formsSvc, configured: a.docuseal.Configured()})
	guard := auth.NewGuard(st.employees)
	a.invitations = invitations.NewService(st.invitations, st.employees, cfg.PublicBaseURL())
	a.bootstrap = bootstrap.New(st.users, st.tx)

	empSvc := employees.NewService(st.employees, cipher)
	licSvc := licenses.NewService(st.state, st.dea, st.board, st.employees, licenses.Deriver{Thresholds: thresholds})
	docSvc := documents.NewService(st.documents, st.employees, files, cfg.Storage.MaxUploadMB<<20)
	incSvc := incidents.NewService(st.incidents, st.employees)
	wizard := onboarding.NewWizard(onboarding.DefaultSteps(onboarding.Records{
		State: st.state, DEA: st.dea, Board: st.board, Documents: st.documents, Submissions: st.submissions,
	}), st.onboarding, empSvc, st.tx)
	reportSvc := reports.NewService(reports.Stores{
		Employees: st.employees, State: st.state, DEA: st.dea, Board: st.board,
		Documents: st.documents, Incidents: st.incidents, Submissions: st.submissions,
	}, thresholds)

	a.Router = mux.NewRouter().StrictSlash(true)
	a.Router.Use(
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Tracing,
		middleware.LoggerMW,
	)
	health.RegisterRoutes(a.Router, health.Database(a.db), health.Storage(files.Ping))

	// public: login, registration, invitation check, signing webhook
	api := a.Router.PathPrefix("/api").Subrouter()
	// any signed-in user; per-employee access is checked by the guard
	authed := api.NewRoute().Subrouter()
	authed.Use(a.sessions.RequireAuth)
	read := authed.NewRoute().Subrouter()
	read.Use(auth.RequireRole(models.RoleAdmin, models.RoleHR, models.RoleViewer))
	staff := authed.NewRoute().Subrouter()
	staff.Use(auth.RequireStaff())

	auth.NewHandler(authSvc, a.sessions).RegisterRoutes(api, authed)
	invitations.NewHandler(a.invitations).RegisterRoutes(api, staff)
	forms.NewHandler(formsSvc, guard, a.worker, cfg.DocuSeal.WebhookSecret).RegisterRoutes(api, authed, staff)
	employees.NewHandler(empSvc).RegisterRoutes(read, staff)
	licenses.RegisterRoutes(authed, licSvc, guard)
	documents.NewHandler(docSvc, guard).RegisterRoutes(authed)
	incidents.NewHandler(incSvc).RegisterRoutes(read, staff)
	onboarding.NewHandler(wizard, guard).RegisterRoutes(authed)
	reports.NewHandler(reportSvc).RegisterRoutes(read)

	_ = a.Router.Walk(func(rt *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, err := rt.GetPathTemplate()
		if err != nil {
			return nil
		}
		methods, _ := rt.GetMethods()
		if len(methods) == 0 {
			return nil
		}
		logs.Logger.Debugf("route: %-6v %s", methods, path)
		return nil
	})
	return nil
}

// Run serves HTTP and the background jobs until ctx is cancelled or SIGINT/SIGTERM arrives.
func (a *App) Run(ctx context.Context) error {
	if a.Router == nil || a.cfg == nil {
		return errors.New("server not initialized")
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, tracing.Options{
		Enabled:     a.cfg.Tracing.Enabled,
		Endpoint:    a.cfg.Tracing.Endpoint,
		ServiceName: "staffdesk",
	})
	if err != nil {
		logs.Logger.Warnf("tracing disabled: %v", err)
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(c)
	}()

	if err := a.prepareAccounts(ctx); err != nil {
		return err
	}

	bind := net.JoinHostPort(a.cfg.Server.Address, a.cfg.Server.HTTPPort)
	a.httpServer = &http.Server{
		Addr:              bind,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logs.Logger.Infof("HTTP listening on %s", bind)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.httpServer.Shutdown(c); err != nil {
			logs.Logger.Errorf("http shutdown: %v", err)
		}
		return nil
	})
	if a.docuseal.Configured() {
		g.Go(func() error { return a.worker.Run(gctx) })
	} else {
		logs.Component("forms").Warn("docuseal api key not set; form sync disabled")
	}
	for _, j := range []job{
		{name: "session-purge", every: time.Hour, run: a.sessions.Purge},
		{name: "invitation-expiry", every: time.Hour, run: a.invitations.ExpireStale},
	} {
		g.Go(func() error { return j.loop(gctx) })
	}

	err = g.Wait()
	logs.Logger.Info("shutdown complete")
	return err
}

// prepareAccounts applies the configured admin opt-in and reports account problems.
func (a *App) prepareAccounts(ctx context.Context) error {
	b := a.cfg.Bootstrap
	created, err := a.bootstrap.FromConfig(ctx, bootstrap.Admin{
		Username: b.AdminUsername, Password: b.AdminPassword, Email: b.AdminEmail,
	})
	if err != nil {
		return err
	}
	if created {
		logs.Component("bootstrap").Warn("admin created from configuration; password change required at first login")
	}
	return a.bootstrap.Check(ctx)
}

// Close releases the database handle.
func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
