// Package agent wires the offline subsystem into an interactive console:
// configuration, local database, vault, mutation queue, connectivity
// watcher, and a small command loop for operating them.
package agent

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/dcornejo/ayudasync/internal/common"
	"github.com/dcornejo/ayudasync/internal/config"
	"github.com/dcornejo/ayudasync/internal/device"
	"github.com/dcornejo/ayudasync/internal/docstore"
	"github.com/dcornejo/ayudasync/internal/events"
	"github.com/dcornejo/ayudasync/internal/localdb"
	"github.com/dcornejo/ayudasync/internal/logging"
	"github.com/dcornejo/ayudasync/internal/mirror"
	"github.com/dcornejo/ayudasync/internal/netstate"
	"github.com/dcornejo/ayudasync/internal/queue"
	"github.com/dcornejo/ayudasync/internal/vault"

	_ "modernc.org/sqlite"
)

type App struct {
	cfg         *config.Config
	log         logging.Logger
	db          *sql.DB
	bus         *events.Bus
	monitor     *netstate.Monitor
	vault       *vault.Manager
	interceptor *queue.Interceptor
	mirror      *mirror.Store
	reader      *bufio.Reader
}

func NewApp(cfg *config.Config) (*App, error) {
	ctx := context.Background()
	log := logging.NewDefault()

	db, err := localdb.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	docs := docstore.NewSQLiteStore(db)
	dev := device.NewManager(docs, log)
	bus := events.NewBus()

	prober := netstate.NewHTTPProber(cfg.ServerBaseURL+cfg.ProbePath, cfg.ProbeTimeout)
	monitor := netstate.NewMonitor(prober, bus, log)

	registrar := vault.NewRegistrar(
		cfg.ServerBaseURL+cfg.RegistrationPath,
		vault.StaticTokenSource(cfg.CSRFToken),
		log,
	)
	v := vault.NewManager(docs, dev, monitor, log,
		vault.WithTTL(cfg.CredentialTTL),
		vault.WithDefaultRedirect(cfg.DefaultRedirect),
		vault.WithRegistrar(registrar),
	)

	interceptor, err := queue.NewInterceptor(http.DefaultClient, docs, dev, monitor, bus, log, queue.Options{
		Origin:     cfg.ServerBaseURL,
		Capacity:   cfg.QueueCapacity,
		MaxRetries: cfg.MaxReplayRetries,
		Backoff:    cfg.ReplayBackoff,
	})
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:         cfg,
		log:         log,
		db:          db,
		bus:         bus,
		monitor:     monitor,
		vault:       v,
		interceptor: interceptor,
		mirror:      mirror.New(db, log),
		reader:      bufio.NewReader(os.Stdin),
	}, nil
}

// Run starts the connectivity watcher and the command loop, blocking until
// the user exits or ctx is done.
func (a *App) Run(ctx context.Context) error {
	if err := a.interceptor.Start(ctx); err != nil {
		return err
	}
	go a.monitor.Watch(ctx, a.cfg.ProbeInterval)

	a.monitor.CheckNow(ctx)
	state := a.vault.Bootstrap(ctx, nil)
	if state.Authenticated {
		fmt.Printf("Resumed session for %s\n", state.Session.Username)
	}

	for {
		select {
		case <-ctx.Done():
			return a.Close()
		default:
		}

		cmd, err := GetSimpleText(a.reader, "\nCommands: login, store, status, list, flush, exit", os.Stdout)
		if err != nil {
			return a.Close()
		}

		switch cmd {
		case "login":
			a.cmdLogin(ctx)
		case "store":
			a.cmdStore(ctx)
		case "status":
			a.cmdStatus(ctx)
		case "list":
			a.cmdList(ctx)
		case "flush":
			if err := a.interceptor.Flush(ctx); err != nil {
				fmt.Printf("Flush stopped: %v\n", err)
			}
		case "exit":
			return a.Close()
		default:
			fmt.Println("Unknown command")
		}
	}
}

func (a *App) Close() error {
	return a.db.Close()
}

// cmdLogin authenticates against the local vault, the way the login page
// falls back when the server is unreachable.
func (a *App) cmdLogin(ctx context.Context) {
	identity, err := GetSimpleText(a.reader, "Enter username or email", os.Stdout)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	password, err := GetPassword(os.Stdout)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	defer common.WipeByteArray(password)

	result, err := a.vault.TryOfflineLogin(ctx, identity, password)
	switch {
	case errors.Is(err, common.ErrNotFound):
		fmt.Println("No offline credentials for that identity on this device")
	case errors.Is(err, common.ErrExpired):
		fmt.Println("Offline credentials expired; log in online to renew them")
	case errors.Is(err, common.ErrInvalidCredentials):
		fmt.Println("Wrong password")
	case err != nil:
		fmt.Printf("Login failed: %v\n", err)
	default:
		fmt.Printf("Logged in offline, resume at %s\n", result.RedirectURL)
	}
}

// cmdStore caches credentials for offline use, as the app does after a
// successful online login.
func (a *App) cmdStore(ctx context.Context) {
	identity, err := GetSimpleText(a.reader, "Enter username or email", os.Stdout)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	password, err := GetPassword(os.Stdout)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	defer common.WipeByteArray(password)

	stored, err := a.vault.StoreCredential(ctx, identity, password, &vault.StoreOptions{
		Profile: &vault.Profile{Username: identity},
	})
	if err != nil {
		fmt.Printf("Store failed: %v\n", err)
		return
	}
	fmt.Printf("Offline credentials stored, valid until %s\n", stored.ExpiresAt.Format("2006-01-02 15:04"))
}

// cmdList shows the mirrored projects, optionally narrowed to one category,
// and records the listing as the last-visited path so an offline login
// resumes there.
func (a *App) cmdList(ctx context.Context) {
	category, err := GetSimpleText(a.reader, "Category (capacitaciones/entregas/proyectos, empty for all)", os.Stdout)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}

	proyectos, err := a.mirror.GetAllProyectos(ctx, category)
	if err != nil {
		fmt.Printf("List failed: %v\n", err)
		return
	}
	if len(proyectos) == 0 {
		fmt.Println("Nothing mirrored yet")
		return
	}
	for _, p := range proyectos {
		marker := " "
		if p.ModifiedOffline {
			marker = "*"
		}
		fmt.Printf("%s %-36s %-24s %s\n", marker, p.ID, p.CategoryKey, p.Nombre)
	}

	path := "/proyectos/"
	if category != "" {
		path += "?categoria=" + category
	}
	a.vault.SetLastVisitedPath(ctx, path)
}

func (a *App) cmdStatus(ctx context.Context) {
	mode := "offline"
	if a.monitor.Online() {
		mode = "online"
	}
	fmt.Printf("Mode: %s\n", mode)
	fmt.Printf("Queued mutations: %d\n", a.interceptor.Depth(ctx))

	if s := a.vault.ActiveSession(ctx); s != nil {
		fmt.Printf("Session: %s (expires %s)\n", s.Username, s.ExpiresAt.Format("2006-01-02 15:04"))
	} else {
		fmt.Println("Session: none")
	}

	if n, err := a.mirror.CountProyectos(ctx); err == nil {
		fmt.Printf("Mirrored proyectos: %d\n", n)
	}
}
