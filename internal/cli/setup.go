package cli

import (
	"fmt"
	"log/slog"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"taskboard-cli/internal/board"
	"taskboard-cli/internal/config"
	"taskboard-cli/internal/feed"
	"taskboard-cli/internal/gateway"
	"taskboard-cli/internal/logging"
	"taskboard-cli/internal/tui"
)

// env bundles the wired client for one command invocation. Scriptable
// commands run mutations synchronously: fire, Flush, then check the
// collected rejection.
type env struct {
	cfg     config.Config
	log     *slog.Logger
	board   *board.Board
	notices *noticeCollector
}

// noticeCollector keeps the first rollback notice. CLI commands have no
// update loop, so the async rejection callback lands here.
type noticeCollector struct {
	mu     sync.Mutex
	notice *board.Notice
}

func (c *noticeCollector) collect(n board.Notice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.notice == nil {
		c.notice = &n
	}
}

func (c *noticeCollector) err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.notice == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", c.notice.Op, c.notice.Err)
}

func objectStore(cfg config.Config) (gateway.ObjectStore, error) {
	switch cfg.Storage.Type {
	case "s3":
		return gateway.NewS3Store(gateway.S3Config{
			Endpoint:      cfg.Storage.Endpoint,
			AccessKey:     cfg.Storage.AccessKey,
			SecretKey:     cfg.Storage.SecretKey,
			Bucket:        cfg.Storage.Bucket,
			UseSSL:        cfg.Storage.UseSSL,
			PublicBaseURL: cfg.Storage.PublicBaseURL,
		})
	default:
		return gateway.LocalStore{Dir: cfg.Storage.LocalDir, BaseURL: cfg.Storage.PublicBaseURL}, nil
	}
}

// buildEnv wires config -> gateway -> board for a one-shot command. Logs go
// to the configured file only; stdout is reserved for JSON.
func buildEnv(app *App) (*env, error) {
	cfg, err := config.Load(app.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logging.New(cfg.Log, true)

	session := gateway.StaticSession{Session: gateway.Session{AccessToken: cfg.Gateway.AccessToken}}
	gw, err := gateway.NewREST(gateway.RESTConfig{
		BaseURL: cfg.Gateway.URL,
		APIKey:  cfg.Gateway.APIKey,
		Session: session,
	})
	if err != nil {
		return nil, err
	}
	objects, err := objectStore(cfg)
	if err != nil {
		return nil, err
	}

	notices := &noticeCollector{}
	b := board.New(board.Config{
		Gateway:  gw,
		Objects:  objects,
		Session:  session,
		Logger:   log,
		OnReject: notices.collect,
	})
	return &env{cfg: cfg, log: log, board: b, notices: notices}, nil
}

// settle waits for in-flight persists and surfaces the first rejection.
func (e *env) settle() error {
	e.board.Flush()
	return e.notices.err()
}

func runTUI(app *App) error {
	cfg, err := config.Load(app.ConfigPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := logging.New(cfg.Log, true)

	session := gateway.StaticSession{Session: gateway.Session{AccessToken: cfg.Gateway.AccessToken}}
	gw, err := gateway.NewREST(gateway.RESTConfig{
		BaseURL: cfg.Gateway.URL,
		APIKey:  cfg.Gateway.APIKey,
		Session: session,
	})
	if err != nil {
		return err
	}
	objects, err := objectStore(cfg)
	if err != nil {
		return err
	}

	relay := &tui.Relay{}
	b := board.New(board.Config{
		Gateway:  gw,
		Objects:  objects,
		Session:  session,
		Logger:   log,
		OnChange: func() { relay.Send(tui.RefreshMsg{}) },
		OnReject: func(n board.Notice) { relay.Send(tui.RejectMsg{Notice: n}) },
	})

	var transport feed.Transport
	switch cfg.Feed.Transport {
	case "nats":
		transport, err = feed.NewNATSTransport(cfg.Feed.NATSURL, log)
	default:
		transport, err = feed.NewWebsocketTransport(cfg.Gateway.URL, cfg.Gateway.APIKey, log)
	}
	if err != nil {
		return err
	}
	defer transport.Close()
	sub := feed.NewSubscriber(transport, b, log)

	m := tui.NewApp(tui.Options{
		Board:      b,
		Subscriber: sub,
		Logger:     log,
		StatePath:  config.StatePath(),
	})
	p := tea.NewProgram(m, tea.WithAltScreen())
	relay.Attach(p)
	_, err = p.Run()
	return err
}
