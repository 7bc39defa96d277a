package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dmitrijs2005/birdwatch/internal/client/channel"
	"github.com/dmitrijs2005/birdwatch/internal/client/chat"
	"github.com/dmitrijs2005/birdwatch/internal/client/client"
	"github.com/dmitrijs2005/birdwatch/internal/client/config"
	"github.com/dmitrijs2005/birdwatch/internal/client/monitor"
	"github.com/dmitrijs2005/birdwatch/internal/client/queue"
	"github.com/dmitrijs2005/birdwatch/internal/client/services"
	"github.com/dmitrijs2005/birdwatch/internal/client/store"
	"github.com/dmitrijs2005/birdwatch/internal/client/syncer"
	"github.com/dmitrijs2005/birdwatch/internal/filex"
	"github.com/dmitrijs2005/birdwatch/internal/logging"
)

// linkIface is the live channel as the App drives it on connectivity edges.
type linkIface interface {
	Connect(ctx context.Context) error
	Disconnect() error
}

type App struct {
	config *config.Config
	logger logging.Logger

	store     *store.Store
	queue     *queue.Queue
	client    client.Client
	link      linkIface
	monitor   *monitor.Monitor
	syncer    *syncer.Orchestrator
	chat      *chat.Session
	sightings services.SightingService
	identity  services.IdentityService

	reader  *bufio.Reader
	logFile io.Closer
}

// NewApp builds the client from c. Logs go to a file in the data directory
// so they do not interleave with the prompt.
func NewApp(c *config.Config) (*App, error) {
	dir, err := filex.EnsureDir(c.DataDir)
	if err != nil {
		return nil, fmt.Errorf("data directory: %w", err)
	}
	c.DataDir = dir

	logFile, err := os.OpenFile(c.LogPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	logger := logging.NewTextLogger(logFile, slog.LevelInfo)

	api, err := client.NewHTTPClient(c.ServerEndpointAddr, nil)
	if err != nil {
		_ = logFile.Close()
		return nil, err
	}

	st := store.New(c.StorePath(), c.FallbackDir(), logger)
	q := queue.New(st, logger)
	ch := channel.New(api.WebSocketURL(), logger)
	mon := monitor.New(logger)

	a := &App{
		config:    c,
		logger:    logger,
		store:     st,
		queue:     q,
		client:    api,
		link:      ch,
		monitor:   mon,
		syncer:    syncer.New(q, ch, api, logger),
		sightings: services.NewSightingService(api, q, mon.Online, logger),
		identity:  services.NewIdentityService(q),
		reader:    bufio.NewReader(os.Stdin),
		logFile:   logFile,
	}
	a.chat = chat.New(ch, q, api, mon.Online, a.renderLine, logger)
	a.wireMonitor()
	return a, nil
}

func (a *App) wireMonitor() {
	a.monitor.OnOnline(a.goOnline)
	a.monitor.OnOffline(a.goOffline)
}

// goOnline reconnects the live channel first so queued chat lines have
// somewhere to go, then drains the queue. The open room is rejoined on the
// new connection without dropping its transcript.
func (a *App) goOnline(ctx context.Context) {
	printlnFn("Back online.")
	if err := a.link.Connect(ctx); err != nil {
		a.logger.Warn(ctx, "live channel connect failed", "error", err)
	}
	if room := a.chat.Room(); room != "" {
		if err := a.chat.Rejoin(ctx); err != nil {
			a.logger.Warn(ctx, "rejoining room failed", "room", room, "error", err)
		}
	}
	a.reportSync(a.syncer.SyncAll(ctx))
}

func (a *App) goOffline(ctx context.Context) {
	printlnFn("Offline: new sightings and chat messages will be queued.")
	if err := a.link.Disconnect(); err != nil {
		a.logger.Debug(ctx, "live channel disconnect", "error", err)
	}
}

// Run blocks in the REPL until the user exits or ctx ends.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer a.shutdown()
	defer cancel()

	if err := a.store.Initialize(ctx); err != nil {
		a.logger.Error(ctx, "local store unavailable", "error", err)
	}
	if a.config.Username != "" {
		if err := a.identity.SetUsername(ctx, a.config.Username); err != nil {
			printlnFn(err.Error())
		}
	}

	printlnFn("Welcome to birdwatch (type 'help' for commands)")

	go a.monitor.Watch(ctx, a.config.OnlineCheckInterval, a.client.Ping)

	runREPL(ctx, a, a.getStatus, a.reader)
}

func (a *App) shutdown() {
	ctx := context.Background()
	a.chat.Leave(ctx)
	a.monitor.Wait()
	_ = a.link.Disconnect()
	if err := a.store.Close(); err != nil {
		a.logger.Error(ctx, "closing store", "error", err)
	}
	_ = a.logFile.Close()
}

func (a *App) getStatus() string {
	ctx := context.Background()
	s := fmt.Sprintf("%s %s", a.identity.Username(ctx), a.monitor.Mode())
	if room := a.chat.Room(); room != "" {
		s += " #" + room
	}
	return fmt.Sprintf("(%s)", s)
}
