package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/The-Promised-Neverland/tsb/internal/api/handlers"
	"github.com/The-Promised-Neverland/tsb/internal/api/routers"
	"github.com/The-Promised-Neverland/tsb/internal/config"
	"github.com/The-Promised-Neverland/tsb/internal/models"
	"github.com/The-Promised-Neverland/tsb/internal/service"
	"github.com/The-Promised-Neverland/tsb/internal/transfer"
	"github.com/The-Promised-Neverland/tsb/internal/tunnel"
	"github.com/The-Promised-Neverland/tsb/internal/watcher"
	"github.com/The-Promised-Neverland/tsb/internal/ws"
	"github.com/The-Promised-Neverland/tsb/pkg/logger"
	"github.com/The-Promised-Neverland/tsb/pkg/system"
	"github.com/The-Promised-Neverland/tsb/pkg/utils"
	"github.com/fatih/color"
	"github.com/gin-gonic/gin"
)

// Application is one receiver: HTTP surface, tunnel, progress hub and inbox watcher.
type Application struct {
	config      *config.Config
	service     *service.Service
	provisioner tunnel.Provisioner
	console     io.Writer

	mu       sync.Mutex
	receiver *transfer.Receiver
	reporter *transfer.ConsoleReporter
	hub      *ws.Hub
	server   *http.Server
	serveErr chan error
	tunnel   tunnel.Tunnel
	watcher  *watcher.Watcher
	port     int
}

func NewApplication(cfg *config.Config, svc *service.Service, prov tunnel.Provisioner, console io.Writer) *Application {
	if console == nil {
		console = io.Discard
	}
	return &Application{
		config:      cfg,
		service:     svc,
		provisioner: prov,
		console:     console,
	}
}

// Start brings the receiver up and returns once the public URL is known.
func (app *Application) Start(ctx context.Context) error {
	app.mu.Lock()
	defer app.mu.Unlock()
	if app.server != nil {
		return errors.New("receiver already running")
	}
	system.InitStartTime()
	if err := app.config.EnsureReceiveDir(); err != nil {
		return err
	}
	metrics := app.service.HostMetrics()
	logger.Log.Info("Host metrics",
		"hostname", metrics.Hostname,
		"os", metrics.OS,
		"cpu_usage", metrics.CPUUsage,
		"memory_usage", metrics.MemoryUsage,
		"disk_usage", metrics.DiskUsage)

	app.receiver = transfer.NewReceiver(app.config.ReceiveDir(), transfer.ZipExtractor{}, app.service)
	app.hub = ws.NewHub()
	app.receiver.Subscribe(app.hub)
	app.reporter = transfer.NewConsoleReporter(app.console)
	app.receiver.Subscribe(app.reporter)

	start, end := app.config.PortRange()
	port, err := utils.FindFreePort(start, end)
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", port, err)
	}
	app.port = port

	gin.SetMode(gin.ReleaseMode)
	handler := handlers.NewHandler(app.receiver, app.service, app.config.MaxChunkBytes())
	router := routers.NewRouter(app.hub, handler).SetupRouter()
	app.server = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       app.config.HTTPTimeout(),
		WriteTimeout:      app.config.HTTPTimeout(),
	}
	app.serveErr = make(chan error, 1)
	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error("HTTP server stopped", "err", err)
			app.serveErr <- err
		}
	}(app.server)
	logger.Log.Info("Receiver listening", "port", port, "receiveDir", app.config.ReceiveDir())

	tun, err := app.provisioner.Open(ctx, port)
	if err != nil {
		app.stopLocked()
		return err
	}
	app.tunnel = tun

	app.startWatcher(ctx)

	color.New(color.FgGreen, color.Bold).Fprintf(app.console, "🌍 Public URL: %s\n", tun.URL())
	color.New(color.FgCyan).Fprintf(app.console, "📡 Live progress: %s\n", utils.WebSocketURL(tun.URL(), "/ws"))
	color.New(color.FgCyan).Fprintf(app.console, "📁 Saving files to %s\n", app.config.ReceiveDir())
	fmt.Fprintf(app.console, "Send with: tsb send <file> %s\n", tun.URL())
	logger.Log.Info("Receiver ready", "url", tun.URL(), "port", port)
	return nil
}

func (app *Application) URL() string {
	app.mu.Lock()
	defer app.mu.Unlock()
	if app.tunnel == nil {
		return ""
	}
	return app.tunnel.URL()
}

func (app *Application) Receiver() *transfer.Receiver {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.receiver
}

// Done reports a listener failure after Start succeeded.
func (app *Application) Done() <-chan error {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.serveErr
}

func (app *Application) startWatcher(ctx context.Context) {
	filter := watcher.DefaultFilterConfig()
	filter.Hold = app.receiver.InProgress
	w, err := watcher.NewWatcher(ctx, app.config.ReceiveDir(), filter)
	if err != nil {
		logger.Log.Warn("Failed to create inbox watcher", "err", err)
		return
	}
	if err := w.Start(); err != nil {
		logger.Log.Warn("Failed to start inbox watcher", "err", err)
		w.Stop()
		return
	}
	app.watcher = w
	go app.forwardInboxEvents(w, app.hub)
}

func (app *Application) forwardInboxEvents(w *watcher.Watcher, hub *ws.Hub) {
	for event := range w.Events() {
		logger.Log.Debug("Inbox event", "type", event.Type, "path", event.Path)
		hub.Broadcast(models.Message{
			Type: models.MsgInboxEvent,
			Payload: models.InboxEvent{
				Type:      string(event.Type),
				Path:      event.Path,
				Timestamp: event.Timestamp,
			},
		})
	}
}

// Shutdown releases the tunnel first so no new chunks arrive, then drains HTTP.
func (app *Application) Shutdown(ctx context.Context) error {
	app.mu.Lock()
	defer app.mu.Unlock()
	var errs []error
	if app.tunnel != nil {
		if err := app.tunnel.Close(); err != nil {
			errs = append(errs, err)
		}
		app.tunnel = nil
	}
	if app.server != nil {
		if err := app.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shut down HTTP server: %w", err))
		}
	}
	app.stopLocked()
	logger.Log.Info("Receiver stopped")
	return errors.Join(errs...)
}

func (app *Application) stopLocked() {
	if app.server != nil {
		app.server.Close()
		app.server = nil
	}
	if app.receiver != nil {
		app.receiver.Close()
	}
	if app.reporter != nil {
		app.reporter.Close()
		app.reporter = nil
	}
	if app.watcher != nil {
		app.watcher.Stop()
		app.watcher = nil
	}
	if app.hub != nil {
		app.hub.Close()
	}
}
