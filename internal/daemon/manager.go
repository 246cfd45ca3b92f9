package daemon

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/The-Promised-Neverland/tsb/internal/config"
	"github.com/The-Promised-Neverland/tsb/pkg/logger"
	kardianos "github.com/kardianos/service"
)

const shutdownTimeout = 10 * time.Second

// DaemonManager adapts the Application to the kardianos service lifecycle.
type DaemonManager struct {
	cfg       *config.Config
	app       *Application
	appCtx    context.Context
	appCancel context.CancelFunc
}

func NewDaemonManager(cfg *config.Config, app *Application) *DaemonManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &DaemonManager{
		cfg:       cfg,
		app:       app,
		appCtx:    ctx,
		appCancel: cancel,
	}
}

func (m *DaemonManager) newService() (kardianos.Service, error) {
	return kardianos.New(m, &kardianos.Config{
		Name:        m.cfg.ServiceName(),
		DisplayName: m.cfg.ServiceDisplayName(),
		Description: m.cfg.ServiceDescription(),
		Arguments:   []string{"receive"},
	})
}

// Start fails the service when the receiver cannot come up, e.g. the tunnel was refused.
func (m *DaemonManager) Start(s kardianos.Service) error {
	if m.app == nil {
		return fmt.Errorf("application cannot be nil")
	}
	logger.Log.Info("Kardianos starting service", "service", s.String(), "platform", s.Platform())
	if err := m.app.Start(m.appCtx); err != nil {
		return err
	}
	go m.watchServer(s)
	return nil
}

func (m *DaemonManager) Stop(s kardianos.Service) error {
	logger.Log.Info("Kardianos stopping service", "service", s.String())
	m.appCancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return m.app.Shutdown(ctx)
}

// watchServer stops the service if the HTTP listener dies underneath it.
func (m *DaemonManager) watchServer(s kardianos.Service) {
	select {
	case <-m.appCtx.Done():
	case err, ok := <-m.app.Done():
		if !ok {
			return
		}
		logger.Log.Error("Receiver failed, stopping", "err", err)
		if kardianos.Interactive() {
			return
		}
		if stopErr := s.Stop(); stopErr != nil {
			logger.Log.Error("Failed to stop service", "err", stopErr)
		}
	}
}

// Run blocks until SIGINT/SIGTERM or a service-manager stop.
func (m *DaemonManager) Run() error {
	s, err := m.newService()
	if err != nil {
		return err
	}
	return s.Run()
}

func (m *DaemonManager) InstallDaemon() error {
	if err := m.cfg.EnsureReceiveDir(); err != nil {
		return err
	}
	s, err := m.newService()
	if err != nil {
		return err
	}
	if err := s.Install(); err != nil {
		if runtime.GOOS == "windows" {
			return fmt.Errorf("failed to install Windows service (requires administrator privileges): %w", err)
		}
		return fmt.Errorf("failed to install service: %w", err)
	}
	if err := s.Start(); err != nil {
		return fmt.Errorf("service installed but failed to start: %w", err)
	}
	return nil
}

func (m *DaemonManager) UninstallDaemon() error {
	s, err := m.newService()
	if err != nil {
		return err
	}
	if err := s.Stop(); err != nil {
		logger.Log.Warn("Failed to stop service before uninstall", "err", err)
	}
	if err := s.Uninstall(); err != nil {
		return fmt.Errorf("failed to uninstall service: %w", err)
	}
	return nil
}

func (m *DaemonManager) Status() (kardianos.Status, error) {
	s, err := m.newService()
	if err != nil {
		return kardianos.StatusUnknown, err
	}
	return s.Status()
}
