package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"go.lsp.dev/uri"
	"golang.org/x/sync/errgroup"

	"github.com/lsmux/lsmux/internal/config"
	"github.com/lsmux/lsmux/internal/install"
	"github.com/lsmux/lsmux/internal/workspace"
)

// errInstallFailed marks an install attempt that already failed this
// activation. The failure is not retried until the manager is re-enabled.
var errInstallFailed = errors.New("language server install failed, not retrying")

// runner is the part of a Client the manager drives after startup.
type runner interface {
	Stop(ctx context.Context) error
}

// Installer resolves and installs the server binary, returning where it
// ended up.
type Installer interface {
	Install(ctx context.Context, targetDir string) (*install.Result, error)
}

// Notifier surfaces manager-level conditions to whoever is watching.
type Notifier interface {
	ReloadRequired()
	ShowError(err error)
}

// spawnFunc starts one language server for one root. Swapped out in tests.
type spawnFunc func(ctx context.Context, logger *log.Logger, binPath string, args []string, root string) (runner, error)

func defaultSpawn(ctx context.Context, logger *log.Logger, binPath string, args []string, root string) (runner, error) {
	return Start(ctx, logger, binPath, args, root)
}

// Config assembles a Manager.
type Config struct {
	Settings  config.Config
	Folders   []string
	Installer Installer
	Notifier  Notifier
	Logger    *log.Logger
}

// Manager owns the set of running language servers, keyed by workspace
// root. All state is confined to the Run goroutine; the rest of the
// program talks to it through Dispatch.
type Manager struct {
	settings  config.Config
	folders   []string
	installer Installer
	notifier  Notifier
	log       *log.Logger
	spawn     spawnFunc

	events   chan Event
	registry map[uri.URI]runner

	enabled       bool
	installFailed bool
	binPath       string
}

// NewManager builds a Manager from cfg. Run must be called before
// Dispatch has any effect.
//
// Folders are stored in absolute cleaned form so relative folder arguments
// match the absolute document paths the watcher emits.
func NewManager(cfg Config) *Manager {
	folders := make([]string, 0, len(cfg.Folders))
	for _, folder := range cfg.Folders {
		if abs, err := filepath.Abs(folder); err == nil {
			folder = abs
		}
		folders = append(folders, filepath.Clean(folder))
	}

	return &Manager{
		settings:  cfg.Settings,
		folders:   folders,
		installer: cfg.Installer,
		notifier:  cfg.Notifier,
		log:       cfg.Logger,
		spawn:     defaultSpawn,
		events:    make(chan Event, 16),
		registry:  make(map[uri.URI]runner),
		enabled:   cfg.Settings.Enabled,
	}
}

// Dispatch hands an event to the Run loop. It blocks only if the loop's
// buffer is full, and gives up when ctx is done.
func (m *Manager) Dispatch(ctx context.Context, ev Event) {
	select {
	case m.events <- ev:
	case <-ctx.Done():
	}
}

// Run processes events until ctx is cancelled, then stops every running
// client before returning.
func (m *Manager) Run(ctx context.Context) error {
	for {
		select {
		case ev := <-m.events:
			m.handle(ctx, ev)
		case <-ctx.Done():
			m.stopAll(context.Background())
			return ctx.Err()
		}
	}
}

func (m *Manager) handle(ctx context.Context, ev Event) {
	switch ev := ev.(type) {
	case DocumentOpened:
		m.handleDocumentOpened(ctx, ev)
	case FolderRemoved:
		m.handleFolderRemoved(ctx, ev)
	case ConfigChanged:
		m.notifier.ReloadRequired()
	case Toggle:
		m.handleToggle(ctx, ev)
	}
}

// handleDocumentOpened starts a client for the outermost workspace folder
// enclosing the document, unless one is already running there.
func (m *Manager) handleDocumentOpened(ctx context.Context, ev DocumentOpened) {
	if !m.enabled {
		return
	}

	root, ok := workspace.Outermost(m.folders, ev.Path)
	if !ok {
		m.log.Debug("document outside workspace folders", "path", ev.Path)
		return
	}
	key, err := workspace.Canonical(root)
	if err != nil {
		m.log.Warn("cannot canonicalize root", "root", root, "error", err)
		return
	}
	if _, ok := m.registry[key]; ok {
		return
	}
	if _, err := os.Stat(root); err != nil {
		m.log.Debug("workspace root no longer exists", "root", root)
		return
	}

	binPath, err := m.ensureBinary(ctx)
	if err != nil {
		return
	}

	client, err := m.spawn(ctx, m.log, binPath, m.settings.ServeArgs, root)
	if err != nil {
		m.log.Error("failed to start language server", "root", root, "error", err)
		m.notifier.ShowError(err)
		return
	}
	m.registry[key] = client
	m.log.Info("language server started", "root", root)
}

// ensureBinary resolves the server binary path, installing it on first
// use. A failed install is reported once and not retried until the
// manager is re-enabled.
func (m *Manager) ensureBinary(ctx context.Context) (string, error) {
	if m.settings.BinaryPath != "" {
		return m.settings.BinaryPath, nil
	}
	if m.binPath != "" {
		return m.binPath, nil
	}
	if m.installFailed {
		return "", errInstallFailed
	}

	res, err := m.installer.Install(ctx, m.settings.BinDir())
	if err != nil {
		m.installFailed = true
		m.log.Error("install failed", "error", err)
		m.notifier.ShowError(err)
		return "", err
	}
	m.binPath = res.Path
	return m.binPath, nil
}

// handleFolderRemoved stops and deregisters the client for the removed
// root. A root with no client is a no-op.
func (m *Manager) handleFolderRemoved(ctx context.Context, ev FolderRemoved) {
	key, err := workspace.Canonical(ev.Path)
	if err != nil {
		return
	}
	client, ok := m.registry[key]
	if !ok {
		return
	}
	if err := client.Stop(ctx); err != nil {
		m.log.Warn("error stopping language server", "root", ev.Path, "error", err)
	}
	delete(m.registry, key)
	m.log.Info("language server stopped", "root", ev.Path)
}

// handleToggle flips the enabled state. Disabling stops every client.
// Enabling installs afresh and restarts clients for the roots that were
// running before.
func (m *Manager) handleToggle(ctx context.Context, ev Toggle) {
	if ev.Enabled == m.enabled {
		return
	}

	prevRoots := make([]string, 0, len(m.registry))
	for key := range m.registry {
		prevRoots = append(prevRoots, key.Filename())
	}
	m.stopAll(ctx)

	m.enabled = ev.Enabled
	m.installFailed = false
	m.binPath = ""

	if !ev.Enabled {
		return
	}
	for _, root := range prevRoots {
		m.handleDocumentOpened(ctx, DocumentOpened{Path: root})
	}
}

// stopAll stops every registered client concurrently and clears the
// registry only after all of them have exited.
func (m *Manager) stopAll(ctx context.Context) {
	var g errgroup.Group
	for key, client := range m.registry {
		key, client := key, client
		g.Go(func() error {
			if err := client.Stop(ctx); err != nil {
				m.log.Warn("error stopping language server", "root", key.Filename(), "error", err)
			}
			return nil
		})
	}
	g.Wait()
	m.registry = make(map[uri.URI]runner)
}
