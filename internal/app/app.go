// Package app implements the interactive status client. The bubbletea update
// loop is the engine's consumer goroutine: every tick message advances the
// engine by one frame.
package app

import (
	"context"
	"fmt"
	"path"
	"slices"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/chmouel/lazystatus/internal/app/services"
	"github.com/chmouel/lazystatus/internal/config"
	"github.com/chmouel/lazystatus/internal/engine"
	"github.com/chmouel/lazystatus/internal/git"
	"github.com/chmouel/lazystatus/internal/log"
	"github.com/chmouel/lazystatus/internal/status"
	"github.com/chmouel/lazystatus/internal/theme"
	"github.com/chmouel/lazystatus/internal/worker"
)

// Message types for the Bubble Tea app
type (
	tickMsg          struct{}
	rowsFlattenedMsg struct {
		version uint64
		tree    *status.Tree
		rows    []*services.StatusRow
	}
)

// EngineOptions maps the configuration onto engine options.
func EngineOptions(cfg *config.AppConfig) (engine.Options, error) {
	threading, err := engine.ParseThreading(cfg.Threading)
	if err != nil {
		return engine.Options{}, err
	}
	root := cfg.RepoPath
	return engine.Options{
		RepoPath:            root,
		Backend:             cfg.Backend,
		Threading:           threading,
		OverlayDepth:        cfg.OverlayDepth,
		ShowEmptyFolderMeta: cfg.ShowEmptyFolders,
		DetectRenames:       cfg.DetectRenames,
		Host:                git.LockFileSignals{RepoPath: root, BuildMarkers: cfg.BuildMarkers},
	}, nil
}

// Model is the bubbletea model of the status client.
type Model struct {
	config *config.AppConfig
	engine *engine.Engine
	theme  *theme.Theme

	view     *services.StatusView
	watcher  *services.FileWatchService
	ignore   *git.IgnoreMatcher
	spinner  spinner.Model
	viewport viewport.Model
	search   textinput.Model

	ctx    context.Context
	cancel context.CancelFunc

	width      int
	height     int
	version    uint64
	flattening bool
	message    string
	messageErr bool
	searching  bool
	showHelp   bool
	quitting   bool
}

// NewModel creates the client for eng. The model takes part in the engine
// lifecycle: quitting closes the watcher but not the engine.
func NewModel(cfg *config.AppConfig, eng *engine.Engine) *Model {
	ctx, cancel := context.WithCancel(context.Background())
	thm := theme.GetTheme(cfg.Theme)

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = lipgloss.NewStyle().Foreground(thm.Accent)

	ti := textinput.New()
	ti.Placeholder = "Search paths..."
	ti.CharLimit = 200
	ti.Prompt = "/ "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(thm.Accent).Bold(true)
	ti.TextStyle = lipgloss.NewStyle().Foreground(thm.TextFg)

	m := &Model{
		config:   cfg,
		engine:   eng,
		theme:    thm,
		view:     services.NewStatusView(),
		spinner:  sp,
		viewport: viewport.New(80, 20),
		search:   ti,
		ctx:      ctx,
		cancel:   cancel,
	}

	eng.OnStageDone(func(op worker.Op, err error) {
		if err != nil {
			m.notify(err.Error(), true)
			return
		}
		m.notify(fmt.Sprintf("operation #%d done", op.ID()), false)
	})
	eng.OnRepositoryLoaded(func(git.Repository) {
		if m.ignore != nil {
			m.ignore.Reset()
		}
	})
	return m
}

// Init starts the watcher, the spinner and the engine tick loop.
func (m *Model) Init() tea.Cmd {
	if m.config.TrackSystemFiles {
		m.startWatcher()
	}
	return tea.Batch(m.spinner.Tick, tickCmd(m.config.RefreshInterval))
}

func tickCmd(interval time.Duration) tea.Cmd {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return tea.Tick(interval, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m *Model) startWatcher() {
	root := m.engine.RepoPath()
	if root == "" {
		return
	}
	m.ignore = git.NewIgnoreMatcher(root)
	m.watcher = services.NewFileWatchService(root, m.onDirty, log.Named("watch").Debugf)
	m.watcher.IsIgnored = m.ignore.Match
	if err := m.watcher.Start(m.ctx); err != nil {
		log.Warnf("file watcher disabled: %v", err)
		m.watcher = nil
	}
}

// onDirty runs on the watcher goroutine.
func (m *Model) onDirty(paths []string) {
	if slices.ContainsFunc(paths, isIgnoreFile) {
		m.ignore.Reset()
		m.engine.MarkReload(false)
		return
	}
	m.engine.MarkDirty(paths...)
}

func isIgnoreFile(p string) bool {
	return path.Base(p) == ".gitignore"
}

func (m *Model) notify(text string, isError bool) {
	m.message = text
	m.messageErr = isError
	if isError {
		log.Errorf("%s", text)
	}
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		if m.quitting {
			return m, nil
		}
		if err := m.engine.Tick(); err != nil {
			m.notify(err.Error(), true)
		}
		return m, tea.Batch(tickCmd(m.config.RefreshInterval), m.refreshRows())

	case rowsFlattenedMsg:
		m.flattening = false
		if msg.version >= m.version {
			m.version = msg.version
			m.view.SetRows(msg.tree, msg.rows)
		}
		return m, m.refreshRows()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

// refreshRows flattens a newly published tree, on a background command when
// list threading is enabled.
func (m *Model) refreshRows() tea.Cmd {
	v := m.engine.View()
	if v == nil || v.Version <= m.version || m.flattening {
		return nil
	}
	if !m.engine.Threading().Has(engine.ThreadingList) {
		m.version = v.Version
		m.view.SetTree(v.Tree)
		return nil
	}
	m.flattening = true
	opts := m.view.Options()
	return func() tea.Msg {
		return rowsFlattenedMsg{
			version: v.Version,
			tree:    v.Tree,
			rows:    services.FlattenTree(v.Tree, opts),
		}
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searching {
		return m.handleSearchInput(msg)
	}
	if m.showHelp {
		switch msg.String() {
		case "?", "esc", "q":
			m.showHelp = false
			return m, nil
		}
	}

	switch msg.String() {
	case "ctrl+c", "q":
		m.quitting = true
		m.cancel()
		if m.watcher != nil {
			m.watcher.Stop()
		}
		return m, tea.Quit

	case "j", "down":
		m.view.Move(1)
	case "k", "up":
		m.view.Move(-1)
	case "g", "home":
		m.view.Index = 0
		m.view.ClampIndex()
	case "G", "end":
		m.view.Index = len(m.view.Rows) - 1
		m.view.ClampIndex()
	case "ctrl+d", "pgdown":
		m.view.Move(m.pageSize())
	case "ctrl+u", "pgup":
		m.view.Move(-m.pageSize())

	case "enter", " ":
		if row := m.view.SelectedRow(); row != nil && row.IsDir {
			m.view.ToggleCollapse(row.Path)
		}

	case "a":
		m.view.ShowClean = !m.view.ShowClean
		m.view.RebuildFlat()

	case "s":
		m.stageSelected(true)
	case "u":
		m.stageSelected(false)

	case "/":
		m.searching = true
		m.search.SetValue("")
		m.search.Focus()
		return m, textinput.Blink
	case "n":
		m.view.SearchNext(m.search.Value(), true)
	case "N":
		m.view.SearchNext(m.search.Value(), false)

	case "?":
		m.showHelp = true

	case "r":
		m.engine.MarkReload(true)
		m.notify("reloading repository", false)
	case "R":
		m.engine.MarkReload(false)
		m.notify("full rescan requested", false)
	}
	return m, nil
}

func (m *Model) handleSearchInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searching = false
		m.search.Blur()
		return m, nil
	case "esc", "ctrl+c":
		m.searching = false
		m.search.SetValue("")
		m.search.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.view.SearchFrom(m.search.Value())
	return m, cmd
}

func (m *Model) stageSelected(stage bool) {
	files := m.view.SelectedFiles(m.engine.Snapshot())
	if len(files) == 0 {
		return
	}
	var err error
	if stage {
		err = m.engine.AutoStage(files)
	} else {
		err = m.engine.AutoUnstage(files)
	}
	if err != nil {
		m.notify(err.Error(), true)
		return
	}
	verb := "unstaging"
	if stage {
		verb = "staging"
	}
	m.notify(fmt.Sprintf("%s %d paths", verb, len(files)), false)
}

func (m *Model) pageSize() int {
	return max(1, m.bodyHeight()-1)
}

// Close releases the watcher. The engine is owned by the caller.
func (m *Model) Close() {
	m.cancel()
	if m.watcher != nil {
		m.watcher.Stop()
	}
}

// Run starts the interactive client on the terminal.
func Run(cfg *config.AppConfig, eng *engine.Engine) error {
	m := NewModel(cfg, eng)
	defer m.Close()
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
