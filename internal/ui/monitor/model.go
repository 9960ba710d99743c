// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package monitor

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/bgtask/internal/config"
	"github.com/jeranaias/bgtask/internal/logging"
	"github.com/jeranaias/bgtask/internal/tasks"
	"github.com/jeranaias/bgtask/internal/ui/components"
)

// Status lines shown by the monitor.
const (
	StatusWaiting    = "Waiting user input..."
	StatusProcessing = "Processing long action..."
	StatusCancelling = "Cancelling..."
	StatusCancelled  = "Canceled."
	StatusBusy       = "Long action already running."
)

// Vars is the model's data, regenerated by both actions.
type Vars struct {
	Var1 int
	Var2 int
}

func newVars() Vars {
	return Vars{Var1: rand.IntN(100), Var2: rand.IntN(100)}
}

// Settings configures the monitor.
type Settings struct {
	// Iterations and Step shape the long action.
	Iterations int
	Step       time.Duration

	// CleanupTimeout bounds Shutdown.
	CleanupTimeout time.Duration

	// MaxHistory is the number of finished tasks listed.
	MaxHistory int

	// TaskOptions apply to every long action.
	TaskOptions []tasks.Option

	// Observer also receives long action notifications (e.g. a journal).
	Observer tasks.Observer

	// Updates delivers reloaded settings. They apply to long actions
	// started afterwards.
	Updates <-chan Settings
}

// SettingsFromConfig builds settings from the loaded configuration.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Iterations:     cfg.Demo.Iterations,
		Step:           cfg.Demo.Step.Duration,
		CleanupTimeout: cfg.Tasks.CleanupTimeout.Duration,
		MaxHistory:     cfg.Tasks.MaxHistory,
		TaskOptions:    tasks.ConfigOptions(cfg.Tasks),
	}
}

// merge applies the long action fields of next. The observer, history size
// and update channel stay fixed for the life of the model.
func (s Settings) merge(next Settings) Settings {
	if next.Iterations > 0 {
		s.Iterations = next.Iterations
	}
	if next.Step > 0 {
		s.Step = next.Step
	}
	if next.CleanupTimeout > 0 {
		s.CleanupTimeout = next.CleanupTimeout
	}
	s.TaskOptions = next.TaskOptions
	return s
}

// Model is the Bubble Tea model of the monitor.
type Model struct {
	settings Settings
	keys     KeyMap

	vars   Vars
	status string
	err    error

	registry *tasks.Registry
	inbox    *tasks.Inbox
	task     *tasks.Task // current long action, nil when none is running
	percent  float64

	ctx    context.Context
	cancel context.CancelFunc

	spinner  spinner.Model
	progress progress.Model
	help     help.Model
	taskList *components.TaskList
	toasts   *components.Toasts

	width    int
	height   int
	quitting bool
}

// New creates a monitor model.
func New(settings Settings) Model {
	if settings.Iterations <= 0 {
		settings.Iterations = 50
	}
	if settings.Step <= 0 {
		settings.Step = 100 * time.Millisecond
	}
	if settings.CleanupTimeout <= 0 {
		settings.CleanupTimeout = tasks.DefaultCleanupTimeout
	}

	registry := tasks.NewRegistry(settings.MaxHistory)
	ctx, cancel := context.WithCancel(context.Background())

	s := spinner.New()
	s.Spinner = spinner.Dot

	return Model{
		settings: settings,
		keys:     DefaultKeyMap(),
		vars:     newVars(),
		status:   StatusWaiting,
		registry: registry,
		inbox:    tasks.NewInbox(),
		ctx:      ctx,
		cancel:   cancel,
		spinner:  s,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		help:     help.New(),
		taskList: components.NewTaskList(registry),
		toasts:   components.NewToasts(3),
	}
}

// Registry returns the registry of started long actions.
func (m Model) Registry() *tasks.Registry { return m.registry }

// Vars returns the current variables.
func (m Model) Vars() Vars { return m.vars }

// Status returns the status line.
func (m Model) Status() string { return m.status }

// Running reports whether a long action is in progress.
func (m Model) Running() bool { return m.task != nil }

// Init starts the spinner and the notification listeners.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.ctx, m.inbox),
		waitForNotification(m.ctx, m.registry), waitForSettings(m.ctx, m.settings.Updates))
}

// Update handles input and task notifications.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = min(max(msg.Width-4, 10), 60)
		m.help.Width = msg.Width
		m.taskList.SetSize(msg.Width, max(msg.Height-12, 0))
		return m, nil

	case TaskEventMsg:
		var cmd tea.Cmd
		m, cmd = m.handleEvent(msg.Event)
		return m, tea.Batch(cmd, waitForEvent(m.ctx, m.inbox))

	case RegistryEventMsg:
		return m, waitForNotification(m.ctx, m.registry)

	case components.ToastExpiredMsg:
		m.toasts.Dismiss(msg.ID)
		return m, nil

	case inboxClosedMsg:
		return m, nil

	case SettingsMsg:
		m.settings = m.settings.merge(msg.Settings)
		return m, waitForSettings(m.ctx, m.settings.Updates)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		if m.task != nil {
			m.task.RequestCancel()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Short):
		m.vars = newVars()
		if m.task == nil {
			m.status = StatusWaiting
			m.err = nil
		}

	case key.Matches(msg, m.keys.Long):
		m = m.startLong(false)

	case key.Matches(msg, m.keys.Fail):
		m = m.startLong(true)

	case key.Matches(msg, m.keys.Cancel):
		if m.task != nil {
			m.task.RequestCancel()
			m.status = StatusCancelling
		}

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

// startLong starts the long action on a new task. A failing action panics
// half way through.
func (m Model) startLong(fail bool) Model {
	if m.task != nil {
		m.status = StatusBusy
		return m
	}

	name := "long action"
	if fail {
		name = "failing action"
	}
	opts := append([]tasks.Option{
		tasks.WithName(name),
		tasks.WithContext(m.ctx),
		tasks.WithObserver(m.inbox),
		tasks.WithObserver(m.settings.Observer),
	}, m.settings.TaskOptions...)
	task := tasks.New(opts...)

	if err := m.registry.Add(task); err != nil {
		m.err = err
		m.status = "Failed: " + err.Error()
		return m
	}

	iterations, step := m.settings.Iterations, m.settings.Step
	work := tasks.LoopWork(iterations, step, func() (interface{}, error) {
		return newVars(), nil
	})
	if fail {
		work = failingWork(iterations/2, step)
	}

	if err := task.Start(work); err != nil {
		m.err = err
		m.status = "Failed: " + err.Error()
		return m
	}

	logging.Debug(m.ctx, "long action started", logging.Fields{
		logging.FieldTaskID:    task.ID(),
		logging.FieldComponent: "monitor",
	})
	m.task = task
	m.percent = 0
	m.err = nil
	m.status = StatusProcessing
	return m
}

func failingWork(steps int, step time.Duration) tasks.WorkFunc {
	return func(ctl *tasks.Control) (interface{}, error) {
		for i := 0; i < steps; i++ {
			if !ctl.Sleep(step) {
				return nil, tasks.ErrCanceled
			}
			ctl.Report((i+1)*50/max(steps, 1), "about to fail")
		}
		panic(fmt.Sprintf("failed after %d steps", steps))
	}
}

// handleEvent applies a notification. Events of tasks other than the
// current one only refresh the task list. A terminal event also shows an
// outcome toast and returns the command that dismisses it.
func (m Model) handleEvent(ev tasks.Event) (Model, tea.Cmd) {
	if m.task == nil || ev.TaskID != m.task.ID() {
		return m, nil
	}

	if !ev.Terminal() {
		m.percent = float64(ev.Progress.Percent) / 100
		return m, nil
	}

	var cmd tea.Cmd
	if toast, ok := m.toasts.Push(ev); ok {
		cmd = components.ExpireCmd(toast)
	}

	m.task = nil
	switch ev.State {
	case tasks.StateCompleted:
		if vars, ok := ev.Result.(Vars); ok {
			m.vars = vars
		}
		m.percent = 1
		m.status = StatusWaiting
	case tasks.StateCancelled:
		m.status = StatusCancelled
	case tasks.StateFailed:
		m.err = ev.Err
		m.status = "Failed: " + components.FailureReason(ev.Err)
	}
	return m, cmd
}

// Shutdown cancels running tasks and waits for them, bounded by ctx, then
// stops the notification listener.
func (m Model) Shutdown(ctx context.Context) error {
	err := m.registry.Close(ctx)
	m.cancel()
	m.inbox.Close()
	return err
}
