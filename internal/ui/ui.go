package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/ttrack/internal/session"
	"github.com/desertthunder/ttrack/internal/shared"
	"github.com/desertthunder/ttrack/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	SignedOutView ViewState = iota
	TaskView
	InputView
)

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	session      *session.Session
	now          func() time.Time
	view         ViewState
	connecting   bool
	showFinished bool
	taskList     list.Model
	input        textinput.Model
	status       tasks.StatusUpdate
	err          error
	width        int
	height       int
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model over s. The initial view follows the session's sign-in state.
func NewModel(ctx context.Context, s *session.Session) *Model {
	input := textinput.New()
	input.Placeholder = "What are you working on?"
	input.CharLimit = 120

	taskList := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	taskList.SetShowHelp(false)

	m := &Model{
		ctx:      ctx,
		session:  s,
		now:      time.Now,
		view:     SignedOutView,
		taskList: taskList,
		input:    input,
		help:     help.New(),
		keys:     newKeyMap(),
	}
	if s.State() == session.SignedIn {
		m.view = TaskView
	}
	m.refresh()
	return m
}

// Init starts the display tick and the status listener.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(tick(), m.waitForStatus())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.taskList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case SignedOutView:
			return m.handleSignedOutKeys(msg)
		case TaskView:
			return m.handleTaskKeys(msg)
		case InputView:
			return m.handleInputKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateComponents(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgTick:
		m.refresh()
		return m, tick()

	case MsgSyncStatus:
		m.status = msg.data.(tasks.StatusUpdate)
		return m, m.waitForStatus()

	case MsgActionDone:
		m.err = msg.errOf()
		m.refresh()
		return m, nil

	case MsgSignedIn:
		m.connecting = false
		if err := msg.errOf(); err != nil {
			m.err = err
			m.view = SignedOutView
			return m, nil
		}
		m.err = nil
		m.view = TaskView
		m.refresh()
		return m, nil

	case MsgSignedOut:
		m.err = msg.errOf()
		m.view = SignedOutView
		m.status = tasks.StatusUpdate{}
		m.refresh()
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case SignedOutView:
		return m.renderSignedOut()
	case TaskView:
		return m.renderTasks()
	case InputView:
		return m.renderInput()
	default:
		return ""
	}
}

func (m *Model) handleSignedOutKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.signIn) && !m.connecting:
		m.connecting = true
		m.err = nil
		return m, m.signIn()
	}
	return m, nil
}

func (m *Model) handleTaskKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.taskList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.taskList, cmd = m.taskList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.add):
		m.view = InputView
		m.input.Reset()
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.tab):
		m.showFinished = !m.showFinished
		m.taskList.ResetSelected()
		m.refresh()
		return m, nil
	case key.Matches(msg, m.keys.sync):
		return m, m.syncNow()
	case key.Matches(msg, m.keys.signOut):
		return m, m.signOut()
	case key.Matches(msg, m.keys.toggle):
		if item, ok := m.selected(); ok && !m.showFinished {
			if item.task.IsRunning {
				return m, m.act(m.session.StopTask, item.task.ID)
			}
			return m, m.act(m.session.StartTask, item.task.ID)
		}
		return m, nil
	case key.Matches(msg, m.keys.finish):
		if item, ok := m.selected(); ok && !m.showFinished {
			return m, m.act(m.session.FinishTask, item.task.ID)
		}
		return m, nil
	case key.Matches(msg, m.keys.remove):
		if item, ok := m.selected(); ok {
			return m, m.act(m.session.DeleteTask, item.task.ID)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.taskList, cmd = m.taskList.Update(msg)
	return m, cmd
}

func (m *Model) handleInputKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEsc:
		m.input.Blur()
		m.view = TaskView
		return m, nil
	case tea.KeyEnter:
		name := m.input.Value()
		m.input.Blur()
		m.view = TaskView
		return m, m.addTask(name)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) updateComponents(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case TaskView:
		m.taskList, cmd = m.taskList.Update(msg)
	case InputView:
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

func (m *Model) selected() (taskItem, bool) {
	item, ok := m.taskList.SelectedItem().(taskItem)
	return item, ok
}

// refresh rebuilds the list from the registry so running timers show the current elapsed time.
func (m *Model) refresh() {
	reg := m.session.Tasks()
	shown, title := reg.Active(), "Active Tasks"
	if m.showFinished {
		shown, title = reg.Finished(), "Finished Tasks"
	}
	m.taskList.Title = title
	m.taskList.SetItems(taskItems(shown, m.now()))
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) waitForStatus() tea.Cmd {
	updates := m.session.Updates()
	return func() tea.Msg {
		select {
		case update := <-updates:
			return syncStatusMsg(update)
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Model) act(op func(context.Context, int64) error, id int64) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg(op(m.ctx, id))
	}
}

func (m *Model) addTask(name string) tea.Cmd {
	return func() tea.Msg {
		_, err := m.session.AddTask(m.ctx, name)
		return actionDoneMsg(err)
	}
}

func (m *Model) syncNow() tea.Cmd {
	return func() tea.Msg {
		_, err := m.session.Sync(m.ctx)
		return actionDoneMsg(err)
	}
}

func (m *Model) signIn() tea.Cmd {
	return func() tea.Msg {
		return signedInMsg(m.session.SignIn(m.ctx))
	}
}

func (m *Model) signOut() tea.Cmd {
	return func() tea.Msg {
		return signedOutMsg(m.session.SignOut(m.ctx))
	}
}

func (m *Model) renderSignedOut() string {
	title := styles.title.Render("Time Tracker")

	var body string
	switch {
	case m.connecting:
		body = "Waiting for authorization in your browser..."
	case m.err != nil:
		body = styles.err.Render(fmt.Sprintf("Sign-in failed: %v", m.err)) + "\n\nPress i to try again"
	default:
		body = "You are signed out. Press i to sign in with Google."
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.signIn, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n\n%s", title, body, helpView)
}

func (m *Model) renderTasks() string {
	helpView := m.help.ShortHelpView([]key.Binding{
		m.keys.add, m.keys.toggle, m.keys.finish, m.keys.remove, m.keys.tab, m.keys.sync, m.keys.signOut, m.keys.quit,
	})
	return fmt.Sprintf("%s\n%s\n\n%s", m.taskList.View(), m.renderStatus(), helpView)
}

func (m *Model) renderInput() string {
	title := styles.title.Render("New Task")
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.back})
	return fmt.Sprintf("%s\n%s\n\n%s", title, m.input.View(), helpView)
}

// renderStatus is the footer: account, last sync, and the latest sync state or action error.
func (m *Model) renderStatus() string {
	account := m.session.Email()
	if account == "" {
		account = "signed in"
	}

	last := "never"
	if at := m.session.LastSync(); !at.IsZero() {
		last = at.Local().Format("15:04:05")
	}
	line := styles.status.Render(fmt.Sprintf("%s • last sync %s", account, last))

	switch {
	case m.err != nil:
		line += "\n" + styles.err.Render(m.err.Error())
	case m.status.State == tasks.Failed:
		line += "\n" + styles.err.Render(m.status.Message)
	case m.status.State == tasks.AuthRetry:
		line += "\n" + styles.warn.Render(m.status.Message)
	case m.status.State == tasks.Success:
		line += "\n" + styles.ok.Render(m.status.Message)
	case m.status.Message != "":
		line += "\n" + styles.help.Render(m.status.Message)
	}
	return line
}

// Run starts the TUI in the alternate screen and blocks until the user quits.
func Run(ctx context.Context, s *session.Session) error {
	if s == nil {
		return fmt.Errorf("%w: session", shared.ErrMissingArgument)
	}
	p := tea.NewProgram(NewModel(ctx, s), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
