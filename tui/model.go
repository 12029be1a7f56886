// Package tui is the terminal dashboard for the training platform. It renders shell state and
// turns key presses into shell transitions run as Bubble Tea commands.
package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jrsteele09/go-ctf-client/shell"
)

// Model is the Bubble Tea model for the dashboard
type Model struct {
	ctx   context.Context
	shell *shell.Shell
	state shell.State

	loginInputs    []textinput.Model // username, password
	registerInputs []textinput.Model // username, email, password
	focus          int

	busy     bool
	width    int
	height   int
	ready    bool
	quitting bool
	lastErr  error

	styles Styles
}

// Styles contains lipgloss styles for the dashboard
type Styles struct {
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Error     lipgloss.Style
	Success   lipgloss.Style
	Muted     lipgloss.Style
	Accent    lipgloss.Style
	Border    lipgloss.Style
	ActiveTab lipgloss.Style
	Tab       lipgloss.Style
	Help      lipgloss.Style
}

type keyMap struct {
	Quit      key.Binding
	Submit    key.Binding
	Next      key.Binding
	Prev      key.Binding
	Toggle    key.Binding
	Logout    key.Binding
	Probe     key.Binding
	TabRight  key.Binding
	TabLeft   key.Binding
	TabNumber key.Binding
}

var keys = keyMap{
	Quit:      key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	Submit:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")),
	Next:      key.NewBinding(key.WithKeys("tab", "down"), key.WithHelp("tab", "next field")),
	Prev:      key.NewBinding(key.WithKeys("shift+tab", "up"), key.WithHelp("shift+tab", "previous field")),
	Toggle:    key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "login/register")),
	Logout:    key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "logout")),
	Probe:     key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "test connection")),
	TabRight:  key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "next tab")),
	TabLeft:   key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "previous tab")),
	TabNumber: key.NewBinding(key.WithKeys("1", "2", "3", "4", "5"), key.WithHelp("1-5", "jump to tab")),
}

// shellUpdatedMsg reports that a shell transition finished.
type shellUpdatedMsg struct {
	err error
}

// NewModel creates the dashboard model. ctx bounds every backend call the model starts.
func NewModel(ctx context.Context, sh *shell.Shell) Model {
	m := Model{
		ctx:            ctx,
		shell:          sh,
		state:          sh.State(),
		loginInputs:    []textinput.Model{newInput("username or email", false), newInput("password", true)},
		registerInputs: []textinput.Model{newInput("username", false), newInput("email", false), newInput("password", true)},
		styles:         DefaultStyles(),
	}
	m.focusInput(0)
	return m
}

func newInput(placeholder string, secret bool) textinput.Model {
	in := textinput.New()
	in.Placeholder = placeholder
	in.CharLimit = 128
	in.Width = 32
	if secret {
		in.EchoMode = textinput.EchoPassword
		in.EchoCharacter = '•'
	}
	return in
}

// DefaultStyles returns the terminal-green palette
func DefaultStyles() Styles {
	green := lipgloss.Color("#9fef00")
	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(green).MarginBottom(1),
		Subtitle: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		Error:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		Success:  lipgloss.NewStyle().Bold(true).Foreground(green),
		Muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Accent:   lipgloss.NewStyle().Foreground(green),
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1),
		ActiveTab: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#0f1219")).
			Background(green).
			Padding(0, 1),
		Tab:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Padding(0, 1),
		Help: lipgloss.NewStyle().Foreground(lipgloss.Color("241")).MarginTop(1),
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		return m, nil

	case shellUpdatedMsg:
		m.busy = false
		m.lastErr = msg.err
		m.sync()
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		if m.state.Screen == shell.ScreenDashboard {
			return m.handleDashboardKey(msg)
		}
		return m.handleFormKey(msg)
	}

	return m, nil
}

// handleFormKey drives the login and register screens.
func (m Model) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	inputs := m.inputs()
	switch {
	case key.Matches(msg, keys.Toggle):
		if m.state.Screen == shell.ScreenLogin {
			m.shell.ShowRegister()
		} else {
			m.shell.ShowLogin()
		}
		m.sync()
		m.focusInput(0)
		return m, nil

	case key.Matches(msg, keys.Next):
		m.focusInput((m.focus + 1) % len(inputs))
		return m, nil

	case key.Matches(msg, keys.Prev):
		m.focusInput((m.focus - 1 + len(inputs)) % len(inputs))
		return m, nil

	case key.Matches(msg, keys.Submit):
		if m.busy {
			return m, nil
		}
		if m.focus < len(inputs)-1 {
			m.focusInput(m.focus + 1)
			return m, nil
		}
		return m.submitForm()
	}

	var cmd tea.Cmd
	inputs[m.focus], cmd = inputs[m.focus].Update(msg)
	return m, cmd
}

func (m Model) submitForm() (tea.Model, tea.Cmd) {
	m.busy = true
	m.state.Loading = true
	if m.state.Screen == shell.ScreenRegister {
		m.shell.SetRegisterForm(shell.RegisterForm{
			Username: m.registerInputs[0].Value(),
			Email:    m.registerInputs[1].Value(),
			Password: m.registerInputs[2].Value(),
		})
		return m, m.run(m.shell.SubmitRegister)
	}
	m.shell.SetLoginForm(shell.LoginForm{
		Username: m.loginInputs[0].Value(),
		Password: m.loginInputs[1].Value(),
	})
	return m, m.run(m.shell.SubmitLogin)
}

func (m Model) handleDashboardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	switch {
	case key.Matches(msg, keys.Logout):
		m.busy = true
		return m, m.run(m.shell.Logout)

	case key.Matches(msg, keys.Probe):
		m.busy = true
		m.state.Loading = true
		return m, m.run(m.shell.TestConnection)

	case key.Matches(msg, keys.TabRight):
		return m.switchTab(tabOffset(m.state.Tab, 1))

	case key.Matches(msg, keys.TabLeft):
		return m.switchTab(tabOffset(m.state.Tab, -1))

	case key.Matches(msg, keys.TabNumber):
		return m.switchTab(shell.Tabs[int(msg.String()[0]-'1')])
	}
	return m, nil
}

func (m Model) switchTab(tab shell.Tab) (tea.Model, tea.Cmd) {
	m.busy = true
	m.state.Tab = tab
	return m, m.run(func(ctx context.Context) error {
		return m.shell.SwitchTab(ctx, tab)
	})
}

// run executes a shell transition off the UI goroutine.
func (m Model) run(action func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return shellUpdatedMsg{err: action(ctx)}
	}
}

// sync refreshes the rendered state from the shell, clearing the forms once a session ends.
func (m *Model) sync() {
	prev := m.state.Screen
	m.state = m.shell.State()
	if prev == shell.ScreenDashboard && m.state.Screen != shell.ScreenDashboard {
		for i := range m.loginInputs {
			m.loginInputs[i].Reset()
		}
		m.focusInput(0)
	}
	if prev != shell.ScreenDashboard && m.state.Screen == shell.ScreenDashboard {
		for i := range m.registerInputs {
			m.registerInputs[i].Reset()
		}
	}
}

func (m *Model) inputs() []textinput.Model {
	if m.state.Screen == shell.ScreenRegister {
		return m.registerInputs
	}
	return m.loginInputs
}

func (m *Model) focusInput(i int) {
	m.focus = i
	for _, group := range [][]textinput.Model{m.loginInputs, m.registerInputs} {
		for j := range group {
			group[j].Blur()
		}
	}
	inputs := m.inputs()
	if i < len(inputs) {
		inputs[i].Focus()
	}
}

func tabOffset(current shell.Tab, offset int) shell.Tab {
	for i, t := range shell.Tabs {
		if t == current {
			return shell.Tabs[(i+offset+len(shell.Tabs))%len(shell.Tabs)]
		}
	}
	return shell.TabDashboard
}
