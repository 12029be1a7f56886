package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jrsteele09/go-ctf-client/shell"
)

var tabTitles = map[shell.Tab]string{
	shell.TabDashboard:   "DASHBOARD",
	shell.TabLeaderboard: "LEADERBOARD",
	shell.TabMachines:    "MACHINES",
	shell.TabAcademics:   "ACADEMY",
	shell.TabProfile:     "PROFILE",
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	switch m.state.Screen {
	case shell.ScreenLogin, shell.ScreenRegister:
		return m.renderForm()
	default:
		return m.renderDashboard()
	}
}

func (m Model) renderForm() string {
	var b strings.Builder

	title := "SYSTEM ACCESS // LAB 10"
	labels := []string{"USERNAME", "PASSWORD"}
	action := "INITIALIZE_SESSION"
	toggle := "ctrl+r: create an identity"
	if m.state.Screen == shell.ScreenRegister {
		title = "REGISTER // NEW OPERATOR"
		labels = []string{"USERNAME", "EMAIL", "PASSWORD"}
		action = "CREATE_IDENTITY"
		toggle = "ctrl+r: back to login"
	}

	b.WriteString(m.styles.Title.Render(title))
	b.WriteString("\n")
	inputs := m.loginInputs
	if m.state.Screen == shell.ScreenRegister {
		inputs = m.registerInputs
	}
	for i, in := range inputs {
		b.WriteString(m.styles.Muted.Render(labels[i]))
		b.WriteString("\n")
		b.WriteString(in.View())
		b.WriteString("\n\n")
	}

	if m.state.Loading {
		b.WriteString(m.styles.Muted.Render("PROCESSING..."))
	} else {
		b.WriteString(m.styles.Accent.Render("[ " + action + " ]"))
	}
	b.WriteString("\n")

	if m.state.Error != "" {
		b.WriteString("\n" + m.styles.Error.Render(m.state.Error) + "\n")
	}
	if m.state.Success != "" {
		b.WriteString("\n" + m.styles.Success.Render(m.state.Success) + "\n")
	}

	b.WriteString(m.styles.Help.Render("enter: submit • tab: next field • " + toggle + " • ctrl+c: quit"))
	return m.styles.Border.Render(b.String())
}

func (m Model) renderDashboard() string {
	var b strings.Builder

	b.WriteString(m.renderTabBar())
	b.WriteString("\n\n")

	switch m.state.Tab {
	case shell.TabLeaderboard:
		b.WriteString(m.renderLeaderboard())
	case shell.TabMachines:
		b.WriteString(m.renderMachines())
	case shell.TabAcademics:
		b.WriteString(m.renderAcademics())
	case shell.TabProfile:
		b.WriteString(m.renderProfile())
	default:
		b.WriteString(m.renderOverview())
	}

	if m.state.Loading {
		b.WriteString("\n" + m.styles.Muted.Render("loading..."))
	}
	if m.lastErr != nil {
		b.WriteString("\n" + m.styles.Error.Render(m.lastErr.Error()))
	}
	b.WriteString("\n")
	b.WriteString(m.styles.Help.Render("←/→ or 1-5: tabs • t: test connection • x: logout • ctrl+c: quit"))
	return b.String()
}

func (m Model) renderTabBar() string {
	tabs := make([]string, 0, len(shell.Tabs))
	for _, t := range shell.Tabs {
		style := m.styles.Tab
		if t == m.state.Tab {
			style = m.styles.ActiveTab
		}
		tabs = append(tabs, style.Render(tabTitles[t]))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) renderOverview() string {
	target := shell.Target()
	network := shell.LabNetwork()

	vpn := m.styles.Error.Render("DISCONNECTED")
	if network.VPNConnected {
		vpn = m.styles.Success.Render("CONNECTED")
	}
	status := fmt.Sprintf("TARGET  %s  %s  %s\nIP      %s\nVPN     %s",
		m.styles.Accent.Render(target.Name), target.IP, progressBar(target.Progress, 20),
		network.UserIP, vpn)

	var logs strings.Builder
	logs.WriteString(m.styles.Subtitle.Render("ACTIVITY"))
	for _, entry := range m.state.ActivityLogs {
		logs.WriteString(fmt.Sprintf("\n%s %s", m.styles.Muted.Render("["+entry.Timestamp+"]"), entry.Message))
	}

	panels := []string{m.styles.Border.Render(status), m.styles.Border.Render(logs.String())}
	if m.state.TestResponse != "" {
		panels = append(panels, m.styles.Border.Render(m.styles.Subtitle.Render("GET /hello")+"\n"+m.state.TestResponse))
	}
	return lipgloss.JoinVertical(lipgloss.Left, panels...)
}

func (m Model) renderLeaderboard() string {
	if len(m.state.Leaderboard) == 0 {
		return m.styles.Muted.Render("No rankings yet.")
	}
	var b strings.Builder
	b.WriteString(m.styles.Subtitle.Render(fmt.Sprintf("%-5s %-20s %-8s %s", "RANK", "OPERATOR", "ROLE", "SCORE")))
	for _, e := range m.state.Leaderboard {
		role := strings.ToUpper(e.Role)
		if e.Role == "Admin" {
			role = m.styles.Error.Render(fmt.Sprintf("%-8s", role))
		} else {
			role = fmt.Sprintf("%-8s", role)
		}
		b.WriteString(fmt.Sprintf("\n#%-4d %-20s %s %d", e.Rank, e.Username, role, e.Score))
	}
	return m.styles.Border.Render(b.String())
}

func (m Model) renderMachines() string {
	var b strings.Builder
	b.WriteString(m.styles.Subtitle.Render(fmt.Sprintf("%-8s %-8s %-7s %-12s %s", "NAME", "OS", "LEVEL", "IP", "STATUS")))
	for _, mc := range shell.Machines() {
		status := m.styles.Success.Render(mc.Status())
		if !mc.Online {
			status = m.styles.Error.Render(mc.Status())
		}
		b.WriteString(fmt.Sprintf("\n%-8s %-8s %-7s %-12s %s", mc.Name, mc.OS, mc.Difficulty, mc.IP, status))
	}
	return m.styles.Border.Render(b.String())
}

func (m Model) renderAcademics() string {
	var b strings.Builder
	for i, mod := range shell.Modules() {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("%-25s %s\n%s %3d%%  %s",
			mod.Title, m.styles.Muted.Render(mod.Category),
			progressBar(mod.Progress, 20), mod.Progress, m.styles.Accent.Render(mod.ActionLabel())))
	}
	return m.styles.Border.Render(b.String())
}

func (m Model) renderProfile() string {
	p := m.state.Profile
	if p == nil {
		return m.styles.Muted.Render("Loading profile...")
	}
	body := fmt.Sprintf("%s\nID     %d\nEMAIL  %s\nROLE   %s",
		m.styles.Title.Render(p.Username), p.ID, p.Email, strings.ToUpper(p.Role))
	return m.styles.Border.Render(body)
}

func progressBar(percent, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := percent * width / 100
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}
