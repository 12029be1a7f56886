package shell

import (
	"github.com/jrsteele09/go-ctf-client/api"
)

// SessionView is the coarse session state. Authenticated implies an access token is stored.
type SessionView int

const (
	Unauthenticated SessionView = iota
	Authenticated
)

func (v SessionView) String() string {
	if v == Authenticated {
		return "authenticated"
	}
	return "unauthenticated"
}

// Screen is the page the shell presents.
type Screen string

const (
	ScreenLogin     Screen = "login"
	ScreenRegister  Screen = "register"
	ScreenDashboard Screen = "dashboard"
)

// Tab is a dashboard section.
type Tab string

const (
	TabDashboard   Tab = "dashboard"
	TabProfile     Tab = "profile"
	TabLeaderboard Tab = "leaderboard"
	TabMachines    Tab = "machines"
	TabAcademics   Tab = "academics"
)

// Tabs lists the dashboard tabs in display order.
var Tabs = []Tab{TabDashboard, TabLeaderboard, TabMachines, TabAcademics, TabProfile}

// Valid reports whether t is a known tab.
func (t Tab) Valid() bool {
	for _, known := range Tabs {
		if t == known {
			return true
		}
	}
	return false
}

type LoginForm struct {
	Username string
	Password string
}

type RegisterForm struct {
	Username string
	Email    string
	Password string
}

func (f RegisterForm) request() api.RegisterRequest {
	return api.RegisterRequest{Username: f.Username, Email: f.Email, Password: f.Password}
}

// ActivityLog is one line of the dashboard terminal feed.
type ActivityLog struct {
	ID        string
	Timestamp string // HH:MM:SS
	Message   string
}

// Profile is the displayed operator profile. Role is always set.
type Profile struct {
	ID       int
	Username string
	Email    string
	Role     string
}

// State is a point-in-time copy of everything the shell displays.
type State struct {
	View         SessionView
	Screen       Screen
	Tab          Tab
	Loading      bool
	Error        string
	Success      string
	LoginForm    LoginForm
	RegisterForm RegisterForm
	ActivityLogs []ActivityLog
	TestResponse string // pretty-printed /hello body, "" when none
	Profile      *Profile
	Leaderboard  []api.LeaderboardEntry
}
