package shell

// Lab data is static in this release; the backend has no machine or academy endpoints.

type OS string

const (
	OSLinux   OS = "Linux"
	OSWindows OS = "Windows"
	OSAndroid OS = "Android"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
	DifficultyInsane Difficulty = "Insane"
)

type Machine struct {
	ID         int
	Name       string
	OS         OS
	Difficulty Difficulty
	IP         string
	Online     bool
}

func (m Machine) Status() string {
	if m.Online {
		return "Online"
	}
	return "Offline"
}

type Module struct {
	ID       int
	Title    string
	Category string
	Progress int // percent
}

// ActionLabel is the call to action shown for the module.
func (m Module) ActionLabel() string {
	if m.Progress > 0 {
		return "CONTINUE"
	}
	return "START MODULE"
}

type TargetMachine struct {
	Name     string
	IP       string
	Progress int
}

// Network is the operator's lab connection.
type Network struct {
	UserIP       string
	VPNConnected bool
}

func Machines() []Machine {
	return []Machine{
		{ID: 1, Name: "Lame", OS: OSLinux, Difficulty: DifficultyEasy, IP: "10.10.10.3", Online: true},
		{ID: 2, Name: "Legacy", OS: OSWindows, Difficulty: DifficultyMedium, IP: "10.10.10.4", Online: true},
		{ID: 3, Name: "Devel", OS: OSWindows, Difficulty: DifficultyEasy, IP: "10.10.10.5", Online: false},
		{ID: 4, Name: "Blue", OS: OSWindows, Difficulty: DifficultyHard, IP: "10.10.10.40", Online: true},
	}
}

func Modules() []Module {
	return []Module{
		{ID: 1, Title: "Intro to Python", Category: "Scripting", Progress: 40},
		{ID: 2, Title: "SQL Injection", Category: "Web Security", Progress: 0},
		{ID: 3, Title: "Linux Fundamentals", Category: "Operating Systems", Progress: 90},
		{ID: 4, Title: "Active Directory Basics", Category: "Network Security", Progress: 15},
	}
}

func Target() TargetMachine {
	return TargetMachine{Name: "Lab-10-Box", IP: "10.10.10.15", Progress: 65}
}

func LabNetwork() Network {
	return Network{UserIP: "192.168.1.105", VPNConnected: false}
}

// seedLogs is the feed shown when a stored session is resumed at startup.
func seedLogs() []ActivityLog {
	return []ActivityLog{
		{ID: "1", Timestamp: "14:32:01", Message: "root@user: session_start --secure"},
		{ID: "2", Timestamp: "14:32:05", Message: "root@user: connect Lab-10-Box"},
		{ID: "3", Timestamp: "14:33:12", Message: "system: port_scan 10.10.10.15 -sV"},
		{ID: "4", Timestamp: "14:35:44", Message: "root@user: exploit --target ssh"},
	}
}
