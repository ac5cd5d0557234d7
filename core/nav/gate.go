// Package nav decides which screens an identity may reach: the admission gate in front of the
// protected area and the role-filtered navigation menu.
package nav

import (
	"strings"
)

// Routes of the console.
const (
	RouteLogin              = "/login"
	RouteRegister           = "/register"
	RouteDashboard          = "/dashboard"
	RouteStudents           = "/students"
	RouteTeachers           = "/teachers"
	RouteClasses            = "/classes"
	RouteSubjects           = "/subjects"
	RouteGrades             = "/grades"
	RouteAttendance         = "/attendance/students"
	RouteDocuments          = "/documents"
	RouteUsers              = "/users"
	RoutePendingApprovals   = "/users/pending"
	RouteProfile            = "/profile"
	RouteSettings           = "/settings"
	defaultAuthenticatedURL = RouteDashboard
)

// Decision is the outcome of admitting a navigation into the protected area.
type Decision struct {
	Render     bool
	RedirectTo string
}

// Admit is evaluated on every navigation, never cached.
func Admit(isAuthenticated bool) Decision {
	if !isAuthenticated {
		return Decision{RedirectTo: RouteLogin}
	}
	return Decision{Render: true}
}

// Home is where an authenticated user lands.
func Home() string { return defaultAuthenticatedURL }

// IsPublic reports whether path is served outside of the protected area.
func IsPublic(path string) bool {
	path = normalize(path)
	return path == RouteLogin || path == RouteRegister
}

// Capabilities is the read side of the session store the menu is computed from.
type Capabilities interface {
	IsSuperAdmin() bool
	IsAdmin() bool
	IsTeacher() bool
	IsStudent() bool
}

type Visibility int

const (
	Always Visibility = iota
	NotStudent
	AdminOnly
)

func (v Visibility) String() string {
	switch v {
	case NotStudent:
		return "not_student"
	case AdminOnly:
		return "admin_only"
	default:
		return "always"
	}
}

// Visible is evaluated against the current capabilities.
// An unknown role holds no capability, so NotStudent entries stay visible and AdminOnly ones hidden.
func (v Visibility) Visible(caps Capabilities) bool {
	if caps == nil {
		return v == Always
	}
	switch v {
	case NotStudent:
		return !caps.IsStudent()
	case AdminOnly:
		return caps.IsSuperAdmin() || caps.IsAdmin()
	default:
		return true
	}
}

type Entry struct {
	Name       string     `json:"name"`
	Path       string     `json:"path"`
	Icon       string     `json:"icon"`
	Visibility Visibility `json:"-"`
}

var entries = []Entry{
	{Name: "Dashboard", Path: RouteDashboard, Icon: "home", Visibility: Always},
	{Name: "Students", Path: RouteStudents, Icon: "users", Visibility: NotStudent},
	{Name: "Teachers", Path: RouteTeachers, Icon: "academic-cap", Visibility: AdminOnly},
	{Name: "Classes", Path: RouteClasses, Icon: "building-library", Visibility: NotStudent},
	{Name: "Subjects", Path: RouteSubjects, Icon: "book-open", Visibility: NotStudent},
	{Name: "Grades", Path: RouteGrades, Icon: "chart-bar", Visibility: Always},
	{Name: "Attendance", Path: RouteAttendance, Icon: "clipboard-document-check", Visibility: Always},
	{Name: "Documents", Path: RouteDocuments, Icon: "document-text", Visibility: Always},
	{Name: "Users", Path: RouteUsers, Icon: "user-group", Visibility: AdminOnly},
	{Name: "Pending Approvals", Path: RoutePendingApprovals, Icon: "user-plus", Visibility: AdminOnly},
}

// Entries returns the full declared menu, in order.
func Entries() []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// Menu filters the declared menu for caps, preserving order.
func Menu(caps Capabilities) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Visibility.Visible(caps) {
			out = append(out, e)
		}
	}
	return out
}

// owner returns the menu entry with the longest path prefix of path.
func owner(path string) (Entry, bool) {
	var (
		best  Entry
		found bool
	)
	for _, e := range entries {
		if path != e.Path && !strings.HasPrefix(path, e.Path+"/") {
			continue
		}
		if !found || len(e.Path) > len(best.Path) {
			best, found = e, true
		}
	}
	return best, found
}

func normalize(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return path
}

// Reachable reports whether an authenticated identity with caps may open path.
// Paths not owned by any menu entry (profile, settings...) are reachable by everyone.
func Reachable(caps Capabilities, path string) bool {
	e, ok := owner(normalize(path))
	if !ok {
		return true
	}
	return e.Visibility.Visible(caps)
}

type Outcome int

const (
	Allow Outcome = iota
	RedirectToLogin
	Forbidden
)

func (o Outcome) String() string {
	switch o {
	case RedirectToLogin:
		return "redirect"
	case Forbidden:
		return "forbidden"
	default:
		return "allow"
	}
}

// Authorize combines the admission gate with the role check for path.
func Authorize(isAuthenticated bool, caps Capabilities, path string) Outcome {
	if IsPublic(path) {
		return Allow
	}
	if d := Admit(isAuthenticated); !d.Render {
		return RedirectToLogin
	}
	if !Reachable(caps, path) {
		return Forbidden
	}
	return Allow
}
