package nav

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/masomo-console/core/session"
	"github.com/trezcool/masomo-console/core/user"
	"github.com/trezcool/masomo-console/tests"
)

type roleCaps string

func (r roleCaps) IsSuperAdmin() bool { return string(r) == user.RoleSuperAdmin }
func (r roleCaps) IsAdmin() bool      { return string(r) == user.RoleAdmin }
func (r roleCaps) IsTeacher() bool    { return string(r) == user.RoleTeacher }
func (r roleCaps) IsStudent() bool    { return string(r) == user.RoleStudent }

func names(es []Entry) []string {
	out := make([]string, 0, len(es))
	for _, e := range es {
		out = append(out, e.Name)
	}
	return out
}

func TestAdmit(t *testing.T) {
	assert.Equal(t, Decision{Render: false, RedirectTo: "/login"}, Admit(false))
	assert.Equal(t, Decision{Render: true}, Admit(true))
}

func TestAdmit_TracksSession(t *testing.T) {
	s := session.NewStore(session.Options{})
	assert.False(t, Admit(s.IsAuthenticated()).Render)

	usr := testutil.NewUser(1, "admin", user.RoleAdmin)
	s.Commit(usr, testutil.MakeToken(t, usr, time.Now().Add(time.Hour)), "refresh")
	assert.True(t, Admit(s.IsAuthenticated()).Render)

	s.Clear()
	assert.Equal(t, "/login", Admit(s.IsAuthenticated()).RedirectTo)
}

func TestMenu(t *testing.T) {
	all := []string{
		"Dashboard", "Students", "Teachers", "Classes", "Subjects",
		"Grades", "Attendance", "Documents", "Users", "Pending Approvals",
	}
	tests := []struct {
		role string
		want []string
	}{
		{role: user.RoleStudent, want: []string{"Dashboard", "Grades", "Attendance", "Documents"}},
		{role: user.RoleTeacher, want: []string{"Dashboard", "Students", "Classes", "Subjects", "Grades", "Attendance", "Documents"}},
		{role: user.RoleAdmin, want: all},
		{role: user.RoleSuperAdmin, want: all},
		{role: "PARENT", want: []string{"Dashboard", "Students", "Classes", "Subjects", "Grades", "Attendance", "Documents"}},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			assert.Equal(t, tt.want, names(Menu(roleCaps(tt.role))))
		})
	}

	t.Run("nil capabilities", func(t *testing.T) {
		assert.Equal(t, []string{"Dashboard", "Grades", "Attendance", "Documents"}, names(Menu(nil)))
	})

	t.Run("session store", func(t *testing.T) {
		s := session.NewStore(session.Options{})
		usr := testutil.NewUser(1, "student", user.RoleStudent)
		s.Commit(usr, "access", "refresh")
		assert.Equal(t, []string{"Dashboard", "Grades", "Attendance", "Documents"}, names(Menu(s)))
	})
}

func TestMenu_OrderIsPreserved(t *testing.T) {
	declared := names(Entries())
	for _, role := range append(user.AllRoles, "UNKNOWN") {
		menu := names(Menu(roleCaps(role)))
		i := 0
		for _, n := range declared {
			if i < len(menu) && menu[i] == n {
				i++
			}
		}
		assert.Equal(t, len(menu), i, "%s menu is a subsequence of the declared menu", role)
	}
}

func TestReachable(t *testing.T) {
	tests := []struct {
		name string
		role string
		path string
		want bool
	}{
		{name: "student dashboard", role: user.RoleStudent, path: "/dashboard", want: true},
		{name: "student users", role: user.RoleStudent, path: "/users", want: false},
		{name: "student students detail", role: user.RoleStudent, path: "/students/12", want: false},
		{name: "student profile", role: user.RoleStudent, path: "/profile", want: true},
		{name: "student attendance", role: user.RoleStudent, path: "/attendance/students?date=today", want: true},
		{name: "teacher pending", role: user.RoleTeacher, path: "/users/pending", want: false},
		{name: "teacher students", role: user.RoleTeacher, path: "/students/", want: true},
		{name: "admin pending", role: user.RoleAdmin, path: "/users/pending", want: true},
		{name: "admin teachers detail", role: user.RoleAdmin, path: "/teachers/3/edit", want: true},
		{name: "unknown role teachers", role: "PARENT", path: "/teachers", want: false},
		{name: "unknown role classes", role: "PARENT", path: "/classes", want: true},
		{name: "lookalike prefix", role: user.RoleStudent, path: "/usersettings", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Reachable(roleCaps(tt.role), tt.path))
		})
	}
}

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name string
		auth bool
		role string
		path string
		want Outcome
	}{
		{name: "login is public", path: "/login", want: Allow},
		{name: "register is public", path: "/register/", want: Allow},
		{name: "anonymous", path: "/students", want: RedirectToLogin},
		{name: "anonymous profile", path: "/profile", want: RedirectToLogin},
		{name: "student users", auth: true, role: user.RoleStudent, path: "/users", want: Forbidden},
		{name: "admin users", auth: true, role: user.RoleAdmin, path: "/users", want: Allow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Authorize(tt.auth, roleCaps(tt.role), tt.path)
			assert.Equal(t, tt.want, got, got.String())
		})
	}
}
