package echoshell

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/core/auth"
	"github.com/trezcool/masomo-console/core/session"
	"github.com/trezcool/masomo-console/core/theme"
	"github.com/trezcool/masomo-console/core/user"
	apisvc "github.com/trezcool/masomo-console/services/api"
	"github.com/trezcool/masomo-console/services/metrics"
	"github.com/trezcool/masomo-console/storage/inmem"
	"github.com/trezcool/masomo-console/tests"
)

const (
	studentPwd = "Kivu-Lake-2024"
	adminPwd   = "Goma-Admin-77"
)

type testEnv struct {
	app      *Server
	api      *testutil.FakeAPI
	sessions *session.Store
	logger   *testutil.Logger
}

func setup(t *testing.T) *testEnv {
	api := testutil.NewFakeAPI(t)
	api.AddUser(testutil.NewUser(1, "pupil", user.RoleStudent), studentPwd)
	api.AddUser(testutil.NewUser(2, "boss", user.RoleAdmin), adminPwd)
	api.AddPending(testutil.NewUser(9, "newkid", user.RoleStudent))

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	logger := new(testutil.Logger)
	store := inmem.New()
	marker := NewMarker()

	sessions := session.NewStore(session.Options{Storage: store, Recorder: collector})
	themes := theme.NewStore(theme.Options{Storage: store, Marker: marker, Recorder: collector})
	client := apisvc.NewClient(apisvc.Options{BaseURL: api.URL, Tokens: sessions, Recorder: collector})

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	svc := auth.NewService(auth.Options{
		Store:      sessions,
		Backend:    client,
		Validate:   validate,
		Translator: translator,
		Logger:     logger,
	})
	app := NewServer(Options{
		TestMode:       true,
		DisableReqLogs: true,
		Auth:           svc,
		Themes:         themes,
		Marker:         marker,
		Gatherer:       reg,
		Logger:         logger,
	})
	return &testEnv{app: app, api: api, sessions: sessions, logger: logger}
}

type httpTest struct {
	name         string
	method       string
	path         string
	body         string
	form         url.Values
	wantCode     int
	wantLocation string
	wantBody     string // JSON
	wantContains []string
}

func (tt httpTest) check(t *testing.T, env *testEnv) *httptest.ResponseRecorder {
	var body io.Reader
	if tt.form != nil {
		body = strings.NewReader(tt.form.Encode())
	} else if tt.body != "" {
		body = strings.NewReader(tt.body)
	}
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	req := httptest.NewRequest(method, tt.path, body)
	switch {
	case tt.form != nil:
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	case tt.body != "":
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	env.app.ServeHTTP(rec, req)

	assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
	if tt.wantLocation != "" {
		assert.Equal(t, tt.wantLocation, rec.Header().Get(echo.HeaderLocation))
	}
	if tt.wantBody != "" {
		assert.JSONEq(t, tt.wantBody, rec.Body.String())
	}
	for _, s := range tt.wantContains {
		assert.Contains(t, rec.Body.String(), s)
	}
	return rec
}

func (env *testEnv) login(t *testing.T, uname, pwd string) {
	httpTest{
		method:       http.MethodPost,
		path:         "/login",
		form:         url.Values{"username": {uname}, "password": {pwd}},
		wantCode:     http.StatusSeeOther,
		wantLocation: "/dashboard",
	}.check(t, env)
}

func decodePage(t *testing.T, rec *httptest.ResponseRecorder) pageData {
	var data pageData
	if err := json.Unmarshal(rec.Body.Bytes(), &data); err != nil {
		t.Fatalf("decoding page: %v", err)
	}
	return data
}

func menuNames(data pageData) []string {
	names := make([]string, 0, len(data.Menu))
	for _, e := range data.Menu {
		names = append(names, e.Name)
	}
	return names
}

func TestServer_anonymous(t *testing.T) {
	env := setup(t)
	tests := []httpTest{
		{name: "home", path: "/", wantCode: http.StatusFound, wantLocation: "/dashboard"},
		{name: "dashboard", path: "/dashboard", wantCode: http.StatusFound, wantLocation: "/login"},
		{name: "students", path: "/students", wantCode: http.StatusFound, wantLocation: "/login"},
		{name: "student detail", path: "/students/4?tab=grades", wantCode: http.StatusFound, wantLocation: "/login"},
		{name: "profile", path: "/profile", wantCode: http.StatusFound, wantLocation: "/login"},
		{name: "login page", path: "/login", wantCode: http.StatusOK, wantBody: `{"page":"/login","user":null,"menu":[],"theme":"light"}`},
		{name: "register page", path: "/register", wantCode: http.StatusOK, wantContains: []string{`"page":"/register"`}},
		{name: "menu api", path: "/api/menu", wantCode: http.StatusFound, wantLocation: "/login"},
		{name: "approve", method: http.MethodPost, path: "/api/users/9/approve", wantCode: http.StatusUnauthorized, wantBody: `{"error":"user not authenticated"}`},
		{name: "unknown", path: "/nope", wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) { tt.check(t, env) })
	}
	assert.Empty(t, env.api.Requests(), "the gate answers without calling the API")
}

func TestServer_login(t *testing.T) {
	env := setup(t)
	tests := []httpTest{
		{
			name:     "missing password",
			method:   http.MethodPost,
			path:     "/login",
			form:     url.Values{"username": {"pupil"}},
			wantCode: http.StatusBadRequest,
			wantBody: `{"password":"this field is required"}`,
		},
		{
			name:     "bad credentials",
			method:   http.MethodPost,
			path:     "/login",
			body:     `{"username":"pupil","password":"nope"}`,
			wantCode: http.StatusUnauthorized,
			wantBody: `{"error":"No active account found with the given credentials"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, env)
			assert.False(t, env.sessions.IsAuthenticated())
		})
	}

	t.Run("success", func(t *testing.T) {
		env.login(t, "Pupil", studentPwd)
		assert.True(t, env.sessions.IsAuthenticated())
		httpTest{path: "/login", wantCode: http.StatusFound, wantLocation: "/dashboard"}.check(t, env)
	})
}

func TestServer_student(t *testing.T) {
	env := setup(t)
	env.login(t, "pupil", studentPwd)

	tests := []httpTest{
		{name: "dashboard", path: "/dashboard", wantCode: http.StatusOK},
		{name: "trailing slash", path: "/dashboard/", wantCode: http.StatusOK},
		{name: "grades detail", path: "/grades/12", wantCode: http.StatusOK, wantContains: []string{`"page":"/grades/12"`}},
		{name: "attendance", path: "/attendance/students", wantCode: http.StatusOK},
		{name: "profile", path: "/profile", wantCode: http.StatusOK},
		{name: "settings", path: "/settings", wantCode: http.StatusOK},
		{name: "users", path: "/users", wantCode: http.StatusForbidden, wantBody: `{"error":"permission denied"}`},
		{name: "pending", path: "/users/pending", wantCode: http.StatusForbidden},
		{name: "students", path: "/students", wantCode: http.StatusForbidden},
		{name: "student detail", path: "/students/4", wantCode: http.StatusForbidden},
		{name: "teachers", path: "/teachers", wantCode: http.StatusForbidden},
		{name: "pending api", path: "/api/users/pending", wantCode: http.StatusForbidden},
		{name: "approve api", method: http.MethodPost, path: "/api/users/9/approve", wantCode: http.StatusForbidden},
		{name: "refresh", method: http.MethodPost, path: "/api/refresh", wantCode: http.StatusOK, wantBody: `{"message":"session refreshed"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) { tt.check(t, env) })
	}

	t.Run("page", func(t *testing.T) {
		rec := httpTest{path: "/dashboard", wantCode: http.StatusOK}.check(t, env)
		data := decodePage(t, rec)
		assert.Equal(t, "/dashboard", data.Page)
		if assert.NotNil(t, data.User) {
			assert.Equal(t, "pupil", data.User.Username)
		}
		assert.Equal(t, []string{"Dashboard", "Grades", "Attendance", "Documents"}, menuNames(data))
		assert.Equal(t, theme.Light, data.Theme)
	})

	for _, req := range env.api.Requests() {
		assert.NotContains(t, req, "/api/auth/users/", "forbidden actions never reach the API")
	}
}

func TestServer_admin(t *testing.T) {
	env := setup(t)
	env.login(t, "boss", adminPwd)

	tests := []httpTest{
		{name: "users", path: "/users", wantCode: http.StatusOK},
		{name: "teachers", path: "/teachers", wantCode: http.StatusOK},
		{name: "list", path: "/api/users?role=ADMIN", wantCode: http.StatusOK, wantContains: []string{`"count":1`, `"boss"`}},
		{name: "pending", path: "/api/users/pending", wantCode: http.StatusOK, wantContains: []string{`"newkid"`}},
		{name: "bad id", method: http.MethodPost, path: "/api/users/abc/approve", wantCode: http.StatusBadRequest, wantBody: `{"id":"a user id is required"}`},
		{name: "toggle", method: http.MethodPost, path: "/api/users/9/toggle-active", wantCode: http.StatusOK, wantContains: []string{"User status updated"}},
		{name: "reject", method: http.MethodPost, path: "/api/users/9/reject", body: `{"reason":"  duplicate "}`, wantCode: http.StatusOK, wantContains: []string{"User rejected", `"rejection_reason":"duplicate"`}},
		{name: "gone", method: http.MethodPost, path: "/api/users/9/approve", wantCode: http.StatusNotFound, wantBody: `{"error":"Not found."}`},
		{name: "empty", path: "/api/users/pending", wantCode: http.StatusOK, wantBody: `[]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) { tt.check(t, env) })
	}

	t.Run("menu", func(t *testing.T) {
		rec := httpTest{path: "/users/pending", wantCode: http.StatusOK}.check(t, env)
		assert.Equal(t,
			[]string{"Dashboard", "Students", "Teachers", "Classes", "Subjects", "Grades", "Attendance", "Documents", "Users", "Pending Approvals"},
			menuNames(decodePage(t, rec)),
		)
	})
}

func TestServer_profile(t *testing.T) {
	env := setup(t)
	env.login(t, "pupil", studentPwd)

	tests := []httpTest{
		{name: "invalid email", method: http.MethodPut, path: "/api/profile", body: `{"email":"nope"}`, wantCode: http.StatusBadRequest, wantContains: []string{`"email"`}},
		{name: "rename", method: http.MethodPut, path: "/api/profile", body: `{"name":" Amani "}`, wantCode: http.StatusOK, wantContains: []string{`"name":"Amani"`}},
		{
			name:     "wrong password",
			method:   http.MethodPost,
			path:     "/api/password",
			body:     `{"old_password":"nope","new_password":"Tanganyika-9","new_password_confirm":"Tanganyika-9"}`,
			wantCode: http.StatusBadRequest,
			wantBody: `{"old_password":"Old password is incorrect"}`,
		},
		{
			name:     "password changed",
			method:   http.MethodPost,
			path:     "/api/password",
			body:     `{"old_password":"` + studentPwd + `","new_password":"Tanganyika-9","new_password_confirm":"Tanganyika-9"}`,
			wantCode: http.StatusOK,
			wantBody: `{"message":"Password changed successfully"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) { tt.check(t, env) })
	}
	usr, _ := env.sessions.User()
	assert.Equal(t, "Amani", usr.Name)
}

func TestServer_register(t *testing.T) {
	env := setup(t)
	tests := []httpTest{
		{
			name:     "weak password",
			method:   http.MethodPost,
			path:     "/register",
			body:     `{"username":"kid","name":"Kid","gender":"female","password":"12345678","password_confirm":"12345678"}`,
			wantCode: http.StatusBadRequest,
			wantBody: `{"password":"password cannot be entirely numeric"}`,
		},
		{
			name:         "success",
			method:       http.MethodPost,
			path:         "/register",
			body:         `{"username":"kid","name":"Kid","gender":"female","password":"` + studentPwd + `","password_confirm":"` + studentPwd + `"}`,
			wantCode:     http.StatusCreated,
			wantContains: []string{"wait for admin approval"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) { tt.check(t, env) })
	}
	assert.False(t, env.sessions.IsAuthenticated())
}

func TestServer_theme(t *testing.T) {
	env := setup(t)
	tests := []httpTest{
		{name: "toggle", method: http.MethodPost, path: "/api/theme/toggle", wantCode: http.StatusOK, wantBody: `{"theme":"dark"}`},
		{name: "unknown", method: http.MethodPut, path: "/api/theme", body: `{"theme":"sepia"}`, wantCode: http.StatusBadRequest, wantBody: `{"theme":"must be light or dark"}`},
		{name: "set light", method: http.MethodPut, path: "/api/theme", body: `{"theme":"light"}`, wantCode: http.StatusOK, wantBody: `{"theme":"light"}`},
		{name: "set dark", method: http.MethodPut, path: "/api/theme", form: url.Values{"theme": {"dark"}}, wantCode: http.StatusOK, wantBody: `{"theme":"dark"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tt.check(t, env)
			var got string
			for _, c := range rec.Result().Cookies() {
				if c.Name == themeCookieName {
					got = c.Value
				}
			}
			assert.Equal(t, string(env.app.opts.Themes.Mode()), got, "the cookie follows the theme")
		})
	}

	t.Run("pages carry the theme", func(t *testing.T) {
		rec := httpTest{path: "/login", wantCode: http.StatusOK}.check(t, env)
		assert.Equal(t, theme.Dark, decodePage(t, rec).Theme)
	})
}

func TestServer_logout(t *testing.T) {
	env := setup(t)
	env.login(t, "pupil", studentPwd)

	httpTest{method: http.MethodPost, path: "/logout", wantCode: http.StatusSeeOther, wantLocation: "/login"}.check(t, env)
	assert.False(t, env.sessions.IsAuthenticated())
	httpTest{path: "/dashboard", wantCode: http.StatusFound, wantLocation: "/login"}.check(t, env)
}

func TestServer_expiredSession(t *testing.T) {
	env := setup(t)
	env.login(t, "boss", adminPwd)
	env.api.Expire()

	httpTest{
		path:     "/api/users/pending",
		wantCode: http.StatusUnauthorized,
		wantBody: `{"error":"session expired, please log in again"}`,
	}.check(t, env)
	assert.False(t, env.sessions.IsAuthenticated())
	httpTest{path: "/users/pending", wantCode: http.StatusFound, wantLocation: "/login"}.check(t, env)
}

func TestServer_metrics(t *testing.T) {
	env := setup(t)
	env.login(t, "pupil", studentPwd)
	httpTest{method: http.MethodPost, path: "/api/theme/toggle", wantCode: http.StatusOK}.check(t, env)

	httpTest{
		path:     "/metrics",
		wantCode: http.StatusOK,
		wantContains: []string{
			`masomo_console_session_transitions_total{transition="commit"} 1`,
			`masomo_console_theme_changes_total{mode="dark"} 1`,
			`masomo_console_api_responses_total{status_code="200"} 1`,
		},
	}.check(t, env)
}

func TestServer_serverError(t *testing.T) {
	env := setup(t)
	env.login(t, "boss", adminPwd)
	env.api.Close()

	httpTest{path: "/api/users/pending", wantCode: http.StatusInternalServerError, wantBody: `{"error":"Internal Server Error"}`}.check(t, env)
	assert.Equal(t, 1, env.logger.Count("ERROR"))
	assert.True(t, env.sessions.IsAuthenticated(), "a transport error does not end the session")
}
