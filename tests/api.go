package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/trezcool/masomo-console/core/user"
)

// FakeAPI is an in-process stand-in for the school API, answering the endpoints the console uses.
// Tokens are opaque strings; access tokens are accepted until rotated or logged out.
type FakeAPI struct {
	*httptest.Server

	mu        sync.Mutex
	accounts  map[string]fakeAccount // by username
	access    map[string]string      // access token -> username
	refresh   map[string]string      // refresh token -> username
	pending   map[int]user.User
	requests  []string
	seq       int
	ExpireAll bool // when set, every bearer and refresh token is refused
}

type fakeAccount struct {
	password string
	usr      user.User
}

func NewFakeAPI(t *testing.T) *FakeAPI {
	api := &FakeAPI{
		accounts: make(map[string]fakeAccount),
		access:   make(map[string]string),
		refresh:  make(map[string]string),
		pending:  make(map[int]user.User),
	}
	api.Server = httptest.NewServer(http.HandlerFunc(api.serve))
	t.Cleanup(api.Close)
	return api
}

// AddUser registers an account that can log in.
func (api *FakeAPI) AddUser(usr user.User, password string) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.accounts[usr.Username] = fakeAccount{password: password, usr: usr}
}

// AddPending registers a student awaiting approval.
func (api *FakeAPI) AddPending(usr user.User) {
	api.mu.Lock()
	defer api.mu.Unlock()
	usr.IsApproved = false
	usr.ApprovalStatus = user.ApprovalPending
	api.pending[usr.ID] = usr
}

// Requests returns "METHOD /path" of every request received so far.
func (api *FakeAPI) Requests() []string {
	api.mu.Lock()
	defer api.mu.Unlock()
	out := make([]string, len(api.requests))
	copy(out, api.requests)
	return out
}

// Expire refuses every token from now on.
func (api *FakeAPI) Expire() {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.ExpireAll = true
}

func (api *FakeAPI) issue(uname string) (string, string) {
	api.seq++
	access := fmt.Sprintf("access-%s-%d", uname, api.seq)
	refresh := fmt.Sprintf("refresh-%s-%d", uname, api.seq)
	api.access[access] = uname
	api.refresh[refresh] = uname
	return access, refresh
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func detail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

func (api *FakeAPI) bearer(r *http.Request) (fakeAccount, bool) {
	if api.ExpireAll {
		return fakeAccount{}, false
	}
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	uname, ok := api.access[token]
	if !ok {
		return fakeAccount{}, false
	}
	acc, ok := api.accounts[uname]
	return acc, ok
}

func (api *FakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.requests = append(api.requests, r.Method+" "+r.URL.Path)

	var body map[string]interface{}
	_ = json.NewDecoder(r.Body).Decode(&body)
	str := func(k string) string { s, _ := body[k].(string); return s }

	path := r.URL.Path
	switch {
	case path == "/api/auth/auth/login/":
		acc, ok := api.accounts[strings.ToLower(str("username"))]
		if !ok || acc.password != str("password") {
			detail(w, http.StatusUnauthorized, "No active account found with the given credentials")
			return
		}
		access, refresh := api.issue(acc.usr.Username)
		writeJSON(w, http.StatusOK, map[string]interface{}{"access": access, "refresh": refresh, "user": acc.usr})
		return

	case path == "/api/auth/auth/register/student/":
		uname := str("username")
		if _, exists := api.accounts[uname]; exists {
			writeJSON(w, http.StatusBadRequest, map[string][]string{"username": {"A user with that username already exists."}})
			return
		}
		api.seq++
		usr := user.User{ID: 1000 + api.seq, Username: uname, Name: str("name"), Gender: str("gender"), Role: user.RoleStudent, ApprovalStatus: user.ApprovalPending}
		api.pending[usr.ID] = usr
		writeJSON(w, http.StatusCreated, map[string]interface{}{"message": "Registration successful. Please wait for admin approval.", "user": usr})
		return

	case path == "/api/auth/token/refresh/":
		uname, ok := api.refresh[str("refresh")]
		if !ok || api.ExpireAll {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token is invalid or expired", "code": "token_not_valid"})
			return
		}
		delete(api.refresh, str("refresh"))
		access, refresh := api.issue(uname)
		writeJSON(w, http.StatusOK, map[string]string{"access": access, "refresh": refresh})
		return

	case path == "/api/auth/auth/logout/":
		delete(api.refresh, str("refresh"))
		w.WriteHeader(http.StatusOK)
		return
	}

	acc, ok := api.bearer(r)
	if !ok {
		detail(w, http.StatusUnauthorized, "Given token not valid for any token type")
		return
	}
	isAdmin := user.IsAdminRole(acc.usr.Role)

	switch {
	case path == "/api/auth/auth/me/":
		writeJSON(w, http.StatusOK, acc.usr)

	case path == "/api/auth/auth/update_profile/":
		if name := str("name"); name != "" {
			acc.usr.Name = name
		}
		if email := str("email"); email != "" {
			acc.usr.Email = email
		}
		api.accounts[acc.usr.Username] = acc
		writeJSON(w, http.StatusOK, acc.usr)

	case path == "/api/auth/auth/change_password/":
		if str("old_password") != acc.password {
			writeJSON(w, http.StatusBadRequest, map[string][]string{"old_password": {"Old password is incorrect"}})
			return
		}
		acc.password = str("new_password")
		api.accounts[acc.usr.Username] = acc
		writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully"})

	case !isAdmin:
		detail(w, http.StatusForbidden, "You do not have permission to perform this action.")

	case path == "/api/auth/users/":
		var results []user.User
		role := r.URL.Query().Get("role")
		for _, a := range api.accounts {
			if role == "" || a.usr.Role == role {
				results = append(results, a.usr)
			}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"count": len(results), "total_pages": 1, "current_page": 1, "results": results})

	case path == "/api/auth/users/pending-students/":
		ids := make([]int, 0, len(api.pending))
		for id := range api.pending {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		results := make([]user.User, 0, len(ids))
		for _, id := range ids {
			results = append(results, api.pending[id])
		}
		writeJSON(w, http.StatusOK, results)

	case strings.HasSuffix(path, "/approve-reject/"), strings.HasSuffix(path, "/toggle-active/"):
		parts := strings.Split(strings.Trim(path, "/"), "/")
		id, _ := strconv.Atoi(parts[len(parts)-2])
		usr, ok := api.pending[id]
		if !ok {
			detail(w, http.StatusNotFound, "Not found.")
			return
		}
		msg := "User status updated"
		switch {
		case strings.HasSuffix(path, "/toggle-active/"):
			usr.IsActive = !usr.IsActive
			api.pending[id] = usr
		case str("action") == "approve":
			usr.IsApproved, usr.ApprovalStatus = true, user.ApprovalApproved
			delete(api.pending, id)
			msg = "User approved successfully"
		case str("action") == "reject":
			usr.ApprovalStatus, usr.RejectionReason = user.ApprovalRejected, str("rejection_reason")
			delete(api.pending, id)
			msg = "User rejected"
		default:
			writeJSON(w, http.StatusBadRequest, map[string][]string{"action": {"Invalid action"}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"message": msg, "user": usr})

	default:
		detail(w, http.StatusNotFound, "Not found.")
	}
}
