package arango_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/autom8ter/provision/driver"
	"github.com/gorilla/mux"
)

// fakeServer answers the subset of the ArangoDB http api the adapter uses
type fakeServer struct {
	*httptest.Server
	mu           sync.Mutex
	rootPassword string
	// checkCredentialsFirst rejects unknown users before looking the database up
	checkCredentialsFirst bool
	databases             map[string]bool
	passwords             map[string]string
	grants                map[string]map[string]string
	requests              []string
}

func newFakeServer(t *testing.T) *fakeServer {
	f := &fakeServer{
		rootPassword: "secret",
		databases:    map[string]bool{driver.SystemDatabase: true},
		passwords:    map[string]string{driver.RootUser: "secret"},
		grants:       map[string]map[string]string{},
	}
	r := mux.NewRouter()
	r.HandleFunc("/_db/{db}/_open/auth", f.auth).Methods(http.MethodPost)
	r.HandleFunc("/_db/{db}/_api/database/current", f.current).Methods(http.MethodGet)
	r.HandleFunc("/_db/_system/_api/database", f.createDatabase).Methods(http.MethodPost)
	r.HandleFunc("/_api/user", f.listUsers).Methods(http.MethodGet)
	r.HandleFunc("/_api/user", f.createUser).Methods(http.MethodPost)
	r.HandleFunc("/_api/user/{user}/database/{db}", f.grant).Methods(http.MethodPut)
	r.HandleFunc("/_db/{db}/_api/collection/{name}", f.collection).Methods(http.MethodGet)
	r.HandleFunc("/_db/{db}/_api/import", f.importDocuments).Methods(http.MethodPost)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			f.mu.Lock()
			f.requests = append(f.requests, fmt.Sprintf("%s %s", req.Method, req.URL.Path))
			f.mu.Unlock()
			next.ServeHTTP(w, req)
		})
	})
	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeServer) addUser(username, password string, grants map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.passwords[username] = password
	f.grants[username] = grants
}

func (f *fakeServer) hasDatabase(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.databases[name]
}

func (f *fakeServer) grantOf(username, db string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.grants[username][db]
}

func (f *fakeServer) requested(method, path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := fmt.Sprintf("%s %s", method, path)
	for _, r := range f.requests {
		if r == want {
			return true
		}
	}
	return false
}

func reply(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func replyError(w http.ResponseWriter, status, errorNum int, msg string) {
	reply(w, status, map[string]any{
		"error":        true,
		"code":         status,
		"errorNum":     errorNum,
		"errorMessage": msg,
	})
}

func (f *fakeServer) validLogin(username, password string) bool {
	pw, ok := f.passwords[username]
	return ok && pw == password
}

func (f *fakeServer) auth(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.mu.Lock()
	defer f.mu.Unlock()
	valid := f.validLogin(body.Username, body.Password)
	if f.checkCredentialsFirst && !valid {
		replyError(w, http.StatusUnauthorized, 401, "Wrong credentials")
		return
	}
	if !f.databases[mux.Vars(r)["db"]] {
		replyError(w, http.StatusNotFound, 1228, "database not found")
		return
	}
	if !valid {
		replyError(w, http.StatusUnauthorized, 401, "Wrong credentials")
		return
	}
	reply(w, http.StatusOK, map[string]string{"jwt": "token"})
}

func (f *fakeServer) current(w http.ResponseWriter, r *http.Request) {
	db := mux.Vars(r)["db"]
	username, password, _ := r.BasicAuth()
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.databases[db] {
		replyError(w, http.StatusNotFound, 1228, "database not found")
		return
	}
	if !f.validLogin(username, password) {
		replyError(w, http.StatusUnauthorized, 401, "not authorized")
		return
	}
	if username != driver.RootUser {
		if g := f.grants[username][db]; g != "rw" && g != "ro" {
			replyError(w, http.StatusUnauthorized, 11, "not authorized to execute this request")
			return
		}
	}
	reply(w, http.StatusOK, map[string]any{"result": map[string]any{"name": db, "id": "1", "isSystem": db == driver.SystemDatabase}})
}

func (f *fakeServer) createDatabase(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name  string `json:"name"`
		Users []struct {
			User   string `json:"user"`
			Passwd string `json:"passwd"`
		} `json:"users"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.databases[body.Name] {
		replyError(w, http.StatusConflict, 1207, "duplicate database name")
		return
	}
	f.databases[body.Name] = true
	for _, u := range body.Users {
		if _, ok := f.passwords[u.User]; !ok {
			f.passwords[u.User] = u.Passwd
		}
		if f.grants[u.User] == nil {
			f.grants[u.User] = map[string]string{}
		}
		f.grants[u.User][body.Name] = "rw"
	}
	reply(w, http.StatusCreated, map[string]any{"result": true})
}

func (f *fakeServer) listUsers(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var users []map[string]any
	for name := range f.passwords {
		users = append(users, map[string]any{"user": name, "active": true})
	}
	reply(w, http.StatusOK, map[string]any{"result": users})
}

func (f *fakeServer) createUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		User   string `json:"user"`
		Passwd string `json:"passwd"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.passwords[body.User]; ok {
		replyError(w, http.StatusConflict, 1702, "duplicate user")
		return
	}
	f.passwords[body.User] = body.Passwd
	f.grants[body.User] = map[string]string{}
	reply(w, http.StatusCreated, map[string]any{"user": body.User, "active": true})
}

func (f *fakeServer) grant(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var body struct {
		Grant string `json:"grant"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.passwords[vars["user"]]; !ok {
		replyError(w, http.StatusNotFound, 1703, "user not found")
		return
	}
	if f.grants[vars["user"]] == nil {
		f.grants[vars["user"]] = map[string]string{}
	}
	f.grants[vars["user"]][vars["db"]] = body.Grant
	reply(w, http.StatusOK, map[string]any{vars["db"]: body.Grant})
}

func (f *fakeServer) collection(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	reply(w, http.StatusOK, map[string]any{"name": vars["name"], "id": "2", "type": 2, "status": 3})
}

func (f *fakeServer) importDocuments(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("details") != "true" {
		reply(w, http.StatusCreated, map[string]any{"created": 1, "errors": 1})
		return
	}
	reply(w, http.StatusCreated, map[string]any{
		"created": 1,
		"errors":  1,
		"details": []string{"at position 1: creating document failed: unique constraint violated"},
	})
}
