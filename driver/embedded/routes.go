package embedded

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/autom8ter/provision/driver"
	"github.com/autom8ter/provision/errors"
	"github.com/autom8ter/provision/kv"
	"github.com/gorilla/mux"
)

type userBody struct {
	User   string         `json:"user"`
	Passwd string         `json:"passwd,omitempty"`
	Active *bool          `json:"active,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

type userResponse struct {
	User   string         `json:"user"`
	Active bool           `json:"active"`
	Extra  map[string]any `json:"extra"`
}

type errorResponse struct {
	Error        bool   `json:"error"`
	Code         int    `json:"code"`
	ErrorMessage string `json:"errorMessage"`
}

var statusForKind = map[errors.Kind]int{
	errors.Validation:       http.StatusBadRequest,
	errors.WrongCredentials: http.StatusUnauthorized,
	errors.NotAuthorized:    http.StatusUnauthorized,
	errors.Forbidden:        http.StatusForbidden,
	errors.NotFound:         http.StatusNotFound,
	errors.Duplicate:        http.StatusConflict,
}

func kindForStatus(status int) errors.Kind {
	switch status {
	case http.StatusBadRequest:
		return errors.Validation
	case http.StatusUnauthorized:
		return errors.NotAuthorized
	case http.StatusForbidden:
		return errors.Forbidden
	case http.StatusNotFound:
		return errors.NotFound
	case http.StatusConflict:
		return errors.Duplicate
	}
	return errors.Internal
}

// routes registers the user management api
// GET/POST "/_api/user"
// DELETE "/_api/user/{user}"
// GET "/_api/user/{user}/database"
// PUT "/_api/user/{user}/database/{db}" ({"grant": "rw|ro|none"} in request body)
func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/_api/user", s.listUsers).Methods(http.MethodGet)
	router.HandleFunc("/_api/user", s.createUser).Methods(http.MethodPost)
	router.HandleFunc("/_api/user/{user}", s.deleteUser).Methods(http.MethodDelete)
	router.HandleFunc("/_api/user/{user}/database", s.listGrants).Methods(http.MethodGet)
	router.HandleFunc("/_api/user/{user}/database/{db}", s.setGrant).Methods(http.MethodPut)
	return router
}

// serve dispatches a request to the router in process and decodes the response into result
func (s *Server) serve(ctx context.Context, method, path string, body any, result any) error {
	var reader = &bytes.Buffer{}
	if body != nil {
		if err := json.NewEncoder(reader).Encode(body); err != nil {
			return errors.Wrap(err, errors.Validation, "failed to encode request body")
		}
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	req, err := http.NewRequestWithContext(ctx, method, path, reader)
	if err != nil {
		return errors.Wrap(err, errors.Validation, "")
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code >= http.StatusBadRequest {
		var e errorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil || e.ErrorMessage == "" {
			e.ErrorMessage = http.StatusText(rec.Code)
		}
		return errors.New(kindForStatus(rec.Code), "%s", e.ErrorMessage)
	}
	if result == nil {
		return nil
	}
	return errors.Wrap(json.Unmarshal(rec.Body.Bytes(), result), errors.Internal, "failed to decode response")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, ok := statusForKind[errors.KindOf(err)]
	if !ok {
		status = http.StatusInternalServerError
	}
	s.logger.Error(r.Context(), "request failed", err, map[string]any{
		"request.method": r.Method,
		"request.path":   r.URL.Path,
		"request.vars":   mux.Vars(r),
	})
	writeJSON(w, status, errorResponse{
		Error:        true,
		Code:         status,
		ErrorMessage: errors.Extract(err).Error(),
	})
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	var users []userResponse
	if err := s.kv.Tx(true, func(tx kv.Tx) error {
		return scan(tx, usersPrefix(), func(key, value []byte) error {
			var u userRecord
			if err := json.Unmarshal(value, &u); err != nil {
				return errors.Wrap(err, errors.Internal, "corrupt user record")
			}
			users = append(users, userResponse{User: u.User, Active: u.Active, Extra: u.Extra})
			return nil
		})
	}); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"error":  false,
		"code":   http.StatusOK,
		"result": users,
	})
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var body userBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, r, errors.Wrap(err, errors.Validation, "invalid user body"))
		return
	}
	if body.User == "" {
		s.writeError(w, r, errors.New(errors.Validation, "user name missing"))
		return
	}
	hash, err := hashPassword(body.Passwd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	record := userRecord{
		User:         body.User,
		PasswordHash: hash,
		Active:       body.Active == nil || *body.Active,
		Extra:        body.Extra,
	}
	if err := s.kv.Tx(false, func(tx kv.Tx) error {
		exists, err := getJSON(r.Context(), tx, userKey(body.User), &userRecord{})
		if err != nil {
			return err
		}
		if exists {
			return errors.New(errors.Duplicate, "duplicate user")
		}
		return setJSON(r.Context(), tx, userKey(body.User), record)
	}); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Debug(r.Context(), "created user", map[string]any{"user": body.User})
	writeJSON(w, http.StatusCreated, userResponse{User: record.User, Active: record.Active, Extra: record.Extra})
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]
	if err := s.kv.Tx(false, func(tx kv.Tx) error {
		if user == driver.RootUser {
			return errors.New(errors.Forbidden, "cannot delete root")
		}
		exists, err := getJSON(r.Context(), tx, userKey(user), &userRecord{})
		if err != nil {
			return err
		}
		if !exists {
			return errors.New(errors.NotFound, "user not found")
		}
		var grants [][]byte
		if err := scan(tx, grantsPrefix(user), func(key, value []byte) error {
			grants = append(grants, key)
			return nil
		}); err != nil {
			return err
		}
		for _, key := range grants {
			if err := tx.Delete(r.Context(), key); err != nil {
				return errors.Wrap(err, errors.Internal, "")
			}
		}
		return tx.Delete(r.Context(), userKey(user))
	}); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Debug(r.Context(), "deleted user", map[string]any{"user": user})
	writeJSON(w, http.StatusAccepted, map[string]any{
		"error": false,
		"code":  http.StatusAccepted,
	})
}

func (s *Server) listGrants(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]
	grants := map[string]string{}
	if err := s.kv.Tx(true, func(tx kv.Tx) error {
		exists, err := getJSON(r.Context(), tx, userKey(user), &userRecord{})
		if err != nil {
			return err
		}
		if !exists {
			return errors.New(errors.NotFound, "user not found")
		}
		return scan(tx, grantsPrefix(user), func(key, value []byte) error {
			var g grantRecord
			if err := json.Unmarshal(value, &g); err != nil {
				return errors.Wrap(err, errors.Internal, "corrupt grant record")
			}
			grants[strings.TrimPrefix(string(key), string(grantsPrefix(user)))] = g.Grant
			return nil
		})
	}); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"error":  false,
		"code":   http.StatusOK,
		"result": grants,
	})
}

func (s *Server) setGrant(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var body grantRecord
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, r, errors.Wrap(err, errors.Validation, "invalid grant body"))
		return
	}
	if err := validGrant(body.Grant); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.kv.Tx(false, func(tx kv.Tx) error {
		exists, err := getJSON(r.Context(), tx, userKey(vars["user"]), &userRecord{})
		if err != nil {
			return err
		}
		if !exists {
			return errors.New(errors.NotFound, "user not found")
		}
		exists, err = getJSON(r.Context(), tx, databaseKey(vars["db"]), &databaseRecord{})
		if err != nil {
			return err
		}
		if !exists {
			return errors.New(errors.NotFound, "database not found")
		}
		return setJSON(r.Context(), tx, grantKey(vars["user"], vars["db"]), body)
	}); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Debug(r.Context(), "granted access", map[string]any{
		"user":     vars["user"],
		"database": vars["db"],
		"grant":    body.Grant,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		vars["db"]: body.Grant,
		"error":    false,
		"code":     http.StatusOK,
	})
}
