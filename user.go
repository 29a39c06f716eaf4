package provision

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/autom8ter/provision/driver"
	"github.com/autom8ter/provision/errors"
	"github.com/samber/lo"
)

// Grant levels
const (
	GrantReadWrite = "rw"
	GrantReadOnly  = "ro"
	GrantNone      = "none"
)

// User is a server account
type User struct {
	User   string         `json:"user"`
	Active bool           `json:"active"`
	Extra  map[string]any `json:"extra,omitempty"`
}

type createUserBody struct {
	User   string `json:"user"`
	Passwd string `json:"passwd"`
	Active bool   `json:"active"`
}

type usersResponse struct {
	Result []User `json:"result"`
}

// ListUsers returns every account on the server
func ListUsers(ctx context.Context, admin driver.Client) ([]User, error) {
	var res usersResponse
	if err := admin.Route(ctx, http.MethodGet, "/_api/user", nil, &res); err != nil {
		return nil, errors.Wrap(err, errors.Unknown, "failed to list users")
	}
	return res.Result, nil
}

// CreateUser returns the named account, creating it when absent
func CreateUser(ctx context.Context, admin driver.Client, creds driver.Credentials) (User, error) {
	users, err := ListUsers(ctx, admin)
	if err != nil {
		return User{}, err
	}
	if existing, ok := lo.Find(users, func(u User) bool { return u.User == creds.Username }); ok {
		return existing, nil
	}
	var user User
	err = admin.Route(ctx, http.MethodPost, "/_api/user", createUserBody{
		User:   creds.Username,
		Passwd: creds.Password,
		Active: true,
	}, &user)
	if err != nil {
		return User{}, errors.Wrap(err, errors.Unknown, "failed to create user %q", creds.Username)
	}
	return user, nil
}

// DeleteUser removes an account and its grants
func DeleteUser(ctx context.Context, admin driver.Client, username string) error {
	err := admin.Route(ctx, http.MethodDelete, fmt.Sprintf("/_api/user/%s", url.PathEscape(username)), nil, nil)
	return errors.Wrap(err, errors.Unknown, "failed to delete user %q", username)
}

// GrantAccess sets a user's permission on a database and returns the server's permission map. grant defaults to rw.
func GrantAccess(ctx context.Context, admin driver.Client, username, database, grant string) (map[string]any, error) {
	if grant == "" {
		grant = GrantReadWrite
	}
	if !lo.Contains([]string{GrantReadWrite, GrantReadOnly, GrantNone}, grant) {
		return nil, errors.New(errors.Validation, "invalid grant %q", grant)
	}
	path := fmt.Sprintf("/_api/user/%s/database/%s", url.PathEscape(username), url.PathEscape(database))
	var res map[string]any
	if err := admin.Route(ctx, http.MethodPut, path, map[string]string{"grant": grant}, &res); err != nil {
		return nil, errors.Wrap(err, errors.Unknown, "failed to grant %q access to %q on %q", grant, username, database)
	}
	return res, nil
}
