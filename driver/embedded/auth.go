package embedded

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"regexp"

	"github.com/autom8ter/provision/driver"
	"github.com/autom8ter/provision/errors"
	"github.com/autom8ter/provision/kv"
	"golang.org/x/crypto/bcrypt"
)

// Permission levels a user may hold on a database
const (
	GrantReadWrite = "rw"
	GrantReadOnly  = "ro"
	GrantNone      = "none"
)

var (
	namePattern         = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_\-]{0,255}$`)
	analyzerNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_\-]{0,253}$`)
)

func validName(kind, name string) error {
	if !namePattern.MatchString(name) {
		return errors.New(errors.Validation, "illegal %s name %q", kind, name)
	}
	return nil
}

func validGrant(grant string) error {
	switch grant {
	case GrantReadWrite, GrantReadOnly, GrantNone:
		return nil
	}
	return errors.New(errors.Validation, "invalid grant %q, expected one of rw, ro, none", grant)
}

func hashPassword(password string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, errors.Wrap(err, errors.Internal, "failed to hash password")
	}
	return hash, nil
}

// checkPassword compares against the stored hash, consulting the login cache first
func (s *Server) checkPassword(user userRecord, password string) bool {
	sum := sha256.Sum256([]byte(password))
	cacheKey := user.User + ":" + hex.EncodeToString(sum[:])
	if cached, ok := s.logins.Get(cacheKey); ok && cached.(string) == string(user.PasswordHash) {
		return true
	}
	if bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)) != nil {
		return false
	}
	s.logins.Set(cacheKey, string(user.PasswordHash), 1)
	return true
}

// authenticate verifies the credential. Unknown or inactive users fail Forbidden.
func (s *Server) authenticate(ctx context.Context, creds driver.Credentials) error {
	return s.kv.Tx(true, func(tx kv.Tx) error {
		var user userRecord
		exists, err := getJSON(ctx, tx, userKey(creds.Username), &user)
		if err != nil {
			return err
		}
		if !exists || !user.Active {
			return errors.New(errors.Forbidden, "forbidden")
		}
		if !s.checkPassword(user, creds.Password) {
			return errors.New(errors.WrongCredentials, "Wrong credentials")
		}
		return nil
	})
}

// authenticateRoot verifies the credential belongs to the administrator
func (s *Server) authenticateRoot(ctx context.Context, creds driver.Credentials) error {
	if err := s.authenticate(ctx, creds); err != nil {
		return err
	}
	if creds.Username != driver.RootUser {
		return errors.New(errors.Forbidden, "forbidden")
	}
	return nil
}

// grant returns the permission the user holds on the database
func (s *Server) grant(ctx context.Context, user, db string) (string, error) {
	var grant = GrantNone
	err := s.kv.Tx(true, func(tx kv.Tx) error {
		exists, err := getJSON(ctx, tx, databaseKey(db), &databaseRecord{})
		if err != nil {
			return err
		}
		if !exists {
			return errors.New(errors.NotFound, "database not found")
		}
		if user == driver.RootUser {
			grant = GrantReadWrite
			return nil
		}
		var u userRecord
		exists, err = getJSON(ctx, tx, userKey(user), &u)
		if err != nil {
			return err
		}
		if !exists || !u.Active {
			return nil
		}
		var g grantRecord
		exists, err = getJSON(ctx, tx, grantKey(user, db), &g)
		if err != nil {
			return err
		}
		if exists {
			grant = g.Grant
		}
		return nil
	})
	return grant, err
}
