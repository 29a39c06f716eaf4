package arango

import (
	stderrors "errors"
	"net"
	"strings"

	"github.com/arangodb/go-driver"
	"github.com/autom8ter/provision/errors"
)

// ArangoDB error numbers the adapter classifies
const (
	errorNumForbidden          = 11
	errorNumBadParameter       = 10
	errorNumDocumentNotFound   = 1202
	errorNumDataSourceNotFound = 1203
	errorNumDuplicateName      = 1207
	errorNumDatabaseNotFound   = 1228
	errorNumIllegalName        = 1208
	errorNumUniqueConstraint   = 1210
	errorNumUserNotFound       = 1703
	errorNumUserDuplicate      = 1702
)

// classify maps a go-driver error onto an error kind
func classify(err error) errors.Kind {
	if err == nil {
		return errors.Unknown
	}
	var dnsErr *net.DNSError
	var opErr *net.OpError
	if stderrors.As(err, &dnsErr) || stderrors.As(err, &opErr) {
		return errors.Unreachable
	}
	ae, ok := driver.AsArangoError(err)
	if !ok {
		return errors.Unknown
	}
	switch ae.ErrorNum {
	case errorNumDuplicateName, errorNumUniqueConstraint, errorNumUserDuplicate:
		return errors.Duplicate
	case errorNumDatabaseNotFound:
		return errors.Forbidden
	case errorNumDocumentNotFound, errorNumDataSourceNotFound, errorNumUserNotFound:
		return errors.NotFound
	case errorNumIllegalName:
		return errors.Validation
	case errorNumBadParameter:
		if strings.Contains(strings.ToLower(ae.ErrorMessage), "writeconcern") {
			return errors.BadWriteConcern
		}
		return errors.Validation
	case errorNumForbidden:
		return errors.Forbidden
	}
	switch ae.Code {
	case 400:
		return errors.Validation
	case 401:
		return errors.NotAuthorized
	case 403:
		return errors.Forbidden
	case 404:
		return errors.NotFound
	case 409:
		return errors.Duplicate
	}
	return errors.Internal
}

// wrap classifies err, remapping kinds through overrides
func wrap(err error, overrides map[errors.Kind]errors.Kind, msg string, args ...any) error {
	if err == nil {
		return nil
	}
	kind := classify(err)
	if o, ok := overrides[kind]; ok {
		kind = o
	}
	return errors.Wrap(err, kind, msg, args...)
}
