package arango

import (
	"fmt"
	"net"
	"testing"

	"github.com/arangodb/go-driver"
	"github.com/autom8ter/provision/errors"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	t.Run("dns failure", func(t *testing.T) {
		err := fmt.Errorf("dial: %w", &net.DNSError{Err: "no such host", Name: "nowhere", IsNotFound: true})
		assert.Equal(t, errors.Unreachable, classify(err))
	})
	t.Run("duplicate name", func(t *testing.T) {
		assert.Equal(t, errors.Duplicate, classify(driver.ArangoError{HasError: true, Code: 409, ErrorNum: 1207, ErrorMessage: "duplicate name"}))
	})
	t.Run("database not found", func(t *testing.T) {
		assert.Equal(t, errors.Forbidden, classify(driver.ArangoError{HasError: true, Code: 404, ErrorNum: 1228, ErrorMessage: "database not found"}))
	})
	t.Run("write concern", func(t *testing.T) {
		assert.Equal(t, errors.BadWriteConcern, classify(driver.ArangoError{HasError: true, Code: 400, ErrorNum: 10, ErrorMessage: "bad value for writeConcern"}))
	})
	t.Run("not authorized", func(t *testing.T) {
		assert.Equal(t, errors.NotAuthorized, classify(driver.ArangoError{HasError: true, Code: 401, ErrorMessage: "not authorized to execute this request"}))
	})
	t.Run("unknown", func(t *testing.T) {
		assert.Equal(t, errors.Unknown, classify(fmt.Errorf("boom")))
		assert.Equal(t, errors.Unknown, classify(nil))
	})
	t.Run("overrides", func(t *testing.T) {
		err := wrap(driver.ArangoError{HasError: true, Code: 403, ErrorNum: 11, ErrorMessage: "forbidden"}, createCollectionOverrides, "create collection %s", "places")
		assert.True(t, errors.Is(err, errors.CannotCreate))
		assert.Contains(t, err.Error(), "create collection places")
		assert.Nil(t, wrap(nil, createCollectionOverrides, ""))
	})
}
