package safe_test

import (
	"fmt"
	"testing"

	"github.com/autom8ter/provision/internal/safe"
	"github.com/spf13/cast"
	"github.com/stretchr/testify/assert"
)

func Test(t *testing.T) {
	m := safe.NewMap[map[string]any](nil)
	assert.False(t, m.Exists("1"))
	for i := 0; i < 10; i++ {
		m.Set(fmt.Sprint(i), map[string]any{
			"value": i,
		})
	}
	for i := 0; i < 10; i++ {
		entry, ok := m.Load(fmt.Sprint(i))
		assert.True(t, ok)
		assert.Equal(t, entry["value"], i)
	}
	m.Range(func(key string, entry map[string]any) bool {
		assert.Equal(t, entry["value"], cast.ToInt(key))
		return true
	})
	assert.Equal(t, []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9"}, m.Keys())
	for i := 0; i < 10; i++ {
		m.Del(fmt.Sprint(i))
	}
	for i := 0; i < 10; i++ {
		assert.False(t, m.Exists(fmt.Sprint(i)))
	}
	assert.True(t, m.SetIfAbsent("host", map[string]any{"message": "hello world"}))
	assert.False(t, m.SetIfAbsent("host", map[string]any{"message": "goodbye"}))
	entry, _ := m.Load("host")
	assert.Equal(t, "hello world", entry["message"])
}
