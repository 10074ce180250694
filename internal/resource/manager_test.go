package resource

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestResourceManager_Check(t *testing.T) {
	rm := NewResourceManagerService(map[string]interface{}{"heartbeat_interval": "2s"}, zerolog.Nop())
	assert.Equal(t, 2*time.Second, rm.heartbeatInterval)

	var down error
	rm.AddResource("store", func() Pinger { return pingFunc(func(context.Context) error { return down }) })
	rm.AddResource("closed", func() Pinger { return nil })

	rm.Check(context.Background())
	st, ok := rm.Status("store")
	require.True(t, ok)
	assert.True(t, st.Up)
	closed, _ := rm.Status("closed")
	assert.False(t, closed.Up)
	assert.Equal(t, "not open", closed.Error)

	down = errors.New("connection refused")
	rm.Check(context.Background())
	st, _ = rm.Status("store")
	assert.False(t, st.Up)
	assert.Equal(t, "connection refused", st.Error)
	assert.Len(t, rm.ListResources(), 2)

	rm.RemoveResource("closed")
	_, ok = rm.Status("closed")
	assert.False(t, ok)
}

func TestResourceManager_StartStop(t *testing.T) {
	rm := NewResourceManagerService(nil, zerolog.Nop())
	assert.Equal(t, 30*time.Second, rm.heartbeatInterval)
	rm.AddResource("store", func() Pinger { return pingFunc(func(context.Context) error { return nil }) })

	require.NoError(t, rm.Start())
	st, ok := rm.Status("store")
	assert.True(t, ok)
	assert.True(t, st.Up)
	assert.NoError(t, rm.Stop())
}
