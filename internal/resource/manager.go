// Package resource watches the resources the ledger service depends on.
package resource

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sin100007-pixel/customer-qr-login/internal/config"
	"github.com/sin100007-pixel/customer-qr-login/internal/serviceiface"
)

var _ serviceiface.Service = (*ResourceManager)(nil)

// Pinger is anything that can report its own liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Status is the last heartbeat result for one resource.
type Status struct {
	Up        bool      `json:"up"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// ResourceManager pings registered resources on a fixed interval and logs
// every up/down transition.
type ResourceManager struct {
	resources         map[string]func() Pinger
	status            map[string]Status
	mu                sync.RWMutex
	stopChan          chan struct{}
	wg                sync.WaitGroup
	heartbeatInterval time.Duration
	log               zerolog.Logger
}

func NewResourceManagerService(cfg map[string]interface{}, log zerolog.Logger) *ResourceManager {
	interval := 30 * time.Second
	if d, err := time.ParseDuration(config.String(cfg, "heartbeat_interval", "")); err == nil && d > 0 {
		interval = d
	}
	return &ResourceManager{
		resources:         make(map[string]func() Pinger),
		status:            make(map[string]Status),
		stopChan:          make(chan struct{}),
		heartbeatInterval: interval,
		log:               log.With().Str("service", "resourcemanager").Logger(),
	}
}

func (rm *ResourceManager) Name() string { return "resourcemanager" }

func (rm *ResourceManager) Start() error {
	rm.Check(context.Background())
	rm.wg.Add(1)
	go rm.heartbeatLoop()
	return nil
}

func (rm *ResourceManager) Stop() error {
	close(rm.stopChan)
	rm.wg.Wait()
	return nil
}

func (rm *ResourceManager) heartbeatLoop() {
	defer rm.wg.Done()
	ticker := time.NewTicker(rm.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-rm.stopChan:
			return
		case <-ticker.C:
			rm.Check(context.Background())
		}
	}
}

// AddResource registers a resource. The getter is called on every check,
// so it may return nil until the resource is open.
func (rm *ResourceManager) AddResource(key string, get func() Pinger) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.resources[key] = get
}

func (rm *ResourceManager) RemoveResource(key string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	delete(rm.resources, key)
	delete(rm.status, key)
}

// Check pings every resource once.
func (rm *ResourceManager) Check(ctx context.Context) {
	rm.mu.RLock()
	getters := make(map[string]func() Pinger, len(rm.resources))
	for k, g := range rm.resources {
		getters[k] = g
	}
	rm.mu.RUnlock()

	timeout := rm.heartbeatInterval / 2
	for key, get := range getters {
		st := Status{Up: true, CheckedAt: time.Now()}
		if p := get(); p == nil {
			st = Status{Error: "not open", CheckedAt: st.CheckedAt}
		} else {
			pctx, cancel := context.WithTimeout(ctx, timeout)
			if err := p.Ping(pctx); err != nil {
				st = Status{Error: err.Error(), CheckedAt: st.CheckedAt}
			}
			cancel()
		}

		rm.mu.Lock()
		prev, seen := rm.status[key]
		rm.status[key] = st
		rm.mu.Unlock()

		switch {
		case st.Up && seen && !prev.Up:
			rm.log.Info().Str("resource", key).Msg("resource recovered")
		case !st.Up && (!seen || prev.Up):
			rm.log.Error().Str("resource", key).Str("error", st.Error).Msg("resource down")
		}
	}
}

// Status returns the last heartbeat of key.
func (rm *ResourceManager) Status(key string) (Status, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	st, ok := rm.status[key]
	return st, ok
}

// ListResources returns every resource's last heartbeat.
func (rm *ResourceManager) ListResources() map[string]Status {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	out := make(map[string]Status, len(rm.status))
	for k, v := range rm.status {
		out[k] = v
	}
	return out
}
