// Package serviceiface defines the lifecycle every long-running component
// exposes to the app manager.
package serviceiface

// Service is started in services.yaml start_order and stopped in reverse.
// Start must not block; long-running work belongs in goroutines it owns.
type Service interface {
	Name() string
	Start() error
	Stop() error
}
