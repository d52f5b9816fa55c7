package providers

import "context"

// HealthStatus represents the current state of a provider's connection
type HealthStatus struct {
	Name     string
	IsOnline bool
	ErrorMsg string
}

// Check pings the provider and reports the outcome.
func Check(ctx context.Context, p Provider) HealthStatus {
	err := p.Ping(ctx)
	status := HealthStatus{
		Name:     p.Name(),
		IsOnline: err == nil,
	}
	if err != nil {
		status.ErrorMsg = err.Error()
	}
	return status
}
