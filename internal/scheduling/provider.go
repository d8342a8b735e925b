package scheduling

import "context"

// HoursProvider resolves a tenant's operating window and timezone.
type HoursProvider interface {
	BusinessHours(ctx context.Context, tenantID string) (BusinessHours, error)
}

// FixedHours serves the same window to every tenant.
type FixedHours BusinessHours

// BusinessHours implements HoursProvider.
func (f FixedHours) BusinessHours(context.Context, string) (BusinessHours, error) {
	return BusinessHours(f), nil
}
