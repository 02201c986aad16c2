package client

import (
	"context"
	"fmt"

	"github.com/rashiika/medtrax/pkg/domain"
)

// GetDashboard returns the dashboard for role.
func (c *Client) GetDashboard(ctx context.Context, role domain.Role) (*domain.Dashboard, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("client.GetDashboard: unknown role %q", role)
	}
	var d domain.Dashboard
	if err := c.get(ctx, "/"+role.String()+"/dashboard/", &d); err != nil {
		return nil, fmt.Errorf("client.GetDashboard: %w", err)
	}
	return &d, nil
}

// ListAppointments returns the caller's appointments.
func (c *Client) ListAppointments(ctx context.Context) ([]domain.Appointment, error) {
	var appts []domain.Appointment
	if err := c.get(ctx, "/appointments/", &appts); err != nil {
		return nil, fmt.Errorf("client.ListAppointments: %w", err)
	}
	return appts, nil
}
