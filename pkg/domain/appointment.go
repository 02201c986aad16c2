package domain

import "time"

// Appointment status values as reported by the backend.
const (
	AppointmentPending  = "pending"
	AppointmentAccepted = "accepted"
	AppointmentRejected = "rejected"
)

// Appointment is a booked slot between a patient and a doctor.
type Appointment struct {
	ID          string    `json:"id"`
	DoctorName  string    `json:"doctor_name"`
	PatientName string    `json:"patient_name"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Reason      string    `json:"reason,omitempty"`
	Status      string    `json:"status"`
}

// DashboardStats are the summary counters shown on a role dashboard.
type DashboardStats struct {
	TotalAppointments    int `json:"total_appointments"`
	PendingAppointments  int `json:"pending_appointments"`
	UpcomingAppointments int `json:"upcoming_appointments"`
	Prescriptions        int `json:"prescriptions"`
	Patients             int `json:"patients,omitempty"`
}

// Dashboard is the payload of a role dashboard endpoint.
type Dashboard struct {
	Greeting string         `json:"greeting,omitempty"`
	Stats    DashboardStats `json:"stats"`
	Upcoming []Appointment  `json:"upcoming"`
}
