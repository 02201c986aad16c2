package domain

// DoctorProfile is the flat payload of the one-time doctor profile step.
type DoctorProfile struct {
	Email          string `json:"email"`
	FullName       string `json:"full_name"`
	Specialization string `json:"specialization"`
	LicenseNumber  string `json:"license_number"`
	Experience     string `json:"experience_years,omitempty"`
	Phone          string `json:"phone,omitempty"`
	ClinicAddress  string `json:"clinic_address,omitempty"`
}

// PatientProfile is the flat payload of the one-time patient profile step.
type PatientProfile struct {
	Email            string `json:"email"`
	FullName         string `json:"full_name"`
	DateOfBirth      string `json:"date_of_birth"`
	Gender           string `json:"gender,omitempty"`
	BloodGroup       string `json:"blood_group,omitempty"`
	Phone            string `json:"phone,omitempty"`
	EmergencyContact string `json:"emergency_contact,omitempty"`
}

// Profile is implemented by the role-specific profile payloads.
type Profile interface {
	ProfileRole() Role
}

func (DoctorProfile) ProfileRole() Role  { return RoleDoctor }
func (PatientProfile) ProfileRole() Role { return RolePatient }
