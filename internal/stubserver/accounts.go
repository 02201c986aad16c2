package stubserver

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/rashiika/medtrax/pkg/domain"
)

// Seeded demo accounts.
const (
	DoctorEmail     = "doctor@medtrax.dev"
	DoctorPassword  = "doctor-pass"
	PatientEmail    = "patient@medtrax.dev"
	PatientPassword = "patient-pass"
)

type account struct {
	ID              string
	Email           string
	Username        string
	Role            domain.Role
	PasswordHash    []byte
	ProfileComplete bool
	FullName        string
}

type accountStore struct {
	mu           sync.RWMutex
	byEmail      map[string]*account
	appointments []domain.Appointment
	cost         int
}

func newAccountStore(cost int) *accountStore {
	return &accountStore{byEmail: map[string]*account{}, cost: cost}
}

func (s *accountStore) add(email, password string, role domain.Role, complete bool) (*account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	acc := &account{
		ID:              uuid.NewString(),
		Email:           strings.ToLower(email),
		Username:        strings.SplitN(email, "@", 2)[0],
		Role:            role,
		PasswordHash:    hash,
		ProfileComplete: complete,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[acc.Email]; ok {
		return nil, fmt.Errorf("account %s already exists", acc.Email)
	}
	s.byEmail[acc.Email] = acc
	return acc, nil
}

// authenticate returns a copy of the account when the password matches.
func (s *accountStore) authenticate(email, password string) (account, bool) {
	s.mu.RLock()
	acc, ok := s.byEmail[strings.ToLower(email)]
	s.mu.RUnlock()
	if !ok {
		return account{}, false
	}
	if bcrypt.CompareHashAndPassword(acc.PasswordHash, []byte(password)) != nil {
		return account{}, false
	}
	return *acc, true
}

func (s *accountStore) get(email string) (account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return account{}, false
	}
	return *acc, true
}

// completeProfile marks the profile done. It reports false when it already was.
func (s *accountStore) completeProfile(email, fullName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.byEmail[strings.ToLower(email)]
	if !ok || acc.ProfileComplete {
		return false
	}
	acc.ProfileComplete = true
	acc.FullName = fullName
	return true
}

func (s *accountStore) book(a domain.Appointment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appointments = append(s.appointments, a)
}

func (s *accountStore) appointmentsFor(acc account) []domain.Appointment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name := acc.FullName
	if name == "" {
		name = acc.Username
	}
	out := []domain.Appointment{}
	for _, a := range s.appointments {
		if (acc.Role == domain.RoleDoctor && a.DoctorName == name) ||
			(acc.Role == domain.RolePatient && a.PatientName == name) {
			out = append(out, a)
		}
	}
	return out
}

func (s *accountStore) seed(now time.Time) error {
	doc, err := s.add(DoctorEmail, DoctorPassword, domain.RoleDoctor, true)
	if err != nil {
		return err
	}
	s.mu.Lock()
	doc.FullName = "Dr. Meera Rao"
	s.mu.Unlock()

	if _, err := s.add(PatientEmail, PatientPassword, domain.RolePatient, false); err != nil {
		return err
	}

	day := now.Truncate(time.Hour)
	s.book(domain.Appointment{ID: uuid.NewString(), DoctorName: doc.FullName, PatientName: "Arjun Mehta",
		ScheduledAt: day.Add(26 * time.Hour), Reason: "Follow-up", Status: domain.AppointmentAccepted})
	s.book(domain.Appointment{ID: uuid.NewString(), DoctorName: doc.FullName, PatientName: "Kavya Iyer",
		ScheduledAt: day.Add(50 * time.Hour), Reason: "Chest pain", Status: domain.AppointmentPending})
	s.book(domain.Appointment{ID: uuid.NewString(), DoctorName: doc.FullName, PatientName: "Arjun Mehta",
		ScheduledAt: day.Add(-72 * time.Hour), Reason: "Annual check", Status: domain.AppointmentAccepted})
	return nil
}
