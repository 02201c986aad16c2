package stubserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rashiika/medtrax/pkg/domain"
)

const ctxAccount = "account"

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.metrics.logins.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}
	acc, ok := s.accounts.authenticate(req.Email, req.Password)
	if !ok {
		s.metrics.logins.WithLabelValues("invalid").Inc()
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	access, refresh, err := s.tokens.pair(&acc)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue tokens"})
		return
	}

	// Incomplete profiles get an error status with a partial-success body.
	if !acc.ProfileComplete {
		s.metrics.logins.WithLabelValues("incomplete").Inc()
		c.JSON(http.StatusForbidden, gin.H{
			"is_profile_complete": false,
			"role":                acc.Role,
			"email":               acc.Email,
			"message":             "Please complete your profile to continue",
			"access_token":        access,
			"refresh_token":       refresh,
		})
		return
	}

	s.metrics.logins.WithLabelValues("complete").Inc()
	c.JSON(http.StatusOK, gin.H{
		"user": gin.H{
			"email":               acc.Email,
			"role":                acc.Role,
			"username":            acc.Username,
			"is_profile_complete": true,
		},
		"access_token":  access,
		"refresh_token": refresh,
		"message":       "Login successful",
	})
}

func (s *Server) refresh(c *gin.Context) {
	var req struct {
		Refresh string `json:"refresh" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.metrics.refreshes.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "refresh is required"})
		return
	}
	claims, err := s.tokens.parse(req.Refresh, tokenRefresh)
	if err != nil {
		s.metrics.refreshes.WithLabelValues("rejected").Inc()
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Token is invalid or expired"})
		return
	}
	acc, ok := s.accounts.get(claims.Email)
	if !ok {
		s.metrics.refreshes.WithLabelValues("rejected").Inc()
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "User not found"})
		return
	}

	access, err := s.tokens.issue(&acc, tokenAccess)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue tokens"})
		return
	}
	resp := gin.H{"access": access}
	if s.cfg.RotateRefresh {
		refresh, err := s.tokens.issue(&acc, tokenRefresh)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue tokens"})
			return
		}
		resp["refresh"] = refresh
	}
	s.metrics.refreshes.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, resp)
}

func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Authentication credentials were not provided."})
			return
		}
		claims, err := s.tokens.parse(strings.TrimPrefix(header, "Bearer "), tokenAccess)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Given token not valid for any token type"})
			return
		}
		acc, ok := s.accounts.get(claims.Email)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
			return
		}
		c.Set(ctxAccount, acc)
		c.Next()
	}
}

func currentAccount(c *gin.Context) account {
	return c.MustGet(ctxAccount).(account)
}

func (s *Server) completeDoctorProfile(c *gin.Context) {
	var p domain.DoctorProfile
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid profile payload"})
		return
	}
	if p.FullName == "" || p.Specialization == "" || p.LicenseNumber == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "full_name, specialization and license_number are required"})
		return
	}
	s.completeProfile(c, domain.RoleDoctor, p.FullName)
}

func (s *Server) completePatientProfile(c *gin.Context) {
	var p domain.PatientProfile
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid profile payload"})
		return
	}
	if p.FullName == "" || p.DateOfBirth == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "full_name and date_of_birth are required"})
		return
	}
	if _, err := time.Parse(time.DateOnly, p.DateOfBirth); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date_of_birth must be YYYY-MM-DD"})
		return
	}
	s.completeProfile(c, domain.RolePatient, p.FullName)
}

func (s *Server) completeProfile(c *gin.Context, role domain.Role, fullName string) {
	acc := currentAccount(c)
	if acc.Role != role {
		c.JSON(http.StatusForbidden, gin.H{"error": "This profile form is for " + string(role) + " accounts"})
		return
	}
	if !s.accounts.completeProfile(acc.Email, fullName) {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "Profile already completed"})
		return
	}
	acc.ProfileComplete = true
	access, refresh, err := s.tokens.pair(&acc)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue tokens"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"message":       "Profile completed successfully",
		"access_token":  access,
		"refresh_token": refresh,
	})
}

func (s *Server) dashboard(c *gin.Context) {
	acc := currentAccount(c)
	want := domain.Route(c.FullPath()).Normalize()
	if role, _ := want.RoleScope(); role != acc.Role {
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have access to this dashboard"})
		return
	}
	if !acc.ProfileComplete {
		c.JSON(http.StatusForbidden, gin.H{"error": "Please complete your profile first"})
		return
	}

	now := s.cfg.Now()
	appts := s.accounts.appointmentsFor(acc)
	d := domain.Dashboard{Greeting: "Welcome back, " + displayName(acc), Upcoming: []domain.Appointment{}}
	patients := map[string]struct{}{}
	for _, a := range appts {
		d.Stats.TotalAppointments++
		if a.Status == domain.AppointmentPending {
			d.Stats.PendingAppointments++
		}
		if a.ScheduledAt.After(now) && a.Status != domain.AppointmentRejected {
			d.Stats.UpcomingAppointments++
			d.Upcoming = append(d.Upcoming, a)
		}
		patients[a.PatientName] = struct{}{}
	}
	if acc.Role == domain.RoleDoctor {
		d.Stats.Patients = len(patients)
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) listAppointments(c *gin.Context) {
	c.JSON(http.StatusOK, s.accounts.appointmentsFor(currentAccount(c)))
}

func displayName(acc account) string {
	if acc.FullName != "" {
		return acc.FullName
	}
	return acc.Username
}
