package services

import (
	"sync"
	"time"

	"law_ledger_app_go/logger"

	"github.com/sirupsen/logrus"
)

const (
	loginFailureWindow    = 10 * time.Minute
	loginFailureThreshold = 5
	loginAlertCooldown    = time.Hour
)

// LoginAlert records a burst of failed logins from one address
type LoginAlert struct {
	Timestamp time.Time `json:"timestamp"`
	IP        string    `json:"ip"`
	Failures  int       `json:"failures"`
}

// LoginMonitor watches failed logins per IP and raises at most one alert per cooldown
type LoginMonitor struct {
	mu       sync.Mutex
	failures map[string][]time.Time
	alerted  map[string]time.Time
	alerts   []LoginAlert
	now      func() time.Time
}

func NewLoginMonitor() *LoginMonitor {
	return &LoginMonitor{
		failures: make(map[string][]time.Time),
		alerted:  make(map[string]time.Time),
		now:      time.Now,
	}
}

// TrackFailure records a failed attempt and reports whether it raised an alert
func (m *LoginMonitor) TrackFailure(ip string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	windowStart := now.Add(-loginFailureWindow)

	recent := m.failures[ip][:0]
	for _, t := range m.failures[ip] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}
	recent = append(recent, now)
	m.failures[ip] = recent

	if len(recent) < loginFailureThreshold {
		return false
	}
	if last, ok := m.alerted[ip]; ok && now.Sub(last) < loginAlertCooldown {
		return false
	}

	m.alerted[ip] = now
	alert := LoginAlert{Timestamp: now, IP: ip, Failures: len(recent)}
	// Newest first, keep max 100
	m.alerts = append([]LoginAlert{alert}, m.alerts...)
	if len(m.alerts) > 100 {
		m.alerts = m.alerts[:100]
	}

	logger.WithComponent("security").WithFields(logrus.Fields{
		"ip":       ip,
		"failures": len(recent),
	}).Error("Multiple failed logins detected")
	return true
}

// Reset forgets the failures of an address after a successful login
func (m *LoginMonitor) Reset(ip string) {
	m.mu.Lock()
	delete(m.failures, ip)
	m.mu.Unlock()
}

// RecentAlerts returns a copy of the alert history
func (m *LoginMonitor) RecentAlerts() []LoginAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]LoginAlert, len(m.alerts))
	copy(out, m.alerts)
	return out
}
