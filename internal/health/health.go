package health

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type Status string

const (
	StatusOK          Status = "ok"
	StatusMaintenance Status = "maintenance"
	StatusError       Status = "error"
)

func NewStatus(value string) (Status, error) {
	s := Status(value)
	switch s {
	case StatusOK, StatusMaintenance, StatusError:
		return s, nil
	}
	return "", fmt.Errorf("invalid status %q, expected one of: ok, maintenance, error", value)
}

func (s Status) DefaultMessage() string {
	switch s {
	case StatusMaintenance:
		return "System is under maintenance"
	case StatusError:
		return "System is experiencing issues"
	default:
		return "System is operating normally"
	}
}

// Payload is the health document served on /api/health.
type Payload struct {
	Status                Status    `json:"status"`
	Message               string    `json:"message"`
	EstimatedRecoveryTime string    `json:"estimatedRecoveryTime,omitempty"`
	LastChecked           time.Time `json:"lastChecked"`
	Uptime                string    `json:"uptime"`
	Version               string    `json:"version"`
}

// Update is a requested status change.
type Update struct {
	Status                string `json:"status"`
	Message               string `json:"message"`
	EstimatedRecoveryTime string `json:"estimatedRecoveryTime"`
}

// Store holds the settable health status of the service.
type Store struct {
	mu            sync.RWMutex
	payload       Payload
	startTime     time.Time
	lastResponse  []byte
	lastRendered  time.Time
	cacheDuration time.Duration
}

func NewStore(version string, cacheDuration time.Duration) *Store {
	now := time.Now()
	return &Store{
		payload: Payload{
			Status:      StatusOK,
			Message:     StatusOK.DefaultMessage(),
			LastChecked: now,
			Uptime:      "0s",
			Version:     version,
		},
		startTime:     now,
		cacheDuration: cacheDuration,
	}
}

func (s *Store) Get() Payload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.payload
	p.Uptime = time.Since(s.startTime).Round(time.Second).String()
	p.LastChecked = time.Now()
	return p
}

// Render returns the JSON document, reusing the last rendering for cacheDuration.
func (s *Store) Render() ([]byte, error) {
	s.mu.RLock()
	if s.lastResponse != nil && time.Since(s.lastRendered) < s.cacheDuration {
		defer s.mu.RUnlock()
		return s.lastResponse, nil
	}
	s.mu.RUnlock()

	raw, err := json.Marshal(s.Get())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.lastResponse = raw
	s.lastRendered = time.Now()
	s.mu.Unlock()
	return raw, nil
}

// Set validates and applies u. An empty message is replaced by the status default.
func (s *Store) Set(u Update) (Payload, error) {
	status, err := NewStatus(u.Status)
	if err != nil {
		return Payload{}, err
	}
	message := u.Message
	if message == "" {
		message = status.DefaultMessage()
	}

	s.mu.Lock()
	s.payload.Status = status
	s.payload.Message = message
	s.payload.EstimatedRecoveryTime = u.EstimatedRecoveryTime
	s.payload.LastChecked = time.Now()
	s.lastResponse = nil
	s.mu.Unlock()

	return s.Get(), nil
}
