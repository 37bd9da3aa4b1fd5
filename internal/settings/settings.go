package settings

import (
	"errors"
	"fmt"
	"sync"
)

const (
	// DefaultCountry is the unset country code.
	DefaultCountry = "XX"

	// DefaultHostname is used when no hostname is configured.
	DefaultHostname = "netctl"

	// DefaultHostnameMaxLen matches the 32-byte buffer most stacks reserve,
	// terminator included.
	DefaultHostnameMaxLen = 32
)

var (
	// ErrInvalidLength is returned when a country code is not exactly 2 bytes.
	ErrInvalidLength = errors.New("INVALID_LENGTH")

	// ErrTooLong is returned when a hostname does not fit MaxLen.
	ErrTooLong = errors.New("TOO_LONG")
)

// Values is a consistent copy of the settings.
type Values struct {
	Country        string `json:"country"`
	Hostname       string `json:"hostname"`
	HostnameMaxLen int    `json:"hostnameMaxLen"`
}

// Settings guards the country code and hostname.
type Settings struct {
	mu       sync.RWMutex
	country  [2]byte
	hostname string
	maxLen   int
}

// New validates the initial values with the same rules as the setters.
// maxLen counts the terminator, so the longest accepted hostname is maxLen-1.
func New(country, hostname string, maxLen int) (*Settings, error) {
	if maxLen < 2 {
		return nil, fmt.Errorf("hostname max length %d: must be at least 2", maxLen)
	}
	s := &Settings{maxLen: maxLen}
	if err := s.SetCountry(country); err != nil {
		return nil, err
	}
	if err := s.SetHostname(hostname); err != nil {
		return nil, err
	}
	return s, nil
}

// NewDefault returns settings with the package defaults.
func NewDefault() *Settings {
	s, err := New(DefaultCountry, DefaultHostname, DefaultHostnameMaxLen)
	if err != nil {
		panic(err)
	}
	return s
}

// Country returns the current two-byte country code.
func (s *Settings) Country() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return string(s.country[:])
}

// SetCountry replaces the country code. code must be exactly 2 bytes.
func (s *Settings) SetCountry(code string) error {
	if len(code) != len(s.country) {
		return fmt.Errorf("set country %q: %w: need exactly %d bytes, got %d", code, ErrInvalidLength, len(s.country), len(code))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	copy(s.country[:], code)
	return nil
}

// Hostname returns the current hostname.
func (s *Settings) Hostname() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hostname
}

// SetHostname replaces the hostname. len(name) must be below MaxLen.
func (s *Settings) SetHostname(name string) error {
	if len(name) >= s.maxLen {
		return fmt.Errorf("set hostname: %w: %d bytes, limit %d", ErrTooLong, len(name), s.maxLen-1)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hostname = name
	return nil
}

// MaxLen returns the hostname bound, terminator included.
func (s *Settings) MaxLen() int {
	return s.maxLen
}

// Values returns both settings read under one lock.
func (s *Settings) Values() Values {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Values{
		Country:        string(s.country[:]),
		Hostname:       s.hostname,
		HostnameMaxLen: s.maxLen,
	}
}
