package settings

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	s := NewDefault()
	assert.Equal(t, "XX", s.Country())
	assert.Equal(t, "netctl", s.Hostname())
	assert.Equal(t, DefaultHostnameMaxLen, s.MaxLen())
}

func TestSetCountry(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantErr bool
	}{
		{"one byte", "U", true},
		{"three bytes", "USA", true},
		{"empty", "", true},
		{"two bytes", "US", false},
		{"lower case is stored as given", "gb", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewDefault()
			err := s.SetCountry(tt.code)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidLength)
				assert.Contains(t, err.Error(), "set country")
				assert.Equal(t, "XX", s.Country(), "failed write must not change state")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.code, s.Country())
		})
	}
}

func TestSetHostnameBound(t *testing.T) {
	s, err := New("XX", "board", 16)
	require.NoError(t, err)

	require.NoError(t, s.SetHostname(strings.Repeat("a", 15)))
	assert.Equal(t, strings.Repeat("a", 15), s.Hostname())

	err = s.SetHostname(strings.Repeat("a", 16))
	require.ErrorIs(t, err, ErrTooLong)
	assert.Contains(t, err.Error(), "limit 15")
	assert.Equal(t, strings.Repeat("a", 15), s.Hostname())

	require.NoError(t, s.SetHostname(""))
	assert.Equal(t, "", s.Hostname())
}

func TestNewValidatesInitialValues(t *testing.T) {
	_, err := New("USA", "host", 16)
	assert.ErrorIs(t, err, ErrInvalidLength)

	_, err = New("US", strings.Repeat("h", 16), 16)
	assert.ErrorIs(t, err, ErrTooLong)

	_, err = New("US", "h", 1)
	assert.Error(t, err)
}

func TestValues(t *testing.T) {
	s, err := New("DE", "gateway-1", 24)
	require.NoError(t, err)
	assert.Equal(t, Values{Country: "DE", Hostname: "gateway-1", HostnameMaxLen: 24}, s.Values())
}

func TestCountryNeverTorn(t *testing.T) {
	s := NewDefault()
	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if i%2 == 0 {
				_ = s.SetCountry("AB")
			} else {
				_ = s.SetCountry("CD")
			}
		}
	}()

	for i := 0; i < 10000; i++ {
		c := s.Country()
		if c != "XX" && c != "AB" && c != "CD" {
			close(stop)
			wg.Wait()
			t.Fatalf("torn country code %q", c)
		}
	}
	close(stop)
	wg.Wait()
}
