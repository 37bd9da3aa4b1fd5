//
//
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radio-control/netctl/internal/audit"
	"github.com/radio-control/netctl/internal/auth"
	"github.com/radio-control/netctl/internal/ifconfig"
	"github.com/radio-control/netctl/internal/netaddr"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

// Configuration modes accepted by POST .../ifconfig.
const (
	ModeDHCP   = "dhcp"
	ModeStatic = "static"
)

// IfConfigRequest is the body of POST /interfaces/{name}/ifconfig.
type IfConfigRequest struct {
	Mode    string `json:"mode"`
	Address string `json:"address,omitempty"`
	Netmask string `json:"netmask,omitempty"`
	Gateway string `json:"gateway,omitempty"`
	DNS     string `json:"dns,omitempty"`
}

// IfConfigResponse reports the quad after a configuration change.
type IfConfigResponse struct {
	Mode   string               `json:"mode"`
	Config *ifconfig.IPv4Config `json:"config"`
	DHCP   *ifconfig.DHCPResult `json:"dhcp,omitempty"`
}

// RegisterRoutes registers all v1 endpoints.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	apiV1 := "/api/v1"
	m := s.authMiddleware
	read := func(h http.HandlerFunc) http.HandlerFunc { return m.RequireAuth(m.RequireScope(auth.ScopeRead)(h)) }
	control := func(h http.HandlerFunc) http.HandlerFunc { return m.RequireAuth(m.RequireScope(auth.ScopeControl)(h)) }

	// Health endpoint (no auth required)
	mux.HandleFunc("GET "+apiV1+"/health", s.handleHealth)

	mux.HandleFunc("GET "+apiV1+"/interfaces", read(s.handleInterfaces))
	mux.HandleFunc("GET "+apiV1+"/interfaces/select", read(s.handleSelect))
	mux.HandleFunc("GET "+apiV1+"/interfaces/{name}/ifconfig", read(s.handleGetIfConfig))
	mux.HandleFunc("POST "+apiV1+"/interfaces/{name}/ifconfig", control(s.handleSetIfConfig))

	mux.HandleFunc("GET "+apiV1+"/country", read(s.handleGetCountry))
	mux.HandleFunc("PUT "+apiV1+"/country", control(s.handleSetCountry))
	mux.HandleFunc("GET "+apiV1+"/hostname", read(s.handleGetHostname))
	mux.HandleFunc("PUT "+apiV1+"/hostname", control(s.handleSetHostname))

	mux.HandleFunc("GET "+apiV1+"/telemetry", m.RequireAuth(m.RequireScope(auth.ScopeTelemetry)(s.handleTelemetry)))

	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
}

// withCorrelation tags every request with a correlation ID, taken from the
// request header when the client supplied one.
func (s *Server) withCorrelation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(CorrelationHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(CorrelationHeader, id)
		next.ServeHTTP(w, r.WithContext(audit.WithCorrelationID(r.Context(), id)))
	})
}

// handleInterfaces handles GET /interfaces
func (s *Server) handleInterfaces(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, s.network.Route())
}

// handleSelect handles GET /interfaces/select?dst=a.b.c.d
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	dst := netaddr.Unspecified
	if q := r.URL.Query().Get("dst"); q != "" {
		a, err := netaddr.Parse(q)
		if err != nil {
			writeAPIError(w, err)
			return
		}
		dst = a
	}

	h, err := s.network.SelectInterface(dst)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	WriteSuccess(w, map[string]interface{}{
		"dst":       dst.String(),
		"interface": h.Name(),
		"kind":      string(h.Kind()),
	})
}

// handleGetIfConfig handles GET /interfaces/{name}/ifconfig
func (s *Server) handleGetIfConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.network.IfConfig(r.Context(), r.PathValue("name"))
	if err != nil {
		writeAPIError(w, err)
		return
	}
	WriteSuccess(w, cfg)
}

// handleSetIfConfig handles POST /interfaces/{name}/ifconfig
func (s *Server) handleSetIfConfig(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req IfConfigRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeAPIError(w, err)
		return
	}

	resp := IfConfigResponse{Mode: req.Mode}
	switch req.Mode {
	case ModeDHCP:
		res, err := s.network.IfConfigDHCP(r.Context(), name)
		if err != nil {
			writeAPIError(w, err)
			return
		}
		resp.DHCP = res
	case ModeStatic:
		if err := s.network.IfConfigStatic(r.Context(), name, req.Address, req.Netmask, req.Gateway, req.DNS); err != nil {
			writeAPIError(w, err)
			return
		}
	default:
		writeAPIError(w, fmt.Errorf("%w: mode must be %q or %q", ErrBadRequest, ModeDHCP, ModeStatic))
		return
	}

	cfg, err := s.network.IfConfig(r.Context(), name)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	resp.Config = cfg
	WriteSuccess(w, resp)
}

// handleGetCountry handles GET /country
func (s *Server) handleGetCountry(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, map[string]string{"country": s.network.Country()})
}

// handleSetCountry handles PUT /country
func (s *Server) handleSetCountry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Country *string `json:"country"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeAPIError(w, err)
		return
	}
	if req.Country == nil {
		writeAPIError(w, fmt.Errorf("%w: country is required", ErrBadRequest))
		return
	}
	if err := s.network.SetCountry(r.Context(), *req.Country); err != nil {
		writeAPIError(w, err)
		return
	}
	WriteSuccess(w, map[string]string{"country": s.network.Country()})
}

// handleGetHostname handles GET /hostname
func (s *Server) handleGetHostname(w http.ResponseWriter, r *http.Request) {
	v := s.network.Settings()
	WriteSuccess(w, map[string]interface{}{"hostname": v.Hostname, "maxLen": v.HostnameMaxLen})
}

// handleSetHostname handles PUT /hostname
func (s *Server) handleSetHostname(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Hostname *string `json:"hostname"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeAPIError(w, err)
		return
	}
	if req.Hostname == nil {
		writeAPIError(w, fmt.Errorf("%w: hostname is required", ErrBadRequest))
		return
	}
	if err := s.network.SetHostname(r.Context(), *req.Hostname); err != nil {
		writeAPIError(w, err)
		return
	}
	WriteSuccess(w, map[string]string{"hostname": s.network.Hostname()})
}

// handleTelemetry handles GET /telemetry (SSE)
func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	if s.telemetryHub == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Telemetry service not available", nil)
		return
	}
	// The stream outlives the server-wide WriteTimeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.logger.Debug("telemetry write deadline not cleared", zap.Error(err))
	}
	if err := s.telemetryHub.Subscribe(r.Context(), w, r); err != nil {
		s.logger.Debug("telemetry subscription ended", zap.Error(err))
	}
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	subsystems := map[string]bool{
		"network":   s.network != nil,
		"telemetry": s.telemetryHub != nil,
		"metrics":   s.metrics != nil,
		"auth":      s.authMiddleware.Enabled(),
	}

	health := map[string]interface{}{
		"status":     "ok",
		"uptimeSec":  s.clock.Since(s.startTime).Seconds(),
		"version":    Version,
		"subsystems": subsystems,
	}
	if s.network == nil {
		health["status"] = "degraded"
		WriteError(w, http.StatusServiceUnavailable, "SERVICE_DEGRADED", "Network subsystem is unavailable", health)
		return
	}
	health["interfaces"] = len(s.network.ListInterfaces())
	WriteSuccess(w, health)
}

// decodeBody strictly decodes a bounded JSON body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return fmt.Errorf("%w: empty body", ErrBadRequest)
		}
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}
