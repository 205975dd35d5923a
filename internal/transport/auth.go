package transport

import (
	"net"
	"net/http"
)

type loginRequest struct {
	PIN string `json:"pin"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}

	client := clientAddr(r)
	if err := s.guard.Check(r.Context(), client); err != nil {
		s.fail(w, r, err)
		return
	}

	wk, err := s.services.Workers.Authenticate(r.Context(), req.PIN)
	if err != nil {
		s.guard.Failed(r.Context(), client)
		s.fail(w, r, err)
		return
	}
	s.guard.Succeeded(r.Context(), client)

	setSessionCookie(w, wk.ID, s.secureCookies)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "worker": wk.Public()})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	clearSessionCookie(w, s.secureCookies)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	wk, _ := WorkerFromContext(r.Context())
	writeJSON(w, http.StatusOK, wk.Public())
}

// clientAddr keys login throttling on the peer address without its port.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
