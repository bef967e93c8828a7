package server

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
)

// requireAdminSecret guards administrative routes with the shared secret
// passed as the "secret" query parameter. With no secret configured the
// routes are disabled.
func (s *Server) requireAdminSecret(next http.Handler) http.Handler {
	expected := s.cfg.AdminSecret
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		presented := r.URL.Query().Get("secret")
		if expected == "" || presented == "" || !constantTimeTokenEqual(expected, presented) {
			s.logger.Warn("admin request rejected",
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
				"request_id", requestIDFromContext(r.Context()),
			)
			writeAPIError(w, http.StatusForbidden, "forbidden", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func constantTimeTokenEqual(expected, presented string) bool {
	expectedDigest := sha256.Sum256([]byte(expected))
	presentedDigest := sha256.Sum256([]byte(presented))
	return subtle.ConstantTimeCompare(expectedDigest[:], presentedDigest[:]) == 1
}
