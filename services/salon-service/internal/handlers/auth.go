package handlers

import (
	"net/http"

	"github.com/md-rashed-zaman/salonbook/libs/auth"
	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/booking"
)

type authedHandler func(w http.ResponseWriter, r *http.Request, rc booking.RequestContext)

// requireAuth rejects requests without a valid bearer token.
func (h *Handler) requireAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.BearerToken(r)
		if !ok {
			httpx.WriteError(w, http.StatusUnauthorized, "missing bearer token", nil)
			return
		}
		rc, ok := h.authenticate(w, r, token)
		if !ok {
			return
		}
		next(w, r, rc)
	}
}

// optionalAuth lets anonymous guests through. A token that is present but
// invalid is still rejected.
func (h *Handler) optionalAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.BearerToken(r)
		if !ok {
			next(w, r, booking.RequestContext{RequestID: httpx.RequestIDFromContext(r.Context())})
			return
		}
		rc, ok := h.authenticate(w, r, token)
		if !ok {
			return
		}
		next(w, r, rc)
	}
}

func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request, token string) (booking.RequestContext, bool) {
	if h.tokens == nil {
		httpx.WriteError(w, http.StatusUnauthorized, "authentication not configured", nil)
		return booking.RequestContext{}, false
	}
	claims, err := h.tokens.Verify(r.Context(), token)
	if err != nil {
		h.logger.Info("token rejected", "error", err, "path", r.URL.Path)
		httpx.WriteError(w, http.StatusUnauthorized, "invalid token", nil)
		return booking.RequestContext{}, false
	}
	return requestContext(r, claims), true
}

func requestContext(r *http.Request, claims *auth.Claims) booking.RequestContext {
	rc := booking.RequestContext{
		RequestID: httpx.RequestIDFromContext(r.Context()),
		ActorID:   claims.Sub,
		Role:      claims.Role,
		StaffID:   claims.StaffID,
	}
	if claims.Role == booking.RoleCustomer {
		rc.CustomerID = claims.Sub
	}
	return rc
}
