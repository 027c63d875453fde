package httptransport

import (
	"net/http"

	"github.com/google/uuid"

	jwttoken "auditflow/internal/jwt_token"
	id "auditflow/pkg/domain"
	"auditflow/pkg/platform/httputil"
	"auditflow/pkg/requestcontext"
)

// TokenValidator validates a bearer token and returns its claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (*jwttoken.Claims, error)
}

const bearerPrefix = "Bearer "

// requireAuth validates the Authorization header and seeds the request
// context with the caller's user and tenant identity.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		authHeader := r.Header.Get("Authorization")
		if len(authHeader) <= len(bearerPrefix) || authHeader[:len(bearerPrefix)] != bearerPrefix {
			h.logger.WarnContext(ctx, "unauthorized access - missing token",
				"request_id", requestcontext.RequestID(ctx))
			httputil.WriteJSON(w, http.StatusUnauthorized, map[string]string{
				"error":             "unauthorized",
				"error_description": "Missing or invalid Authorization header",
			})
			return
		}

		claims, err := h.tokens.ValidateToken(authHeader[len(bearerPrefix):])
		if err != nil {
			h.logger.WarnContext(ctx, "unauthorized access - invalid token",
				"error", err, "request_id", requestcontext.RequestID(ctx))
			httputil.WriteJSON(w, http.StatusUnauthorized, map[string]string{
				"error":             "unauthorized",
				"error_description": "Invalid or expired token",
			})
			return
		}

		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			httputil.WriteJSON(w, http.StatusUnauthorized, map[string]string{
				"error":             "unauthorized",
				"error_description": "Invalid token claims",
			})
			return
		}
		tenantID, err := uuid.Parse(claims.TenantID)
		if err != nil {
			httputil.WriteJSON(w, http.StatusUnauthorized, map[string]string{
				"error":             "unauthorized",
				"error_description": "Invalid token claims",
			})
			return
		}

		ctx = requestcontext.WithUserID(ctx, id.UserID(userID))
		ctx = requestcontext.WithTenantID(ctx, id.TenantID(tenantID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestID copies the chi request id into the request context so service
// log lines can carry it.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rid := r.Header.Get("X-Request-Id"); rid != "" {
			r = r.WithContext(requestcontext.WithRequestID(r.Context(), rid))
		}
		next.ServeHTTP(w, r)
	})
}
