package testutil

import (
	"net/http"
	"time"

	id "auditflow/pkg/domain"
	"auditflow/pkg/requestcontext"
)

// WithUserID seeds the request context with an acting user, simulating what
// the auth middleware does for authenticated requests. Invalid UUIDs are
// silently ignored.
func WithUserID(req *http.Request, userID string) *http.Request {
	parsed, err := id.ParseUserID(userID)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithUserID(req.Context(), parsed))
}

// WithTenantID seeds the request context with a tenant scope.
func WithTenantID(req *http.Request, tenantID string) *http.Request {
	parsed, err := id.ParseTenantID(tenantID)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithTenantID(req.Context(), parsed))
}

// WithAuth seeds both user and tenant, the typical authenticated shape.
func WithAuth(req *http.Request, userID, tenantID string) *http.Request {
	return WithTenantID(WithUserID(req, userID), tenantID)
}

// WithTime pins the request-scoped clock.
func WithTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
