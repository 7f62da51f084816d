// Package httpkit provides HTTP utilities including identity abstraction.
package httpkit

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
)

// Roles carried in the access token.
const (
	RoleAdmin  = "admin"
	RoleStaff  = "staff"
	RoleClient = "client"
)

// Identity represents the authenticated caller.
// Handlers use it instead of reading gin context keys directly.
type Identity interface {
	// UserID returns the subject of the access token.
	UserID() string
	// Roles returns the caller's roles.
	Roles() []string
	// HasRole checks if the caller has a specific role.
	HasRole(role string) bool
	// ClientID returns the client the caller belongs to, empty for staff.
	ClientID() string
	// IsStaff reports whether the caller is admin or staff.
	IsStaff() bool
	// IsAuthenticated returns true if the caller presented a valid token.
	IsAuthenticated() bool
}

type identity struct {
	userID        string
	roles         []string
	clientID      string
	authenticated bool
}

func (i *identity) UserID() string           { return i.userID }
func (i *identity) Roles() []string          { return i.roles }
func (i *identity) HasRole(role string) bool { return slices.Contains(i.roles, role) }
func (i *identity) ClientID() string         { return i.clientID }
func (i *identity) IsAuthenticated() bool    { return i.authenticated }

func (i *identity) IsStaff() bool {
	return i.HasRole(RoleAdmin) || i.HasRole(RoleStaff)
}

// GetIdentity extracts the Identity from a Gin context.
// Returns an unauthenticated identity if user info is not present.
func GetIdentity(c *gin.Context) Identity {
	userID := c.GetString(ContextUserIDKey)
	if userID == "" {
		return &identity{}
	}

	var roles []string
	if raw, ok := c.Get(ContextRolesKey); ok {
		roles, _ = raw.([]string)
	}

	return &identity{
		userID:        userID,
		roles:         roles,
		clientID:      c.GetString(ContextClientIDKey),
		authenticated: true,
	}
}

// MustGetIdentity extracts the Identity from a Gin context.
// If the caller is not authenticated, it aborts with 401 and returns nil.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return nil
	}
	return id
}
