// Package auth issues and verifies access tokens and answers capability questions about
// the authenticated caller.
package auth

import "github.com/Dosada05/lanparty/models"

// Caller is the identity carried by a verified token.
type Caller struct {
	UserID int
	Admin  bool
	Roles  map[int]models.Role // event id -> role
}

func (c *Caller) RoleIn(eventID int) (models.Role, bool) {
	if c == nil {
		return "", false
	}
	role, ok := c.Roles[eventID]
	return role, ok
}

// IsAdmin reports whether the caller is an administrator.
func IsAdmin(c *Caller) bool {
	return c != nil && c.Admin
}

// CanOrganize reports whether the caller may manage the event: administrators and
// organizers of the event.
func CanOrganize(c *Caller, eventID int) bool {
	if IsAdmin(c) {
		return true
	}
	role, ok := c.RoleIn(eventID)
	return ok && role == models.RoleOrganizer
}

// IsRegistered reports whether the caller holds any registration for the event.
func IsRegistered(c *Caller, eventID int) bool {
	_, ok := c.RoleIn(eventID)
	return ok
}

// IsSelf reports whether the caller is the user.
func IsSelf(c *Caller, userID int) bool {
	return c != nil && c.UserID == userID
}

// CanActAs reports whether the caller may act on behalf of userID inside the event.
func CanActAs(c *Caller, eventID, userID int) bool {
	return IsSelf(c, userID) || CanOrganize(c, eventID)
}

// CanManageUser reports whether the caller may change the account of userID.
func CanManageUser(c *Caller, userID int) bool {
	return IsSelf(c, userID) || IsAdmin(c)
}
