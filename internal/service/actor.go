package service

import (
	"strings"

	"github.com/noah-isme/gema-selection-api/internal/scoring"
)

// Roles carried by authenticated actors. RoleSystem is only ever granted
// explicitly.
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
	RoleSystem  = "system"
)

// Actor is the authenticated caller of a service operation. Capabilities are
// derived from the role; services never consult a global session.
type Actor struct {
	ID   uint
	Role string
}

// NewActor normalises the role of an authenticated caller.
func NewActor(id uint, role string) Actor {
	return Actor{ID: id, Role: normalizeRole(role)}
}

// IsStaff reports whether the actor is an admin or teacher.
func (a Actor) IsStaff() bool {
	switch a.Role {
	case RoleAdmin, RoleTeacher, RoleSystem:
		return true
	default:
		return false
	}
}

// CanManageAssessments allows re-grading, recording analyses and running selection.
func (a Actor) CanManageAssessments() bool {
	return a.IsStaff()
}

// CanActFor allows staff to act on any student and students on themselves.
func (a Actor) CanActFor(studentID uint) bool {
	if a.IsStaff() {
		return true
	}
	return a.Role == RoleStudent && a.ID != 0 && a.ID == studentID
}

// normalizeRole lowercases role. A missing role grants the least privilege.
func normalizeRole(role string) string {
	r := strings.ToLower(strings.TrimSpace(role))
	if r == "" {
		return RoleStudent
	}
	return r
}

// targetStudent resolves whose work is being submitted. Staff must name the
// student; students default to themselves.
func targetStudent(actor Actor, requested uint) (uint, error) {
	if requested == 0 {
		if actor.IsStaff() {
			return 0, &scoring.ValidationError{
				Field:  "student_id",
				Reason: "required when submitting on behalf of a student",
				Err:    ErrStudentRequired,
			}
		}
		requested = actor.ID
	}
	if !actor.CanActFor(requested) {
		return 0, ErrForbidden
	}
	return requested, nil
}
