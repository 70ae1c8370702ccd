package dto

import (
	"time"

	"github.com/noah-isme/gema-selection-api/internal/models"
)

// StudentCreateRequest registers a candidate.
type StudentCreateRequest struct {
	Name  string `json:"name" validate:"required,min=1,max=255"`
	Email string `json:"email" validate:"required,email"`
}

// StudentResponse serializes a candidate.
type StudentResponse struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// NewStudentResponse converts a model into a student DTO.
func NewStudentResponse(student models.Student) StudentResponse {
	return StudentResponse{
		ID:        student.ID,
		Name:      student.Name,
		Email:     student.Email,
		Active:    student.Active,
		CreatedAt: student.CreatedAt,
	}
}
