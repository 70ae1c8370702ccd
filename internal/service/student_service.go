package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-selection-api/internal/dto"
	"github.com/noah-isme/gema-selection-api/internal/models"
	"github.com/noah-isme/gema-selection-api/internal/repository"
)

// StudentService registers and deactivates candidates.
type StudentService interface {
	Create(ctx context.Context, actor Actor, req dto.StudentCreateRequest) (dto.StudentResponse, error)
	Get(ctx context.Context, actor Actor, id uint) (dto.StudentResponse, error)
	Deactivate(ctx context.Context, actor Actor, id uint) (dto.StudentResponse, error)
}

type studentService struct {
	repo      repository.StudentRepository
	validator *validator.Validate
	activity  ActivityRecorder
	logger    zerolog.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo repository.StudentRepository, validate *validator.Validate, activity ActivityRecorder, logger zerolog.Logger) StudentService {
	return &studentService{
		repo:      repo,
		validator: validate,
		activity:  activity,
		logger:    logger.With().Str("component", "student_service").Logger(),
	}
}

func (s *studentService) Create(ctx context.Context, actor Actor, req dto.StudentCreateRequest) (dto.StudentResponse, error) {
	if !actor.CanManageAssessments() {
		return dto.StudentResponse{}, ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.StudentResponse{}, err
	}

	student := models.Student{
		Name:  strings.TrimSpace(req.Name),
		Email: strings.ToLower(strings.TrimSpace(req.Email)),
	}
	if err := s.repo.Create(ctx, &student); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.StudentResponse{}, ErrStudentExists
		}
		return dto.StudentResponse{}, err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     ActionStudentCreated,
		EntityType: "student",
		EntityID:   strconv.FormatUint(uint64(student.ID), 10),
		Metadata:   map[string]interface{}{"email": student.Email},
	})

	return dto.NewStudentResponse(student), nil
}

func (s *studentService) Get(ctx context.Context, actor Actor, id uint) (dto.StudentResponse, error) {
	if !actor.CanActFor(id) {
		return dto.StudentResponse{}, ErrForbidden
	}

	student, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.StudentResponse{}, ErrStudentNotFound
		}
		return dto.StudentResponse{}, err
	}
	return dto.NewStudentResponse(student), nil
}

// Deactivate keeps the student's records; results remain auditable.
func (s *studentService) Deactivate(ctx context.Context, actor Actor, id uint) (dto.StudentResponse, error) {
	if !actor.CanManageAssessments() {
		return dto.StudentResponse{}, ErrForbidden
	}

	if err := s.repo.SetActive(ctx, id, false); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.StudentResponse{}, ErrStudentNotFound
		}
		return dto.StudentResponse{}, err
	}

	student, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.StudentResponse{}, err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     ActionStudentDisabled,
		EntityType: "student",
		EntityID:   strconv.FormatUint(uint64(id), 10),
	})

	return dto.NewStudentResponse(student), nil
}

// activeStudent loads a student that may still submit work.
func activeStudent(ctx context.Context, repo repository.StudentRepository, id uint) (models.Student, error) {
	student, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Student{}, ErrStudentNotFound
		}
		return models.Student{}, err
	}
	if !student.Active {
		return models.Student{}, ErrStudentInactive
	}
	return student, nil
}
