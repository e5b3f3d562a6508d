package booking

import (
	"context"
	"strings"
	"time"

	"ragchat/internal/apperr"
	"ragchat/internal/validate"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

type Booking struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateRequest struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"required,email"`
	Date  string `json:"date" validate:"required,datetime=2006-01-02"`
	Time  string `json:"time" validate:"required,clock"`
}

type Repository interface {
	Save(ctx context.Context, b *Booking) error
	List(ctx context.Context) ([]Booking, error)
	Count(ctx context.Context) (int, error)
}

type Service struct {
	repo     Repository
	validate *validate.Validator
}

func NewService(repo Repository, v *validate.Validator) *Service {
	if v == nil {
		v = validate.New()
	}
	return &Service{repo: repo, validate: v}
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*Booking, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	clock, _ := validate.ParseClock(req.Time)
	b := &Booking{
		Name:  req.Name,
		Email: req.Email,
		Date:  req.Date,
		Time:  clock.Format(timeLayout),
	}
	if err := s.repo.Save(ctx, b); err != nil {
		return nil, apperr.Wrap(err, apperr.CodeStorageDatabaseFailure, "saving booking")
	}
	return b, nil
}

func (s *Service) List(ctx context.Context) ([]Booking, error) {
	bookings, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeStorageDatabaseFailure, "listing bookings")
	}
	return bookings, nil
}
