package notes

import (
	"context"

	"github.com/samber/do"
	"github.com/samber/oops"
)

type Note struct {
	ID      string
	Title   string
	Content string
}

// Provider is the notes backend (Google Keep in production). Out of scope
// here.
type Provider interface {
	CreateNote(ctx context.Context, title, content string) (Note, error)
	UpdateNote(ctx context.Context, titleSearch, newContent string) (Note, error)
	DeleteNote(ctx context.Context, titleSearch string) error
}

type Service struct {
	provider Provider
}

func New(di *do.Injector) (*Service, error) {
	return NewService(do.MustInvoke[Provider](di)), nil
}

func NewService(provider Provider) *Service {
	return &Service{provider: provider}
}

func (s *Service) Create(ctx context.Context, title, content string) (Note, error) {
	if title == "" {
		title = "New Note"
	}

	note, err := s.provider.CreateNote(ctx, title, content)
	if err != nil {
		return Note{}, oops.Wrapf(err, "failed to create note")
	}

	return note, nil
}

func (s *Service) Update(ctx context.Context, titleSearch, newContent string) (Note, error) {
	if titleSearch == "" {
		return Note{}, oops.Errorf("title search required")
	}

	note, err := s.provider.UpdateNote(ctx, titleSearch, newContent)
	if err != nil {
		return Note{}, oops.Wrapf(err, "failed to update note")
	}

	return note, nil
}

func (s *Service) Delete(ctx context.Context, titleSearch string) error {
	if titleSearch == "" {
		return oops.Errorf("title search required")
	}

	if err := s.provider.DeleteNote(ctx, titleSearch); err != nil {
		return oops.Wrapf(err, "failed to delete note")
	}

	return nil
}

// Unconfigured fails every operation with a descriptive error.
type Unconfigured struct{}

var _ Provider = Unconfigured{}

func (Unconfigured) CreateNote(context.Context, string, string) (Note, error) {
	return Note{}, oops.Errorf("notes provider not configured")
}

func (Unconfigured) UpdateNote(context.Context, string, string) (Note, error) {
	return Note{}, oops.Errorf("notes provider not configured")
}

func (Unconfigured) DeleteNote(context.Context, string) error {
	return oops.Errorf("notes provider not configured")
}
