package email

import (
	"context"

	"github.com/samber/do"
	"github.com/samber/oops"
)

type Draft struct {
	To      string
	Subject string
	Body    string
}

type Message struct {
	ID      string
	From    string
	Subject string
	Snippet string
}

// Provider is the mail backend (Gmail in production). Out of scope here.
type Provider interface {
	CreateDraft(ctx context.Context, draft Draft) (Draft, error)
	Send(ctx context.Context, draft Draft) (Draft, error)
	FindFromSender(ctx context.Context, senderName string) (*Message, error)
	CreateReplyDraft(ctx context.Context, original Message, body string) (Draft, error)
	ListContacts(ctx context.Context) (map[string]string, error)
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

func (s *Service) CreateDraft(ctx context.Context, to, subject, body string) (Draft, error) {
	if to == "" {
		return Draft{}, oops.Errorf("recipient required")
	}

	draft, err := s.provider.CreateDraft(ctx, Draft{To: to, Subject: subject, Body: body})
	if err != nil {
		return Draft{}, oops.Wrapf(err, "failed to create draft")
	}

	return draft, nil
}

func (s *Service) Send(ctx context.Context, to, subject, body string) (Draft, error) {
	if to == "" {
		return Draft{}, oops.Errorf("recipient required")
	}

	sent, err := s.provider.Send(ctx, Draft{To: to, Subject: subject, Body: body})
	if err != nil {
		return Draft{}, oops.Wrapf(err, "failed to send email")
	}

	return sent, nil
}

// ReplyToSender drafts a reply to the most recent email from the named
// sender.
func (s *Service) ReplyToSender(ctx context.Context, senderName, body string) (Draft, error) {
	original, err := s.provider.FindFromSender(ctx, senderName)
	if err != nil {
		return Draft{}, oops.Wrapf(err, "failed to search sender %q", senderName)
	}
	if original == nil {
		return Draft{}, oops.Errorf("no recent email from %q found", senderName)
	}

	draft, err := s.provider.CreateReplyDraft(ctx, *original, body)
	if err != nil {
		return Draft{}, oops.Wrapf(err, "failed to create reply draft")
	}

	return draft, nil
}

func (s *Service) ListContacts(ctx context.Context) (map[string]string, error) {
	contacts, err := s.provider.ListContacts(ctx)
	if err != nil {
		return nil, oops.Wrapf(err, "failed to list contacts")
	}

	return contacts, nil
}

// Unconfigured fails every operation with a descriptive error.
type Unconfigured struct{}

var _ Provider = Unconfigured{}

func (Unconfigured) CreateDraft(context.Context, Draft) (Draft, error) {
	return Draft{}, oops.Errorf("email provider not configured")
}

func (Unconfigured) Send(context.Context, Draft) (Draft, error) {
	return Draft{}, oops.Errorf("email provider not configured")
}

func (Unconfigured) FindFromSender(context.Context, string) (*Message, error) {
	return nil, oops.Errorf("email provider not configured")
}

func (Unconfigured) CreateReplyDraft(context.Context, Message, string) (Draft, error) {
	return Draft{}, oops.Errorf("email provider not configured")
}

func (Unconfigured) ListContacts(context.Context) (map[string]string, error) {
	return nil, oops.Errorf("email provider not configured")
}
