package tasks

import (
	"context"
	"strings"
	"time"

	"donna/app/storage/recordstore"

	"github.com/elliotchance/pie/v2"
	"github.com/google/uuid"
	"github.com/samber/do"
	"github.com/samber/oops"
)

const tasksCollection = "tasks"

var ErrNotFound = oops.Errorf("task not found")

type Task struct {
	ID          string
	UserID      string
	Title       string
	Description string
	Priority    string
	Deadline    *time.Time
	Status      string
	CreatedAt   time.Time
}

// Service is the task collaborator, backed by the generic record store.
type Service struct {
	store recordstore.Store
}

func New(di *do.Injector) (*Service, error) {
	return NewService(do.MustInvoke[recordstore.Store](di)), nil
}

func NewService(store recordstore.Store) *Service {
	return &Service{store: store}
}

func (s *Service) Create(ctx context.Context, userID, title, description, priority, deadline string) (string, error) {
	if title == "" {
		title = "New Task"
	}
	if priority == "" {
		priority = "medium"
	}

	rec := recordstore.Record{
		"id":          uuid.NewString(),
		"user_id":     userID,
		"title":       title,
		"description": description,
		"priority":    priority,
		"status":      "pending",
		"created_at":  time.Now().Format(time.RFC3339),
	}

	if deadline != "" {
		parsed, err := parseDeadline(deadline)
		if err != nil {
			return "", oops.Wrapf(err, "failed to parse deadline %q", deadline)
		}
		rec["deadline"] = parsed.Format(time.RFC3339)
	}

	if err := s.store.Append(ctx, tasksCollection, rec); err != nil {
		return "", oops.Wrapf(err, "failed to create task")
	}

	msg := "Task created: " + title + " (Priority: " + priority
	if rec["deadline"] != "" {
		deadlineTime, _ := time.Parse(time.RFC3339, rec["deadline"])
		msg += ", Due: " + deadlineTime.Format("Mon Jan 02 03:04PM")
	}
	msg += ")"

	return msg, nil
}

func (s *Service) Complete(ctx context.Context, userID, taskID string) (string, error) {
	ref, found, err := s.store.FindRef(ctx, tasksCollection, userID, taskID)
	if err != nil {
		return "", oops.Wrapf(err, "failed to locate task")
	}
	if !found {
		return "", ErrNotFound
	}

	err = s.store.Update(ctx, tasksCollection, ref, recordstore.Record{
		"status":       "completed",
		"completed_at": time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return "", oops.Wrapf(err, "failed to complete task")
	}

	return "Task completed", nil
}

// Update changes task priority and/or deadline. Empty fields are left as-is.
func (s *Service) Update(ctx context.Context, userID, taskID, priority, deadline string) (string, error) {
	ref, found, err := s.store.FindRef(ctx, tasksCollection, userID, taskID)
	if err != nil {
		return "", oops.Wrapf(err, "failed to locate task")
	}
	if !found {
		return "", ErrNotFound
	}

	partial := recordstore.Record{}
	if priority != "" {
		partial["priority"] = priority
	}
	if deadline != "" {
		parsed, err := parseDeadline(deadline)
		if err != nil {
			return "", oops.Wrapf(err, "failed to parse deadline %q", deadline)
		}
		partial["deadline"] = parsed.Format(time.RFC3339)
	}

	if len(partial) == 0 {
		return "Nothing to update", nil
	}

	if err = s.store.Update(ctx, tasksCollection, ref, partial); err != nil {
		return "", oops.Wrapf(err, "failed to update task")
	}

	return "Task updated", nil
}

// Delete marks a task deleted. Rows are kept, matching the memory store's
// soft-delete behavior.
func (s *Service) Delete(ctx context.Context, userID, taskID string) (string, error) {
	ref, found, err := s.store.FindRef(ctx, tasksCollection, userID, taskID)
	if err != nil {
		return "", oops.Wrapf(err, "failed to locate task")
	}
	if !found {
		return "", ErrNotFound
	}

	err = s.store.Update(ctx, tasksCollection, ref, recordstore.Record{
		"status":     "deleted",
		"deleted_at": time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return "", oops.Wrapf(err, "failed to delete task")
	}

	return "Task deleted", nil
}

// ListPrioritized returns tasks ordered by priority rank, then deadline
// proximity. status filters to a single status; "all" returns everything
// except deleted tasks.
func (s *Service) ListPrioritized(ctx context.Context, userID string, limit int, status string) ([]Task, error) {
	records, err := s.store.Get(ctx, tasksCollection, userID)
	if err != nil {
		return nil, oops.Wrapf(err, "failed to load tasks")
	}

	tasks := pie.Map(records, taskFrom)

	tasks = pie.Filter(tasks, func(t Task) bool {
		if t.Status == "deleted" {
			return false
		}
		if status == "" || status == "all" {
			return true
		}
		return t.Status == status
	})

	tasks = pie.SortUsing(tasks, func(a, b Task) bool {
		if ra, rb := priorityRank(a.Priority), priorityRank(b.Priority); ra != rb {
			return ra < rb
		}

		switch {
		case a.Deadline == nil && b.Deadline == nil:
			return a.CreatedAt.Before(b.CreatedAt)
		case a.Deadline == nil:
			return false
		case b.Deadline == nil:
			return true
		default:
			return a.Deadline.Before(*b.Deadline)
		}
	})

	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}

	return tasks, nil
}

// FindByTitle resolves a task id from a title search: exact match wins,
// then the first substring match.
func (s *Service) FindByTitle(ctx context.Context, userID, search string) (string, bool, error) {
	if search == "" {
		return "", false, nil
	}

	tasks, err := s.ListPrioritized(ctx, userID, 0, "all")
	if err != nil {
		return "", false, err
	}

	lower := strings.ToLower(search)

	for _, task := range tasks {
		if strings.ToLower(task.Title) == lower {
			return task.ID, true, nil
		}
	}

	for _, task := range tasks {
		if strings.Contains(strings.ToLower(task.Title), lower) {
			return task.ID, true, nil
		}
	}

	return "", false, nil
}

func taskFrom(rec recordstore.Record) Task {
	task := Task{
		ID:          rec["id"],
		UserID:      rec["user_id"],
		Title:       rec["title"],
		Description: rec["description"],
		Priority:    rec["priority"],
		Status:      rec["status"],
	}

	if task.Priority == "" {
		task.Priority = "medium"
	}
	if task.Status == "" {
		task.Status = "pending"
	}

	if rec["deadline"] != "" {
		if deadline, err := time.Parse(time.RFC3339, rec["deadline"]); err == nil {
			task.Deadline = &deadline
		}
	}

	task.CreatedAt, _ = time.Parse(time.RFC3339, rec["created_at"])

	return task
}

func priorityRank(priority string) int {
	switch priority {
	case "high":
		return 0
	case "medium":
		return 1
	case "low":
		return 2
	default:
		return 1
	}
}

func parseDeadline(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}

	return time.Time{}, oops.Errorf("unsupported deadline format")
}
