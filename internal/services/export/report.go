package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/tasker/internal/models"
)

const dateLayout = "2006-01-02 15:04 MST"

// report is the format-neutral view of a user's tasks
type report struct {
	Title       string       `yaml:"title"`
	Owner       string       `yaml:"owner"`
	GeneratedAt time.Time    `yaml:"generated_at"`
	Summary     summary      `yaml:"summary"`
	Tasks       []reportTask `yaml:"tasks"`
}

type summary struct {
	Total      int `yaml:"total"`
	ToDo       int `yaml:"to_do"`
	InProgress int `yaml:"in_progress"`
	Done       int `yaml:"done"`
	Overdue    int `yaml:"overdue"`
}

type reportTask struct {
	ID          string     `yaml:"id"`
	Title       string     `yaml:"title"`
	Description string     `yaml:"description,omitempty"`
	Priority    string     `yaml:"priority"`
	State       string     `yaml:"state"`
	Deadline    *time.Time `yaml:"deadline,omitempty"`
	Overdue     bool       `yaml:"overdue"`
	CreatedAt   time.Time  `yaml:"created_at"`
	UpdatedAt   time.Time  `yaml:"updated_at"`
}

func newReport(user *models.User, tasks []*models.Task, now time.Time) *report {
	r := &report{
		Title:       "Tasks for " + user.Username,
		Owner:       user.Username,
		GeneratedAt: now,
		Tasks:       make([]reportTask, 0, len(tasks)),
	}

	for _, t := range tasks {
		item := reportTask{
			ID:        t.ID,
			Title:     t.Title,
			Priority:  string(t.Priority),
			State:     string(t.State),
			Deadline:  t.Deadline,
			Overdue:   t.IsOverdue(now),
			CreatedAt: t.CreatedAt,
			UpdatedAt: t.UpdatedAt,
		}
		if t.Description != nil {
			item.Description = *t.Description
		}
		r.Tasks = append(r.Tasks, item)

		r.Summary.Total++
		switch t.State {
		case models.TaskStateToDo:
			r.Summary.ToDo++
		case models.TaskStateInProgress:
			r.Summary.InProgress++
		case models.TaskStateDone:
			r.Summary.Done++
		}
		if item.Overdue {
			r.Summary.Overdue++
		}
	}

	return r
}

func (r *report) markdown() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", r.Title)
	fmt.Fprintf(&sb, "Generated %s\n\n", r.GeneratedAt.Format(dateLayout))

	sb.WriteString("## Summary\n\n")
	fmt.Fprintf(&sb, "- **Total:** %d\n", r.Summary.Total)
	fmt.Fprintf(&sb, "- **To do:** %d\n", r.Summary.ToDo)
	fmt.Fprintf(&sb, "- **In progress:** %d\n", r.Summary.InProgress)
	fmt.Fprintf(&sb, "- **Done:** %d\n", r.Summary.Done)
	fmt.Fprintf(&sb, "- **Overdue:** %d\n\n", r.Summary.Overdue)

	sb.WriteString("## Tasks\n\n")
	if len(r.Tasks) == 0 {
		sb.WriteString("No tasks.\n")
		return sb.String()
	}

	sb.WriteString("| Title | Priority | State | Deadline | Description |\n")
	sb.WriteString("|---|---|---|---|---|\n")
	for _, t := range r.Tasks {
		fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s |\n",
			cell(t.Title), t.Priority, t.State, t.deadlineText(), cell(t.Description))
	}

	return sb.String()
}

func (t reportTask) deadlineText() string {
	if t.Deadline == nil {
		return "-"
	}
	text := t.Deadline.UTC().Format(dateLayout)
	if t.Overdue {
		text += " (overdue)"
	}
	return text
}

// cell keeps user text from breaking the table layout
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "\n", " ")
}
