package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"homedash/internal/apperr"
	"homedash/internal/model"
)

// TodoDraft is the body of a todo creation request.
type TodoDraft struct {
	Text    string `json:"text"`
	DueDate string `json:"dueDate"`
}

// TodoPatch carries only the fields a client sent. Completed toggles
// the completion stamp.
type TodoPatch struct {
	ID        string           `json:"id"`
	Text      Optional[string] `json:"text"`
	DueDate   Optional[string] `json:"dueDate"`
	Completed Optional[bool]   `json:"completed"`
}

type todoRow struct {
	ID          string `db:"id"`
	Text        string `db:"text"`
	DueDate     string `db:"due_date"`
	CreatedBy   string `db:"created_by"`
	CreatedAt   string `db:"created_at"`
	UpdatedAt   string `db:"updated_at"`
	CompletedAt string `db:"completed_at"`
	CompletedBy string `db:"completed_by"`
}

func (r todoRow) Convert() model.Todo {
	return model.Todo{
		ID:          r.ID,
		Text:        r.Text,
		DueDate:     r.DueDate,
		CreatedBy:   r.CreatedBy,
		CreatedAt:   parseStamp(r.CreatedAt),
		UpdatedAt:   parseStamp(r.UpdatedAt),
		CompletedAt: parseStamp(r.CompletedAt),
		CompletedBy: r.CompletedBy,
	}
}

func toTodoRow(t model.Todo) todoRow {
	row := todoRow{
		ID:          t.ID,
		Text:        t.Text,
		DueDate:     t.DueDate,
		CreatedBy:   t.CreatedBy,
		CreatedAt:   stamp(t.CreatedAt),
		UpdatedAt:   stamp(t.UpdatedAt),
		CompletedBy: t.CompletedBy,
	}
	if t.Completed() {
		row.CompletedAt = stamp(t.CompletedAt)
	}
	return row
}

const todoColumns = `id, text, due_date, created_by, created_at, updated_at, completed_at, completed_by`

// Todos is the shared to-do list. Any signed-in user may change it.
type Todos struct {
	db Querier
}

func NewTodos(db Querier) *Todos {
	return &Todos{db: db}
}

func (s *Todos) List(ctx context.Context) ([]model.Todo, error) {
	var rows []todoRow
	if err := sqlxSelect(ctx, s.db, &rows, `SELECT `+todoColumns+` FROM todos ORDER BY created_at`); err != nil {
		return nil, apperr.Persistence("Unable to load todos", err)
	}
	out := make([]model.Todo, len(rows))
	for i, r := range rows {
		out[i] = r.Convert()
	}
	return out, nil
}

func (s *Todos) Get(ctx context.Context, id string) (model.Todo, error) {
	var row todoRow
	err := sqlxGet(ctx, s.db, &row, `SELECT `+todoColumns+` FROM todos WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Todo{}, apperr.NotFound("Todo not found")
	}
	if err != nil {
		return model.Todo{}, apperr.Persistence("Unable to load todos", err)
	}
	return row.Convert(), nil
}

func (s *Todos) Create(ctx context.Context, draft TodoDraft, session model.Session) (model.Todo, error) {
	text := strings.TrimSpace(draft.Text)
	if text == "" {
		return model.Todo{}, apperr.Validation("Missing task")
	}
	due, ok := parseDateValue(draft.DueDate)
	if !ok {
		return model.Todo{}, apperr.Validation("Invalid due date")
	}

	now := clock()
	todo := model.Todo{
		ID:        uuid.NewString(),
		Text:      text,
		DueDate:   due,
		CreatedBy: session.User,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.insert(ctx, todo, false); err != nil {
		return model.Todo{}, apperr.Persistence("Unable to save todo", err)
	}
	return todo, nil
}

func (s *Todos) Update(ctx context.Context, patch TodoPatch, session model.Session) (model.Todo, error) {
	id := strings.TrimSpace(patch.ID)
	if id == "" {
		return model.Todo{}, apperr.Validation("Missing todo id")
	}

	var text, due string
	var ok bool
	if patch.Text.Set {
		if text = strings.TrimSpace(patch.Text.Value); text == "" {
			return model.Todo{}, apperr.Validation("Missing task")
		}
	}
	if patch.DueDate.Set {
		if due, ok = parseDateValue(patch.DueDate.Value); !ok {
			return model.Todo{}, apperr.Validation("Invalid due date")
		}
	}

	next, err := s.Get(ctx, id)
	if err != nil {
		return model.Todo{}, err
	}

	now := clock()
	if patch.Text.Set {
		next.Text = text
	}
	if patch.DueDate.Set {
		next.DueDate = due
	}
	if patch.Completed.Set {
		if patch.Completed.Value {
			next.CompletedAt = now
			next.CompletedBy = session.User
		} else {
			next.CompletedAt = time.Time{}
			next.CompletedBy = ""
		}
	}
	next.UpdatedAt = now

	row := toTodoRow(next)
	_, err = s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE todos
		SET text = ?, due_date = ?, updated_at = ?, completed_at = ?, completed_by = ?
		WHERE id = ?
	`), row.Text, row.DueDate, row.UpdatedAt, row.CompletedAt, row.CompletedBy, row.ID)
	if err != nil {
		return model.Todo{}, apperr.Persistence("Unable to update todo", err)
	}
	return next, nil
}

func (s *Todos) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperr.Validation("Missing todo id")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM todos WHERE id = ?`), id); err != nil {
		return apperr.Persistence("Unable to delete todo", err)
	}
	return nil
}

func (s *Todos) insert(ctx context.Context, t model.Todo, upsert bool) error {
	q := `INSERT INTO todos (` + todoColumns + `)
		VALUES (:id, :text, :due_date, :created_by, :created_at, :updated_at, :completed_at, :completed_by)`
	if upsert {
		q += ` ON CONFLICT (id) DO UPDATE SET
			text = excluded.text, due_date = excluded.due_date, created_by = excluded.created_by,
			created_at = excluded.created_at, updated_at = excluded.updated_at,
			completed_at = excluded.completed_at, completed_by = excluded.completed_by`
	}
	_, err := sqlxNamedExec(ctx, s.db, q, toTodoRow(t))
	return err
}
