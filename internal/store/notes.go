package store

import (
	"context"
	"fmt"
	"time"

	"github.com/sells-group/farm-ledger/internal/model"
)

// Note appends a formatted note to a record and returns it as an Outcome.
func Note(ctx context.Context, r Repo, entity string, id int64, at time.Time, format string, args ...any) (model.Outcome, error) {
	n := &model.Note{Entity: entity, EntityID: id, Body: fmt.Sprintf(format, args...), CreatedAt: at}
	if err := r.AddNote(ctx, n); err != nil {
		return model.Outcome{}, err
	}
	return model.Outcome{Entity: entity, ID: id, Message: n.Body}, nil
}

// Warn is Note for soft failures.
func Warn(ctx context.Context, r Repo, entity string, id int64, at time.Time, format string, args ...any) (model.Outcome, error) {
	out, err := Note(ctx, r, entity, id, at, format, args...)
	out.Warning = err == nil
	return out, err
}
