package postgres

import (
	"database/sql"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskrelay/taskrelay/internal/domain"
	"github.com/taskrelay/taskrelay/internal/store"
)

func TestNewPostgresTaskStore(t *testing.T) {
	t.Run("panics on nil db", func(t *testing.T) {
		assert.Panics(t, func() {
			NewPostgresTaskStore(nil, slog.Default())
		})
	})

	t.Run("uses default logger when nil", func(t *testing.T) {
		s := NewPostgresTaskStore(&sql.DB{}, nil)
		require.NotNil(t, s)
		assert.NotNil(t, s.logger)
	})
}

func TestTaskStoreWithTx(t *testing.T) {
	db := &sql.DB{}
	s := NewPostgresTaskStore(db, slog.Default())

	tx := &sql.Tx{}
	result := s.WithTx(tx)
	require.NotNil(t, result)

	txStore, ok := result.(*PostgresTaskStore)
	require.True(t, ok, "WithTx should return a PostgresTaskStore instance")
	assert.Equal(t, tx, txStore.db, "WithTx store should use the provided transaction")
	assert.Equal(t, s.logger, txStore.logger, "WithTx store should preserve the logger")
}

func TestBuildTaskFilter(t *testing.T) {
	status := domain.TaskStatusPending
	priority := domain.TaskPriorityHigh
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		filter    store.TaskFilter
		wantWhere string
		wantArgs  []any
	}{
		{
			name:      "empty filter",
			filter:    store.TaskFilter{},
			wantWhere: "",
			wantArgs:  nil,
		},
		{
			name:      "status only",
			filter:    store.TaskFilter{Status: &status},
			wantWhere: " WHERE status = $1",
			wantArgs:  []any{status},
		},
		{
			name:      "priority only",
			filter:    store.TaskFilter{Priority: &priority},
			wantWhere: " WHERE priority = $1",
			wantArgs:  []any{priority},
		},
		{
			name:      "created range",
			filter:    store.TaskFilter{CreatedFrom: &from, CreatedTo: &to},
			wantWhere: " WHERE created_at >= $1 AND created_at <= $2",
			wantArgs:  []any{from, to},
		},
		{
			name: "all predicates",
			filter: store.TaskFilter{
				Status:      &status,
				Priority:    &priority,
				CreatedFrom: &from,
				CreatedTo:   &to,
			},
			wantWhere: " WHERE status = $1 AND priority = $2 AND created_at >= $3 AND created_at <= $4",
			wantArgs:  []any{status, priority, from, to},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := buildTaskFilter(tt.filter)
			assert.Equal(t, tt.wantWhere, where)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}
