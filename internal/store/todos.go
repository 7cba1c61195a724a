package store

import (
	"context"
	"fmt"
)

// Todo lists are personal: every query is scoped by the owner so one user can
// never read or change another user's lists.

func (s *PostgresStore) ListTodoLists(ctx context.Context, ownerID string) ([]TodoList, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, title, created_at, updated_at
		FROM todo_lists
		WHERE owner_id=$1
		ORDER BY created_at, id
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list todo lists: %w", err)
	}
	defer rows.Close()

	lists := make([]TodoList, 0)
	index := make(map[string]int)
	for rows.Next() {
		var list TodoList
		if err := rows.Scan(&list.ID, &list.OwnerID, &list.Title, &list.CreatedAt, &list.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan todo list: %w", err)
		}
		list.Todos = make([]Todo, 0)
		index[list.ID] = len(lists)
		lists = append(lists, list)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate todo lists: %w", err)
	}
	if len(lists) == 0 {
		return lists, nil
	}

	todoRows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.list_id, t.title, t.done, t.position, t.created_at, t.updated_at
		FROM todos t
		JOIN todo_lists l ON l.id = t.list_id
		WHERE l.owner_id=$1
		ORDER BY t.position, t.created_at
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	defer todoRows.Close()
	for todoRows.Next() {
		var todo Todo
		if err := todoRows.Scan(&todo.ID, &todo.ListID, &todo.Title, &todo.Done, &todo.Position, &todo.CreatedAt, &todo.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan todo: %w", err)
		}
		if i, ok := index[todo.ListID]; ok {
			lists[i].Todos = append(lists[i].Todos, todo)
		}
	}
	if err := todoRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate todos: %w", err)
	}
	return lists, nil
}

func (s *PostgresStore) InsertTodoList(ctx context.Context, list TodoList) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO todo_lists (id, owner_id, title) VALUES ($1, $2, $3)
	`, list.ID, list.OwnerID, list.Title)
	if err != nil {
		return fmt.Errorf("insert todo list: %w", err)
	}
	return nil
}

func (s *PostgresStore) RenameTodoList(ctx context.Context, ownerID, listID, title string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE todo_lists SET title=$3, updated_at=NOW() WHERE id=$1 AND owner_id=$2
	`, listID, ownerID, title)
	if err != nil {
		return fmt.Errorf("rename todo list: %w", err)
	}
	return requireAffected(result)
}

func (s *PostgresStore) DeleteTodoList(ctx context.Context, ownerID, listID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM todo_lists WHERE id=$1 AND owner_id=$2`, listID, ownerID)
	if err != nil {
		return fmt.Errorf("delete todo list: %w", err)
	}
	return requireAffected(result)
}

// InsertTodo appends a todo at the end of a list the owner holds.
func (s *PostgresStore) InsertTodo(ctx context.Context, ownerID string, todo Todo) (Todo, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO todos (id, list_id, title, position)
		SELECT $1, l.id, $3, COALESCE((SELECT MAX(position) + 1 FROM todos WHERE list_id = l.id), 0)
		FROM todo_lists l
		WHERE l.id=$2 AND l.owner_id=$4
		RETURNING position, done, created_at, updated_at
	`, todo.ID, todo.ListID, todo.Title, ownerID).Scan(&todo.Position, &todo.Done, &todo.CreatedAt, &todo.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return Todo{}, err
		}
		return Todo{}, fmt.Errorf("insert todo: %w", err)
	}
	return todo, nil
}

// UpdateTodo replaces title, done and position and returns the stored row.
func (s *PostgresStore) UpdateTodo(ctx context.Context, ownerID string, todo Todo) (Todo, error) {
	err := s.db.QueryRowContext(ctx, `
		UPDATE todos t
		SET title=$3, done=$4, position=$5, updated_at=NOW()
		FROM todo_lists l
		WHERE t.id=$1 AND l.id = t.list_id AND l.owner_id=$2
		RETURNING t.list_id, t.created_at, t.updated_at
	`, todo.ID, ownerID, todo.Title, todo.Done, todo.Position).Scan(&todo.ListID, &todo.CreatedAt, &todo.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return Todo{}, err
		}
		return Todo{}, fmt.Errorf("update todo: %w", err)
	}
	return todo, nil
}

// ToggleTodo flips done and returns the new value.
func (s *PostgresStore) ToggleTodo(ctx context.Context, ownerID, todoID string) (bool, error) {
	var done bool
	err := s.db.QueryRowContext(ctx, `
		UPDATE todos t
		SET done = NOT t.done, updated_at=NOW()
		FROM todo_lists l
		WHERE t.id=$1 AND l.id = t.list_id AND l.owner_id=$2
		RETURNING t.done
	`, todoID, ownerID).Scan(&done)
	if err != nil {
		if isNoRows(err) {
			return false, err
		}
		return false, fmt.Errorf("toggle todo: %w", err)
	}
	return done, nil
}

func (s *PostgresStore) DeleteTodo(ctx context.Context, ownerID, todoID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM todos t
		USING todo_lists l
		WHERE t.id=$1 AND l.id = t.list_id AND l.owner_id=$2
	`, todoID, ownerID)
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	return requireAffected(result)
}
