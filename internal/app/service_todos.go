package app

import (
	"context"
	"strings"

	"casedesk/api/internal/store"
	"casedesk/api/internal/util"
)

// Todo lists belong to the caller. Another user's list or todo answers 404.

func (s *Service) ListTodoLists(ctx context.Context, sess Session) ([]todoListView, error) {
	lists, err := s.store.ListTodoLists(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	return mapSlice(lists, toTodoListView), nil
}

func (s *Service) CreateTodoList(ctx context.Context, sess Session, input TodoListInput) (todoListView, error) {
	if err := s.validateInput(input); err != nil {
		return todoListView{}, err
	}
	list := store.TodoList{ID: util.NewID("tdl"), OwnerID: sess.UserID, Title: strings.TrimSpace(input.Title)}
	if err := s.store.InsertTodoList(ctx, list); err != nil {
		return todoListView{}, err
	}
	list.Todos = []store.Todo{}
	return toTodoListView(list), nil
}

func (s *Service) RenameTodoList(ctx context.Context, sess Session, id string, input TodoListInput) error {
	if err := s.validateInput(input); err != nil {
		return err
	}
	return s.store.RenameTodoList(ctx, sess.UserID, id, strings.TrimSpace(input.Title))
}

func (s *Service) DeleteTodoList(ctx context.Context, sess Session, id string) error {
	return s.store.DeleteTodoList(ctx, sess.UserID, id)
}

func (s *Service) CreateTodo(ctx context.Context, sess Session, listID string, input TodoListInput) (todoView, error) {
	if err := s.validateInput(input); err != nil {
		return todoView{}, err
	}
	todo, err := s.store.InsertTodo(ctx, sess.UserID, store.Todo{
		ID:     util.NewID("todo"),
		ListID: listID,
		Title:  strings.TrimSpace(input.Title),
	})
	if err != nil {
		return todoView{}, err
	}
	return toTodoView(todo), nil
}

func (s *Service) UpdateTodo(ctx context.Context, sess Session, id string, input TodoInput) (todoView, error) {
	if err := s.validateInput(input); err != nil {
		return todoView{}, err
	}
	todo := store.Todo{ID: id, Title: strings.TrimSpace(input.Title), Done: input.Done, Position: input.Position}
	updated, err := s.store.UpdateTodo(ctx, sess.UserID, todo)
	if err != nil {
		return todoView{}, err
	}
	return toTodoView(updated), nil
}

func (s *Service) ToggleTodo(ctx context.Context, sess Session, id string) (bool, error) {
	return s.store.ToggleTodo(ctx, sess.UserID, id)
}

func (s *Service) DeleteTodo(ctx context.Context, sess Session, id string) error {
	return s.store.DeleteTodo(ctx, sess.UserID, id)
}
