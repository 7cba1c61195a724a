package app

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"casedesk/api/internal/export"
	"casedesk/api/internal/listing"
	"casedesk/api/internal/media"
	"casedesk/api/internal/rbac"
)

func (s *HTTPServer) referenceRoutes(r chi.Router) {
	svc := s.service
	adminOnly := s.requireAction(rbac.ActionAdmin)

	r.Route("/case-types", func(r chi.Router) {
		r.Get("/", listHandler(s, svc.ListCaseTypes))
		r.Post("/", createHandler(s, svc.CreateCaseType))
		r.Get("/{id}", getHandler(s, svc.GetCaseType))
		r.Put("/{id}", updateHandler(s, svc.UpdateCaseType))
		r.With(adminOnly).Delete("/{id}", deleteHandler(s, svc.DeleteCaseType))
	})
	r.Route("/statuses", func(r chi.Router) {
		r.Get("/", listHandler(s, svc.ListStatuses))
		r.Post("/", createHandler(s, svc.CreateStatus))
		r.Get("/{id}", getHandler(s, svc.GetStatus))
		r.Put("/{id}", updateHandler(s, svc.UpdateStatus))
		r.With(adminOnly).Delete("/{id}", deleteHandler(s, svc.DeleteStatus))
	})
	r.Route("/tags", func(r chi.Router) {
		r.Get("/", listHandler(s, svc.ListTags))
		r.Post("/", createHandler(s, svc.CreateTag))
		r.Get("/{id}", getHandler(s, svc.GetTag))
		r.Put("/{id}", updateHandler(s, svc.UpdateTag))
		r.Delete("/{id}", deleteHandler(s, svc.DeleteTag))
	})
}

func (s *HTTPServer) partyRoutes(r chi.Router) {
	svc := s.service
	r.Route("/individuals", func(r chi.Router) {
		r.Get("/", listHandler(s, svc.ListIndividuals))
		r.Post("/", createHandler(s, svc.CreateIndividual))
		r.Get("/{id}", getHandler(s, svc.GetIndividual))
		r.Put("/{id}", updateHandler(s, svc.UpdateIndividual))
		r.Delete("/{id}", deleteHandler(s, svc.DeleteIndividual))
	})
	r.Route("/legal-entities", func(r chi.Router) {
		r.Get("/", listHandler(s, svc.ListLegalEntities))
		r.Post("/", createHandler(s, svc.CreateLegalEntity))
		r.Get("/{id}", getHandler(s, svc.GetLegalEntity))
		r.Put("/{id}", updateHandler(s, svc.UpdateLegalEntity))
		r.Delete("/{id}", deleteHandler(s, svc.DeleteLegalEntity))
	})
}

func (s *HTTPServer) caseRoutes(r chi.Router) {
	svc := s.service
	r.Route("/cases", func(r chi.Router) {
		r.Get("/", s.handleListCases)
		r.Post("/", createHandler(s, func(ctx context.Context, input CaseInput) (caseDetailView, error) {
			return svc.CreateCase(ctx, sessionFrom(ctx), input)
		}))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", getHandler(s, svc.GetCase))
			r.Put("/", updateHandler(s, func(ctx context.Context, id string, input CaseInput) (caseDetailView, error) {
				return svc.UpdateCase(ctx, sessionFrom(ctx), id, input)
			}))
			r.Delete("/", deleteHandler(s, svc.DeleteCase))

			r.Get("/history", s.handleCaseHistory)
			r.Get("/history/{hash}", s.handleCaseSnapshot)
			r.Get("/export", s.handleCaseExport)

			r.Get("/deadlines", itemsHandler(s, svc.ListCaseDeadlines))
			r.Post("/deadlines", s.handleCreateDeadline)
			r.Get("/media", itemsHandler(s, svc.ListCaseMedia))
			r.Post("/media", s.handleUploadMedia)
		})
	})
}

func (s *HTTPServer) handleListCases(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	q, err := listing.ParseQuery(values)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_QUERY", err.Error(), nil)
		return
	}
	page, err := s.service.ListCases(r.Context(), CaseListFilter{
		Query:      q,
		CaseTypeID: values.Get("typeId"),
		StatusID:   values.Get("statusId"),
		TagID:      values.Get("tagId"),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *HTTPServer) handleCaseHistory(w http.ResponseWriter, r *http.Request) {
	commits, err := s.service.CaseHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": commits})
}

func (s *HTTPServer) handleCaseSnapshot(w http.ResponseWriter, r *http.Request) {
	payload, err := s.service.CaseSnapshot(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "hash"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleCaseExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	result, err := s.service.ExportCase(r.Context(), chi.URLParam(r, "id"), format)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": result.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) deadlineRoutes(r chi.Router) {
	svc := s.service
	r.Get("/deadlines", func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.UpcomingDeadlines(r.Context(), r.URL.Query().Get("from"), r.URL.Query().Get("to"))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	})
	r.Get("/deadlines/overdue", func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.OverdueDeadlines(r.Context())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	})
	r.Put("/deadlines/{id}", updateHandler(s, svc.UpdateDeadline))
	r.Post("/deadlines/{id}/complete", s.handleCompleteDeadline)
	r.Delete("/deadlines/{id}", deleteHandler(s, svc.DeleteDeadline))
}

func (s *HTTPServer) handleCreateDeadline(w http.ResponseWriter, r *http.Request) {
	var input DeadlineInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	item, err := s.service.CreateDeadline(r.Context(), sessionFrom(r.Context()), chi.URLParam(r, "id"), input)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// handleCompleteDeadline takes {"done": false} to reopen; an empty body
// completes.
func (s *HTTPServer) handleCompleteDeadline(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Done *bool `json:"done"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	done := body.Done == nil || *body.Done
	item, err := s.service.CompleteDeadline(r.Context(), chi.URLParam(r, "id"), done)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *HTTPServer) mediaRoutes(r chi.Router) {
	svc := s.service
	r.Get("/media/{id}", s.handleDownloadMedia)
	r.Delete("/media/{id}", deleteHandler(s, svc.DeleteMedia))
	r.Put("/media/{id}/tags", updateHandler(s, svc.SetMediaTags))
}

func (s *HTTPServer) handleUploadMedia(w http.ResponseWriter, r *http.Request) {
	upload, err := media.ReadUpload(w, r)
	if err != nil {
		if errors.Is(err, media.ErrTooLarge) || errors.Is(err, media.ErrEmptyFile) {
			s.fail(w, r, err)
			return
		}
		writeError(w, http.StatusBadRequest, "INVALID_UPLOAD", "Expected a multipart form with a file field", nil)
		return
	}
	defer upload.Close()

	item, err := s.service.UploadMedia(r.Context(), sessionFrom(r.Context()), chi.URLParam(r, "id"), upload)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *HTTPServer) handleDownloadMedia(w http.ResponseWriter, r *http.Request) {
	item, body, err := s.service.OpenMedia(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", item.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": item.FileName}))
	if item.SizeBytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(item.SizeBytes, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		s.logger.Warn("stream attachment", zap.String("media_id", item.ID), zap.Error(err))
	}
}

func (s *HTTPServer) todoRoutes(r chi.Router) {
	svc := s.service
	r.Route("/todo-lists", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			lists, err := svc.ListTodoLists(r.Context(), sessionFrom(r.Context()))
			if err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"items": lists})
		})
		r.Post("/", createHandler(s, func(ctx context.Context, input TodoListInput) (todoListView, error) {
			return svc.CreateTodoList(ctx, sessionFrom(ctx), input)
		}))
		r.Put("/{id}", updateHandler(s, func(ctx context.Context, id string, input TodoListInput) (map[string]any, error) {
			if err := svc.RenameTodoList(ctx, sessionFrom(ctx), id, input); err != nil {
				return nil, err
			}
			return map[string]any{"id": id, "title": input.Title}, nil
		}))
		r.Delete("/{id}", deleteHandler(s, func(ctx context.Context, id string) error {
			return svc.DeleteTodoList(ctx, sessionFrom(ctx), id)
		}))
		r.Post("/{id}/todos", func(w http.ResponseWriter, r *http.Request) {
			var input TodoListInput
			if err := decodeBody(r, &input); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			todo, err := svc.CreateTodo(r.Context(), sessionFrom(r.Context()), chi.URLParam(r, "id"), input)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, todo)
		})
	})
	r.Route("/todos/{id}", func(r chi.Router) {
		r.Put("/", updateHandler(s, func(ctx context.Context, id string, input TodoInput) (todoView, error) {
			return svc.UpdateTodo(ctx, sessionFrom(ctx), id, input)
		}))
		r.Post("/toggle", func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "id")
			done, err := svc.ToggleTodo(r.Context(), sessionFrom(r.Context()), id)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"id": id, "done": done})
		})
		r.Delete("/", deleteHandler(s, func(ctx context.Context, id string) error {
			return svc.DeleteTodo(ctx, sessionFrom(ctx), id)
		}))
	})
}

func (s *HTTPServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := s.service.DashboardSummary(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	limit, err := optionalInt(values.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_QUERY", "limit must be an integer", nil)
		return
	}
	offset, err := optionalInt(values.Get("offset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_QUERY", "offset must be an integer", nil)
		return
	}
	resp, err := s.service.Search(r.Context(), values.Get("q"), values.Get("type"), limit, offset)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func optionalInt(value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}
