package app

import (
	"context"
	"database/sql"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"casedesk/api/internal/authpw"
	"casedesk/api/internal/casehistory"
	"casedesk/api/internal/config"
	"casedesk/api/internal/search"
	"casedesk/api/internal/session"
	"casedesk/api/internal/store"
)

var (
	errUnique     = &pgconn.PgError{Code: "23505", TableName: "legal_cases", ConstraintName: "legal_cases_code_key"}
	errForeignKey = &pgconn.PgError{Code: "23503"}
)

// fakeStore is an in-memory dataStore. Methods a test does not need fall
// through to the nil embedded interface and panic.
type fakeStore struct {
	dataStore

	mu          sync.Mutex
	pingFn      func(context.Context) error
	users       map[string]store.User
	resets      map[string]string
	caseTypes   map[string]store.CaseType
	statuses    map[string]store.Status
	tags        map[string]store.Tag
	individuals map[string]store.Individual
	cases       map[string]store.LegalCase
	links       map[string][]store.CaseParticipant
	caseTags    map[string][]string
	deadlines   map[string]store.Deadline
	media       map[string]store.Media
	todoLists   map[string]store.TodoList
	todos       map[string]store.Todo
	seeded      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:       map[string]store.User{},
		resets:      map[string]string{},
		caseTypes:   map[string]store.CaseType{},
		statuses:    map[string]store.Status{},
		tags:        map[string]store.Tag{},
		individuals: map[string]store.Individual{},
		cases:       map[string]store.LegalCase{},
		links:       map[string][]store.CaseParticipant{},
		caseTags:    map[string][]string{},
		deadlines:   map[string]store.Deadline{},
		media:       map[string]store.Media{},
		todoLists:   map[string]store.TodoList{},
		todos:       map[string]store.Todo{},
	}
}

func sortedValues[T any](m map[string]T, less func(a, b T) bool) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func (f *fakeStore) ApplyReferenceSeed(context.Context, store.ReferenceSeed) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeded++
	return nil
}

// Users, implementing authpw.UserStore as well.

func (f *fakeStore) GetUserByID(_ context.Context, id string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if strings.EqualFold(user.Email, strings.TrimSpace(email)) {
			return user, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) CreateUser(_ context.Context, user store.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[user.ID] = user
	return nil
}

func (f *fakeStore) UpdateUserVerificationToken(_ context.Context, userID, token string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	user.VerificationToken = token
	user.VerificationExpiresAt = &expiresAt
	f.users[userID] = user
	return nil
}

func (f *fakeStore) VerifyUserEmail(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, user := range f.users {
		if token != "" && user.VerificationToken == token {
			user.IsEmailVerified = true
			user.VerificationToken = ""
			f.users[id] = user
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f *fakeStore) UpdateUserPassword(_ context.Context, userID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := f.users[userID]
	user.PasswordHash = hash
	f.users[userID] = user
	return nil
}

func (f *fakeStore) CreatePasswordReset(_ context.Context, userID, token string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets[token] = userID
	return nil
}

func (f *fakeStore) GetPasswordReset(_ context.Context, token string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, ok := f.resets[token]
	if !ok {
		return "", sql.ErrNoRows
	}
	return userID, nil
}

func (f *fakeStore) MarkPasswordResetUsed(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.resets, token)
	return nil
}

func (f *fakeStore) SetTOTPSecret(_ context.Context, userID, secret string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := f.users[userID]
	user.TOTPSecret = secret
	f.users[userID] = user
	return nil
}

func (f *fakeStore) SetTOTPEnabled(_ context.Context, userID string, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := f.users[userID]
	user.TOTPEnabled = enabled
	f.users[userID] = user
	return nil
}

// Reference data.

func (f *fakeStore) ListCaseTypes(context.Context) ([]store.CaseType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return sortedValues(f.caseTypes, func(a, b store.CaseType) bool { return a.Name < b.Name }), nil
}

func (f *fakeStore) GetCaseType(_ context.Context, id string) (store.CaseType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.caseTypes[id]
	if !ok {
		return store.CaseType{}, sql.ErrNoRows
	}
	return item, nil
}

func (f *fakeStore) InsertCaseType(_ context.Context, item store.CaseType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.caseTypes[item.ID] = item
	return nil
}

func (f *fakeStore) UpdateCaseType(_ context.Context, item store.CaseType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.caseTypes[item.ID]; !ok {
		return sql.ErrNoRows
	}
	f.caseTypes[item.ID] = item
	return nil
}

func (f *fakeStore) DeleteCaseType(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.caseTypes[id]; !ok {
		return sql.ErrNoRows
	}
	for _, c := range f.cases {
		if c.CaseTypeID == id {
			return errForeignKey
		}
	}
	delete(f.caseTypes, id)
	return nil
}

func (f *fakeStore) ListStatuses(context.Context) ([]store.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return sortedValues(f.statuses, func(a, b store.Status) bool { return a.SortOrder < b.SortOrder }), nil
}

func (f *fakeStore) GetStatus(_ context.Context, id string) (store.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.statuses[id]
	if !ok {
		return store.Status{}, sql.ErrNoRows
	}
	return item, nil
}

func (f *fakeStore) InsertStatus(_ context.Context, item store.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[item.ID] = item
	return nil
}

func (f *fakeStore) DeleteStatus(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.statuses[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.statuses, id)
	return nil
}

func (f *fakeStore) ListTags(context.Context) ([]store.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return sortedValues(f.tags, func(a, b store.Tag) bool { return a.Name < b.Name }), nil
}

func (f *fakeStore) GetTag(_ context.Context, id string) (store.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.tags[id]
	if !ok {
		return store.Tag{}, sql.ErrNoRows
	}
	return item, nil
}

func (f *fakeStore) InsertTag(_ context.Context, item store.Tag) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tags[item.ID] = item
	return nil
}

func (f *fakeStore) DeleteTag(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tags[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.tags, id)
	return nil
}

// Parties.

func (f *fakeStore) SearchIndividuals(_ context.Context, query string, limit, offset int) ([]store.Individual, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := sortedValues(f.individuals, func(a, b store.Individual) bool { return a.LastName < b.LastName })
	matched := make([]store.Individual, 0)
	for _, item := range all {
		if query == "" || strings.Contains(strings.ToLower(item.FullName()), strings.ToLower(query)) {
			matched = append(matched, item)
		}
	}
	total := len(matched)
	if offset >= total {
		return []store.Individual{}, total, nil
	}
	end := min(offset+limit, total)
	return matched[offset:end], total, nil
}

func (f *fakeStore) GetIndividual(_ context.Context, id string) (store.Individual, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.individuals[id]
	if !ok {
		return store.Individual{}, sql.ErrNoRows
	}
	return item, nil
}

func (f *fakeStore) InsertIndividual(_ context.Context, item store.Individual) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.individuals[item.ID] = item
	return nil
}

func (f *fakeStore) DeleteIndividual(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.individuals[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.individuals, id)
	return nil
}

// Cases.

func (f *fakeStore) fillCase(item store.LegalCase) store.LegalCase {
	item.CaseType = f.caseTypes[item.CaseTypeID].Name
	if item.StatusID != nil {
		item.Status = f.statuses[*item.StatusID].Name
	}
	item.OwnerName = f.users[item.OwnerID].DisplayName
	return item
}

func (f *fakeStore) SearchCases(_ context.Context, filter store.CaseFilter) ([]store.LegalCase, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := sortedValues(f.cases, func(a, b store.LegalCase) bool { return a.Code < b.Code })
	matched := make([]store.LegalCase, 0)
	for _, item := range all {
		if filter.CaseTypeID != "" && item.CaseTypeID != filter.CaseTypeID {
			continue
		}
		if filter.StatusID != "" && (item.StatusID == nil || *item.StatusID != filter.StatusID) {
			continue
		}
		if filter.TagID != "" && !contains(f.caseTags[item.ID], filter.TagID) {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(item.Code+" "+item.Title), strings.ToLower(filter.Search)) {
			continue
		}
		matched = append(matched, f.fillCase(item))
	}
	total := len(matched)
	if filter.Offset >= total {
		return []store.LegalCase{}, total, nil
	}
	return matched[filter.Offset:min(filter.Offset+filter.Limit, total)], total, nil
}

func contains(items []string, value string) bool {
	for _, item := range items {
		if item == value {
			return true
		}
	}
	return false
}

func (f *fakeStore) GetCase(_ context.Context, id string) (store.LegalCase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.cases[id]
	if !ok {
		return store.LegalCase{}, sql.ErrNoRows
	}
	return f.fillCase(item), nil
}

func (f *fakeStore) GetCaseDetail(_ context.Context, id string) (store.CaseDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.cases[id]
	if !ok {
		return store.CaseDetail{}, sql.ErrNoRows
	}
	detail := store.CaseDetail{LegalCase: f.fillCase(item), Participants: []store.CaseParticipant{}, Tags: []store.Tag{}}
	for _, p := range f.links[id] {
		if p.Kind == store.ParticipantIndividual {
			p.Name = f.individuals[p.ID].FullName()
		}
		detail.Participants = append(detail.Participants, p)
	}
	for _, tagID := range f.caseTags[id] {
		detail.Tags = append(detail.Tags, f.tags[tagID])
	}
	return detail, nil
}

func (f *fakeStore) ExistsCode(_ context.Context, code, excludeID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range f.cases {
		if strings.EqualFold(item.Code, code) && item.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) InsertCase(_ context.Context, item store.LegalCase, links store.CaseLinks) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.cases {
		if strings.EqualFold(existing.Code, item.Code) {
			return errUnique
		}
	}
	if err := f.checkLinks(links); err != nil {
		return err
	}
	f.cases[item.ID] = item
	f.setLinks(item.ID, links)
	return nil
}

func (f *fakeStore) UpdateCase(_ context.Context, item store.LegalCase, links store.CaseLinks) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.cases[item.ID]
	if !ok {
		return sql.ErrNoRows
	}
	if err := f.checkLinks(links); err != nil {
		return err
	}
	item.OwnerID = existing.OwnerID
	f.cases[item.ID] = item
	f.setLinks(item.ID, links)
	return nil
}

func (f *fakeStore) checkLinks(links store.CaseLinks) error {
	for _, p := range links.Participants {
		if _, ok := f.individuals[p.ID]; p.Kind == store.ParticipantIndividual && !ok {
			return errForeignKey
		}
	}
	return nil
}

func (f *fakeStore) setLinks(caseID string, links store.CaseLinks) {
	f.links[caseID] = append([]store.CaseParticipant(nil), links.Participants...)
	f.caseTags[caseID] = append([]string(nil), links.TagIDs...)
}

func (f *fakeStore) DeleteCase(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.cases[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.cases, id)
	delete(f.links, id)
	delete(f.caseTags, id)
	for did, d := range f.deadlines {
		if d.CaseID == id {
			delete(f.deadlines, did)
		}
	}
	return nil
}

// Deadlines.

func (f *fakeStore) deadlinesWhere(keep func(store.Deadline) bool) []store.Deadline {
	out := make([]store.Deadline, 0)
	for _, d := range sortedValues(f.deadlines, func(a, b store.Deadline) bool { return a.DueAt.Before(b.DueAt) }) {
		if keep(d) {
			d.CaseCode = f.cases[d.CaseID].Code
			out = append(out, d)
		}
	}
	return out
}

func (f *fakeStore) ListDeadlinesByCase(_ context.Context, caseID string) ([]store.Deadline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deadlinesWhere(func(d store.Deadline) bool { return d.CaseID == caseID }), nil
}

func (f *fakeStore) ListUpcomingDeadlines(_ context.Context, from, to time.Time) ([]store.Deadline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deadlinesWhere(func(d store.Deadline) bool {
		return d.CompletedAt == nil && !d.DueAt.Before(from) && d.DueAt.Before(to)
	}), nil
}

func (f *fakeStore) ListOverdueDeadlines(_ context.Context, now time.Time) ([]store.Deadline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deadlinesWhere(func(d store.Deadline) bool { return d.CompletedAt == nil && d.DueAt.Before(now) }), nil
}

func (f *fakeStore) GetDeadline(_ context.Context, id string) (store.Deadline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.deadlines[id]
	if !ok {
		return store.Deadline{}, sql.ErrNoRows
	}
	d.CaseCode = f.cases[d.CaseID].Code
	return d, nil
}

func (f *fakeStore) InsertDeadline(_ context.Context, d store.Deadline) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deadlines[d.ID] = d
	return nil
}

func (f *fakeStore) CompleteDeadline(_ context.Context, id string, done bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.deadlines[id]
	if !ok {
		return sql.ErrNoRows
	}
	if done {
		now := time.Now()
		d.CompletedAt = &now
	} else {
		d.CompletedAt = nil
	}
	f.deadlines[id] = d
	return nil
}

func (f *fakeStore) UpdateDeadline(_ context.Context, d store.Deadline) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.deadlines[d.ID]
	if !ok {
		return sql.ErrNoRows
	}
	existing.Title, existing.Description, existing.DueAt = d.Title, d.Description, d.DueAt
	f.deadlines[d.ID] = existing
	return nil
}

func (f *fakeStore) DeleteDeadline(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.deadlines[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.deadlines, id)
	return nil
}

// Media.

func (f *fakeStore) ListMediaByCase(_ context.Context, caseID string) ([]store.Media, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.Media, 0)
	for _, m := range sortedValues(f.media, func(a, b store.Media) bool { return a.ID < b.ID }) {
		if m.CaseID == caseID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) GetMedia(_ context.Context, id string) (store.Media, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.media[id]
	if !ok {
		return store.Media{}, sql.ErrNoRows
	}
	return m, nil
}

func (f *fakeStore) InsertMedia(_ context.Context, m store.Media) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m.Tags = []store.Tag{}
	f.media[m.ID] = m
	return nil
}

func (f *fakeStore) DeleteMedia(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.media[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.media, id)
	return nil
}

// Todos.

func (f *fakeStore) ListTodoLists(_ context.Context, ownerID string) ([]store.TodoList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.TodoList, 0)
	for _, list := range sortedValues(f.todoLists, func(a, b store.TodoList) bool { return a.ID < b.ID }) {
		if list.OwnerID != ownerID {
			continue
		}
		list.Todos = make([]store.Todo, 0)
		for _, todo := range sortedValues(f.todos, func(a, b store.Todo) bool { return a.Position < b.Position }) {
			if todo.ListID == list.ID {
				list.Todos = append(list.Todos, todo)
			}
		}
		out = append(out, list)
	}
	return out, nil
}

func (f *fakeStore) InsertTodoList(_ context.Context, list store.TodoList) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.todoLists[list.ID] = list
	return nil
}

func (f *fakeStore) ownsList(ownerID, listID string) bool {
	list, ok := f.todoLists[listID]
	return ok && list.OwnerID == ownerID
}

func (f *fakeStore) InsertTodo(_ context.Context, ownerID string, todo store.Todo) (store.Todo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.ownsList(ownerID, todo.ListID) {
		return store.Todo{}, sql.ErrNoRows
	}
	for _, existing := range f.todos {
		if existing.ListID == todo.ListID && existing.Position >= todo.Position {
			todo.Position = existing.Position + 1
		}
	}
	f.todos[todo.ID] = todo
	return todo, nil
}

func (f *fakeStore) DeleteTodoList(_ context.Context, ownerID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.ownsList(ownerID, id) {
		return sql.ErrNoRows
	}
	delete(f.todoLists, id)
	return nil
}

func (f *fakeStore) UpdateTodo(_ context.Context, ownerID string, todo store.Todo) (store.Todo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.todos[todo.ID]
	if !ok || !f.ownsList(ownerID, existing.ListID) {
		return store.Todo{}, sql.ErrNoRows
	}
	todo.ListID = existing.ListID
	f.todos[todo.ID] = todo
	return todo, nil
}

func (f *fakeStore) ToggleTodo(_ context.Context, ownerID, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	todo, ok := f.todos[id]
	if !ok || !f.ownsList(ownerID, todo.ListID) {
		return false, sql.ErrNoRows
	}
	todo.Done = !todo.Done
	f.todos[id] = todo
	return todo.Done, nil
}

func (f *fakeStore) DeleteTodo(_ context.Context, ownerID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	todo, ok := f.todos[id]
	if !ok || !f.ownsList(ownerID, todo.ListID) {
		return sql.ErrNoRows
	}
	delete(f.todos, id)
	return nil
}

// Dashboard.

func (f *fakeStore) CountCases(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cases), nil
}

func (f *fakeStore) CountOpenCases(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.cases {
		if c.StatusID == nil || !f.statuses[*c.StatusID].IsClosed {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CountIndividuals(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.individuals), nil
}

func (f *fakeStore) CountLegalEntities(context.Context) (int, error) { return 0, nil }

func (f *fakeStore) CountUpcomingDeadlines(ctx context.Context, from, to time.Time) (int, error) {
	items, err := f.ListUpcomingDeadlines(ctx, from, to)
	return len(items), err
}

func (f *fakeStore) CountOverdueDeadlines(ctx context.Context, now time.Time) (int, error) {
	items, err := f.ListOverdueDeadlines(ctx, now)
	return len(items), err
}

func (f *fakeStore) CasesByType(context.Context) ([]store.Bucket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.Bucket, 0)
	for _, ct := range sortedValues(f.caseTypes, func(a, b store.CaseType) bool { return a.Name < b.Name }) {
		n := 0
		for _, c := range f.cases {
			if c.CaseTypeID == ct.ID {
				n++
			}
		}
		out = append(out, store.Bucket{Label: ct.Name, Count: n})
	}
	return out, nil
}

func (f *fakeStore) CasesByStatus(context.Context) ([]store.Bucket, error) {
	return []store.Bucket{}, nil
}

func (f *fakeStore) CasesPerMonth(context.Context, time.Time) ([]store.Bucket, error) {
	return []store.Bucket{}, nil
}

// memSessions is an in-memory session.Store.
type memSessions struct {
	mu      sync.Mutex
	refresh map[string]string
	revoked map[string]bool
}

func newMemSessions() *memSessions {
	return &memSessions{refresh: map[string]string{}, revoked: map[string]bool{}}
}

func (m *memSessions) SaveRefreshSession(_ context.Context, hash, userID string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresh[hash] = userID
	return nil
}

func (m *memSessions) ConsumeRefreshSession(_ context.Context, hash string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	userID, ok := m.refresh[hash]
	if !ok {
		return "", session.ErrNotFound
	}
	delete(m.refresh, hash)
	return userID, nil
}

func (m *memSessions) RevokeRefreshSession(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.refresh, hash)
	return nil
}

func (m *memSessions) RevokeAccessToken(_ context.Context, jti string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[jti] = true
	return nil
}

func (m *memSessions) IsAccessTokenRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revoked[jti], nil
}

type fakeHistory struct {
	mu       sync.Mutex
	recorded []string
	removed  []string
}

func (h *fakeHistory) Record(caseID string, _ casehistory.Snapshot, _, message string) (casehistory.Commit, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recorded = append(h.recorded, caseID+":"+message)
	return casehistory.Commit{Hash: "abc", Message: message}, true, nil
}

func (h *fakeHistory) History(string, int) ([]casehistory.Commit, error) {
	return []casehistory.Commit{{Hash: "abc", Message: "Create case"}}, nil
}

func (h *fakeHistory) SnapshotAt(_, hash string) (casehistory.Snapshot, casehistory.Commit, error) {
	if hash != "abc" {
		return casehistory.Snapshot{}, casehistory.Commit{}, casehistory.ErrNotFound
	}
	return casehistory.Snapshot{Code: "C-1"}, casehistory.Commit{Hash: hash}, nil
}

func (h *fakeHistory) Remove(caseID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removed = append(h.removed, caseID)
	return nil
}

type fakeSearch struct {
	mu      sync.Mutex
	indexed []string
	deleted []string
	lastQ   search.Query
}

func (f *fakeSearch) Search(_ context.Context, q search.Query) search.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQ = q
	return search.Response{Results: []search.Result{{Type: search.ResultCase, ID: "case-1", Title: "C-1"}}, Total: 1, Query: q.Text, Engine: "fake"}
}

func (f *fakeSearch) IndexCase(r search.CaseRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, r.ID)
}

func (f *fakeSearch) IndexIndividual(r search.IndividualRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, r.ID)
}

func (f *fakeSearch) IndexLegalEntity(r search.LegalEntityRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, r.ID)
}

func (f *fakeSearch) Delete(_ search.ResultType, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
}

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: map[string][]byte{}}
}

func (o *fakeObjects) Bucket() string { return "casedesk-test" }

func (o *fakeObjects) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if o.putErr != nil {
		return o.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.objects[key] = data
	return nil
}

func (o *fakeObjects) Get(_ context.Context, key string) (io.ReadCloser, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	data, ok := o.objects[key]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return io.NopCloser(strings.NewReader(string(data))), nil
}

func (o *fakeObjects) Remove(_ context.Context, key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.objects, key)
	return nil
}

func testConfig() config.Config {
	return config.Config{
		JWTSecret:  "test-secret",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
		AppURL:     "http://localhost:5173",
	}
}

type testEnv struct {
	store    *fakeStore
	sessions *memSessions
	history  *fakeHistory
	search   *fakeSearch
	objects  *fakeObjects
	service  *Service
	server   *HTTPServer
}

func newTestEnv() *testEnv {
	env := &testEnv{
		store:    newFakeStore(),
		sessions: newMemSessions(),
		history:  &fakeHistory{},
		search:   &fakeSearch{},
		objects:  newFakeObjects(),
	}
	env.service = New(testConfig(), Dependencies{
		Store:    env.store,
		Sessions: env.sessions,
		Auth:     authpw.NewService(env.store, "CaseDesk", zap.NewNop()),
		Search:   env.search,
		History:  env.history,
		Objects:  env.objects,
	})
	env.server = NewHTTPServer(env.service, "*")
	return env
}
