// Package casehistory keeps a git repository per legal case. Every change to
// a case commits a JSON snapshot so earlier versions can be listed and read.
package casehistory

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const snapshotFile = "case.json"

// ErrNotFound is returned for a case without history or an unknown commit.
var ErrNotFound = errors.New("history not found")

var hashPattern = regexp.MustCompile(`^[0-9a-f]{4,40}$`)

type Participant struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// Snapshot is the versioned view of a case.
type Snapshot struct {
	Code         string        `json:"code"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	EntryDate    string        `json:"entryDate"`
	CaseType     string        `json:"caseType"`
	Status       string        `json:"status"`
	Participants []Participant `json:"participants"`
	Tags         []string      `json:"tags"`
}

type FieldChange struct {
	Field  string `json:"field"`
	Before string `json:"before"`
	After  string `json:"after"`
}

type Commit struct {
	Hash      string        `json:"hash"`
	Message   string        `json:"message"`
	Author    string        `json:"author"`
	CreatedAt time.Time     `json:"createdAt"`
	Changes   []FieldChange `json:"changes"`
}

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
	now     func() time.Time
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
		now:     time.Now,
	}
}

// Record commits snap as the new state of the case, creating the repository
// on first use. An unchanged snapshot is not committed; the current head is
// returned with changed=false.
func (s *Service) Record(caseID string, snap Snapshot, author, message string) (Commit, bool, error) {
	lock := s.caseLock(caseID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.openOrInit(caseID)
	if err != nil {
		return Commit{}, false, err
	}

	snap = normalize(snap)
	head, err := headCommit(repo)
	switch {
	case err == nil:
		previous, err := readSnapshot(head)
		if err != nil {
			return Commit{}, false, err
		}
		if len(DiffFields(previous, snap)) == 0 {
			return toCommit(head, nil), false, nil
		}
	case !errors.Is(err, plumbing.ErrReferenceNotFound):
		return Commit{}, false, err
	}

	hash, err := s.commit(repo, snap, author, message)
	if err != nil {
		return Commit{}, false, err
	}
	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return Commit{}, false, fmt.Errorf("read commit object: %w", err)
	}
	return toCommit(commitObj, nil), true, nil
}

// History lists commits newest first, each with the fields it changed.
// limit <= 0 returns everything.
func (s *Service) History(caseID string, limit int) ([]Commit, error) {
	lock := s.caseLock(caseID)
	lock.Lock()
	defer lock.Unlock()

	items := make([]Commit, 0)
	repo, err := git.PlainOpen(s.repoPath(caseID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return items, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	head, err := headCommit(repo)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return items, nil
	}
	if err != nil {
		return nil, err
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	err = iter.ForEach(func(commitObj *object.Commit) error {
		current, err := readSnapshot(commitObj)
		if err != nil {
			return err
		}
		var previous Snapshot
		if parent, err := commitObj.Parent(0); err == nil {
			if previous, err = readSnapshot(parent); err != nil {
				return err
			}
		}
		items = append(items, toCommit(commitObj, DiffFields(previous, current)))
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// SnapshotAt returns the case as it was at the given commit. Abbreviated
// hashes are accepted.
func (s *Service) SnapshotAt(caseID, hash string) (Snapshot, Commit, error) {
	hash = strings.ToLower(strings.TrimSpace(hash))
	if !hashPattern.MatchString(hash) {
		return Snapshot{}, Commit{}, ErrNotFound
	}

	lock := s.caseLock(caseID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(caseID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return Snapshot{}, Commit{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, Commit{}, fmt.Errorf("open repo: %w", err)
	}

	resolved, err := resolveHash(repo, hash)
	if err != nil {
		return Snapshot{}, Commit{}, err
	}
	commitObj, err := repo.CommitObject(resolved)
	if err != nil {
		return Snapshot{}, Commit{}, ErrNotFound
	}
	snap, err := readSnapshot(commitObj)
	if err != nil {
		return Snapshot{}, Commit{}, err
	}
	return snap, toCommit(commitObj, nil), nil
}

// Remove deletes the history of a deleted case. The case lock stays in the
// map so writers already waiting on it keep excluding each other.
func (s *Service) Remove(caseID string) error {
	lock := s.caseLock(caseID)
	lock.Lock()
	defer lock.Unlock()

	if err := os.RemoveAll(s.repoPath(caseID)); err != nil {
		return fmt.Errorf("remove history: %w", err)
	}
	return nil
}

func (s *Service) repoPath(caseID string) string {
	return filepath.Join(s.baseDir, filepath.Base(caseID))
}

func (s *Service) caseLock(caseID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[caseID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[caseID] = lock
	return lock
}

func (s *Service) openOrInit(caseID string) (*git.Repository, error) {
	path := s.repoPath(caseID)
	repo, err := git.PlainOpen(path)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
		return nil, fmt.Errorf("set HEAD to main: %w", err)
	}
	return repo, nil
}

func (s *Service) commit(repo *git.Repository, snap Snapshot, author, message string) (plumbing.Hash, error) {
	worktree, err := repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("open worktree: %w", err)
	}

	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(filepath.Join(worktree.Filesystem.Root(), snapshotFile), append(payload, '\n'), 0o644); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("write %s: %w", snapshotFile, err)
	}
	if _, err := worktree.Add(snapshotFile); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("git add snapshot: %w", err)
	}

	if strings.TrimSpace(author) == "" {
		author = "casedesk"
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  author,
			Email: sanitizeEmail(author) + "@casedesk.local",
			When:  s.now(),
		},
	})
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("commit snapshot: %w", err)
	}
	return hash, nil
}

func headCommit(repo *git.Repository) (*object.Commit, error) {
	ref, err := repo.Reference(plumbing.NewBranchReferenceName("main"), true)
	if err != nil {
		return nil, err
	}
	commitObj, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("load head commit: %w", err)
	}
	return commitObj, nil
}

func readSnapshot(commitObj *object.Commit) (Snapshot, error) {
	file, err := commitObj.File(snapshotFile)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load %s from commit: %w", snapshotFile, err)
	}
	contents, err := file.Contents()
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(contents), &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return normalize(snap), nil
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, ErrNotFound
	}
	return *resolved, nil
}

func normalize(snap Snapshot) Snapshot {
	if snap.Participants == nil {
		snap.Participants = []Participant{}
	}
	if snap.Tags == nil {
		snap.Tags = []string{}
	}
	return snap
}

// DiffFields lists the fields that differ between two snapshots, in a fixed
// order. Participants and tags are compared as rendered lists.
func DiffFields(from, to Snapshot) []FieldChange {
	pairs := []FieldChange{
		{Field: "code", Before: from.Code, After: to.Code},
		{Field: "title", Before: from.Title, After: to.Title},
		{Field: "description", Before: from.Description, After: to.Description},
		{Field: "entryDate", Before: from.EntryDate, After: to.EntryDate},
		{Field: "caseType", Before: from.CaseType, After: to.CaseType},
		{Field: "status", Before: from.Status, After: to.Status},
		{Field: "participants", Before: participantList(from.Participants), After: participantList(to.Participants)},
		{Field: "tags", Before: tagList(from.Tags), After: tagList(to.Tags)},
	}
	changes := make([]FieldChange, 0)
	for _, pair := range pairs {
		if pair.Before != pair.After {
			changes = append(changes, pair)
		}
	}
	return changes
}

func participantList(items []Participant) string {
	parts := make([]string, 0, len(items))
	for _, p := range items {
		entry := p.Name
		if p.Role != "" {
			entry += " (" + p.Role + ")"
		}
		parts = append(parts, entry)
	}
	slices.Sort(parts)
	return strings.Join(parts, ", ")
}

func tagList(tags []string) string {
	sorted := slices.Clone(tags)
	slices.Sort(sorted)
	return strings.Join(sorted, ", ")
}

func toCommit(commitObj *object.Commit, changes []FieldChange) Commit {
	if changes == nil {
		changes = []FieldChange{}
	}
	return Commit{
		Hash:      commitObj.Hash.String()[:7],
		Message:   strings.TrimSpace(commitObj.Message),
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
		Changes:   changes,
	}
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range strings.ToLower(input) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}
