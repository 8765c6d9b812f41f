// Package history keeps a git repository per document and commits every observed change, so
// earlier versions of the worklog can be listed and read back.
package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"worklog/api/internal/document"
)

const fileName = "document.json"

// ErrNotFound is returned when a document has no history or a hash does not resolve.
var ErrNotFound = errors.New("history not found")

type Commit struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Record commits doc when it differs from the latest version. It reports whether a commit was made.
func (s *Service) Record(documentID string, doc document.Document, author string) (Commit, bool, error) {
	lock := s.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.openOrInit(documentID)
	if err != nil {
		return Commit{}, false, err
	}

	previous := document.Empty()
	if head, err := repo.Head(); err == nil {
		commitObj, err := repo.CommitObject(head.Hash())
		if err != nil {
			return Commit{}, false, fmt.Errorf("load head commit: %w", err)
		}
		if previous, err = readDocument(commitObj); err != nil {
			return Commit{}, false, err
		}
	} else if !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return Commit{}, false, fmt.Errorf("resolve head: %w", err)
	}

	changed, err := ChangedFields(previous, doc)
	if err != nil {
		return Commit{}, false, err
	}
	if len(changed) == 0 {
		return Commit{}, false, nil
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return Commit{}, false, fmt.Errorf("open worktree: %w", err)
	}
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return Commit{}, false, fmt.Errorf("marshal document: %w", err)
	}
	if err := os.WriteFile(filepath.Join(worktree.Filesystem.Root(), fileName), append(payload, '\n'), 0o644); err != nil {
		return Commit{}, false, fmt.Errorf("write %s: %w", fileName, err)
	}
	if _, err := worktree.Add(fileName); err != nil {
		return Commit{}, false, fmt.Errorf("git add document: %w", err)
	}

	message := "Update " + strings.Join(changed, ", ")
	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@worklog.local", sanitizeEmail(author)),
			When:  time.Now(),
		},
	})
	if err != nil {
		return Commit{}, false, fmt.Errorf("commit document: %w", err)
	}
	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return Commit{}, false, fmt.Errorf("read commit object: %w", err)
	}
	return toCommit(commitObj), true, nil
}

// History lists commits newest first; limit <= 0 means all.
func (s *Service) History(documentID string, limit int) ([]Commit, error) {
	lock := s.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.open(documentID)
	if errors.Is(err, ErrNotFound) {
		return []Commit{}, nil
	}
	if err != nil {
		return nil, err
	}
	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return []Commit{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve head: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]Commit, 0)
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toCommit(commitObj))
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

// Version returns the document as of hash (full or abbreviated).
func (s *Service) Version(documentID, hash string) (document.Document, Commit, error) {
	lock := s.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.open(documentID)
	if err != nil {
		return document.Document{}, Commit{}, err
	}
	resolved, err := resolveHash(repo, hash)
	if err != nil {
		return document.Document{}, Commit{}, err
	}
	commitObj, err := repo.CommitObject(resolved)
	if err != nil {
		return document.Document{}, Commit{}, fmt.Errorf("%w: commit %s", ErrNotFound, hash)
	}
	doc, err := readDocument(commitObj)
	if err != nil {
		return document.Document{}, Commit{}, err
	}
	return doc, toCommit(commitObj), nil
}

// ChangedFields lists the top-level keys whose encoded values differ, sorted.
func ChangedFields(from, to document.Document) ([]string, error) {
	before, err := from.Fields()
	if err != nil {
		return nil, err
	}
	after, err := to.Fields()
	if err != nil {
		return nil, err
	}
	changed := make([]string, 0)
	for key, value := range after {
		if !bytes.Equal(before[key], value) {
			changed = append(changed, key)
		}
	}
	sort.Strings(changed)
	return changed, nil
}

func (s *Service) repoPath(documentID string) string {
	return filepath.Join(s.baseDir, documentID)
}

func (s *Service) open(documentID string) (*git.Repository, error) {
	repo, err := git.PlainOpen(s.repoPath(documentID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, documentID)
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	return repo, nil
}

func (s *Service) openOrInit(documentID string) (*git.Repository, error) {
	repo, err := s.open(documentID)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	path := s.repoPath(documentID)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInitWithOptions(path, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.Main},
	})
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	return repo, nil
}

func (s *Service) documentLock(documentID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[documentID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[documentID] = lock
	return lock
}

func readDocument(commitObj *object.Commit) (document.Document, error) {
	file, err := commitObj.File(fileName)
	if err != nil {
		return document.Document{}, fmt.Errorf("load %s from commit: %w", fileName, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return document.Document{}, fmt.Errorf("open document reader: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return document.Document{}, fmt.Errorf("read document bytes: %w", err)
	}
	return document.Decode(data)
}

func toCommit(commitObj *object.Commit) Commit {
	return Commit{
		Hash:      commitObj.Hash.String()[:7],
		Message:   strings.TrimSpace(commitObj.Message),
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "worklog"
	}
	return string(out)
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return plumbing.ZeroHash, fmt.Errorf("%w: empty hash", ErrNotFound)
	}
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: resolve hash %s: %v", ErrNotFound, hash, err)
	}
	return *resolved, nil
}
