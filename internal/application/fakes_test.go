package application_test

import (
	"context"
	"sort"
	"sync"

	"github.com/ericfisherdev/checknotify/internal/domain/model"
	"github.com/ericfisherdev/checknotify/internal/domain/port/driven"
)

// --- Fake port implementations shared by service tests ---

type fakeRepoStore struct {
	repos []model.Repository
}

func (f *fakeRepoStore) Add(_ context.Context, repo model.Repository) error {
	f.repos = append(f.repos, repo)
	return nil
}

func (f *fakeRepoStore) Remove(_ context.Context, _ string) error { return nil }

func (f *fakeRepoStore) GetByFullName(_ context.Context, fullName string) (*model.Repository, error) {
	for _, r := range f.repos {
		if r.FullName == fullName {
			return &r, nil
		}
	}
	return nil, nil
}

func (f *fakeRepoStore) ListAll(_ context.Context) ([]model.Repository, error) {
	return f.repos, nil
}

type changeKey struct {
	repo   string
	change int
}

type fakeChangeStore struct {
	mu      sync.Mutex
	changes map[changeKey]model.Change
	deleted []changeKey
}

func newFakeChangeStore(changes ...model.Change) *fakeChangeStore {
	f := &fakeChangeStore{changes: make(map[changeKey]model.Change)}
	for _, c := range changes {
		f.changes[changeKey{c.Repository, c.ChangeID}] = c
	}
	return f
}

func (f *fakeChangeStore) Upsert(_ context.Context, change model.Change) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes[changeKey{change.Repository, change.ChangeID}] = change
	return nil
}

func (f *fakeChangeStore) Get(_ context.Context, repository string, changeID int) (*model.Change, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.changes[changeKey{repository, changeID}]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (f *fakeChangeStore) ListByRepository(_ context.Context, repository string) ([]model.Change, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Change
	for k, c := range f.changes {
		if k.repo == repository {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChangeID < out[j].ChangeID })
	return out, nil
}

func (f *fakeChangeStore) Delete(_ context.Context, repository string, changeID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := changeKey{repository, changeID}
	if _, ok := f.changes[k]; !ok {
		return driven.ErrChangeNotFound
	}
	delete(f.changes, k)
	f.deleted = append(f.deleted, k)
	return nil
}

type checkerKey struct {
	repo string
	uuid model.CheckerUUID
}

type fakeCheckerStore struct {
	mu       sync.Mutex
	checkers map[checkerKey]model.Checker
}

func newFakeCheckerStore(checkers ...model.Checker) *fakeCheckerStore {
	f := &fakeCheckerStore{checkers: make(map[checkerKey]model.Checker)}
	for _, c := range checkers {
		f.checkers[checkerKey{c.Repository, c.UUID}] = c
	}
	return f
}

func (f *fakeCheckerStore) Upsert(_ context.Context, checker model.Checker) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkers[checkerKey{checker.Repository, checker.UUID}] = checker
	return nil
}

func (f *fakeCheckerStore) Get(_ context.Context, repository string, uuid model.CheckerUUID) (*model.Checker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.checkers[checkerKey{repository, uuid}]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (f *fakeCheckerStore) ListByRepository(_ context.Context, repository string) ([]model.Checker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Checker
	for _, c := range f.checkers {
		if c.Repository == repository {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UUID < out[j].UUID })
	return out, nil
}

type fakeCheckStore struct {
	mu     sync.Mutex
	checks map[string][]model.Check
}

func newFakeCheckStore() *fakeCheckStore {
	return &fakeCheckStore{checks: make(map[string][]model.Check)}
}

func (f *fakeCheckStore) ReplaceChecksForPatchSet(_ context.Context, repository string, patchSet model.PatchSetID, checks []model.Check) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks[repository+"@"+patchSet.String()] = append([]model.Check(nil), checks...)
	return nil
}

func (f *fakeCheckStore) GetChecksForPatchSet(_ context.Context, repository string, patchSet model.PatchSetID) ([]model.Check, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checks[repository+"@"+patchSet.String()], nil
}

type fakeRenderer struct {
	fields []*model.FieldMap
	err    error
}

func (f *fakeRenderer) Render(_ context.Context, change model.Change, fields *model.FieldMap) (model.RenderedEmail, error) {
	f.fields = append(f.fields, fields)
	if f.err != nil {
		return model.RenderedEmail{}, f.err
	}
	return model.RenderedEmail{
		Subject: "Change " + change.Title,
		Text:    "text",
		HTML:    "<p>html</p>",
	}, nil
}

type fakeOutbox struct {
	mu     sync.Mutex
	emails []model.OutgoingEmail
	err    error
}

func (f *fakeOutbox) Enqueue(_ context.Context, email model.OutgoingEmail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.emails = append(f.emails, email)
	return nil
}

func (f *fakeOutbox) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeOutbox) Get(_ context.Context, id string) (*model.OutgoingEmail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.emails {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, driven.ErrOutboxEmailNotFound
}

func (f *fakeOutbox) ListPending(_ context.Context, _ int) ([]model.OutgoingEmail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.OutgoingEmail(nil), f.emails...), nil
}

func (f *fakeOutbox) MarkSent(_ context.Context, _ string) error { return nil }

func (f *fakeOutbox) sent() []model.OutgoingEmail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.OutgoingEmail(nil), f.emails...)
}

// --- Fixtures ---

const testRepo = "octocat/hello-world"

func testChecker(uuid, name string, required bool) model.Checker {
	return model.Checker{
		UUID:       model.CheckerUUID(uuid),
		Name:       name,
		Repository: testRepo,
		Required:   required,
	}
}

func testCheck(uuid string, patchSet model.PatchSetID, state model.CheckState) model.Check {
	return model.Check{
		Key: model.CheckKey{
			Repository:  testRepo,
			PatchSet:    patchSet,
			CheckerUUID: model.CheckerUUID(uuid),
		},
		State: state,
	}
}
