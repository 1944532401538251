package shortener_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/serroba/link-preview/internal/shortener"
	"github.com/serroba/link-preview/internal/store"
)

var errMock = errors.New("mock error")

const testBaseURL = "https://sho.rt"

// fakeStore delegates to a MemoryStore unless a hook overrides the call.
type fakeStore struct {
	*store.MemoryStore

	reserveFn func(ctx context.Context, code shortener.Code) error
	getFn     func(ctx context.Context, code shortener.Code) (*shortener.Record, error)
	findFn    func(ctx context.Context, key shortener.URLKey) ([]*shortener.Record, error)
	commitFn  func(ctx context.Context, record *shortener.Record) (*shortener.Record, bool, error)
	updateFn  func(ctx context.Context, code shortener.Code, u shortener.RecordUpdate) (*shortener.Record, error)

	reserves atomic.Int32
	gets     atomic.Int32
	finds    atomic.Int32
	commits  atomic.Int32
	releases atomic.Int32
	updates  atomic.Int32
}

func newFakeStore() *fakeStore {
	return &fakeStore{MemoryStore: store.NewMemoryStore()}
}

func (f *fakeStore) Reserve(ctx context.Context, code shortener.Code) error {
	f.reserves.Add(1)

	if f.reserveFn != nil {
		return f.reserveFn(ctx, code)
	}

	return f.MemoryStore.Reserve(ctx, code)
}

func (f *fakeStore) Get(ctx context.Context, code shortener.Code) (*shortener.Record, error) {
	f.gets.Add(1)

	if f.getFn != nil {
		return f.getFn(ctx, code)
	}

	return f.MemoryStore.Get(ctx, code)
}

func (f *fakeStore) FindByURLKey(ctx context.Context, key shortener.URLKey) ([]*shortener.Record, error) {
	f.finds.Add(1)

	if f.findFn != nil {
		return f.findFn(ctx, key)
	}

	return f.MemoryStore.FindByURLKey(ctx, key)
}

func (f *fakeStore) Commit(ctx context.Context, record *shortener.Record) (*shortener.Record, bool, error) {
	f.commits.Add(1)

	if f.commitFn != nil {
		return f.commitFn(ctx, record)
	}

	return f.MemoryStore.Commit(ctx, record)
}

func (f *fakeStore) Release(ctx context.Context, code shortener.Code) error {
	f.releases.Add(1)

	return f.MemoryStore.Release(ctx, code)
}

func (f *fakeStore) Update(
	ctx context.Context, code shortener.Code, u shortener.RecordUpdate,
) (*shortener.Record, error) {
	f.updates.Add(1)

	if f.updateFn != nil {
		return f.updateFn(ctx, code, u)
	}

	return f.MemoryStore.Update(ctx, code, u)
}

// writes counts every mutating call.
func (f *fakeStore) writes() int32 {
	return f.reserves.Load() + f.commits.Load() + f.releases.Load() + f.updates.Load()
}

// fakePipeline records captures and answers with a fixed result.
type fakePipeline struct {
	mu       sync.Mutex
	calls    []captureCall
	imageURL string
	err      error
	block    bool
}

type captureCall struct {
	source string
	name   string
}

func (p *fakePipeline) Capture(ctx context.Context, source, name string) (string, error) {
	p.mu.Lock()
	p.calls = append(p.calls, captureCall{source: source, name: name})
	p.mu.Unlock()

	if p.block {
		<-ctx.Done()

		return "", ctx.Err()
	}

	if p.err != nil {
		return "", p.err
	}

	return p.imageURL + "/" + name + ".png", nil
}

func (p *fakePipeline) captures() []captureCall {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]captureCall(nil), p.calls...)
}

// sequence returns a token generator cycling through codes.
func sequence(codes ...string) shortener.TokenGenerator {
	var i atomic.Int32

	return func() string {
		n := int(i.Add(1)) - 1

		return codes[n%len(codes)]
	}
}
