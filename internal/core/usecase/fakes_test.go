package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/kirillkom/crop-disease-analyzer/internal/core/domain"
)

type analysisRepoFake struct {
	mu      sync.Mutex
	items   map[string]*domain.Analysis
	created []*domain.Analysis
	err     error
}

func newAnalysisRepoFake(seed ...*domain.Analysis) *analysisRepoFake {
	f := &analysisRepoFake{items: map[string]*domain.Analysis{}}
	for _, a := range seed {
		f.items[a.ID] = a
	}
	return f
}

func (f *analysisRepoFake) Create(_ context.Context, a *domain.Analysis) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	copyAnalysis := *a
	f.items[a.ID] = &copyAnalysis
	f.created = append(f.created, &copyAnalysis)
	return nil
}

func (f *analysisRepoFake) GetByID(_ context.Context, id string) (*domain.Analysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.items[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get analysis", fmt.Errorf("analysis %s", id))
	}
	copyAnalysis := *a
	return &copyAnalysis, nil
}

func (f *analysisRepoFake) List(_ context.Context, filter domain.AnalysisFilter) ([]domain.Analysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Analysis{}
	for _, a := range f.items {
		if filter.OwnerID != "" && a.OwnerID != filter.OwnerID {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

type recRepoFake struct {
	mu    sync.Mutex
	items map[string]*domain.Recommendation
	order []string
	err   error
}

func newRecRepoFake() *recRepoFake {
	return &recRepoFake{items: map[string]*domain.Recommendation{}}
}

func (f *recRepoFake) Create(_ context.Context, rec *domain.Recommendation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	copyRec := *rec
	f.items[rec.ID] = &copyRec
	f.order = append(f.order, rec.ID)
	return nil
}

func (f *recRepoFake) GetByID(_ context.Context, id string) (*domain.Recommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.items[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get recommendation", fmt.Errorf("recommendation %s", id))
	}
	copyRec := *rec
	return &copyRec, nil
}

func (f *recRepoFake) ListByAnalysis(_ context.Context, analysisID string) ([]domain.Recommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Recommendation{}
	for _, id := range f.order {
		if rec, ok := f.items[id]; ok && rec.AnalysisID == analysisID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (f *recRepoFake) List(_ context.Context, filter domain.RecommendationFilter) ([]domain.Recommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Recommendation{}
	for _, id := range f.order {
		rec, ok := f.items[id]
		if !ok {
			continue
		}
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		if filter.GeneratedBy != "" && rec.GeneratedBy != filter.GeneratedBy {
			continue
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (f *recRepoFake) HasGenerated(_ context.Context, analysisID string, by domain.GeneratedBy) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.items {
		if rec.AnalysisID == analysisID && rec.GeneratedBy == by {
			return true, nil
		}
	}
	return false, nil
}

func (f *recRepoFake) UpdateStatus(_ context.Context, id string, status domain.RecommendationStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	rec.Status = status
	return nil
}

func (f *recRepoFake) AppendContent(_ context.Context, id, suffix string, status domain.RecommendationStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	rec.Content += suffix
	if status != "" {
		rec.Status = status
	}
	return nil
}

func (f *recRepoFake) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

type storageFake struct {
	mu    sync.Mutex
	saved map[string]string
	err   error
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saved == nil {
		f.saved = map[string]string{}
	}
	f.saved[key] = string(raw)
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.saved[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(raw)), nil
}

type queueFake struct {
	published []string
	err       error
}

func (f *queueFake) PublishAnalysisCompleted(_ context.Context, analysisID string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, analysisID)
	return nil
}

func (f *queueFake) SubscribeAnalysisCompleted(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}
