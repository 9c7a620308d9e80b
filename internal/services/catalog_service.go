// Package services – CatalogService
//
// CatalogService serves the service catalog and keeps an in-memory search
// index over it. The index is built on first use and rebuilt after every
// successful update, so searches always see committed data.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/luvia-backend/internal/domain"
	"github.com/tbourn/luvia-backend/internal/repo"
	"github.com/tbourn/luvia-backend/internal/search"
)

// UpdateServiceInput replaces the editable fields of a catalog entry.
type UpdateServiceInput struct {
	CategoryID  string
	Title       string
	Description string
	Image       string
	Content     json.RawMessage
}

// CatalogService provides catalog reads, edits and search.
type CatalogService struct {
	DB *gorm.DB

	mu  sync.RWMutex
	idx search.Index
}

// NewCatalogService returns a CatalogService over db.
func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{DB: db}
}

// List returns every service.
func (s *CatalogService) List(ctx context.Context) ([]domain.Service, error) {
	items, err := repo.ListServices(ctx, s.DB)
	if items == nil && err == nil {
		items = []domain.Service{}
	}
	return items, err
}

// Get returns one service.
func (s *CatalogService) Get(ctx context.Context, id string) (*domain.Service, error) {
	svc, err := repo.GetService(ctx, s.DB, strings.TrimSpace(id))
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrServiceNotFound
	}
	return svc, err
}

// Update overwrites the editable fields of id and refreshes the index.
func (s *CatalogService) Update(ctx context.Context, id string, in UpdateServiceInput) (*domain.Service, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, ErrInvalidService
	}
	content := datatypes.JSON(in.Content)
	if len(in.Content) == 0 {
		content = datatypes.JSON("{}")
	} else if !json.Valid(in.Content) {
		return nil, ErrInvalidService
	}

	svc := &domain.Service{
		ID:          strings.TrimSpace(id),
		CategoryID:  strings.TrimSpace(in.CategoryID),
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Image:       strings.TrimSpace(in.Image),
		Content:     content,
	}
	if err := repo.UpdateService(ctx, s.DB, svc); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}
	if err := s.Reindex(ctx); err != nil {
		return nil, err
	}
	return svc, nil
}

// Filler words that appear in most service titles.
var searchStopwords = []string{"dịch", "vụ", "và", "cho", "của", "các", "với"}

// Search returns up to k services ranked by relevance to q, ignoring case
// and Vietnamese diacritics.
func (s *CatalogService) Search(ctx context.Context, q string, k int) ([]domain.Service, error) {
	idx, err := s.index(ctx)
	if err != nil {
		return nil, err
	}
	hits := idx.TopK(q, k)
	out := make([]domain.Service, 0, len(hits))
	for _, h := range hits {
		svc, err := repo.GetService(ctx, s.DB, h.ID)
		if errors.Is(err, repo.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *svc)
	}
	return out, nil
}

// Reindex rebuilds the search index from the database.
func (s *CatalogService) Reindex(ctx context.Context) error {
	items, err := repo.ListServices(ctx, s.DB)
	if err != nil {
		return err
	}
	docs := make([]search.Document, 0, len(items))
	for _, it := range items {
		docs = append(docs, search.Document{
			ID:   it.ID,
			Text: strings.Join([]string{it.Title, it.CategoryID, it.Description}, " "),
		})
	}
	idx := search.New(docs, search.WithStopwords(searchStopwords))
	s.mu.Lock()
	s.idx = idx
	s.mu.Unlock()
	return nil
}

func (s *CatalogService) index(ctx context.Context) (search.Index, error) {
	s.mu.RLock()
	idx := s.idx
	s.mu.RUnlock()
	if idx != nil {
		return idx, nil
	}
	if err := s.Reindex(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.idx, nil
}

// SeedFromFile loads a JSON array of services from path into an empty
// catalog. A missing file seeds nothing and is not an error.
func (s *CatalogService) SeedFromFile(ctx context.Context, path string) (int, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var items []domain.Service
	if err := json.Unmarshal(b, &items); err != nil {
		return 0, fmt.Errorf("seed %s: %w", path, err)
	}
	kept := items[:0]
	for _, it := range items {
		it.ID = strings.TrimSpace(it.ID)
		if it.ID == "" || strings.TrimSpace(it.Title) == "" {
			continue
		}
		if len(it.Content) == 0 {
			it.Content = datatypes.JSON("{}")
		}
		kept = append(kept, it)
	}
	n, err := repo.SeedServices(ctx, s.DB, kept)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		err = s.Reindex(ctx)
	}
	return n, err
}
