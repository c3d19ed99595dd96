package lists

import (
	"context"
	"fmt"
	"strings"
)

// Service applies item validation on top of a Repository.
type Service struct {
	repo Repository
}

// NewService creates a service backed by repo.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Page is everything needed to render one list.
type Page struct {
	List  List
	Items []Item
}

// normalize trims surrounding whitespace and rejects blank text.
func normalize(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyItem
	}
	return text, nil
}

// NewList creates a list holding a single first item.
// Nothing is stored when text is blank.
func (s *Service) NewList(ctx context.Context, text string) (List, error) {
	text, err := normalize(text)
	if err != nil {
		return List{}, err
	}
	list, _, err := s.repo.CreateListWithItem(ctx, text)
	if err != nil {
		return List{}, fmt.Errorf("create list: %w", err)
	}
	return list, nil
}

// AddItem appends an item to an existing list.
func (s *Service) AddItem(ctx context.Context, listID int64, text string) (Item, error) {
	text, err := normalize(text)
	if err != nil {
		return Item{}, err
	}
	item, err := s.repo.CreateItem(ctx, listID, text)
	if err != nil {
		return Item{}, fmt.Errorf("add item to list %d: %w", listID, err)
	}
	return item, nil
}

// View loads a list and its items in submission order.
func (s *Service) View(ctx context.Context, listID int64) (Page, error) {
	list, err := s.repo.GetList(ctx, listID)
	if err != nil {
		return Page{}, fmt.Errorf("view list %d: %w", listID, err)
	}
	items, err := s.repo.Items(ctx, listID)
	if err != nil {
		return Page{}, fmt.Errorf("view list %d: %w", listID, err)
	}
	return Page{List: list, Items: items}, nil
}

// Stats reports stored record counts.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.repo.Stats(ctx)
}
