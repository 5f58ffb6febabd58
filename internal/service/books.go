package service

import (
	"context"
	"strings"

	"github.com/mityansk/My-Books/internal/db"
	"github.com/mityansk/My-Books/internal/model"
)

// BookRepo is the persistence surface for books. *db.Postgres implements it.
type BookRepo interface {
	ListBooks(ctx context.Context) ([]model.Book, error)
	GetBookByID(ctx context.Context, bookID int64) (*model.Book, error)
	CreateBook(ctx context.Context, req model.CreateBookRequest, ownerID int64) (*model.Book, error)
	UpdateBook(ctx context.Context, bookID int64, req model.UpdateBookRequest) (*model.Book, error)
	DeleteBook(ctx context.Context, bookID int64) error
}

type BookService struct {
	repo BookRepo
}

func NewBookService(repo BookRepo) *BookService {
	return &BookService{repo: repo}
}

// AuthorizeOwner is the ownership gate for mutating operations: only the
// user recorded as the book's owner may change or delete it. Reads are not
// owner-gated.
func AuthorizeOwner(user *model.AuthUser, book *model.Book) error {
	if user == nil {
		return ErrUnauthorized
	}
	if user.ID != book.OwnerID {
		return ErrForbidden
	}
	return nil
}

func (s *BookService) List(ctx context.Context) ([]model.Book, error) {
	return s.repo.ListBooks(ctx)
}

func (s *BookService) Get(ctx context.Context, bookID int64) (*model.Book, error) {
	book, err := s.repo.GetBookByID(ctx, bookID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return book, nil
}

func (s *BookService) Create(ctx context.Context, req model.CreateBookRequest, user *model.AuthUser) (*model.Book, error) {
	if user == nil {
		return nil, ErrUnauthorized
	}
	if err := validateBook(req.Title); err != nil {
		return nil, err
	}
	return s.repo.CreateBook(ctx, req, user.ID)
}

// Update checks existence before ownership, and ownership before touching
// anything, for both update and delete.
func (s *BookService) Update(ctx context.Context, bookID int64, req model.UpdateBookRequest, user *model.AuthUser) (*model.Book, error) {
	book, err := s.Get(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if err := AuthorizeOwner(user, book); err != nil {
		return nil, err
	}
	if err := validateBook(req.Title); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateBook(ctx, bookID, req)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return updated, nil
}

func (s *BookService) Delete(ctx context.Context, bookID int64, user *model.AuthUser) error {
	book, err := s.Get(ctx, bookID)
	if err != nil {
		return err
	}
	if err := AuthorizeOwner(user, book); err != nil {
		return err
	}

	if err := s.repo.DeleteBook(ctx, bookID); err != nil {
		if db.IsNoRows(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func validateBook(title string) error {
	if strings.TrimSpace(title) == "" {
		return ErrInvalidInput
	}
	return nil
}
