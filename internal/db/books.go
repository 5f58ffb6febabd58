package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/mityansk/My-Books/internal/model"
)

func (db *Postgres) EnsureBookSchema(ctx context.Context) error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS books (
			id BIGSERIAL PRIMARY KEY,
			title TEXT NOT NULL,
			author TEXT NOT NULL DEFAULT '',
			year INT NOT NULL DEFAULT 0,
			description TEXT NOT NULL DEFAULT '',
			owner_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
		`CREATE INDEX IF NOT EXISTS books_owner_id_idx ON books(owner_id)`,
	}

	for _, query := range queries {
		if _, err := db.Pool.Exec(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

func (db *Postgres) ListBooks(ctx context.Context) ([]model.Book, error) {
	query := `
		SELECT id, title, author, year, description, owner_id, created_at, updated_at
		FROM books
		ORDER BY created_at DESC
	`
	rows, err := db.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []model.Book
	for rows.Next() {
		var b model.Book
		if err := rows.Scan(
			&b.ID,
			&b.Title,
			&b.Author,
			&b.Year,
			&b.Description,
			&b.OwnerID,
			&b.CreatedAt,
			&b.UpdatedAt,
		); err != nil {
			return nil, err
		}
		list = append(list, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if list == nil {
		list = []model.Book{}
	}
	return list, nil
}

func (db *Postgres) GetBookByID(ctx context.Context, bookID int64) (*model.Book, error) {
	query := `
		SELECT id, title, author, year, description, owner_id, created_at, updated_at
		FROM books
		WHERE id = $1
	`
	var b model.Book
	err := db.Pool.QueryRow(ctx, query, bookID).Scan(
		&b.ID,
		&b.Title,
		&b.Author,
		&b.Year,
		&b.Description,
		&b.OwnerID,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (db *Postgres) CreateBook(ctx context.Context, req model.CreateBookRequest, ownerID int64) (*model.Book, error) {
	query := `
		INSERT INTO books (title, author, year, description, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id, title, author, year, description, owner_id, created_at, updated_at
	`
	var b model.Book
	err := db.Pool.QueryRow(ctx, query, req.Title, req.Author, req.Year, req.Description, ownerID).Scan(
		&b.ID,
		&b.Title,
		&b.Author,
		&b.Year,
		&b.Description,
		&b.OwnerID,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// UpdateBook never touches owner_id.
func (db *Postgres) UpdateBook(ctx context.Context, bookID int64, req model.UpdateBookRequest) (*model.Book, error) {
	query := `
		UPDATE books
		SET title = $2, author = $3, year = $4, description = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING id, title, author, year, description, owner_id, created_at, updated_at
	`
	var b model.Book
	err := db.Pool.QueryRow(ctx, query, bookID, req.Title, req.Author, req.Year, req.Description).Scan(
		&b.ID,
		&b.Title,
		&b.Author,
		&b.Year,
		&b.Description,
		&b.OwnerID,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (db *Postgres) DeleteBook(ctx context.Context, bookID int64) error {
	query := `DELETE FROM books WHERE id = $1`
	tag, err := db.Pool.Exec(ctx, query, bookID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
