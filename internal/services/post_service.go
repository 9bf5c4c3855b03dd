package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/blog-admin/internal/models"
)

// PostServiceProvider defines the interface for post services.
type PostServiceProvider interface {
	GetAllPosts(ctx context.Context) ([]models.Post, error)
	GetPostByID(ctx context.Context, id string) (models.Post, error)
	CreatePost(ctx context.Context, title, body string) (models.Post, error)
	UpdatePost(ctx context.Context, id, title, body string) (models.Post, error)
	DeletePost(ctx context.Context, id string) error
}

// PostService provides business logic for blog posts.
type PostService struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostService creates a new PostService.
func NewPostService(db *sql.DB) *PostService {
	return &PostService{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func scanPost(scanner interface{ Scan(...any) error }) (models.Post, error) {
	var p models.Post
	err := scanner.Scan(&p.ID, &p.Title, &p.Body, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// GetAllPosts retrieves every post, oldest first.
func (s *PostService) GetAllPosts(ctx context.Context) ([]models.Post, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, title, body, created_at, updated_at FROM posts ORDER BY created_at ASC, rowid ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// GetPostByID retrieves a single post by its ID.
func (s *PostService) GetPostByID(ctx context.Context, id string) (models.Post, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, title, body, created_at, updated_at FROM posts WHERE id = ?", id)
	p, err := scanPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Post{}, ErrNotFound
		}
		return models.Post{}, err
	}
	return p, nil
}

// CreatePost stores a new post. Empty titles and bodies are accepted.
func (s *PostService) CreatePost(ctx context.Context, title, body string) (models.Post, error) {
	now := s.now()
	post := models.Post{
		ID:        uuid.New().String(),
		Title:     title,
		Body:      body,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO posts(id, title, body, created_at, updated_at) VALUES(?, ?, ?, ?, ?)",
		post.ID, post.Title, post.Body, post.CreatedAt, post.UpdatedAt)
	if err != nil {
		return models.Post{}, fmt.Errorf("failed to insert post: %w", err)
	}
	return post, nil
}

// UpdatePost changes title, body and updated_at. ID and created_at are left alone.
func (s *PostService) UpdatePost(ctx context.Context, id, title, body string) (models.Post, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE posts SET title = ?, body = ?, updated_at = ? WHERE id = ?",
		title, body, s.now(), id)
	if err != nil {
		return models.Post{}, fmt.Errorf("failed to update post: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.Post{}, err
	}
	if n == 0 {
		return models.Post{}, ErrNotFound
	}
	return s.GetPostByID(ctx, id)
}

// DeletePost removes a post. Deleting a missing ID is not an error.
func (s *PostService) DeletePost(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM posts WHERE id = ?", id)
	return err
}
