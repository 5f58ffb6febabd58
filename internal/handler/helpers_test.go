package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mityansk/My-Books/internal/config"
	"github.com/mityansk/My-Books/internal/model"
	"github.com/mityansk/My-Books/internal/service"
)

type fakeAuthRepo struct {
	mu       sync.Mutex
	nextID   int64
	users    map[string]*model.User
	sessions map[int64]*model.RefreshSession
}

func newFakeAuthRepo() *fakeAuthRepo {
	return &fakeAuthRepo{
		users:    map[string]*model.User{},
		sessions: map[int64]*model.RefreshSession{},
	}
}

func (f *fakeAuthRepo) CreateUser(ctx context.Context, username, email, passwordHash string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[email]; ok {
		return nil, &pgconn.PgError{Code: "23505"}
	}
	f.nextID++
	user := &model.User{ID: f.nextID, Username: username, Email: email, PasswordHash: passwordHash}
	f.users[email] = user
	return user, nil
}

func (f *fakeAuthRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[email]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return user, nil
}

func (f *fakeAuthRepo) GetUserByID(ctx context.Context, userID int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.ID == userID {
			return user, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeAuthRepo) SetRefreshSession(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[userID] = &model.RefreshSession{UserID: userID, TokenHash: tokenHash, ExpiresAt: expiresAt}
	return nil
}

func (f *fakeAuthRepo) GetRefreshSession(ctx context.Context, userID int64) (*model.RefreshSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[userID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *session
	return &copied, nil
}

func (f *fakeAuthRepo) RotateRefreshSession(ctx context.Context, userID int64, oldTokenHash, newTokenHash string, newExpiresAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[userID]
	if !ok || session.TokenHash != oldTokenHash {
		return false, nil
	}
	session.TokenHash = newTokenHash
	session.ExpiresAt = newExpiresAt
	return true, nil
}

func (f *fakeAuthRepo) ClearRefreshSession(ctx context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, userID)
	return nil
}

type fakeBookRepo struct {
	mu     sync.Mutex
	nextID int64
	books  map[int64]*model.Book
}

func newFakeBookRepo() *fakeBookRepo {
	return &fakeBookRepo{books: map[int64]*model.Book{}}
}

func (f *fakeBookRepo) ListBooks(ctx context.Context) ([]model.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := []model.Book{}
	for _, b := range f.books {
		list = append(list, *b)
	}
	return list, nil
}

func (f *fakeBookRepo) GetBookByID(ctx context.Context, bookID int64) (*model.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	book, ok := f.books[bookID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *book
	return &copied, nil
}

func (f *fakeBookRepo) CreateBook(ctx context.Context, req model.CreateBookRequest, ownerID int64) (*model.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	book := &model.Book{
		ID:          f.nextID,
		Title:       req.Title,
		Author:      req.Author,
		Year:        req.Year,
		Description: req.Description,
		OwnerID:     ownerID,
	}
	f.books[book.ID] = book
	return book, nil
}

func (f *fakeBookRepo) UpdateBook(ctx context.Context, bookID int64, req model.UpdateBookRequest) (*model.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	book, ok := f.books[bookID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	book.Title = req.Title
	book.Author = req.Author
	book.Year = req.Year
	book.Description = req.Description
	copied := *book
	return &copied, nil
}

func (f *fakeBookRepo) DeleteBook(ctx context.Context, bookID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.books[bookID]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.books, bookID)
	return nil
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		AccessSecret:  "test-access-secret",
		RefreshSecret: "test-refresh-secret",
		AccessTTL:     "15m",
		RefreshTTL:    "168h",
		CookieSecure:  "false",
	}
}

// newTestRouter wires the same route table as main.go over in-memory repos.
func newTestRouter(t *testing.T, authCfg config.AuthConfig) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	authSvc, err := service.NewAuthService(newFakeAuthRepo(), authCfg)
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	bookSvc := service.NewBookService(newFakeBookRepo())

	authHandler := NewAuthHandler(authSvc)
	bookHandler := NewBookHandler(bookSvc)

	r := gin.New()
	api := r.Group("/api/v1")

	auth := api.Group("/auth")
	auth.POST("/signup", authHandler.SignUp)
	auth.POST("/signin", authHandler.SignIn)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/signout", authHandler.SignOut)
	auth.GET("/me", AuthMiddleware(authSvc), authHandler.Me)

	books := api.Group("/books")
	books.GET("", bookHandler.ListBooks)
	books.GET("/:id", bookHandler.GetBook)

	booksAuthed := api.Group("/books")
	booksAuthed.Use(AuthMiddleware(authSvc))
	booksAuthed.POST("", bookHandler.CreateBook)
	booksAuthed.PUT("/:id", bookHandler.UpdateBook)
	booksAuthed.DELETE("/:id", bookHandler.DeleteBook)

	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any, headers map[string]string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeAuthResponse(t *testing.T, w *httptest.ResponseRecorder) model.AuthResponse {
	t.Helper()
	var resp model.AuthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode auth response: %v", err)
	}
	return resp
}

func refreshCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == "my_books_refresh" {
			return cookie
		}
	}
	t.Fatal("refresh cookie not set")
	return nil
}

func signUp(t *testing.T, r *gin.Engine, username, email, password string) (model.AuthResponse, *http.Cookie) {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/v1/auth/signup", model.SignUpRequest{
		Username: username,
		Email:    email,
		Password: password,
	}, nil, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("signup: got %d, want 201 (body %s)", w.Code, w.Body.String())
	}
	return decodeAuthResponse(t, w), refreshCookie(t, w)
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}
