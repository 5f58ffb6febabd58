package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mityansk/My-Books/internal/model"
	"github.com/mityansk/My-Books/internal/service"
)

type BookHandler struct {
	svc *service.BookService
}

func NewBookHandler(svc *service.BookService) *BookHandler {
	return &BookHandler{svc: svc}
}

// ListBooks godoc
// @Summary List all books
// @Tags books
// @Produce json
// @Success 200 {array} model.Book
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/books [get]
func (h *BookHandler) ListBooks(c *gin.Context) {
	books, err := h.svc.List(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, books)
}

// GetBook godoc
// @Summary Get a book by ID
// @Tags books
// @Produce json
// @Param id path int true "Book ID"
// @Success 200 {object} model.Book
// @Failure 400 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/books/{id} [get]
func (h *BookHandler) GetBook(c *gin.Context) {
	bookID, ok := parseBookID(c)
	if !ok {
		return
	}

	book, err := h.svc.Get(c.Request.Context(), bookID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

// CreateBook godoc
// @Summary Create a book owned by the caller
// @Tags books
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.CreateBookRequest true "Book payload"
// @Success 201 {object} model.Book
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/books [post]
func (h *BookHandler) CreateBook(c *gin.Context) {
	var req model.CreateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	book, err := h.svc.Create(c.Request.Context(), req, GetAuthUser(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, book)
}

// UpdateBook godoc
// @Summary Update a book (owner only)
// @Tags books
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Param request body model.UpdateBookRequest true "Book payload"
// @Success 200 {object} model.Book
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/books/{id} [put]
func (h *BookHandler) UpdateBook(c *gin.Context) {
	bookID, ok := parseBookID(c)
	if !ok {
		return
	}

	var req model.UpdateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	book, err := h.svc.Update(c.Request.Context(), bookID, req, GetAuthUser(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

// DeleteBook godoc
// @Summary Delete a book (owner only)
// @Tags books
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Success 200 {object} model.DeleteBookResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/books/{id} [delete]
func (h *BookHandler) DeleteBook(c *gin.Context) {
	bookID, ok := parseBookID(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), bookID, GetAuthUser(c)); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.DeleteBookResponse{
		Status: "deleted",
		BookID: bookID,
	})
}

func parseBookID(c *gin.Context) (int64, bool) {
	bookID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || bookID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid book id"})
		return 0, false
	}
	return bookID, true
}
