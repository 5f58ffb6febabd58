package main

import (
	"context"
	"log"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/mityansk/My-Books/internal/config"
	"github.com/mityansk/My-Books/internal/db"
	"github.com/mityansk/My-Books/internal/handler"
	"github.com/mityansk/My-Books/internal/service"
)

// @title My-Books API
// @version 1.0
// @description Book library with JWT auth, refresh rotation and owner-gated writes.
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx := context.Background()

	pool, err := db.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	pg := &db.Postgres{Pool: pool}
	if err := pg.EnsureAuthSchema(ctx); err != nil {
		log.Fatalf("auth schema: %v", err)
	}
	if err := pg.EnsureBookSchema(ctx); err != nil {
		log.Fatalf("book schema: %v", err)
	}

	authService, err := service.NewAuthService(pg, cfg.Auth)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}
	bookService := service.NewBookService(pg)

	authHandler := handler.NewAuthHandler(authService)
	bookHandler := handler.NewBookHandler(bookService)

	allowCredentials, err := strconv.ParseBool(cfg.Server.AllowCredentials)
	if err != nil {
		log.Fatalf("invalid CORS_ALLOW_CREDENTIALS: %v", err)
	}

	router := gin.Default()
	router.Use(handler.CORSMiddleware(strings.Split(cfg.Server.AllowedOrigins, ","), allowCredentials))

	router.GET("/", handler.Root)
	router.GET("/ping", handler.Ping)
	router.GET("/openapi.json", handler.OpenAPIDoc)
	router.Static("/static/images", cfg.Static.ImagesDir)

	api := router.Group("/api/v1")

	auth := api.Group("/auth")
	auth.POST("/signup", authHandler.SignUp)
	auth.POST("/signin", authHandler.SignIn)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/signout", authHandler.SignOut)
	auth.GET("/me", handler.AuthMiddleware(authService), authHandler.Me)

	books := api.Group("/books")
	books.GET("", bookHandler.ListBooks)
	books.GET("/:id", bookHandler.GetBook)

	booksAuthed := api.Group("/books")
	booksAuthed.Use(handler.AuthMiddleware(authService))
	booksAuthed.POST("", bookHandler.CreateBook)
	booksAuthed.PUT("/:id", bookHandler.UpdateBook)
	booksAuthed.DELETE("/:id", bookHandler.DeleteBook)

	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("server: %v", err)
	}
}
