package model

type ErrorResponse struct {
	Error string `json:"error"`
}

type PingResponse struct {
	Message string `json:"message"`
}

type RootResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type SignOutResponse struct {
	Status string `json:"status"`
}

type AuthMeResponse struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type DeleteBookResponse struct {
	Status string `json:"status"`
	BookID int64  `json:"bookId"`
}
