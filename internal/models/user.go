package models

// User represents a row in the PostgreSQL users table.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"` // never serialize
}

// Credentials is the body of POST /register and POST /login, as JSON or
// as an urlencoded form.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse is returned by a successful programmatic login.
type TokenResponse struct {
	Token string `json:"token"`
}
