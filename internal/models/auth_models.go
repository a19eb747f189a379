package models

import "fmt"

// Session identifies one authenticated staff terminal. It is built from the
// validated token and passed explicitly to anything that needs the user.
type Session struct {
	UserID     int64  `json:"user_id"`
	Username   string `json:"username"`
	Role       string `json:"role"`
	TerminalID string `json:"terminal_id"`
}

// Authenticated reports whether the session carries a user.
func (s *Session) Authenticated() bool {
	return s != nil && s.UserID > 0
}

// Key identifies the session's workspace.
func (s Session) Key() string {
	return fmt.Sprintf("%d:%s", s.UserID, s.TerminalID)
}
