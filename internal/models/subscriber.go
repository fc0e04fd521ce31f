package models

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidEmail      = errors.New("invalid email")
	ErrAlreadySubscribed = errors.New("already subscribed")
)

type Subscriber struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// SubscribeRequest is the body accepted by POST /subscribe. The only rule on
// the address is that it is present and contains an "@".
type SubscribeRequest struct {
	Email string `json:"email" binding:"required,contains=@"`
}

func ValidateEmail(email string) error {
	if email == "" || !strings.Contains(email, "@") {
		return ErrInvalidEmail
	}
	return nil
}
