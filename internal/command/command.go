package command

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Request is one parsed command from the chat transport.
type Request struct {
	UserID    int64
	UserName  string
	Command   string
	Args      []string
	Now       time.Time
	RequestID string
}

// Response is the text sent back to the user. OK is false for every
// refused or failed command.
type Response struct {
	Text string `json:"text"`
	OK   bool   `json:"ok"`
}

// Handler executes one command.
type Handler interface {
	Handle(ctx context.Context, req Request) (string, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req Request) (string, error)

func (f HandlerFunc) Handle(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

var (
	ErrUnauthorized  = errors.New("not an admin")
	ErrNotRegistered = errors.New("user not registered")
)

// InputError is a malformed request. Msg is shown to the user as is.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string { return e.Msg }

func invalid(format string, args ...any) error {
	return &InputError{Msg: fmt.Sprintf(format, args...)}
}

func usage(s string) error {
	return &InputError{Msg: "Usage: " + s}
}

// NotFoundError names a missing user or canvas.
type NotFoundError struct {
	What string
}

func (e *NotFoundError) Error() string { return e.What + " not found" }

// CooldownError refuses a placement made before the cooldown elapsed.
type CooldownError struct {
	Remaining float64
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooldown active, %.0f seconds remaining", e.Remaining)
}

// AdminChecker reports whether a user may run admin commands.
type AdminChecker interface {
	IsAdmin(ctx context.Context, id int64) (bool, error)
}

// AdminOnly runs h only for admins; everyone else gets ErrUnauthorized and
// h is never called.
func AdminOnly(users AdminChecker, h Handler) Handler {
	return HandlerFunc(func(ctx context.Context, req Request) (string, error) {
		ok, err := users.IsAdmin(ctx, req.UserID)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", ErrUnauthorized
		}
		return h.Handle(ctx, req)
	})
}

// RegistrationChecker reports whether a user has a profile.
type RegistrationChecker interface {
	Registered(ctx context.Context, id int64) (bool, error)
}

// RequireRegistered runs h only for users who sent /start.
func RequireRegistered(users RegistrationChecker, h Handler) Handler {
	return HandlerFunc(func(ctx context.Context, req Request) (string, error) {
		ok, err := users.Registered(ctx, req.UserID)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", ErrNotRegistered
		}
		return h.Handle(ctx, req)
	})
}

func parseInt(arg, what string) (int64, error) {
	n, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, invalid("%q is not a valid %s", arg, what)
	}
	return n, nil
}
