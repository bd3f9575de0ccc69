package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime/debug"
	"strings"
	"time"

	"github.com/ryanbastic/go-placebot/internal/canvas"
	"github.com/ryanbastic/go-placebot/internal/economy"
	"github.com/ryanbastic/go-placebot/internal/journal"
	"github.com/ryanbastic/go-placebot/internal/metrics"
	"github.com/ryanbastic/go-placebot/internal/santa"
	"github.com/ryanbastic/go-placebot/internal/user"
)

// Recorder receives every dispatched command. journal.Writer implements it.
type Recorder interface {
	Record(e journal.Entry) error
}

type route struct {
	name    string
	handler Handler
}

// Gateway resolves command names to handlers. Admin commands live in their
// own namespace and are wrapped with AdminOnly.
type Gateway struct {
	game     *Game
	ordinary []route
	admin    []route
	byName   map[string]Handler
	aliases  map[string]string
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewGateway registers every command of game. A nil recorder disables the
// journal.
func NewGateway(game *Game, recorder Recorder, logger *slog.Logger) *Gateway {
	gw := &Gateway{
		game:     game,
		byName:   make(map[string]Handler),
		aliases:  map[string]string{"babbo_natale_segreto": "secret_santa"},
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}

	registered := func(f HandlerFunc) Handler { return RequireRegistered(game.users, f) }
	gw.ordinary = []route{
		{"start", HandlerFunc(game.start)},
		{"help", HandlerFunc(gw.help)},
		{"users", registered(game.listUsers)},
		{"gems", registered(game.balance)},
		{"random_user", registered(game.randomUser)},
		{"place", registered(game.place)},
		{"secret_santa", registered(game.secretSanta)},
		{"leaderboard", registered(game.leaderboard)},
		{"gamble", registered(game.gamble)},
	}

	admin := func(f HandlerFunc) Handler { return AdminOnly(game.users, f) }
	gw.admin = []route{
		{"get_ids", admin(game.getIDs)},
		{"set_emoji", admin(game.setEmoji)},
		{"give_gems", admin(game.giveGems)},
		{"list_gems", admin(game.listGems)},
		{"canvas_names", admin(game.canvasNames)},
		{"set_canvas", admin(game.setCanvas)},
		{"get_info", admin(game.getInfo)},
		{"set_santa", admin(game.setSanta)},
		{"check_santa", admin(game.checkSanta)},
		{"set_extra", admin(game.setExtra)},
	}

	for _, r := range gw.ordinary {
		gw.byName[r.name] = r.handler
	}
	for _, r := range gw.admin {
		gw.byName[r.name] = r.handler
	}
	return gw
}

// Names returns the ordinary and admin command names in help order.
func (gw *Gateway) Names() (ordinary, admin []string) {
	for _, r := range gw.ordinary {
		ordinary = append(ordinary, r.name)
	}
	for _, r := range gw.admin {
		admin = append(admin, r.name)
	}
	return ordinary, admin
}

// Dispatch runs one command and always returns a reply: refusals and
// failures are rendered as text with OK false, and a panicking handler is
// recovered and logged.
func (gw *Gateway) Dispatch(ctx context.Context, req Request) Response {
	start := time.Now()
	if req.Now.IsZero() {
		req.Now = gw.now()
	}
	req.Command = normalizeCommand(req.Command)
	if alias, ok := gw.aliases[req.Command]; ok {
		req.Command = alias
	}

	label := req.Command
	text, err := gw.invoke(ctx, req)
	outcome := metrics.OutcomeOK
	if err != nil {
		var unknown *unknownCommandError
		if errors.As(err, &unknown) {
			label = "unknown"
		}
		text, outcome = describe(err)
		if outcome == metrics.OutcomeError {
			gw.logger.Error("command failed", "request_id", req.RequestID, "user_id", req.UserID, "command", req.Command, "error", err)
		} else {
			gw.logger.Debug("command refused", "request_id", req.RequestID, "user_id", req.UserID, "command", req.Command, "reason", err)
		}
	}
	elapsed := time.Since(start)
	metrics.ObserveCommand(label, outcome, elapsed.Seconds())

	resp := Response{Text: text, OK: err == nil}
	if gw.recorder != nil {
		entry := journal.Entry{
			Time:      req.Now.UTC(),
			RequestID: req.RequestID,
			UserID:    req.UserID,
			Command:   req.Command,
			Args:      req.Args,
			OK:        resp.OK,
			Reply:     resp.Text,
			Duration:  elapsed.Seconds(),
		}
		if err := gw.recorder.Record(entry); err != nil {
			gw.logger.Warn("journal write failed", "request_id", req.RequestID, "error", err)
		}
	}
	return resp
}

func (gw *Gateway) invoke(ctx context.Context, req Request) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			gw.logger.Error("command panicked",
				"request_id", req.RequestID,
				"command", req.Command,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			text, err = "", fmt.Errorf("command %s panicked: %v", req.Command, r)
		}
	}()

	h, ok := gw.byName[req.Command]
	if !ok {
		return "", &unknownCommandError{name: req.Command}
	}
	return h.Handle(ctx, req)
}

func (gw *Gateway) help(ctx context.Context, req Request) (string, error) {
	ordinary, admin := gw.Names()
	text := "🖥 Commands: /" + strings.Join(ordinary, ", /")

	isAdmin, err := gw.game.users.IsAdmin(ctx, req.UserID)
	if err != nil {
		return "", err
	}
	if isAdmin {
		text += "\n\n✨ Admin commands: /" + strings.Join(admin, ", /")
	}
	return text, nil
}

// normalizeCommand accepts "/Place", "place@somebot" and "place".
func normalizeCommand(s string) string {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "/"))
	if i := strings.IndexByte(s, '@'); i >= 0 {
		s = s[:i]
	}
	return strings.ToLower(s)
}

type unknownCommandError struct {
	name string
}

func (e *unknownCommandError) Error() string { return "unknown command " + e.name }

// describe turns a handler error into the reply text and its metric outcome.
func describe(err error) (string, string) {
	var (
		unknown     *unknownCommandError
		inputErr    *InputError
		notFound    *NotFoundError
		cooldownErr *CooldownError
		rejection   *economy.RejectionError
		corrupt     *canvas.CorruptGridError
		mismatch    *canvas.ShapeMismatchError
	)
	switch {
	case errors.As(err, &unknown):
		return fmt.Sprintf("Unknown command /%s, send /help for the list", unknown.name), metrics.OutcomeRejected
	case errors.As(err, &inputErr):
		return inputErr.Msg, metrics.OutcomeRejected
	case errors.As(err, &notFound):
		return notFound.What + " not found", metrics.OutcomeRejected
	case errors.As(err, &cooldownErr):
		return fmt.Sprintf("💤 Wait %.0f more seconds before placing again", math.Ceil(cooldownErr.Remaining)), metrics.OutcomeRejected
	case errors.As(err, &rejection):
		switch {
		case errors.Is(rejection, economy.ErrNonPositiveBet):
			return "You must bet at least 1 gem 🔹", metrics.OutcomeRejected
		case errors.Is(rejection, economy.ErrOverLimit):
			return fmt.Sprintf("You can bet up to %d gems 🔹", rejection.Limit), metrics.OutcomeRejected
		default:
			return fmt.Sprintf("You have only %d gems 🔹", rejection.Balance), metrics.OutcomeRejected
		}
	case errors.Is(err, ErrUnauthorized):
		return "You are not an admin!", metrics.OutcomeRejected
	case errors.Is(err, ErrNotRegistered):
		return "Send /start to register first.", metrics.OutcomeRejected
	case errors.Is(err, user.ErrUserNotFound):
		return "User not found.", metrics.OutcomeRejected
	case errors.Is(err, santa.ErrNotInCohort):
		return "You are not one of the Secret Santas...", metrics.OutcomeRejected
	case errors.Is(err, santa.ErrInsufficientCohort):
		return "Secret Santa needs at least 2 participants.", metrics.OutcomeRejected
	case errors.As(err, &corrupt):
		return fmt.Sprintf("🚧 Canvas %q is unavailable right now", corrupt.Name), metrics.OutcomeError
	case errors.As(err, &mismatch):
		return fmt.Sprintf("🚧 Canvas %q is unavailable right now", mismatch.Name), metrics.OutcomeError
	}
	return "Something went wrong, try again later.", metrics.OutcomeError
}
