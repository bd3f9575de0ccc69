package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ryanbastic/go-placebot/internal/command"
)

// Dispatcher runs one chat command. *command.Gateway implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, req command.Request) command.Response
}

type CommandBody struct {
	UserID   int64    `json:"user_id" doc:"Chat user id" required:"true"`
	UserName string   `json:"user_name,omitempty" doc:"Display name, used by /start" required:"false" maxLength:"64"`
	Command  string   `json:"command" doc:"Command name, with or without the leading slash" required:"true" minLength:"1" maxLength:"64"`
	Args     []string `json:"args,omitempty" doc:"Whitespace-separated arguments" required:"false" maxItems:"16"`
}

type CommandInput struct {
	Body CommandBody
}

type CommandOutput struct {
	Outcome string `header:"X-Placebot-Outcome" doc:"ok, or refused when the reply explains a refusal"`
	Body    command.Response
}

type CommandHandler struct {
	dispatcher Dispatcher
	logger     *slog.Logger
}

func NewCommandHandler(dispatcher Dispatcher, logger *slog.Logger) *CommandHandler {
	return &CommandHandler{dispatcher: dispatcher, logger: logger}
}

func registerCommandRoutes(api huma.API, h *CommandHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "dispatch-command",
		Method:      http.MethodPost,
		Path:        "/v1/commands",
		Summary:     "Run a chat command",
		Description: "Refused commands still answer 200; the reply text explains the refusal and ok is false.",
		Tags:        []string{"commands"},
	}, h.Dispatch)
}

func (h *CommandHandler) Dispatch(ctx context.Context, input *CommandInput) (*CommandOutput, error) {
	if strings.TrimSpace(input.Body.Command) == "" {
		return nil, huma.Error400BadRequest("command must not be blank")
	}
	resp := h.dispatcher.Dispatch(ctx, command.Request{
		UserID:    input.Body.UserID,
		UserName:  input.Body.UserName,
		Command:   input.Body.Command,
		Args:      input.Body.Args,
		RequestID: RequestIDFromContext(ctx),
	})
	out := &CommandOutput{Outcome: "ok", Body: resp}
	if !resp.OK {
		out.Outcome = "refused"
	}
	return out, nil
}
