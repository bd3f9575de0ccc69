package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ryanbastic/go-placebot/internal/canvas"
)

// CanvasReader is the read side of *canvas.Manager.
type CanvasReader interface {
	Exists(ctx context.Context, name string) (bool, error)
	Snapshot(ctx context.Context, name string) (*canvas.Canvas, error)
	Names(ctx context.Context) ([]string, error)
}

type GetCanvasInput struct {
	Name string `path:"name" doc:"Canvas name" minLength:"1" maxLength:"68"`
}

type CanvasResponse struct {
	Name  string    `json:"name" doc:"Canvas name"`
	Rows  int       `json:"rows" doc:"Size of the first axis"`
	Cols  int       `json:"cols" doc:"Size of the second axis"`
	Cells [][]int64 `json:"cells" doc:"Owner user id per cell, row-major; 0 is unclaimed"`
}

type GetCanvasOutput struct {
	Body CanvasResponse
}

type ListCanvasesOutput struct {
	Body struct {
		Names []string `json:"names" doc:"Persisted and configured canvases"`
	}
}

type CanvasHandler struct {
	canvases CanvasReader
	logger   *slog.Logger
}

func NewCanvasHandler(canvases CanvasReader, logger *slog.Logger) *CanvasHandler {
	return &CanvasHandler{canvases: canvases, logger: logger}
}

func registerCanvasRoutes(api huma.API, h *CanvasHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "list-canvases",
		Method:      http.MethodGet,
		Path:        "/v1/canvases",
		Summary:     "List canvases",
		Tags:        []string{"canvases"},
	}, h.ListCanvases)

	huma.Register(api, huma.Operation{
		OperationID: "get-canvas",
		Method:      http.MethodGet,
		Path:        "/v1/canvases/{name}",
		Summary:     "Get a canvas grid",
		Tags:        []string{"canvases"},
	}, h.GetCanvas)
}

func (h *CanvasHandler) ListCanvases(ctx context.Context, _ *struct{}) (*ListCanvasesOutput, error) {
	names, err := h.canvases.Names(ctx)
	if err != nil {
		h.logger.Error("failed to list canvases", "error", err)
		return nil, huma.Error500InternalServerError("failed to list canvases")
	}
	out := &ListCanvasesOutput{}
	out.Body.Names = names
	if out.Body.Names == nil {
		out.Body.Names = []string{}
	}
	return out, nil
}

func (h *CanvasHandler) GetCanvas(ctx context.Context, input *GetCanvasInput) (*GetCanvasOutput, error) {
	name, err := canvas.NormalizeName(input.Name)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid canvas name")
	}

	// Snapshot creates missing canvases, so unknown names are filtered first.
	ok, err := h.canvases.Exists(ctx, name)
	if err != nil {
		h.logger.Error("failed to look up canvas", "canvas", name, "error", err)
		return nil, huma.Error500InternalServerError("failed to look up canvas")
	}
	if !ok {
		return nil, huma.Error404NotFound("canvas not found")
	}

	c, err := h.canvases.Snapshot(ctx, name)
	if err != nil {
		var corrupt *canvas.CorruptGridError
		var mismatch *canvas.ShapeMismatchError
		if errors.As(err, &corrupt) || errors.As(err, &mismatch) {
			h.logger.Error("canvas unreadable", "canvas", name, "error", err)
			return nil, huma.Error500InternalServerError("canvas is unreadable")
		}
		h.logger.Error("failed to load canvas", "canvas", name, "error", err)
		return nil, huma.Error500InternalServerError("failed to load canvas")
	}

	return &GetCanvasOutput{Body: CanvasResponse{
		Name:  c.Name,
		Rows:  c.Rows,
		Cols:  c.Cols,
		Cells: c.Cells(),
	}}, nil
}
