package http

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/ekisa-team/stylus/internal/errcat"
	"github.com/ekisa-team/stylus/internal/manager"
	"github.com/ekisa-team/stylus/internal/module"
)

// Models is the model manager as seen by the HTTP API.
type Models interface {
	List() []manager.Instance
	Get(id string) (manager.Instance, error)
	Load(ctx context.Context, id string, onProgress module.ProgressFunc) error
	Forward(ctx context.Context, id, input string) (string, error)
	Unload(id string) error
	Pause(id string) error
	Resume(ctx context.Context, id string, onProgress module.ProgressFunc) error
	Cancel(id string) error
	RemoveCached(id string) error
	ListCached() ([]string, error)
}

type (
	ModelDTO struct {
		LoadedAt *time.Time `json:"loaded_at,omitempty"`
		ID       string     `json:"id"`
		Backend  string     `json:"backend"`
		Source   string     `json:"source"`
		Status   string     `json:"status"   enum:"unloaded,loading,loaded,failed"`
		Error    string     `json:"error,omitempty"`
		LoadID   string     `json:"load_id,omitempty"`
		Tags     []string   `json:"tags,omitempty"`
	}

	ForwardRequestDTO struct {
		Input string `json:"input" doc:"Input reference passed to the model, such as an image path"`
	}

	ForwardResponseDTO struct {
		Output string `json:"output"`
	}
)

type (
	ModelIDInput struct {
		ID string `path:"id" minLength:"1"`
	}

	ListModelsOutput struct {
		Body struct {
			Models []ModelDTO `json:"models"`
		}
	}

	GetModelOutput struct {
		Body ModelDTO
	}

	ForwardInput struct {
		ID   string `path:"id" minLength:"1"`
		Body ForwardRequestDTO
	}

	ForwardOutput struct {
		Body ForwardResponseDTO
	}

	ListCachedOutput struct {
		Body struct {
			Paths []string `json:"paths"`
		}
	}

	ProgressEvent struct {
		Progress float64 `json:"progress" minimum:"0" maximum:"1"`
	}

	DoneEvent struct {
		Model ModelDTO `json:"model"`
	}

	ErrorEvent struct {
		Status  int    `json:"status"`
		Code    string `json:"code,omitempty"`
		Message string `json:"message"`
	}
)

// ModelsHandler handles HTTP requests for models.
type ModelsHandler struct {
	models Models
}

// NewModelsHandler registers the model operations on api.
func NewModelsHandler(api huma.API, models Models) *ModelsHandler {
	h := &ModelsHandler{models: models}

	huma.Register(api, huma.Operation{
		OperationID: "list-models",
		Method:      http.MethodGet,
		Path:        "/models",
		Summary:     "List configured models",
		Tags:        []string{"models"},
	}, h.handleList)

	huma.Register(api, huma.Operation{
		OperationID: "get-model",
		Method:      http.MethodGet,
		Path:        "/models/{id}",
		Summary:     "Get a model",
		Tags:        []string{"models"},
	}, h.handleGet)

	sse.Register(api, huma.Operation{
		OperationID: "load-model",
		Method:      http.MethodPost,
		Path:        "/models/{id}/load",
		Summary:     "Load a model, streaming acquisition progress (SSE)",
		Tags:        []string{"models"},
	}, map[string]any{
		"progress": ProgressEvent{},
		"done":     DoneEvent{},
		"error":    ErrorEvent{},
	}, h.handleLoad)

	huma.Register(api, huma.Operation{
		OperationID:   "forward-model",
		Method:        http.MethodPost,
		Path:          "/models/{id}/forward",
		Summary:       "Run inference with a loaded model",
		Tags:          []string{"models"},
		DefaultStatus: http.StatusOK,
	}, h.handleForward)

	huma.Register(api, huma.Operation{
		OperationID:   "unload-model",
		Method:        http.MethodDelete,
		Path:          "/models/{id}",
		Summary:       "Unload a model",
		Tags:          []string{"models"},
		DefaultStatus: http.StatusNoContent,
	}, h.handleUnload)

	huma.Register(api, huma.Operation{
		OperationID:   "pause-model-download",
		Method:        http.MethodPost,
		Path:          "/models/{id}/pause",
		Summary:       "Pause the asset download of a model",
		Tags:          []string{"downloads"},
		DefaultStatus: http.StatusNoContent,
	}, h.handlePause)

	sse.Register(api, huma.Operation{
		OperationID: "resume-model-download",
		Method:      http.MethodPost,
		Path:        "/models/{id}/resume",
		Summary:     "Resume a paused download and load the model (SSE)",
		Tags:        []string{"downloads"},
	}, map[string]any{
		"progress": ProgressEvent{},
		"done":     DoneEvent{},
		"error":    ErrorEvent{},
	}, h.handleResume)

	huma.Register(api, huma.Operation{
		OperationID:   "cancel-model-download",
		Method:        http.MethodPost,
		Path:          "/models/{id}/cancel",
		Summary:       "Cancel the asset download of a model",
		Tags:          []string{"downloads"},
		DefaultStatus: http.StatusNoContent,
	}, h.handleCancel)

	huma.Register(api, huma.Operation{
		OperationID:   "remove-cached-model",
		Method:        http.MethodDelete,
		Path:          "/models/{id}/cache",
		Summary:       "Remove the cached asset of a model",
		Tags:          []string{"downloads"},
		DefaultStatus: http.StatusNoContent,
	}, h.handleRemoveCached)

	huma.Register(api, huma.Operation{
		OperationID: "list-cached",
		Method:      http.MethodGet,
		Path:        "/cache",
		Summary:     "List completed downloads in the cache",
		Tags:        []string{"downloads"},
	}, h.handleListCached)

	return h
}

func (h *ModelsHandler) handleList(_ context.Context, _ *struct{}) (*ListModelsOutput, error) {
	instances := h.models.List()

	out := &ListModelsOutput{}
	out.Body.Models = make([]ModelDTO, 0, len(instances))
	for _, inst := range instances {
		out.Body.Models = append(out.Body.Models, toModelDTO(inst))
	}
	return out, nil
}

func (h *ModelsHandler) handleGet(_ context.Context, input *ModelIDInput) (*GetModelOutput, error) {
	inst, err := h.models.Get(input.ID)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &GetModelOutput{Body: toModelDTO(inst)}, nil
}

// handleLoad streams progress events while the model loads and ends with a
// done or error event. Progress values may be coalesced when the client reads
// slower than the fetcher reports.
func (h *ModelsHandler) handleLoad(ctx context.Context, input *ModelIDInput, send sse.Sender) {
	h.stream(ctx, input.ID, send, h.models.Load)
}

func (h *ModelsHandler) handleResume(ctx context.Context, input *ModelIDInput, send sse.Sender) {
	h.stream(ctx, input.ID, send, h.models.Resume)
}

func (h *ModelsHandler) stream(ctx context.Context, id string, send sse.Sender, run func(context.Context, string, module.ProgressFunc) error) {
	if _, err := h.models.Get(id); err != nil {
		_ = send.Data(toErrorEvent(err))
		return
	}

	progress := make(chan float64, 64)
	result := make(chan error, 1)

	go func() {
		result <- run(ctx, id, func(p float64) {
			select {
			case progress <- p:
			default:
			}
		})
	}()

	for {
		select {
		case p := <-progress:
			if err := send.Data(ProgressEvent{Progress: p}); err != nil {
				return
			}

		case err := <-result:
			for drained := false; !drained; {
				select {
				case p := <-progress:
					_ = send.Data(ProgressEvent{Progress: p})
				default:
					drained = true
				}
			}

			if err != nil {
				_ = send.Data(toErrorEvent(err))
				return
			}

			inst, err := h.models.Get(id)
			if err != nil {
				_ = send.Data(toErrorEvent(err))
				return
			}
			_ = send.Data(DoneEvent{Model: toModelDTO(inst)})
			return
		}
	}
}

func (h *ModelsHandler) handleForward(ctx context.Context, input *ForwardInput) (*ForwardOutput, error) {
	out, err := h.models.Forward(ctx, input.ID, input.Body.Input)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &ForwardOutput{Body: ForwardResponseDTO{Output: out}}, nil
}

func (h *ModelsHandler) handleUnload(_ context.Context, input *ModelIDInput) (*struct{}, error) {
	if err := h.models.Unload(input.ID); err != nil {
		return nil, toHTTPError(err)
	}
	return nil, nil
}

func (h *ModelsHandler) handlePause(_ context.Context, input *ModelIDInput) (*struct{}, error) {
	if err := h.models.Pause(input.ID); err != nil {
		return nil, toHTTPError(err)
	}
	return nil, nil
}

func (h *ModelsHandler) handleCancel(_ context.Context, input *ModelIDInput) (*struct{}, error) {
	if err := h.models.Cancel(input.ID); err != nil {
		return nil, toHTTPError(err)
	}
	return nil, nil
}

func (h *ModelsHandler) handleRemoveCached(_ context.Context, input *ModelIDInput) (*struct{}, error) {
	if err := h.models.RemoveCached(input.ID); err != nil {
		return nil, toHTTPError(err)
	}
	return nil, nil
}

func (h *ModelsHandler) handleListCached(_ context.Context, _ *struct{}) (*ListCachedOutput, error) {
	paths, err := h.models.ListCached()
	if err != nil {
		return nil, toHTTPError(err)
	}

	out := &ListCachedOutput{}
	out.Body.Paths = paths
	if out.Body.Paths == nil {
		out.Body.Paths = []string{}
	}
	return out, nil
}

func toModelDTO(inst manager.Instance) ModelDTO {
	dto := ModelDTO{
		ID:       inst.ID,
		Source:   inst.Source,
		Status:   string(inst.Status),
		Error:    inst.Error,
		LoadedAt: inst.LoadedAt,
		LoadID:   inst.LoadID,
	}
	if inst.Config != nil {
		dto.Backend = inst.Config.Backend
		dto.Tags = inst.Config.Tags
	}
	return dto
}

func toErrorEvent(err error) ErrorEvent {
	se := toHTTPError(err)
	ev := ErrorEvent{Status: se.GetStatus(), Message: err.Error()}
	if code, ok := errcat.CodeOf(err); ok {
		ev.Code = code.String()
	}
	return ev
}
