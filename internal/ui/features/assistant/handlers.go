package assistant

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/leapstack-labs/pith/internal/ai"
	"github.com/leapstack-labs/pith/internal/app"
	"github.com/leapstack-labs/pith/internal/insight"
	"github.com/leapstack-labs/pith/internal/ui/features/common"
	"github.com/starfederation/datastar-go/datastar"
)

// ModelInfo is a catalog entry with its local state.
type ModelInfo struct {
	ai.Descriptor
	Cached  bool `json:"cached"`
	Current bool `json:"current"`
	Loaded  bool `json:"loaded"`
}

// ModelsResponse is the body of GET /api/ai/models.
type ModelsResponse struct {
	Models []ModelInfo `json:"models"`
	Status ai.Status   `json:"status"`
}

// SelectRequest is the body of PUT /api/ai/model.
type SelectRequest struct {
	ID string `json:"id"`
}

// LoadSignals are read from the browser to start a load.
type LoadSignals struct {
	Model string `json:"model"`
}

// ChatSignals are read from the browser to ask a question.
type ChatSignals struct {
	Question string `json:"question"`
}

// statusSignals mirror the model status into the browser.
type statusSignals struct {
	AI ai.Status `json:"ai"`
}

type replySignals struct {
	Reply insight.Message `json:"reply"`
}

type chatDoneSignals struct {
	Messages  []insight.Message `json:"messages"`
	ChatError string            `json:"chatError"`
}

// Handlers serves the AI routes.
type Handlers struct {
	app *app.App
}

// NewHandlers creates Handlers.
func NewHandlers(a *app.App) *Handlers {
	return &Handlers{app: a}
}

// Models lists the catalog with cache and selection state.
func (h *Handlers) Models(w http.ResponseWriter, r *http.Request) {
	current, loaded := h.app.AI.CurrentModel(), h.app.AI.LoadedModel()
	out := make([]ModelInfo, 0, len(ai.Models))
	for _, d := range ai.Models {
		out = append(out, ModelInfo{
			Descriptor: d,
			Cached:     h.app.AI.CheckCached(r.Context(), d.ID),
			Current:    d.ID == current,
			Loaded:     d.ID == loaded,
		})
	}
	common.WriteJSON(w, http.StatusOK, ModelsResponse{Models: out, Status: h.app.AI.Status()})
}

// Status returns the current model status.
func (h *Handlers) Status(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSON(w, http.StatusOK, h.app.AI.Status())
}

// SelectModel records the model to load next.
func (h *Handlers) SelectModel(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if err := common.DecodeJSON(w, r, &req, common.MaxJSONBody); err != nil {
		common.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.app.AI.SetModel(r.Context(), req.ID); err != nil {
		var unknown *ai.UnknownModelError
		if errors.As(err, &unknown) {
			common.WriteError(w, http.StatusNotFound, err)
			return
		}
		common.WriteError(w, http.StatusInternalServerError, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, h.app.AI.Status())
}

// LoadSSE loads a model, streaming progress as signal patches.
func (h *Handlers) LoadSSE(w http.ResponseWriter, r *http.Request) {
	// Read signals before creating the SSE generator, which consumes the body.
	var signals LoadSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		common.WriteError(w, http.StatusBadRequest, fmt.Errorf("failed to read signals: %w", err))
		return
	}

	sse := datastar.NewSSE(w, r)
	_, err := h.app.AI.Init(r.Context(), func(p ai.Progress) {
		_ = sse.MarshalAndPatchSignals(statusSignals{AI: ai.Status{
			State:       ai.StateLoading,
			Progress:    p.Text,
			ProgressVal: p.Value,
			Model:       signals.Model,
		}})
	}, strings.TrimSpace(signals.Model))

	_ = sse.MarshalAndPatchSignals(statusSignals{AI: h.app.AI.Status()})
	if err != nil {
		_ = sse.ConsoleError(err)
	}
}

// ChatSSE asks the analyst a question, streaming the cumulative reply.
func (h *Handlers) ChatSSE(w http.ResponseWriter, r *http.Request) {
	var signals ChatSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		common.WriteError(w, http.StatusBadRequest, fmt.Errorf("failed to read signals: %w", err))
		return
	}

	sse := datastar.NewSSE(w, r)
	_, err := h.app.Insight.Ask(r.Context(), signals.Question, func(m insight.Message) {
		_ = sse.MarshalAndPatchSignals(replySignals{Reply: m})
	})

	done := chatDoneSignals{Messages: h.app.Insight.Messages()}
	if err != nil {
		done.ChatError = err.Error()
	}
	_ = sse.MarshalAndPatchSignals(done)
}

// Messages returns the chat transcript.
func (h *Handlers) Messages(w http.ResponseWriter, _ *http.Request) {
	msgs := h.app.Insight.Messages()
	if msgs == nil {
		msgs = []insight.Message{}
	}
	common.WriteJSON(w, http.StatusOK, msgs)
}

// ResetMessages clears the chat transcript.
func (h *Handlers) ResetMessages(w http.ResponseWriter, _ *http.Request) {
	h.app.Insight.Reset()
	w.WriteHeader(http.StatusNoContent)
}

// Purge deletes cached model weights and clears the transcript.
func (h *Handlers) Purge(w http.ResponseWriter, r *http.Request) {
	res, err := h.app.AI.Purge(r.Context())
	if err != nil {
		common.WriteError(w, http.StatusInternalServerError, err)
		return
	}
	h.app.Insight.Reset()
	common.WriteJSON(w, http.StatusOK, res)
}
