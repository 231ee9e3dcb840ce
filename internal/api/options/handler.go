package options

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"optionvault/internal/adapters/redis"
	"optionvault/internal/domain/ledger"
	"optionvault/internal/domain/option"
	"optionvault/pkg/errors"
	"optionvault/pkg/logger"
)

const cacheTTL = 5 * time.Second

// Handler exposes the option lifecycle operations over HTTP
type Handler struct {
	engine *option.Service
	cache  *redis.Client // optional read cache, may be nil
	log    *logger.Logger
}

// NewHandler creates a new options API handler
func NewHandler(engine *option.Service, cache *redis.Client) *Handler {
	return &Handler{
		engine: engine,
		cache:  cache,
		log:    logger.Get().With("component", "options_api"),
	}
}

// Register attaches all option routes to the mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /options", h.HandleMint)
	mux.HandleFunc("GET /options/{id}", h.HandleGet)
	mux.HandleFunc("POST /options/{id}/transfer", h.HandleTransfer)
	mux.HandleFunc("POST /options/{id}/exercise", h.HandleExercise)
	mux.HandleFunc("POST /options/{id}/cancel", h.HandleCancel)
	mux.HandleFunc("POST /options/{id}/expire", h.HandleExpire)
}

type mintRequest struct {
	Type             string    `json:"type"`
	Style            string    `json:"style"`
	StrikePrice      uint64    `json:"strike_price"`
	Expiration       time.Time `json:"expiration"`
	AmountUnderlying uint64    `json:"amount_underlying"`
	UnderlyingAsset  string    `json:"underlying_asset"`
	StrikeAsset      string    `json:"strike_asset"`
	Writer           string    `json:"writer"`
	Recipient        string    `json:"recipient,omitempty"`
}

type transferRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type exerciseRequest struct {
	Amount    uint64 `json:"amount"`
	Exerciser string `json:"exerciser"`
}

type cancelRequest struct {
	Actor string `json:"actor"`
}

type contractResponse struct {
	ID                  uuid.UUID `json:"id"`
	Type                string    `json:"type"`
	Style               string    `json:"style"`
	StrikePrice         uint64    `json:"strike_price"`
	Expiration          time.Time `json:"expiration"`
	UnderlyingAsset     string    `json:"underlying_asset"`
	StrikeAsset         string    `json:"strike_asset"`
	AmountUnderlying    uint64    `json:"amount_underlying"`
	RemainingUnderlying uint64    `json:"remaining_underlying"`
	Writer              string    `json:"writer"`
	Status              string    `json:"status"`
	Settled             bool      `json:"settled"`
}

func toResponse(c *option.Contract) contractResponse {
	return contractResponse{
		ID:                  c.ID,
		Type:                c.Type.String(),
		Style:               c.Style.String(),
		StrikePrice:         c.StrikePrice,
		Expiration:          c.Expiration,
		UnderlyingAsset:     c.UnderlyingAsset.String(),
		StrikeAsset:         c.StrikeAsset.String(),
		AmountUnderlying:    c.AmountUnderlying,
		RemainingUnderlying: c.RemainingUnderlying,
		Writer:              c.Writer.String(),
		Status:              c.Status.String(),
		Settled:             c.Settled(),
	}
}

// HandleMint writes a new contract
func (h *Handler) HandleMint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.engine.Mint(r.Context(), option.MintParams{
		Type:             option.Type(req.Type),
		Style:            option.Style(req.Style),
		StrikePrice:      req.StrikePrice,
		Expiration:       req.Expiration,
		AmountUnderlying: req.AmountUnderlying,
		UnderlyingAsset:  ledger.Asset(req.UnderlyingAsset),
		StrikeAsset:      ledger.Asset(req.StrikeAsset),
		Writer:           ledger.Account(req.Writer),
		Recipient:        ledger.Account(req.Recipient),
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(c))
}

// HandleGet returns a contract record, served from the read cache when warm
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid contract id")
		return
	}

	cacheKey := "option:" + id.String()
	if h.cache != nil {
		var cached contractResponse
		if err := h.cache.GetJSON(r.Context(), cacheKey, &cached); err == nil {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	c, err := h.engine.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := toResponse(c)
	if h.cache != nil {
		if err := h.cache.SetJSON(r.Context(), cacheKey, resp, cacheTTL); err != nil {
			h.log.Debugw("failed to cache contract", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleTransfer moves the representative token to a new holder
func (h *Handler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid contract id")
		return
	}

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.From == "" || req.To == "" {
		writeError(w, http.StatusBadRequest, "from and to are required")
		return
	}

	err = h.engine.Transfer(r.Context(), option.TransferParams{
		ContractID: id,
		From:       ledger.Account(req.From),
		To:         ledger.Account(req.To),
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.invalidate(r, id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "transferred"})
}

// HandleExercise settles part or all of the remaining notional
func (h *Handler) HandleExercise(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid contract id")
		return
	}

	var req exerciseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Exerciser == "" {
		writeError(w, http.StatusBadRequest, "exerciser is required")
		return
	}

	c, err := h.engine.Exercise(r.Context(), id, req.Amount, ledger.Account(req.Exerciser))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.invalidate(r, id)
	writeJSON(w, http.StatusOK, toResponse(c))
}

// HandleCancel voids an unsettled contract and refunds its writer
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid contract id")
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Actor == "" {
		writeError(w, http.StatusBadRequest, "actor is required")
		return
	}

	c, err := h.engine.Cancel(r.Context(), id, ledger.Account(req.Actor))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.invalidate(r, id)
	writeJSON(w, http.StatusOK, toResponse(c))
}

// HandleExpire sweeps residual escrow back to the writer
func (h *Handler) HandleExpire(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid contract id")
		return
	}

	c, err := h.engine.Expire(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.invalidate(r, id)
	writeJSON(w, http.StatusOK, toResponse(c))
}

func (h *Handler) invalidate(r *http.Request, id uuid.UUID) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Delete(r.Context(), "option:"+id.String()); err != nil {
		h.log.Debugw("failed to invalidate cache", "error", err)
	}
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errors.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, errors.ErrInvalidOptionType),
		errors.Is(err, errors.ErrInvalidAmount),
		errors.Is(err, errors.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, errors.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, errors.ErrOptionExpired),
		errors.Is(err, errors.ErrOptionAlreadyExercised),
		errors.Is(err, errors.ErrEarlyExerciseNotAllowed),
		errors.Is(err, errors.ErrOptionNotExpired),
		errors.Is(err, errors.ErrOptionCancelled),
		errors.Is(err, errors.ErrInsufficientFunds):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.log.Errorw("internal error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
