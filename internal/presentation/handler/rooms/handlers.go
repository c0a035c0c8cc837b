package rooms

import (
	"errors"
	"fmt"
	"net/http"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/hilthontt/rendezvous/internal/domain"
	"github.com/hilthontt/rendezvous/internal/infrastructure/configs"
	"github.com/hilthontt/rendezvous/internal/infrastructure/json"
	"github.com/hilthontt/rendezvous/internal/infrastructure/logging"
	"github.com/hilthontt/rendezvous/internal/infrastructure/validate"
	"github.com/hilthontt/rendezvous/internal/infrastructure/ws"
)

type Handler struct {
	core           *ws.Core
	upgrader       websocket.Upgrader
	clientConfig   ws.ClientConfig
	validateRoomID validate.Validator
	logger         logging.Logger
}

func NewHandler(core *ws.Core, cfg configs.Config, logger logging.Logger) *Handler {
	return &Handler{
		core: core,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.WS.ReadBufferSize,
			WriteBufferSize: cfg.WS.WriteBufferSize,
			CheckOrigin:     checkOrigin(cfg.HTTP.AllowedOrigins),
		},
		clientConfig: ws.ClientConfig{
			SendBuffer:     cfg.WS.SendBuffer,
			MaxMessageSize: cfg.WS.MaxMessageSize,
			PongWait:       cfg.WS.PongWait,
			WriteWait:      cfg.WS.WriteWait,
			RateLimit:      cfg.WS.RateLimit,
			RateBurst:      cfg.WS.RateBurst,
		},
		validateRoomID: validate.RoomID(),
		logger:         logger,
	}
}

// checkOrigin allows requests without an Origin header (non-browser peers),
// and any origin when the list is empty or contains "*".
func checkOrigin(allowed []string) func(r *http.Request) bool {
	origins := mapset.NewThreadUnsafeSet(allowed...)
	if origins.IsEmpty() || origins.Contains("*") {
		return func(*http.Request) bool { return true }
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || origins.Contains(origin)
	}
}

// JoinRoomHandler upgrades the request and registers the peer in {roomId}.
// An invalid room id is rejected with 400 before the upgrade; a full room
// gets an error.join event followed by close code 4409.
func (h *Handler) JoinRoomHandler(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	if err := h.validateRoomID(roomID); err != nil {
		h.logger.Warn(logging.WebSocket, logging.Handshake, "invalid room id", map[logging.ExtraKey]any{
			logging.RoomID:       roomID,
			logging.ErrorMessage: err.Error(),
		})
		json.WriteValidationError(w, fmt.Errorf("%w: %w", domain.ErrInvalidRoomID, err))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already replied
		h.logger.Warn(logging.WebSocket, logging.Handshake, "websocket upgrade failed", map[logging.ExtraKey]any{
			logging.RoomID:       roomID,
			logging.ErrorMessage: err.Error(),
		})
		return
	}

	client := ws.NewClient(conn, roomID, h.clientConfig, h.logger)
	if err := client.Join(r.Context(), h.core); err != nil {
		switch {
		case errors.Is(err, domain.ErrRoomFull):
			client.Reject(ws.NewJoinFailed(roomID, ws.CodeRoomFull, err.Error()), ws.CloseRoomFull, "room full")
		case errors.Is(err, domain.ErrAlreadyJoined):
			client.Reject(ws.NewJoinFailed(roomID, ws.CodeAlreadyJoined, err.Error()), websocket.ClosePolicyViolation, "already joined")
		default:
			client.Reject(ws.NewJoinFailed(roomID, ws.CodeJoinFailed, err.Error()), websocket.CloseInternalServerErr, "join failed")
		}
		return
	}

	go client.WritePump()
	go client.ReadPump(h.core)
}

// GetRoomHandler returns the live membership of {roomId}.
func (h *Handler) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	if err := h.validateRoomID(roomID); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	snapshot, ok := h.core.Registry().Snapshot(roomID)
	if !ok {
		json.WriteError(w, http.StatusNotFound, domain.ErrRoomNotFound, "Room not found")
		return
	}

	json.Write(w, http.StatusOK, roomResponse{
		RoomID:    snapshot.ID,
		CreatedAt: snapshot.CreatedAt,
		Capacity:  h.core.Registry().Capacity(),
		Peers:     snapshot.Peers,
	})
}
