package rtc

import (
	"net/http"

	"github.com/hilthontt/rendezvous/internal/infrastructure/configs"
	"github.com/hilthontt/rendezvous/internal/infrastructure/json"
	"github.com/pion/webrtc/v4"
)

// ConfigResponse is the RTCConfiguration subset browsers need to build a
// peer connection.
type ConfigResponse struct {
	ICEServers []webrtc.ICEServer `json:"iceServers"`
}

type Handler struct {
	response ConfigResponse
}

func NewHandler(cfg configs.RTCConfig) *Handler {
	servers := make([]webrtc.ICEServer, 0, len(cfg.ICEServers))
	for _, s := range cfg.ICEServers {
		server := webrtc.ICEServer{URLs: s.URLs}
		if s.Username != "" {
			server.Username = s.Username
			server.Credential = s.Credential
		}
		servers = append(servers, server)
	}

	return &Handler{response: ConfigResponse{ICEServers: servers}}
}

func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	json.Write(w, http.StatusOK, h.response)
}
