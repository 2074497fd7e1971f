package http

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/voxwire/voxwire/internal/core/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// TODO: restrict origins outside dev
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSClient wraps one WebSocket connection as a device session. Writes are
// serialized by writeMu so service goroutines can send concurrently.
type WSClient struct {
	userID   domain.UserID
	deviceID domain.DeviceID
	name     string
	avatar   string
	conn     *websocket.Conn
	writeMu  sync.Mutex
}

func (c *WSClient) UserID() domain.UserID {
	return c.userID
}

func (c *WSClient) DeviceID() domain.DeviceID {
	return c.deviceID
}

func (c *WSClient) DisplayName() string {
	return c.name
}

func (c *WSClient) Avatar() string {
	return c.avatar
}

func (c *WSClient) Send(env domain.Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(env)
}

func (c *WSClient) Close() error {
	return c.conn.Close()
}

// ServeWS upgrades the connection and runs the per-device read loop.
// Identity comes from the external auth layer via query parameters; the
// relay treats it as opaque.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := domain.UserID(r.URL.Query().Get("user_id"))
	if userID == "" {
		http.Error(w, "missing user_id", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Error while upgrading ws")
		return
	}

	client := &WSClient{
		userID:   userID,
		deviceID: domain.NewDeviceID(),
		name:     r.URL.Query().Get("display_name"),
		avatar:   r.URL.Query().Get("avatar"),
		conn:     conn,
	}

	l := log.With().
		Str("user_id", userID.String()).
		Str("device_id", client.deviceID.String()).
		Logger()
	l.Info().Msg("New client connected")

	h.Hub.Register(client)
	h.Presence.Connected(r.Context(), userID)

	defer func() {
		l.Info().Msg("Client disconnected")
		h.Hub.Unregister(client)
		h.CallService.HandleDisconnect(r.Context(), userID)
		h.Presence.Disconnected(r.Context(), userID)
		conn.Close()
	}()

	for {
		var env domain.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				l.Error().Err(err).Msg("Unexpected close error")
			}
			break
		}

		ctx := r.Context()
		switch env.Type {
		case domain.EventCallRequest:
			h.CallService.HandleRequest(ctx, client, env.Target, env.CallType)
		case domain.EventCallAccept:
			h.CallService.HandleAccept(ctx, client, env.CallID)
		case domain.EventCallReject:
			h.CallService.HandleReject(ctx, client, env.CallID, env.Reason)
		case domain.EventCallHangup:
			h.CallService.HandleHangup(ctx, client.UserID(), env.CallID)
		case domain.EventCallJoin:
			h.CallService.HandleJoin(ctx, client, env.CallID)
		case domain.EventToggleMedia:
			h.Router.ToggleMedia(ctx, client.UserID(), env)
		case domain.EventWebRTCOffer, domain.EventWebRTCAnswer, domain.EventWebRTCICE:
			h.Router.Relay(ctx, client.UserID(), env)
		case domain.EventCallError:
			h.CallService.HandleClientError(ctx, client, env)
		default:
			l.Warn().Str("type", string(env.Type)).Msg("Unsupported message type")
			_ = client.Send(domain.Envelope{
				Type:    domain.EventCallError,
				Message: "unsupported message type: " + string(env.Type),
			})
		}
	}
}
