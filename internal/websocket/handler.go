package websocket

import (
	"context"
	"net/http"
	"strings"

	"factory-ops/internal/events"
	"factory-ops/internal/services"
	"factory-ops/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const DefaultAuthCookie = "access_token"

// Handler authenticates and upgrades realtime connections.
type Handler struct {
	auth       *services.AuthService
	hub        *Hub
	dispatcher *Dispatcher
	logger     *EventLogger
	upgrader   websocket.Upgrader
	cookieName string
	sendBuffer int
}

type HandlerOptions struct {
	CookieName     string
	SendBuffer     int
	AllowedOrigins []string
}

func NewHandler(auth *services.AuthService, hub *Hub, dispatcher *Dispatcher, logger *EventLogger, opts HandlerOptions) *Handler {
	if opts.CookieName == "" {
		opts.CookieName = DefaultAuthCookie
	}
	if logger == nil {
		logger = NewEventLogger(nil)
	}
	return &Handler{
		auth:       auth,
		hub:        hub,
		dispatcher: dispatcher,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(opts.AllowedOrigins),
		},
		cookieName: opts.CookieName,
		sendBuffer: opts.SendBuffer,
	}
}

// Connect refuses the request with 401 before upgrading unless the token
// resolves to an active user.
func (h *Handler) Connect(c *gin.Context) {
	token := ExtractToken(c.Request, h.cookieName)
	u, err := h.auth.AuthenticateToken(c.Request.Context(), token)
	if err != nil {
		status := services.HTTPStatus(err)
		if status != http.StatusInternalServerError {
			status = http.StatusUnauthorized
		}
		c.AbortWithStatusJSON(status, httpdto.NewErrorResponse("unauthorized", CodeUnauthorized))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", u.ID, "", zap.Error(err))
		return
	}

	client := NewClient(h.hub, conn, u, h.sendBuffer, h.logger)
	h.hub.Register(client)
	client.Emit(events.ServerConnected, connectedPayload{UserID: u.ID, ClientID: client.ID})

	ctx, cancel := context.WithCancel(services.WithUserContext(context.Background(), u.ID))
	go client.writePump()
	go func() {
		defer cancel()
		client.readPump(ctx, h.dispatcher)
	}()
}

// ExtractToken looks for the bearer credential in the handshake query
// parameter, then the Authorization header, then the auth cookie.
func ExtractToken(r *http.Request, cookieName string) string {
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}

	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			if token := strings.TrimSpace(parts[1]); token != "" {
				return token
			}
		}
	}

	if cookieName == "" {
		cookieName = DefaultAuthCookie
	}
	if cookie, err := r.Cookie(cookieName); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.TrimRight(origin, "/")]
		return ok
	}
}
