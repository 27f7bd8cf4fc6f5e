package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/tonhe/nocwatch/internal/engine"
	"github.com/tonhe/nocwatch/internal/store"
)

const (
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// DeviceView is a configured device without its credentials.
type DeviceView struct {
	Name              string   `json:"name"`
	Host              string   `json:"host"`
	Port              int      `json:"port"`
	Identity          string   `json:"identity,omitempty"`
	ExpectedSpeedMbps int      `json:"expected_speed_mbps,omitempty"`
	IgnoredInterfaces []string `json:"ignored_interfaces,omitempty"`
	Timeout           string   `json:"timeout,omitempty"`
}

func newDeviceView(d engine.Device) DeviceView {
	v := DeviceView{
		Name:              d.Name,
		Host:              d.Host,
		Port:              d.Port,
		Identity:          d.Identity,
		ExpectedSpeedMbps: d.ExpectedSpeedMbps,
		IgnoredInterfaces: d.IgnoredInterfaces,
	}
	if d.Timeout > 0 {
		v.Timeout = d.Timeout.String()
	}
	return v
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleDevices(c *gin.Context) {
	devices := s.board.Devices()
	views := make([]DeviceView, 0, len(devices))
	for _, d := range devices {
		views = append(views, newDeviceView(d))
	}
	c.JSON(http.StatusOK, gin.H{"devices": views})
}

func (s *Server) handleDeviceIfaces(c *gin.Context) {
	name := c.Param("device")
	if !s.knownDevice(name) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown device"})
		return
	}

	snaps, err := s.reader.ListSnapshots(c.Request.Context(), name)
	if err != nil {
		s.log.Error().Err(err).Str("device", name).Msg("Failed to list snapshots")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage unavailable"})
		return
	}
	if snaps == nil {
		snaps = []engine.Snapshot{}
	}
	c.JSON(http.StatusOK, gin.H{"device": name, "interfaces": snaps})
}

func (s *Server) knownDevice(name string) bool {
	for _, d := range s.board.Devices() {
		if d.Name == name {
			return true
		}
	}
	return false
}

func (s *Server) handleInterfaces(c *gin.Context) {
	c.JSON(http.StatusOK, s.board.Snapshot())
}

func (s *Server) handleEvents(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}
		limit = n
	}

	events, err := s.reader.RecentEvents(c.Request.Context(), store.ClampLimit(limit))
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to read events")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage unavailable"})
		return
	}
	if events == nil {
		events = []engine.Transition{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// handleStream pushes every transition the collector publishes to a
// websocket until either side goes away.
func (s *Server) handleStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("client", c.ClientIP()).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	log := s.log.With().Str("client", c.ClientIP()).Logger()
	log.Info().Msg("Event stream opened")
	defer log.Info().Msg("Event stream closed")

	sub := s.board.Subscribe()
	defer s.board.Unsubscribe(sub)

	// The read side only exists to notice the peer closing.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case t, ok := <-sub:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "collector stopped"),
					time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(t); err != nil {
				log.Debug().Err(err).Msg("Event stream write failed")
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-gone:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}
