package ws

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/nsfw/kelp/internal/app"
	"github.com/nsfw/kelp/internal/config"
	diag "github.com/nsfw/kelp/internal/diagnostics"
	"github.com/nsfw/kelp/internal/layout"
	"github.com/nsfw/kelp/internal/tests"
)

type State struct {
	mu   sync.RWMutex
	Core *app.Core

	ConfigPath string

	startTime   time.Time
	clients     map[*websocket.Conn]bool
	diagClients map[*websocket.Conn]bool

	// gorilla connections allow one concurrent writer
	wmu sync.Mutex
}

func NewState(core *app.Core) *State {
	s := &State{
		Core:        core,
		startTime:   time.Now(),
		clients:     map[*websocket.Conn]bool{},
		diagClients: map[*websocket.Conn]bool{},
	}
	core.OnFrame(func(id uint64, img *layout.Image) { s.broadcastFrame(id, img.Bytes()) })
	core.OnDiag(s.pushDiag)
	return s
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func (s *State) HandleFramesWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.sendTopology(conn)
	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.clients, conn)
			s.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *State) HandleDiagWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.diagClients[conn] = true
	s.mu.Unlock()
	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.diagClients, conn)
			s.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *State) HandleControlWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			s.pushDiag(diag.Diagnostic{Severity: diag.Warn, Code: "CONTROL.PARSE", Summary: "Bad control message", Detail: err.Error()})
			continue
		}
		if err := s.applyControl(msg); err != nil {
			s.pushDiag(diag.Diagnostic{Severity: diag.Warn, Code: "CONTROL.FAILED", Summary: "Control command failed", Detail: err.Error()})
		}
		s.sendTopology(conn)
	}
}

func (s *State) HandleHealth(w http.ResponseWriter, r *http.Request) {
	eng := s.Core.Eng
	last := eng.Last()
	resp := map[string]any{
		"frame_id":     s.Core.Conductor().FrameID(),
		"uptime_s":     time.Since(s.startTime).Seconds(),
		"installation": s.Core.Inst.Name,
		"strands":      len(s.Core.Inst.Strands),
		"intensity":    eng.Intensity(),
		"render_ms":    float64(last.Total.Microseconds()) / 1000,
		"compose_ms":   float64(last.Compose.Microseconds()) / 1000,
		"flush_ms":     float64(last.Flush.Microseconds()) / 1000,
		"testing":      s.Core.Conductor().Testing(),
		"backend":      s.Core.Backend,
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *State) applyControl(msg map[string]any) error {
	eng := s.Core.Eng
	changed := false

	if v, ok := msg["intensity"].(float64); ok {
		if err := eng.SetGlobalIntensity(clampByte(v)); err != nil {
			return err
		}
		changed = true
	}
	if v, ok := msg["fill"].([]any); ok {
		c, err := rgb(v)
		if err != nil {
			return err
		}
		eng.Fill(c)
	}
	if v, ok := msg["pixel"].(map[string]any); ok {
		c, err := rgb(v["rgb"])
		if err != nil {
			return err
		}
		x, _ := v["x"].(float64)
		y, _ := v["y"].(float64)
		eng.Update(func(img *layout.Image) { img.Set(int(x), int(y), c) })
	}
	if v, ok := msg["enable"].(map[string]any); ok {
		i, _ := v["strand"].(float64)
		on, _ := v["on"].(bool)
		if err := eng.SetStrandEnabled(int(i), on); err != nil {
			return err
		}
	}
	if v, ok := msg["single"].(map[string]any); ok {
		c, err := rgb(v["rgb"])
		if err != nil {
			return err
		}
		addr, err := byteField(v, "addr")
		if err != nil {
			return err
		}
		pin, err := byteField(v, "pin")
		if err != nil {
			return err
		}
		in, _ := v["intensity"].(float64)
		if err := eng.SendSingleLED(addr, pin, c.R, c.G, c.B, clampByte(in)); err != nil {
			return err
		}
	}
	if v, ok := msg["runTest"].(string); ok {
		if err := s.Core.Conductor().RunTest(tests.Kind(v)); err != nil {
			s.pushDiag(diag.Diagnostic{
				Severity: diag.Warn, Code: "TEST.UNKNOWN", Summary: "Unknown test name",
				Evidence: map[string]any{"name": v},
			})
		}
	}

	if changed {
		s.saveConfig()
	}
	return nil
}

// saveConfig persists runtime-adjustable settings.
func (s *State) saveConfig() {
	if s.ConfigPath == "" || s.Core.Cfg == nil {
		return
	}
	s.Core.Cfg.Intensity = int(s.Core.Eng.Intensity())
	if err := config.Save(s.ConfigPath, s.Core.Cfg); err != nil {
		log.Warn().Err(err).Str("path", s.ConfigPath).Msg("config save failed")
	}
}

func (s *State) sendTopology(conn *websocket.Conn) {
	in := s.Core.Inst
	type strand struct {
		Pin     uint8 `json:"pin"`
		Len     uint8 `json:"len"`
		Enabled bool  `json:"enabled"`
	}
	strands := make([]strand, len(in.Strands))
	for i, st := range in.Strands {
		strands[i] = strand{Pin: st.Pin, Len: st.Len, Enabled: s.Core.Eng.StrandEnabled(i)}
	}
	top := map[string]any{
		"installation": in.Name,
		"width":        in.Width,
		"height":       in.Height,
		"strands":      strands,
		"intensity":    s.Core.Eng.Intensity(),
		"backend":      s.Core.Backend,
		"transport":    s.Core.Cfg.Transport,
	}
	b, _ := json.Marshal(top)
	s.write(conn, b)
}

func (s *State) broadcastFrame(id uint64, rgb []byte) {
	type frame struct {
		T       int64  `json:"t"`
		FrameID uint64 `json:"frame_id"`
		RGB     []byte `json:"rgb"`
	}
	b, _ := json.Marshal(frame{T: time.Now().UnixNano(), FrameID: id, RGB: rgb})
	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.clients {
		if err := s.write(c, b); err != nil {
			log.Debug().Err(err).Msg("write frame")
		}
	}
}

func (s *State) pushDiag(d diag.Diagnostic) {
	b, _ := json.Marshal(d)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.diagClients {
		_ = s.write(c, b)
	}
}

func (s *State) write(c *websocket.Conn, b []byte) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	c.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
	return c.WriteMessage(websocket.TextMessage, b)
}

func rgb(v any) (layout.RGB, error) {
	a, ok := v.([]any)
	if !ok || len(a) != 3 {
		return layout.RGB{}, fmt.Errorf("want [r, g, b], got %v", v)
	}
	var c [3]uint8
	for i := range a {
		f, ok := a[i].(float64)
		if !ok {
			return layout.RGB{}, fmt.Errorf("want [r, g, b], got %v", v)
		}
		c[i] = clampByte(f)
	}
	return layout.RGB{R: c[0], G: c[1], B: c[2]}, nil
}

func clampByte(x float64) uint8 {
	if x < 0 {
		return 0
	}
	if x > 255 {
		return 255
	}
	return uint8(x)
}

// byteField reads v[key] as a whole number 0..255. Unlike colours it is not
// clamped.
func byteField(v map[string]any, key string) (uint8, error) {
	f, ok := v[key].(float64)
	if !ok || f < 0 || f > 255 || f != math.Trunc(f) {
		return 0, fmt.Errorf("%s: want 0..255, got %v", key, v[key])
	}
	return uint8(f), nil
}
