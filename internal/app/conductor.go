package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	diag "github.com/nsfw/kelp/internal/diagnostics"
	"github.com/nsfw/kelp/internal/layout"
	"github.com/nsfw/kelp/internal/tests"
)

// Conductor re-sends the image buffer at a fixed rate and steps any running
// test pattern into it.
type Conductor struct {
	core *Core

	mu      sync.Mutex
	runner  *tests.Runner
	frameID uint64
	failed  bool
}

func newConductor(c *Core) *Conductor { return &Conductor{core: c} }

// RunTest starts a test pattern, replacing any running one.
func (c *Conductor) RunTest(kind tests.Kind) error {
	for _, k := range tests.Kinds() {
		if k == kind {
			c.mu.Lock()
			c.runner = tests.NewRunner(tests.Plan{Kind: kind})
			c.mu.Unlock()
			c.core.pushDiag(diag.Diagnostic{Severity: diag.Info, Code: "TEST.RUNNING", Summary: "Running test", Detail: string(kind)})
			return nil
		}
	}
	return fmt.Errorf("unknown test %q", kind)
}

// Testing reports the running test pattern, if any.
func (c *Conductor) Testing() tests.Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runner == nil {
		return tests.None
	}
	return c.runner.Kind()
}

// FrameID is the number of frames rendered so far.
func (c *Conductor) FrameID() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frameID
}

// Step renders one frame.
func (c *Conductor) Step() error {
	eng := c.core.Eng

	c.mu.Lock()
	if r := c.runner; r != nil {
		var more bool
		eng.Update(func(img *layout.Image) { more = r.Step(c.core.Inst, img) })
		if !more {
			c.runner = nil
			c.mu.Unlock()
			c.core.pushDiag(diag.Diagnostic{Severity: diag.Info, Code: "TEST.DONE", Summary: "Test complete"})
			c.mu.Lock()
		}
	}
	c.mu.Unlock()

	if err := eng.RenderImage(); err != nil {
		c.mu.Lock()
		first := !c.failed
		c.failed = true
		c.mu.Unlock()
		if first {
			c.core.log.Error().Err(err).Msg("render failed")
			c.core.pushDiag(diag.Render(err))
		}
		return err
	}

	c.mu.Lock()
	c.failed = false
	c.frameID++
	id := c.frameID
	c.mu.Unlock()

	img := eng.Snapshot()
	if m := c.core.Mirror; m != nil {
		if err := m.Show(img); err != nil {
			c.core.log.Debug().Err(err).Msg("mirror")
		}
	}
	c.core.pushFrame(id, img)
	return nil
}

// Run renders at fps until ctx is done. Render errors are reported and the
// loop keeps going; a port that comes back resumes output.
func (c *Conductor) Run(ctx context.Context, fps int) error {
	if fps <= 0 {
		fps = 30
	}
	dt := time.Second / time.Duration(fps)
	ticker := time.NewTicker(dt)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.Step()
			if st := c.core.Eng.Last(); st.Total > dt {
				c.core.log.Debug().Dur("render", st.Total).Dur("budget", dt).Msg("render slower than frame rate")
			}
		}
	}
}
