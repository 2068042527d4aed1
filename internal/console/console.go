// Package console is a line-oriented command shell over the engine, in the
// spirit of the serial monitor the strands were first debugged on.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"github.com/nsfw/kelp/internal/app"
	"github.com/nsfw/kelp/internal/layout"
	"github.com/nsfw/kelp/internal/protocol"
	"github.com/nsfw/kelp/internal/tests"
)

var errUsage = errors.New("usage")

type Console struct {
	core *app.Core
	out  io.Writer
}

func New(core *app.Core, out io.Writer) *Console {
	return &Console{core: core, out: out}
}

const help = `commands:
  render                          send the image buffer once
  intensity <v>                   broadcast global intensity
  fill <r> <g> <b>                fill the image buffer
  pixel <x> <y> <r> <g> <b>       set one pixel
  single <addr> <pin> <r> <g> <b> <i>
                                  send one frame to one pin
  frame <addr> <r> <g> <b> <i>    print the 26 bit frame
  enable <strand> on|off          gate a strand
  test <name>                     run a test pattern (%s)
  status                          show strands and timing
  help
`

// Run reads commands from r until EOF or ctx is done.
func (c *Console) Run(ctx context.Context, r io.Reader) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
	}()

	c.prompt()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			return err
		case line := <-lines:
			if err := c.Exec(line); err != nil {
				fmt.Fprintf(c.out, "error: %v\n", err)
			}
			c.prompt()
		}
	}
}

func (c *Console) prompt() { fmt.Fprint(c.out, "> ") }

// Exec runs one command line.
func (c *Console) Exec(line string) error {
	args, err := shlex.Split(line)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}
	cmd, args := args[0], args[1:]
	eng := c.core.Eng

	switch cmd {
	case "help", "?":
		kinds := make([]string, 0, len(tests.Kinds()))
		for _, k := range tests.Kinds() {
			kinds = append(kinds, string(k))
		}
		fmt.Fprintf(c.out, help, strings.Join(kinds, ", "))
	case "render":
		return eng.RenderImage()
	case "intensity":
		v, err := bytesArgs(args, 1)
		if err != nil {
			return fmt.Errorf("%w: intensity <v>", err)
		}
		return eng.SetGlobalIntensity(v[0])
	case "fill":
		v, err := bytesArgs(args, 3)
		if err != nil {
			return fmt.Errorf("%w: fill <r> <g> <b>", err)
		}
		eng.Fill(layout.RGB{R: v[0], G: v[1], B: v[2]})
	case "pixel":
		v, err := bytesArgs(args, 5)
		if err != nil {
			return fmt.Errorf("%w: pixel <x> <y> <r> <g> <b>", err)
		}
		eng.Update(func(img *layout.Image) {
			img.Set(int(v[0]), int(v[1]), layout.RGB{R: v[2], G: v[3], B: v[4]})
		})
	case "single":
		v, err := bytesArgs(args, 6)
		if err != nil {
			return fmt.Errorf("%w: single <addr> <pin> <r> <g> <b> <i>", err)
		}
		return eng.SendSingleLED(v[0], v[1], v[2], v[3], v[4], v[5])
	case "frame":
		v, err := bytesArgs(args, 5)
		if err != nil {
			return fmt.Errorf("%w: frame <addr> <r> <g> <b> <i>", err)
		}
		fmt.Fprintln(c.out, protocol.Encode(v[0], v[1], v[2], v[3], v[4]))
	case "enable":
		if len(args) != 2 || (args[1] != "on" && args[1] != "off") {
			return fmt.Errorf("%w: enable <strand> on|off", errUsage)
		}
		i, err := strconv.Atoi(args[0])
		if err != nil {
			return err
		}
		return eng.SetStrandEnabled(i, args[1] == "on")
	case "test":
		if len(args) != 1 {
			return fmt.Errorf("%w: test <name>", errUsage)
		}
		return c.core.Conductor().RunTest(tests.Kind(args[0]))
	case "status":
		c.status()
	default:
		return fmt.Errorf("unknown command %q (try help)", cmd)
	}
	return nil
}

func (c *Console) status() {
	in := c.core.Inst
	eng := c.core.Eng
	last := eng.Last()
	fmt.Fprintf(c.out, "%s: %dx%d image, %d strands, backend %s\n", in.Name, in.Width, in.Height, len(in.Strands), c.core.Backend)
	for i, s := range in.Strands {
		state := "on"
		if !eng.StrandEnabled(i) {
			state = "off"
		}
		fmt.Fprintf(c.out, "  strand %2d  pin %3d  %2d leds  %s\n", i, s.Pin, s.Len, state)
	}
	fmt.Fprintf(c.out, "intensity 0x%02X, last render %v (compose %v, flush %v), %d frames, %d renders\n",
		eng.Intensity(), last.Total, last.Compose, last.Flush, last.Frames, last.Renders)
}

// bytesArgs parses exactly n 0-255 values; Go literal syntax (0x42) is
// accepted.
func bytesArgs(args []string, n int) ([]uint8, error) {
	if len(args) != n {
		return nil, errUsage
	}
	out := make([]uint8, n)
	for i, a := range args {
		v, err := strconv.ParseUint(a, 0, 8)
		if err != nil {
			return nil, err
		}
		out[i] = uint8(v)
	}
	return out, nil
}
