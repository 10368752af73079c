// Command rdpmuxctl is a diagnostic CLI for a running rdpmux session:
// it dials the same transport path the library uses, injects synthetic
// input events, and watches for display-update traffic, without
// linking the library into a real hypervisor process.
//
// Grounded on aistore's cmd/cli: urfave/cli.App with cli.Command
// entries, colored status output via fatih/color, and a progress/
// spinner bar via vbauerster/mpb/v4 while `watch` polls for traffic
// (cmd/cli/cli/arch_hdlr.go's use of mpb for long-running transfers).
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli"
	"github.com/vbauerster/mpb/v4"
	"github.com/vbauerster/mpb/v4/decor"
	"golang.org/x/term"

	"github.com/rdpmux/rdpmux/internal/rdpcfg"
	"github.com/rdpmux/rdpmux/internal/transport"
	"github.com/rdpmux/rdpmux/internal/wire"
)

var (
	pathFlag = cli.StringFlag{Name: "socket", Usage: "path to the rdpmux transport socket"}
	idFlag   = cli.StringFlag{Name: "identity", Usage: "36-character VM identity to present"}
)

func main() {
	app := cli.NewApp()
	app.Name = "rdpmuxctl"
	app.Usage = "diagnostic client for a running rdpmux session"
	app.Commands = []cli.Command{
		connectCmd,
		injectMouseCmd,
		injectKeyCmd,
		watchCmd,
	}
	if err := app.Run(os.Args); err != nil {
		errorColor().Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func errorColor() *color.Color { return color.New(color.FgRed, color.Bold) }
func okColor() *color.Color    { return color.New(color.FgGreen) }
func infoColor() *color.Color  { return color.New(color.FgCyan) }
func isInteractive() bool      { return term.IsTerminal(int(os.Stdout.Fd())) }

var connectCmd = cli.Command{
	Name:  "connect",
	Usage: "verify a socket is reachable and the identity handshake works",
	Flags: []cli.Flag{pathFlag, idFlag},
	Action: func(c *cli.Context) error {
		adapter, err := dial(c)
		if err != nil {
			return err
		}
		defer adapter.Close()
		okColor().Println("connected")
		return nil
	},
}

var injectMouseCmd = cli.Command{
	Name:      "inject-mouse",
	Usage:     "send a synthetic MouseEvent",
	ArgsUsage: "x y flags",
	Flags:     []cli.Flag{pathFlag, idFlag},
	Action: func(c *cli.Context) error {
		if c.NArg() != 3 {
			return cli.NewExitError("usage: inject-mouse <x> <y> <flags>", 1)
		}
		adapter, err := dial(c)
		if err != nil {
			return err
		}
		defer adapter.Close()

		x, y, flags := parseU32(c.Args()[0]), parseU32(c.Args()[1]), parseU32(c.Args()[2])
		payload, err := wire.Encode(wire.MouseEvent{X: x, Y: y, Flags: flags})
		if err != nil {
			return err
		}
		if err := adapter.Send(payload); err != nil {
			return err
		}
		okColor().Println("mouse event sent")
		return nil
	},
}

var injectKeyCmd = cli.Command{
	Name:      "inject-key",
	Usage:     "send a synthetic KeyboardEvent",
	ArgsUsage: "keycode flags",
	Flags:     []cli.Flag{pathFlag, idFlag},
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 {
			return cli.NewExitError("usage: inject-key <keycode> <flags>", 1)
		}
		adapter, err := dial(c)
		if err != nil {
			return err
		}
		defer adapter.Close()

		keycode, flags := parseU32(c.Args()[0]), parseU32(c.Args()[1])
		payload, err := wire.Encode(wire.KeyboardEvent{Keycode: keycode, Flags: flags})
		if err != nil {
			return err
		}
		if err := adapter.Send(payload); err != nil {
			return err
		}
		okColor().Println("keyboard event sent")
		return nil
	},
}

var watchCmd = cli.Command{
	Name:  "watch",
	Usage: "poll the transport and print every decoded record until interrupted",
	Flags: []cli.Flag{pathFlag, idFlag},
	Action: func(c *cli.Context) error {
		adapter, err := dial(c)
		if err != nil {
			return err
		}
		defer adapter.Close()

		var bar *mpb.Bar
		var progress *mpb.Progress
		if isInteractive() {
			progress = mpb.New(mpb.WithWidth(24))
			bar = progress.AddBar(-1,
				mpb.PrependDecorators(decor.Name("watching ")),
				mpb.AppendDecorators(decor.Spinner(nil)),
			)
		}

		for {
			readable, err := adapter.Poll(200 * time.Millisecond)
			if err != nil {
				return err
			}
			if bar != nil {
				bar.Increment()
			}
			if !readable {
				continue
			}
			from, payload, err := adapter.Recv()
			if err != nil {
				errorColor().Fprintln(os.Stderr, "decode error:", err)
				continue
			}
			rec, err := wire.Decode(payload)
			if err != nil {
				errorColor().Fprintln(os.Stderr, "decode error:", err)
				continue
			}
			infoColor().Printf("[%s] %s: %+v\n", from, rec.Tag(), rec)
		}
	},
}

func dial(c *cli.Context) (*transport.Adapter, error) {
	path := c.String("socket")
	identity := c.String("identity")
	if path == "" || identity == "" {
		return nil, cli.NewExitError("both --socket and --identity are required", 1)
	}
	adapter := transport.New(rdpcfg.Default())
	if err := adapter.Connect(path, identity); err != nil {
		return nil, err
	}
	return adapter, nil
}

func parseU32(s string) uint32 {
	var v uint32
	_, _ = fmt.Sscanf(s, "%d", &v)
	return v
}
