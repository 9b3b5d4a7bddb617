// Command netsync-client-demo is a reference client: it dials a
// netsync-server, creates or joins a console, plugs in one local
// controller port, and drives a trivial Buttons codec to exercise
// PutButtons/GetButtons against whatever peers are also connected.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/jpillora/backoff"

	"github.com/openlockstep/netsync/client"
	"github.com/openlockstep/netsync/config"
	netlog "github.com/openlockstep/netsync/internal/log"
	"github.com/openlockstep/netsync/port"
	"github.com/openlockstep/netsync/streamhandler"
	"github.com/openlockstep/netsync/transport"
	"github.com/openlockstep/netsync/wire"
)

// demoCodec is the reference Buttons implementation: it carries a 16-bit
// button mask in KeyState.Buttons and nothing else.
type demoCodec struct{}

func (demoCodec) Encode(buttons [16]bool, state *wire.KeyState) error {
	state.Buttons = buttons
	return nil
}

func (demoCodec) Decode(state wire.KeyState) ([16]bool, error) {
	return state.Buttons, nil
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional; defaults apply if absent)")
	makeConsole := flag.Bool("make-console", false, "create a new console instead of joining console-id")
	consoleID := flag.Int64("console-id", 0, "console to join (ignored if -make-console)")
	requestedPort := flag.Int("port", int(port.P1), "concrete port to request (1-4)")
	frames := flag.Int("frames", 300, "number of frames to drive before exiting")
	flag.Parse()

	cfg, err := config.LoadClientConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "netsync-client-demo: %v\n", err)
		os.Exit(1)
	}

	logger := log15.New()
	logger.SetHandler(log15.StreamHandler(os.Stderr, log15.LogfmtFormat()))

	conn := mustDial(cfg, logger)
	cl := client.New[[16]bool](conn, demoCodec{}, netlog.NewLog15Logger(logger))

	id := *consoleID
	if *makeConsole {
		resp, err := cl.MakeConsole("netsync-client-demo", cfg.RomName, cfg.RomFileMD5)
		if err != nil || resp.Status != wire.MakeConsoleSuccess {
			logger.Crit("MakeConsole failed", "err", err, "status", resp)
			os.Exit(1)
		}
		id = resp.ConsoleID
		logger.Info("created console", "console_id", id)
	}

	plugResp, err := cl.PlugControllers(id, cfg.RomFileMD5, cfg.DelayFrames, []port.Port{port.Port(*requestedPort)})
	if err != nil || plugResp.Status != wire.PlugControllerSuccess {
		logger.Crit("PlugControllers failed", "err", err, "status", plugResp)
		os.Exit(1)
	}
	logger.Info("plugged in", "client_id", cl.ClientID(), "ports", cl.LocalPorts())

	handler := cl.MakeEventStreamHandler()
	done := make(chan error, 1)
	go func() { done <- handler.ReadyAndWaitForConsoleStart() }()

	if *makeConsole {
		// Give any other expected clients a moment to plug in before
		// requesting the start; a real launcher would coordinate this
		// out of band instead of guessing.
		time.Sleep(time.Second)
		startResp, err := cl.StartGame()
		if err != nil || startResp.Status != wire.StartGameSuccess {
			logger.Warn("StartGame did not succeed yet", "err", err, "status", startResp)
		}
	}

	if err := <-done; err != nil {
		logger.Crit("failed to reach RUNNING", "err", err)
		os.Exit(1)
	}
	logger.Info("console running", "status", handler.Status())

	localPort := cl.LocalPorts()[0]
	for frame := 0; frame < *frames; frame++ {
		status := handler.PutButtons([]streamhandler.ButtonsFrame[[16]bool]{{Port: localPort, Frame: frame, Buttons: [16]bool{}}})
		if status != streamhandler.PutSuccess {
			logger.Error("PutButtons failed", "frame", frame, "status", status)
			break
		}
		if _, status := handler.GetButtons(localPort, frame); status != streamhandler.GetSuccess {
			logger.Error("GetButtons failed", "frame", frame, "status", status)
			break
		}
	}
	logger.Info("demo run complete", "timings_recorded", len(cl.Timings().Events()))
}

func mustDial(cfg *config.ClientConfig, logger log15.Logger) *transport.Conn {
	addr := cfg.ServerAddr
	boff := &backoff.Backoff{
		Min:    time.Duration(cfg.DialRetryMinMillis) * time.Millisecond,
		Max:    time.Duration(cfg.DialRetryMaxMillis) * time.Millisecond,
		Factor: 2,
		Jitter: true,
	}
	for {
		conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
		if err == nil {
			return transport.Dial(conn)
		}
		wait := boff.Duration()
		logger.Warn("dial failed, retrying", "addr", addr, "err", err, "wait", wait)
		time.Sleep(wait)
	}
}
