// Command netsync-server runs the session coordinator: it accepts client
// TCP connections, multiplexes unary RPCs and event streams over each, and
// serves any number of consoles concurrently.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"

	"github.com/inconshreveable/log15"

	"github.com/openlockstep/netsync/config"
	netlog "github.com/openlockstep/netsync/internal/log"
	"github.com/openlockstep/netsync/server"
	"github.com/openlockstep/netsync/transport"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional; defaults apply if absent)")
	listenAddr := flag.String("listen", "", "override the configured listen address")
	debug := flag.Bool("debug", false, "enable ShutDownServer")
	flag.Parse()

	cfg := mustLoadServerConfig(*configPath)
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *debug {
		cfg.Debug = true
	}

	logger := log15.New()
	logger.SetHandler(log15.LvlFilterHandler(mustParseLevel(cfg.LogLevel), log15.StreamHandler(os.Stderr, log15.LogfmtFormat())))

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Crit("failed to listen", "addr", cfg.ListenAddr, "err", err)
		os.Exit(1)
	}
	logger.Info("listening", "addr", ln.Addr())

	srv := server.New(
		server.WithLogger(netlog.NewLog15Logger(logger)),
		server.WithDebugMode(cfg.Debug),
	)

	go func() {
		<-srv.ShutdownRequested()
		logger.Warn("shutdown requested over RPC, closing listener")
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-srv.ShutdownRequested():
				logger.Info("server shut down")
				return
			default:
				logger.Error("accept failed", "err", err)
				return
			}
		}
		logger.Info("client connected", "remote", conn.RemoteAddr())
		go srv.Serve(transport.Accept(conn))
	}
}

func mustLoadServerConfig(path string) *config.ServerConfig {
	cfg, err := config.LoadServerConfig(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "netsync-server: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func mustParseLevel(level string) log15.Lvl {
	lvl, err := log15.LvlFromString(level)
	if err != nil {
		return log15.LvlInfo
	}
	return lvl
}
