// Command glassd runs the seismic phase-association engine as a
// standalone process: it loads configuration, wires a Glass façade, and
// serves the inbound JSON listener plus a Prometheus /metrics endpoint.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	"github.com/valyala/fasthttp"

	"github.com/glass3/associator/cmn"
	"github.com/glass3/associator/glasscore"
	"github.com/glass3/associator/transport"
)

var (
	listenAddr = flag.String("listen", ":8080", "address to serve the inbound JSON listener on")
	configPath = flag.String("config", "", "path to a Config JSON file; defaults built in if empty")
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()
	defer glog.Flush()

	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			glog.Errorf("reading config %s: %v", *configPath, err)
			return 1
		}
		cfg, err := cmn.LoadConfigJSON(data)
		if err != nil {
			glog.Errorf("parsing config %s: %v", *configPath, err)
			return 1
		}
		cmn.GCO.Put(cfg)
	}

	sink := transport.NewChannelSink(1024)
	glass := glasscore.NewGlass(sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	glass.Start(ctx)

	handler := transport.NewHandler(glass, sink)
	server := &fasthttp.Server{Handler: handler.Serve}

	errCh := make(chan error, 1)
	go func() {
		glog.Infof("glassd listening on %s", *listenAddr)
		errCh <- server.ListenAndServe(*listenAddr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			glog.Errorf("listener exited: %v", err)
			return 1
		}
	case <-sigCh:
		glog.Info("shutting down")
		_ = server.Shutdown()
	}

	if err := glass.Stop(); err != nil {
		glog.Errorf("supervisor stop: %v", err)
		return 1
	}
	return 0
}
