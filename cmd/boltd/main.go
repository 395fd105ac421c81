// Command boltd serves a Bolt protocol endpoint over an in-memory property
// graph: negotiate the handshake, run a small Cypher subset against the
// graph, and stream results back per message, as described in spec.md.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/prometheusx"
	"github.com/m-lab/go/rtx"

	"github.com/graphbolt/boltd/events"
	"github.com/graphbolt/boltd/graph"
	"github.com/graphbolt/boltd/graphengine"
	"github.com/graphbolt/boltd/graphio"
	"github.com/graphbolt/boltd/listener"
)

func init() {
	// Always prepend the filename and line number.
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

var (
	host        = flag.String("host", "", "Address to listen on. Default is all interfaces.")
	port        = flag.String("port", "7687", "Port to listen on.")
	graphPath   = flag.String("graph", "", "Path to a JSONL file or nodes.csv/edges.csv directory to serve. Default is the built-in sample graph.")
	eventsPath  = flag.String("events", "", "Unix domain socket path to broadcast connection open/close events on. Empty disables the event feed.")
	promAddr    = flag.String("prom", ":9090", "Prometheus metrics export address and port. Default is ':9090'")
	idleTimeout = flag.Duration("idle-timeout", 300*time.Second, "How long a connection may sit idle before the server closes it.")
)

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "Could not get args from environment variables")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	promSrv := prometheusx.MustStartPrometheus(*promAddr)
	defer promSrv.Shutdown(ctx)

	liveGraph, err := loadGraph(*graphPath)
	rtx.Must(err, "Could not load graph from %q", *graphPath)
	log.Printf("serving graph with %d nodes and %d edges", liveGraph.NodeCount(), liveGraph.EdgeCount())

	var eventsSrv *events.Server
	if *eventsPath != "" {
		eventsSrv = events.New(*eventsPath)
		rtx.Must(eventsSrv.Listen(), "Could not listen on events socket %q", *eventsPath)
		go func() {
			if err := eventsSrv.Serve(ctx); err != nil && ctx.Err() == nil {
				log.Println("events server exited:", err)
			}
		}()
	}

	l := listener.New(liveGraph, graphengine.New(), listener.Options{
		EventsSrv:   eventsSrv,
		IdleTimeout: *idleTimeout,
	})
	addr := *host + ":" + *port
	rtx.Must(l.Listen(addr), "Could not listen on %q", addr)
	log.Println("boltd listening on", l.Addr())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Println("received signal", sig, "- shutting down")
		cancel()
	}()

	rtx.Must(l.Serve(ctx), "listener exited with error")
}

func loadGraph(path string) (*graph.Graph, error) {
	if path == "" {
		return graphio.SampleGraph(), nil
	}
	return graphio.Load(path)
}
