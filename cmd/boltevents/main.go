// Command boltevents is a minimal reference implementation of a boltd event
// feed client: it connects to the Unix domain socket boltd was started with
// --events pointed at, and logs every connection open/close record it
// receives.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log"
	"net"
	"os"
	"time"

	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/rtx"

	"github.com/graphbolt/boltd/events"
)

var (
	mainCtx, mainCancel = context.WithCancel(context.Background())
	socketPath          = flag.String("socket", "", "Path to boltd's --events unix domain socket.")
)

func init() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

// readEvents dials the socket and logs every event record until ctx is
// canceled or the connection closes.
func readEvents(ctx context.Context, path string) error {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var rec events.Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			log.Println("boltevents: bad record:", err)
			continue
		}
		log.Printf("%s connection=%s remote=%q at=%s\n", rec.Event, rec.ConnectionID, rec.RemoteAddr, rec.Timestamp.Format(time.RFC3339))
	}
	return scanner.Err()
}

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "Could not get args from environment variables")
	defer mainCancel()

	if *socketPath == "" {
		log.Fatal("-socket is required")
	}

	if err := readEvents(mainCtx, *socketPath); err != nil {
		log.Println("boltevents: connection ended:", err)
	}
	os.Exit(0)
}
