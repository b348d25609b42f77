// trackprobe sends image frames to a running relay and prints the
// tracking payloads it gets back. Useful for smoke-testing a deployment
// without a browser capture client.
package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"github.com/motionlab/facerelay/internal/wire"
)

var (
	addr     = flag.String("addr", "ws://localhost:8000/ws/track", "Relay WebSocket URL")
	image    = flag.String("image", "", "Path to a JPEG to send")
	count    = flag.Int("count", 1, "Number of frames to send")
	interval = flag.Duration("interval", 100*time.Millisecond, "Delay between frames")
)

func main() {
	flag.Parse()

	if *image == "" {
		log.Fatal("an -image file is required")
	}
	img, err := os.ReadFile(*image)
	if err != nil {
		log.Fatalf("failed to read image: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(*addr, nil)
	if err != nil {
		log.Fatalf("failed to connect to %s: %v", *addr, err)
	}
	defer conn.Close()

	for i := 0; i < *count; i++ {
		ts := time.Now().UnixMilli()
		buf, err := wire.Encode(wire.Header{TS: &ts}, img)
		if err != nil {
			log.Fatalf("failed to encode frame: %v", err)
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, buf); err != nil {
			log.Fatalf("failed to send frame: %v", err)
		}

		_, reply, err := conn.ReadMessage()
		if err != nil {
			log.Fatalf("failed to read payload: %v", err)
		}
		log.Printf("frame %d: %s", i+1, reply)

		if i+1 < *count {
			time.Sleep(*interval)
		}
	}
}
