package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	"audiora/pkg/models"
)

// Tails the TCP sync stream and prints one line per progress update.
func main() {
	addr := "127.0.0.1:9090"
	if len(os.Args) > 1 {
		addr = os.Args[1]
	}

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		panic(err)
	}
	defer conn.Close()

	fmt.Println("Connected to sync stream:", addr)
	fmt.Println("Waiting for progress updates...")

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		var upd models.ProgressUpdate
		if err := json.Unmarshal(sc.Bytes(), &upd); err != nil {
			// not an update frame, show it as-is
			fmt.Println(sc.Text())
			continue
		}
		ts := time.Unix(upd.Timestamp, 0).UTC().Format("15:04:05")
		fmt.Printf("[%s] user=%s book=%s progress=%d%% position=%ds\n",
			ts, upd.UserID, upd.BookID, upd.Progress, upd.Position)
	}
	fmt.Println("Disconnected.")
}
