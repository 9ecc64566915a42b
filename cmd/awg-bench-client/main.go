// Command awg-bench-client is a small test/bench driver for the queued
// and notifier ports: it preloads a synthetic list, watches the notifier
// stream, and prints the status lines it receives.
package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/maemo32/awgserver/internal/hwcmd"
	"github.com/maemo32/awgserver/internal/preview"
	"github.com/maemo32/awgserver/wire"
)

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - exercise a running awgserverd over the network.\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Usage: awg-bench-client [options]\n")
		pflag.PrintDefaults()
	}

	var queuedAddr = pflag.String("queued-addr", "127.0.0.1:9100", "Queued protocol address.")
	var notifierAddr = pflag.String("notifier-addr", "127.0.0.1:9101", "Status notifier address.")
	var listID = pflag.IntP("list", "l", 0, "List id to preload, 0 or 1.")
	var frames = pflag.IntP("frames", "n", 8, "Number of frames to preload.")
	var channel = pflag.IntP("channel", "c", 0, "Channel field for the synthetic GAIN words.")
	var tone = pflag.IntP("tone", "t", 0, "Tone field for the synthetic GAIN words.")
	var watch = pflag.BoolP("watch", "w", true, "Print notifier status lines until two seconds after the last push.")
	var previewHz = pflag.Float64("preview-hz", 0, "If nonzero, play this frequency locally over the host audio output before preloading, as a bench sanity check.")
	pflag.Parse()

	if *previewHz > 0 {
		player, err := preview.Open()
		if err != nil {
			fmt.Fprintf(os.Stderr, "awg-bench-client: preview unavailable: %v\n", err)
		} else {
			if err := player.PlayTone(*previewHz, 0.2, 1.0); err != nil {
				fmt.Fprintf(os.Stderr, "awg-bench-client: preview playback: %v\n", err)
			}
			player.Close()
		}
	}

	var sub net.Conn
	var subReader *bufio.Reader
	if *watch {
		var err error
		sub, err = net.Dial("tcp", *notifierAddr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "awg-bench-client: dial notifier: %v\n", err)
			os.Exit(1)
		}
		defer sub.Close()
		subReader = bufio.NewReader(sub)
		go printStatusLines(subReader)
	}

	conn, err := net.Dial("tcp", *queuedAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "awg-bench-client: dial queued: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	if err := wire.WriteCommand(conn, wire.Command{
		Op:          wire.OpPreloadBegin,
		ListID:      uint8(*listID),
		TotalFrames: uint32(*frames),
	}); err != nil {
		fmt.Fprintf(os.Stderr, "awg-bench-client: preload begin: %v\n", err)
		os.Exit(1)
	}

	for i := 0; i < *frames; i++ {
		word := hwcmd.Word(hwcmd.OpGain, uint8(*channel), uint8(*tone), uint32(i))
		if err := wire.WriteCommand(conn, wire.Command{
			Op:     wire.OpPreloadPush,
			ListID: uint8(*listID),
			Words:  []uint32{word},
		}); err != nil {
			fmt.Fprintf(os.Stderr, "awg-bench-client: preload push %d: %v\n", i, err)
			os.Exit(1)
		}
	}

	fmt.Printf("preloaded %d frames into list %d\n", *frames, *listID)

	if *watch {
		time.Sleep(2 * time.Second)
	}
}

func printStatusLines(r *bufio.Reader) {
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		listID, state, err := wire.ParseStatusLine(line)
		if err != nil {
			continue
		}
		fmt.Printf("notifier: list %d -> %s\n", listID, state)
	}
}
