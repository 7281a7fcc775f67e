package main

import (
	"fmt"
	"os"

	"github.com/esperoj/esperoj/util/cli"
	"github.com/esperoj/esperoj/workers"
)

func main() {
	cli.Init()
	opts := cli.ParseOpts()
	if opts.PrintHelp {
		printHelp()
		cli.PrintDefaults()
		os.Exit(0)
	}

	// If anything goes wrong, this panics.
	// Otherwise, it starts handling NSQ messages immediately.
	worker := workers.NewArchiver(
		opts.ChannelBufferSize,
		opts.NumWorkers,
		opts.MaxAttempts,
	)

	// This channel blocks until we get an interrupt,
	// so our program does not exit without Control-C
	// or other kill signal.
	<-worker.NSQConsumer.StopChan
}

func printHelp() {
	message := `
esperoj_archive runs as a service to copy local files into archival
storage. It reads file paths from the NSQ archive queue, uploads each
file to the primary bucket and every backup bucket, and records the
file with the records service along with an archival event.
`
	fmt.Println(message)
	fmt.Println(cli.EnvMessage)
}
