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
	worker := workers.NewFixityChecker(
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
esperoj_fixity runs as a service to verify items in archival storage.
It reads tracked file identifiers from the NSQ fixity queue, streams
every archived copy of each file through the file's digest algorithm,
and records a fixity event with the result in the records service.
`
	fmt.Println(message)
	fmt.Println(cli.EnvMessage)
}
