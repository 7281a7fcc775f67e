package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/esperoj/esperoj/util/cli"
	"github.com/esperoj/esperoj/workers"
)

func main() {
	help := false
	runOnce := false
	flag.BoolVar(&help, "help", false, "Print help message")
	flag.BoolVar(&runOnce, "run-once", false, "Run once and exit (cron mode instead of server mode)")
	flag.Parse()

	fileIdentifier := flag.Arg(0)
	if fileIdentifier != "" {
		runOnce = true
	}

	if help {
		printHelp()
		os.Exit(0)
	}

	queuer := workers.NewQueueFixity(fileIdentifier)

	if runOnce {
		queuer.RunOnce()
	} else {
		queuer.RunAsService()
	}
}

func printHelp() {
	message := `
esperoj_queue_fixity queues tracked files for fixity checks.

When running as a service (i.e. without --run-once), this relies on the
config setting QUEUE_FIXITY_INTERVAL to determine how long to wait
after the end of one scan before beginning the next.

Config setting MAX_FIXITY_ITEMS_PER_RUN determines the maximum number
of items to queue in a single run. MAX_DAYS_SINCE_LAST_FIXITY sets how
old a file's last verification may be before the file is eligible.

You can also run this as a one-off job with the --run-once flag.
It will perform one scan and then exit.

You can also supply a command-line argument to queue a single file by
identifier, skipping the scan:

$ esperoj_queue_fixity 'photos/img_0001.jpg'

If you do specify a file identifier, this app runs in --run-once mode,
since it doesn't make sense to queue the same file every hour.
`
	fmt.Println(message)
	fmt.Println(cli.EnvMessage)
}
