package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/esperoj/esperoj/constants"
	"github.com/esperoj/esperoj/models/common"
	"github.com/esperoj/esperoj/util"
	"github.com/esperoj/esperoj/util/cli"
)

func main() {
	help := false
	flag.BoolVar(&help, "help", false, "Print help message")
	flag.Parse()

	if help || flag.NArg() == 0 {
		printHelp()
		os.Exit(0)
	}

	context := common.NewContext()
	exitCode := 0
	for _, arg := range flag.Args() {
		path, err := filepath.Abs(arg)
		if err == nil && !util.IsFile(path) {
			err = fmt.Errorf("not a regular file")
		}
		if err == nil {
			err = context.NSQClient.Enqueue(constants.TopicArchive, path)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not queue %s: %v\n", arg, err)
			exitCode = 1
			continue
		}
		fmt.Printf("Queued %s for archiving\n", path)
	}
	os.Exit(exitCode)
}

func printHelp() {
	message := `
esperoj_queue_archive pushes local file paths into the NSQ archive
queue, where the esperoj_archive worker will pick them up.

Usage:

$ esperoj_queue_archive file1.jpg file2.pdf ...

Paths are made absolute before queuing, since the archive worker may
run with a different working directory.
`
	fmt.Println(message)
	fmt.Println(cli.EnvMessage)
}
