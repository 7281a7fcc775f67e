package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/esperoj/esperoj/archival"
	"github.com/esperoj/esperoj/models/common"
	"github.com/esperoj/esperoj/util/cli"
)

func main() {
	help := false
	requestedBy := ""
	flag.BoolVar(&help, "help", false, "Print help message")
	flag.StringVar(&requestedBy, "requested-by", "", "Email address of the person requesting this deletion (required)")
	flag.Parse()

	identifier := flag.Arg(0)
	if help || identifier == "" {
		printHelp()
		os.Exit(0)
	}

	context := common.NewContext()
	deleter := archival.NewDeleter(context, identifier, requestedBy)
	tf, errors := deleter.Run()
	if len(errors) > 0 {
		for _, err := range errors {
			fmt.Fprintln(os.Stderr, err.Error())
		}
		os.Exit(1)
	}
	fmt.Printf("Deleted %s (%s)\n", tf.Identifier, tf.URI())
}

func printHelp() {
	message := `
esperoj_delete removes a file from archival storage: every copy in
every bucket, then the tracked file row. A deletion event remains in
the event log. This cannot be undone.

Usage:

$ esperoj_delete --requested-by you@example.org 'photos/img_0001.jpg'
`
	fmt.Println(message)
	fmt.Println(cli.EnvMessage)
}
