package main

import (
	"fmt"
	"os"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-version") {
		fmt.Printf("ybroute version %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	subcommand := os.Args[1]
	switch subcommand {
	case "bucket":
		err = runBucket(os.Args[2:], os.Stdout)
	case "splits":
		err = runSplits(os.Args[2:], os.Stdout)
	case "publish":
		err = runPublish(os.Args[2:], os.Stdout)
	case "plan":
		err = runPlan(os.Args[2:], os.Stdout)
	case "watch":
		err = runWatch(os.Args[2:])
	case "version":
		fmt.Printf("ybroute version %s (built %s, commit %s)\n", version, buildTime, gitCommit)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", subcommand)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage: ybroute <command> [options]

Commands:
  bucket      Compute the partition bucket and token of a key
  splits      List the table splits stored for the cluster
  publish     Store a table split record
  plan        Print the host plan for a key of a table
  watch       Keep the split catalog fresh and serve metrics
  version     Print version information

Run 'ybroute <command> --help' for more information on a command.`)
}
