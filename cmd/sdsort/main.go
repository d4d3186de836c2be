package main

import (
	"fmt"
	"os"

	"github.com/mirelo/sdsort/cmd/sdsort/cli"
	"github.com/mirelo/sdsort/cmd/sdsort/cli/server"
)

var (
	version = "0.0.1-dev"
	commit  = "main"
)

func main() {
	root := cli.NewRootCommand(cli.VersionInfo{
		Version: version,
		Commit:  commit,
	})

	root.AddCommand(cli.NewVersionCommand())
	root.AddCommand(cli.NewScanCommand())

	root.AddCommand(server.NewAgentCommand())
	root.AddCommand(server.NewConfigCommand())

	if err := root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
