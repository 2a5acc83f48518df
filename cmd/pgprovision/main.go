// main package for the pgprovision CLI
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/spf13/pflag"

	"github.com/kappakkala/pgprovision/internal/pgprovision/pkg/cmd"
)

func main() {
	rootCmd := cmd.NewRootCommand(cmd.NewClient)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		glog.Flush()
		os.Exit(1)
	}
	glog.Flush()
}

func init() {
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	if err := flag.Set("logtostderr", "true"); err != nil {
		glog.Infof("Unable to set logtostderr to true")
	}
}
