// Command ledgerctl runs offline reports against the payment database.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

var Version = "dev"

func main() {
	logrus.SetOutput(os.Stderr)
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
