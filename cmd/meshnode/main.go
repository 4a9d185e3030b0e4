// Command meshnode is the CLI entrypoint for a single mesh node (§4.16):
// it loads configuration from the environment, wires together the
// persistent store, radio driver, mesh.Node, and optional gateways, and
// blocks until an OS signal arrives.
//
// Not directly grounded on a teacher file — the teacher repo ships as a
// library with no cmd/ of its own — so the command structure instead
// follows the spf13/cobra idiom paired with sethvargo/go-envconfig, per
// other_examples/telepresenceio's go.mod.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "meshnode",
		Short: "Run a single espmesh-go node",
	}
	root.AddCommand(newRunCmd())
	return root
}
