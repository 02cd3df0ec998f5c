package cmd

import (
	"github.com/spf13/cobra"

	"github.com/luma/svdrp/client"
	"github.com/luma/svdrp/internal/env"
)

var (
	// Forces the server, overriding the configured one
	serverIP string

	// Forces the port
	serverPort uint16
)

func addDestinationFlags(cmd *cobra.Command) {
	flags := cmd.Flags()

	flags.StringVarP(&serverIP, "server", "s", "", "The SVDRP server IP, overrides SVDRP_SERVER_IP")
	flags.Uint16VarP(&serverPort, "port", "p", client.DefaultPort, "The SVDRP server port, overrides SVDRP_SERVER_PORT")
}

// applyDestination lets the command line win over the config. A forced
// server without a port talks to the default port.
func applyDestination(cmd *cobra.Command, conf *env.Config) {
	flags := cmd.Flags()

	if flags.Changed("server") {
		conf.ServerIP = serverIP
		conf.ServerPort = int(client.DefaultPort)
	}

	if flags.Changed("port") {
		conf.ServerPort = int(serverPort)
	}
}
