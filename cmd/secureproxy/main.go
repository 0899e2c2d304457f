package main

import (
	"os"

	"github.com/spf13/cobra"

	askcmder "github.com/secureproxy/secureproxy-go/cmd/secureproxy/ask"
	chatcmder "github.com/secureproxy/secureproxy-go/cmd/secureproxy/chat"
	visioncmder "github.com/secureproxy/secureproxy-go/cmd/secureproxy/vision"
)

func main() {
	root := &cobra.Command{
		Use:   "secureproxy",
		Short: "Chat with LLM providers through the secureproxy service",
		Long: `secureproxy is a command line client for the secureproxy service,
which forwards chat, completion and vision requests to third-party
LLM providers behind a single authenticated endpoint.`,
		SilenceUsage: true,
	}

	root.AddCommand(askcmder.NewAskCmd())
	root.AddCommand(visioncmder.NewVisionCmd())
	root.AddCommand(chatcmder.NewChatCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
