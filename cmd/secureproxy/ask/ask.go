package askcmder

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/secureproxy/secureproxy-go/client"
	"github.com/secureproxy/secureproxy-go/cmd/secureproxy/cliconfig"
	"github.com/secureproxy/secureproxy-go/cmd/secureproxy/render"
	"github.com/secureproxy/secureproxy-go/pkg/llm"
	"github.com/secureproxy/secureproxy-go/pkg/logger"
)

const askLongDesc string = `Send a one-shot prompt through the secureproxy service and print
the reply as rendered markdown.

Credentials come from ~/.secureproxy.toml, SECUREPROXY_* environment
variables, or a .env file.

Examples:
  secureproxy ask "Explain goroutines in two sentences"
  secureproxy ask --model gpt-4o-mini --max-tokens 64 "Summarize this"`

const askShortDesc string = "Send a one-shot prompt"

type askCommander struct {
	configPath  string
	model       string
	maxTokens   int
	temperature float64
	debug       bool
}

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{}

	cmd := &cobra.Command{
		Use:   "ask <prompt>",
		Short: askShortDesc,
		Long:  askLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args[0])
		},
	}

	cmd.Flags().StringVarP(&cmder.configPath, "config", "c", "", "Path to TOML config")
	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Model to use")
	cmd.Flags().IntVar(&cmder.maxTokens, "max-tokens", 0, "Max tokens to generate (0 = provider default)")
	cmd.Flags().Float64VarP(&cmder.temperature, "temperature", "t", 0, "Sampling temperature")
	cmd.Flags().BoolVar(&cmder.debug, "debug", false, "Enable debug logging")

	return cmd
}

func (c *askCommander) run(ctx context.Context, cmd *cobra.Command, prompt string) error {
	cfg, err := cliconfig.Load(c.configPath)
	if err != nil {
		return err
	}

	log := logger.NewLogger(c.debug)
	defer log.Sync()

	cl, err := cfg.NewClient(log)
	if err != nil {
		return err
	}

	model := c.model
	if model == "" {
		model = cfg.Model
	}

	var opts []client.Option
	if c.maxTokens > 0 {
		opts = append(opts, client.WithMaxTokens(c.maxTokens))
	}
	if cmd.Flags().Changed("temperature") {
		opts = append(opts, client.WithTemperature(c.temperature))
	}

	resp, err := cl.ChatCompletion(ctx, model, []llm.Message{llm.UserMessage(prompt)}, opts...)
	if err != nil {
		return errors.New(render.ErrorMessage(err))
	}
	if len(resp.Choices) == 0 {
		return errors.New(render.ErrorMessage(client.ErrNoChoices))
	}

	fmt.Fprintln(cmd.OutOrStdout(), render.Markdown(resp.Choices[0].Message.Content.Text()))
	return nil
}
