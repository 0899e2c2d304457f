package visioncmder

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/secureproxy/secureproxy-go/cmd/secureproxy/cliconfig"
	"github.com/secureproxy/secureproxy-go/cmd/secureproxy/render"
	"github.com/secureproxy/secureproxy-go/pkg/logger"
)

const visionLongDesc string = `Ask a vision-capable model about an image. The prompt is sent
together with the image reference in a single multimodal message.

The image reference may be an https URL or a base64 data URL.

Examples:
  secureproxy vision "What breed is this dog?" https://example.com/dog.jpg
  secureproxy vision --model gpt-4o "Describe this chart" https://example.com/chart.png`

const visionShortDesc string = "Analyze an image"

type visionCommander struct {
	configPath string
	model      string
	debug      bool
}

func NewVisionCmd() *cobra.Command {
	cmder := &visionCommander{}

	cmd := &cobra.Command{
		Use:   "vision <prompt> <image-url>",
		Short: visionShortDesc,
		Long:  visionLongDesc,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args[0], args[1])
		},
	}

	cmd.Flags().StringVarP(&cmder.configPath, "config", "c", "", "Path to TOML config")
	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Model to use")
	cmd.Flags().BoolVar(&cmder.debug, "debug", false, "Enable debug logging")

	return cmd
}

func (c *visionCommander) run(ctx context.Context, cmd *cobra.Command, prompt, imageURL string) error {
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

	text, err := cl.Vision(ctx, prompt, imageURL, model)
	if err != nil {
		return errors.New(render.ErrorMessage(err))
	}

	fmt.Fprintln(cmd.OutOrStdout(), render.Markdown(text))
	return nil
}
