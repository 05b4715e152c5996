package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	cliflag "github.com/tomasbasham/cli-runtime/flag"
	"github.com/tomasbasham/cli-runtime/iooption"
	"github.com/tomasbasham/cli-runtime/templates"

	"github.com/anime-shed/vision-analysis-go/internal/analyzer"
	"github.com/anime-shed/vision-analysis-go/internal/config"
	"github.com/anime-shed/vision-analysis-go/pkg/report"
)

// DefaultScorerImageURL is analyzed when no --image-url is given.
const DefaultScorerImageURL = "https://loveincorporated.blob.core.windows.net/contentimages/gallery/5366115e-decc-4024-941a-5237627bfa21-world-foods-tacos-shutterstock.jpg"

var (
	scorerLong = templates.LongDesc(`
		Analyze one image with the vision service and print a report.

		AZURE_VISION_ENDPOINT and AZURE_VISION_KEY are read from the environment
		or from a .env file in the working directory.`)

	scorerExample = templates.Examples(`
		# Analyze the built-in sample image
		scorer

		# Analyze another publicly reachable image
		scorer --image-url https://example.com/receipt.png`)
)

// ScorerOptions defines the options for the `scorer` command.
type ScorerOptions struct {
	ImageURL string
	Timeout  time.Duration

	// Analyzer is built from the environment when nil.
	Analyzer analyzer.Analyzer

	iooption.IOStreams
}

// NewScorerOptions provides an initialised ScorerOptions instance.
func NewScorerOptions(streams iooption.IOStreams) *ScorerOptions {
	return &ScorerOptions{IOStreams: streams}
}

// NewScorerCommand creates the `scorer` command with default arguments.
func NewScorerCommand() *cobra.Command {
	return NewScorerCommandWithOptions(NewScorerOptions(iooption.IOStreams{
		In:     os.Stdin,
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	}))
}

// NewScorerCommandWithOptions creates the `scorer` command.
func NewScorerCommandWithOptions(o *ScorerOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "scorer",
		DisableFlagsInUseLine: true,
		Short:                 "Analyze one image with the vision service and print a report",
		Long:                  scorerLong,
		Example:               scorerExample,
		Args:                  cobra.NoArgs,
		SilenceErrors:         true,
		SilenceUsage:          true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(); err != nil {
				return err
			}
			if err := o.Validate(); err != nil {
				return err
			}
			return o.Run(cmd.Context())
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&o.ImageURL, "image-url", "u", DefaultScorerImageURL, "Publicly reachable image to analyze")
	flags.DurationVarP(&o.Timeout, "timeout", "t", 60*time.Second, "Overall timeout for the analysis call")

	cmd.SetGlobalNormalizationFunc(cliflag.WordSepNormalizeFunc())

	return cmd
}

// Complete builds the analyzer from the environment unless one was injected.
func (o *ScorerOptions) Complete() error {
	if o.Analyzer != nil {
		return nil
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}
	if err := cfg.ValidateVision(); err != nil {
		return err
	}

	a, err := analyzer.NewAzureAnalyzer(cfg.VisionEndpoint, cfg.VisionKey, nil)
	if err != nil {
		return err
	}
	o.Analyzer = a
	return nil
}

func (o *ScorerOptions) Validate() error {
	if o.ImageURL == "" {
		return fmt.Errorf("--image-url must not be empty")
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("--timeout must be positive")
	}
	return nil
}

func (o *ScorerOptions) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()

	result, err := o.Analyzer.Analyze(ctx, o.ImageURL)
	if err != nil {
		return fmt.Errorf("analyze %s: %w", o.ImageURL, err)
	}
	return report.Print(o.Out, result)
}
