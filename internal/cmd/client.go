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

	"github.com/anime-shed/vision-analysis-go/pkg/client"
)

const (
	// DefaultServiceBaseURL is where the client runner expects the API.
	DefaultServiceBaseURL = "https://localhost:5001"

	// DefaultClientImageURL is analyzed by URL when no --image-url is given.
	DefaultClientImageURL = "https://www.citypng.com/public/uploads/preview/chicken-burger-with-flying-ingredients-hd-transparent-png-701751710853243v9zgwqwepn.png?v=2025032803"
)

var (
	clientLong = templates.LongDesc(`
		Call a running image analysis API twice: once with an image URL and,
		when --file is given, once by uploading a local image.

		Responses are pretty-printed. Connection failures are reported and do
		not make the command fail.`)

	clientExample = templates.Examples(`
		# Analyze the built-in sample URL against a local API
		client --base-url http://localhost:8080

		# Also upload a local image
		client --base-url http://localhost:8080 --file ./burger.png`)
)

// ClientOptions defines the options for the `client` command.
type ClientOptions struct {
	BaseURL  string
	ImageURL string
	FilePath string
	Timeout  time.Duration

	iooption.IOStreams
}

// NewClientOptions provides an initialised ClientOptions instance.
func NewClientOptions(streams iooption.IOStreams) *ClientOptions {
	return &ClientOptions{IOStreams: streams}
}

// NewClientCommand creates the `client` command with default arguments.
func NewClientCommand() *cobra.Command {
	return NewClientCommandWithOptions(NewClientOptions(iooption.IOStreams{
		In:     os.Stdin,
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	}))
}

// NewClientCommandWithOptions creates the `client` command.
func NewClientCommandWithOptions(o *ClientOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "client",
		DisableFlagsInUseLine: true,
		Short:                 "Call a running image analysis API by URL and by file upload",
		Long:                  clientLong,
		Example:               clientExample,
		Args:                  cobra.NoArgs,
		SilenceErrors:         true,
		SilenceUsage:          true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Validate(); err != nil {
				return err
			}
			return o.Run(cmd.Context())
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&o.BaseURL, "base-url", "b", DefaultServiceBaseURL, "Base URL of the image analysis API")
	flags.StringVarP(&o.ImageURL, "image-url", "u", DefaultClientImageURL, "Image to analyze by URL")
	flags.StringVarP(&o.FilePath, "file", "f", "", "Local image to upload and analyze")
	flags.DurationVarP(&o.Timeout, "timeout", "t", 100*time.Second, "Timeout for each API call")

	cmd.SetGlobalNormalizationFunc(cliflag.WordSepNormalizeFunc())

	return cmd
}

func (o *ClientOptions) Validate() error {
	if o.BaseURL == "" {
		return fmt.Errorf("--base-url must not be empty")
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("--timeout must be positive")
	}
	return nil
}

// Run analyzes ImageURL through the API, then uploads FilePath when set.
// API and transport failures are printed, not returned.
func (o *ClientOptions) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	c, err := client.New(o.BaseURL, o.Out)
	if err != nil {
		return err
	}

	fmt.Fprintln(o.Out, "Image Analysis Service Client Runner")
	fmt.Fprintln(o.Out, "----------------------------------")

	fmt.Fprintf(o.Out, "\nAnalyzing image from URL: %s\n", o.ImageURL)
	o.call(ctx, func(ctx context.Context) { c.AnalyzeFromURL(ctx, o.ImageURL) })

	fmt.Fprintln(o.Out, "\n-----------------------------")
	fmt.Fprintln(o.Out)

	if o.FilePath == "" {
		fmt.Fprintln(o.Out, "No local image given (--file); skipping upload.")
		return nil
	}
	fmt.Fprintf(o.Out, "Uploading and analyzing local image: %s\n", o.FilePath)
	o.call(ctx, func(ctx context.Context) { c.UploadAndAnalyze(ctx, o.FilePath) })
	return nil
}

func (o *ClientOptions) call(ctx context.Context, fn func(context.Context)) {
	ctx, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()
	fn(ctx)
}
