package cmd

import (
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/BDNK1/schedstack/internal/server"
	"github.com/BDNK1/schedstack/internal/synth"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve [project-dir]",
	Short: "Serve the synthesized assembly over HTTP",
	Long: `Serve synthesizes the project on every request and exposes:

  GET /healthz
  GET /template[?format=json|yaml]
  GET /manifest
  GET /schedule[?count=N]
`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
}

func runServe(_ *cobra.Command, args []string) error {
	opts, err := synthOptions(args)
	if err != nil {
		return err
	}

	if logLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := server.New(func() (*synth.Assembly, error) {
		return synth.Build(opts)
	}, logger)
	return s.Run(serveAddr)
}
