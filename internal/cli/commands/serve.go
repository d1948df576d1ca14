package commands

import (
	"fmt"
	"net"
	"os/exec"
	"runtime"
	"strconv"

	"github.com/leapstack-labs/pith/internal/ui"
	"github.com/spf13/cobra"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Host      string
	Port      int
	Watch     string
	NoBrowser bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Pith workbench server",
		Long: `Start a local web server for the browser workbench.

The server provides:
- Table listing, schemas and ingestion over HTTP
- Chart validation and plot specs
- Model lifecycle and insight chat
- Export, import and preferences
- A visualization query endpoint and a Prometheus /metrics endpoint

With --watch, files dropped into the folder are ingested as they land.`,
		Example: `  # Start on the default port
  pith serve

  # Start on a custom port and watch a folder
  pith serve --port 3000 --watch ./inbox

  # Start without opening a browser
  pith serve --no-browser`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Host, "host", "", "Host to bind (default from config)")
	cmd.Flags().IntVar(&opts.Port, "port", 0, "Port to serve on (default from config)")
	cmd.Flags().StringVar(&opts.Watch, "watch", "", "Folder to ingest new files from")
	cmd.Flags().BoolVar(&opts.NoBrowser, "no-browser", false, "Don't auto-open browser")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	srvCfg := cmdCtx.Cfg.Server
	host := srvCfg.Host
	if opts.Host != "" {
		host = opts.Host
	}
	port := srvCfg.Port
	if opts.Port != 0 {
		port = opts.Port
	}
	watchDir := srvCfg.WatchDir
	if opts.Watch != "" {
		watchDir = opts.Watch
	}

	server := ui.NewServer(ui.Config{
		App:        cmdCtx.App,
		Host:       host,
		Port:       port,
		WatchDir:   watchDir,
		WatchDelay: srvCfg.WatchDelay,
		Logger:     cmdCtx.Logger,
	})

	url := "http://" + net.JoinHostPort(browserHost(host), strconv.Itoa(port))
	if !opts.NoBrowser {
		go openBrowser(url)
	}

	r := cmdCtx.Renderer
	r.Printf("Starting Pith on %s\n", url)
	if watchDir != "" {
		r.Muted(fmt.Sprintf("Watching %s for new files", watchDir))
	}
	r.Muted("Press Ctrl+C to stop")

	return server.Serve(cmd.Context())
}

// browserHost maps wildcard bind addresses to one a browser can open.
func browserHost(host string) string {
	switch host {
	case "", "0.0.0.0", "::":
		return "localhost"
	default:
		return host
	}
}

// openBrowser opens the default browser to the specified URL.
func openBrowser(url string) {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url) //nolint:noctx
	case "linux":
		cmd = exec.Command("xdg-open", url) //nolint:noctx
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url) //nolint:noctx
	default:
		return
	}

	_ = cmd.Start()
}
