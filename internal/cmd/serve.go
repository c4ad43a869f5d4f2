package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/CageChen/filesource/internal/handler"
	"github.com/CageChen/filesource/internal/source"
	"github.com/CageChen/filesource/internal/watcher"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

// newServeCommand creates the 'filesource serve' command
func newServeCommand(flags *globalFlags) *cobra.Command {
	var (
		port    int
		noWatch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured sources over HTTP",
		Long: `Serve the configured sources over a JSON API:

  GET  /api/sources                list sources
  GET  /api/sources/:name/list     crawl order descriptors
  GET  /api/sources/:name/tree     descriptors nested by directory
  GET  /api/sources/:name/files    read every file
  PUT  /api/sources/:name/files    write a batch of files
  GET  /api/ws                     change notifications`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Port = port
			}
			if noWatch {
				cfg.Watch = false
			}

			sources := make([]*source.Source, 0, len(cfg.Sources))
			for _, sc := range cfg.Sources {
				src, err := sc.Open()
				if err != nil {
					return fmt.Errorf("source %s: %w", sc.Name, err)
				}
				sources = append(sources, src)
			}

			log.Infof("config file: %s", cfg.GetConfigFilePath())
			log.Infof("serving %d source(s)", len(sources))
			for i, s := range sources {
				log.WithFields(log.Fields{
					"writable":  s.Writable(),
					"watchable": s.Watchable(),
				}).Infof("  [%d] %s -> %s", i, s.Name(), s.Root())
			}

			treeHandler := handler.NewTreeHandler(sources)
			wsHandler := handler.NewWSHandler()
			treeHandler.OnPut(wsHandler.OnPut)

			if cfg.Watch {
				targets := make([]watcher.Target, len(sources))
				for i, s := range sources {
					targets[i] = s
				}
				w, err := watcher.New(targets)
				if err != nil {
					log.Warnf("failed to create file watcher: %v", err)
				} else {
					w.OnChange(wsHandler.OnFileChange)
					if err := w.Start(); err != nil {
						log.Warnf("failed to start file watcher: %v", err)
					}
					defer func() { _ = w.Stop() }()
					log.Info("file watcher enabled")
				}
			}

			gin.SetMode(gin.ReleaseMode)
			srv := &http.Server{
				Addr:    fmt.Sprintf(":%d", cfg.Port),
				Handler: handler.NewRouter(treeHandler, wsHandler),
			}
			return serve(cmd.Context(), srv)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Disable file watching")
	return cmd
}

// serve runs srv until ctx is done, then shuts it down.
func serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		log.Infof("server starting at http://localhost%s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
