package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"sls-log-analyzer/api"
)

var (
	serveListen    string
	serveUploadDir string
	serveMaxUpload string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		flags := cmd.Flags()
		if flags.Changed("listen") {
			cfg.Server.ListenAddr = serveListen
		}
		if flags.Changed("upload-dir") {
			cfg.Server.UploadDir = serveUploadDir
		}
		if flags.Changed("max-upload-size") {
			var size datasize.ByteSize
			if err := size.UnmarshalText([]byte(serveMaxUpload)); err != nil {
				return err
			}
			cfg.Server.MaxUploadSize = size
		}
		loc, err := cfg.Location()
		if err != nil {
			return err
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		h := api.NewHandler(api.Config{
			UploadDir:       cfg.Server.UploadDir,
			MaxUploadSize:   int64(cfg.Server.MaxUploadSize.Bytes()),
			DefaultPageSize: cfg.Query.DefaultPageSize,
			Location:        loc,
		}, a.pipeline, a.queries, logger)
		srv := api.NewServer(cfg.Server.ListenAddr, api.NewRouter(h, a.registry))

		errc := make(chan error, 1)
		go func() {
			level.Info(logger).Log("msg", "listening", "addr", cfg.Server.ListenAddr, "db", cfg.Database.Path)
			errc <- srv.Start()
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case err := <-errc:
			return err
		case sig := <-quit:
			level.Info(logger).Log("msg", "shutting down", "signal", sig)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return err
		}
		return <-errc
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", ":3000", "Listen address (overrides server.listen_addr)")
	serveCmd.Flags().StringVar(&serveUploadDir, "upload-dir", "", "Directory for upload spool files (overrides server.upload_dir)")
	serveCmd.Flags().StringVar(&serveMaxUpload, "max-upload-size", "50MB", "Upload size limit (overrides server.max_upload_size)")
	rootCmd.AddCommand(serveCmd)
}
