// Command mediaserver runs the UPnP AV/DLNA media server: it loads
// configuration, wires the core packages together, and serves SSDP
// discovery plus the HTTP/SOAP control surface until interrupted.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"

	"github.com/navidrome/mediaserver/conf"
	"github.com/navidrome/mediaserver/core/autoscan"
	"github.com/navidrome/mediaserver/core/clients"
	"github.com/navidrome/mediaserver/core/didl"
	"github.com/navidrome/mediaserver/core/dispatch"
	"github.com/navidrome/mediaserver/core/fanart"
	"github.com/navidrome/mediaserver/core/search"
	"github.com/navidrome/mediaserver/core/transcode"
	"github.com/navidrome/mediaserver/log"
	"github.com/navidrome/mediaserver/model"
	"github.com/navidrome/mediaserver/persistence"
	"github.com/navidrome/mediaserver/server/dlna"
	"github.com/navidrome/mediaserver/server/session"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "mediaserver",
		Short:         "UPnP AV/DLNA media server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a TOML config file")
	root.AddCommand(serveCmd(), configValidateCmd())
	root.RunE = serveCmd().RunE

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "mediaserver:", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "start the media server (default command)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config validate",
		Short: "load and validate the config file, then exit",
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if _, err := conf.Load(configPath); err != nil {
			return fmt.Errorf("config invalid: %w", err)
		}
		fmt.Println("config OK")
		return nil
	}
	return cmd
}

func runServe() error {
	cfg, err := conf.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.SetLevel(cfg.LogLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	profiles, err := clients.BuildProfiles(cfg.Clients)
	if err != nil {
		return fmt.Errorf("building client profiles: %w", err)
	}
	registry := clients.NewRegistry(profiles)
	defer registry.Close()

	// A real deployment swaps storage for a SQL-backed model.Storage; the
	// reference in-memory implementation is what exercises core/* and
	// server/* end to end without one (spec §1/§6 leave the backend out
	// of scope). A SQL-backed implementation is the one that would fail
	// here with a schema-version mismatch and exit(2).
	storage := persistence.NewMemoryStorage()

	transcoder := transcode.NewDispatcher(cfg.TranscodeProfiles, cfg.RuntimeDir)
	artResolver := fanart.NewResolver("embedded,cover,folder,any", nil)

	dispatcher := &dispatch.Dispatcher{
		Storage:    storage,
		Transcoder: transcoder,
		Metadata:   artMetadataOpener{resolver: artResolver},
	}

	firstResourceProfiles := map[string]bool{}
	for _, p := range cfg.TranscodeProfiles {
		if p.FirstResource {
			firstResourceProfiles[p.Name] = true
		}
	}

	builder := &didl.Builder{
		ResourceURL: func(obj *model.CdsObject, res *model.CdsResource) string {
			key := dispatch.ResourceKey{ObjectID: obj.ID, ResID: res.ResID, HasResID: true}
			if res.Handler == model.HandlerTranscode {
				key.ProfileName = res.Parameters["pr_name"]
			}
			return dispatch.BuildURL("/dlna/resource", key)
		},
		ContainerArt: func(container *model.CdsObject) string {
			return containerArtURL(container)
		},
		FirstResourceProfiles: firstResourceProfiles,
		SyntheticTranscode:    syntheticTranscodeFor(cfg.TranscodeProfiles),
	}

	sessions := session.NewRegistry()
	sweepTicker := time.NewTicker(time.Minute)
	defer sweepTicker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-sweepTicker.C:
				sessions.TimerNotify()
			}
		}
	}()

	engine := autoscan.NewEngine(storage, sessions.FanoutContainerChanged)
	timed := autoscan.NewTimedScheduler(engine)
	inotify := autoscan.NewInotifyEngine(engine)
	for _, a := range cfg.Autoscan {
		if regErr := registerAutoscanDir(engine, inotify, a); regErr != nil {
			return fmt.Errorf("registering autoscan directory %q: %w", a.Location, regErr)
		}
	}
	timed.Start()
	defer timed.Stop()
	inotify.Start()
	defer inotify.Stop()

	router := dlna.New(dlna.Config{
		Storage:    storage,
		Clients:    registry,
		Dispatcher: dispatcher,
		DIDL:       builder,
		Mapper:     search.DefaultMapper,
		Sessions:   sessions,
		ServerName: cfg.ServerName,
		HTTPPort:   cfg.Port,
	})
	if err := router.Start(ctx); err != nil {
		return fmt.Errorf("starting DLNA transport: %w", err)
	}
	defer router.Stop()

	httpRouter := chi.NewRouter()
	httpRouter.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSHosts,
		AllowedMethods: []string{"GET", "POST", "HEAD"},
	}))
	httpRouter.Mount("/dlna", router.Routes())

	addr := fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpRouter,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streaming responses can run indefinitely
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-sigCh:
		log.Info(ctx, "shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

// artMetadataOpener adapts core/fanart.Resolver to dispatch.MetadataOpener,
// serving CONTAINERART/FANART resources (spec §4.D) by resolving art in the
// object's own directory. Resolver.Resolve's non-embedded branches return
// *os.File, which already satisfies dispatch.IOHandler's Read/Seek/Close.
type artMetadataOpener struct {
	resolver *fanart.Resolver
}

func (a artMetadataOpener) Open(ctx context.Context, obj *model.CdsObject, res *model.CdsResource) (dispatch.IOHandler, int64, error) {
	dir := ""
	if obj.Location != "" {
		dir = filepath.Dir(obj.Location)
	}
	rc, err := a.resolver.Resolve(ctx, obj, dir)
	if err != nil {
		return nil, 0, err
	}
	h, ok := rc.(dispatch.IOHandler)
	if !ok {
		rc.Close()
		return nil, 0, fmt.Errorf("mediaserver: art source for %s is not seekable", obj.ID)
	}
	size := int64(0)
	if f, ok := rc.(*os.File); ok {
		if st, statErr := f.Stat(); statErr == nil {
			size = st.Size()
		}
	}
	return h, size, nil
}

// syntheticTranscodeFor returns a didl.SyntheticTranscodeFunc that offers an
// item a transcode resource derived from the first configured profile whose
// MimeType matches, when the item's own resources don't already carry one
// (spec §4.D addResources: "optionally inject a synthetic transcode
// resource").
func syntheticTranscodeFor(profiles []conf.TranscodeProfile) didl.SyntheticTranscodeFunc {
	return func(obj *model.CdsObject, item *model.CdsItem) *model.CdsResource {
		if item == nil {
			return nil
		}
		for _, res := range obj.Resources {
			if res.Handler == model.HandlerTranscode {
				return nil
			}
		}
		for _, p := range profiles {
			if p.MimeType != item.MimeType {
				continue
			}
			res := model.NewResource(model.HandlerTranscode, model.PurposeTranscode, len(obj.Resources))
			res.Parameters["pr_name"] = p.Name
			return res
		}
		return nil
	}
}

// containerArtURL returns the resource URL for a container's first
// thumbnail-purpose resource, or "" if it has none.
func containerArtURL(container *model.CdsObject) string {
	for _, res := range container.Resources {
		if res.Purpose == model.PurposeThumbnail {
			key := dispatch.ResourceKey{ObjectID: container.ID, ResID: res.ResID, HasResID: true}
			return dispatch.BuildURL("/dlna/resource", key)
		}
	}
	return ""
}

func registerAutoscanDir(engine *autoscan.Engine, inotify *autoscan.InotifyEngine, a conf.AutoscanConfig) error {
	mode := model.ScanTimed
	if a.ScanMode == "INotify" {
		mode = model.ScanINotify
	}
	dir := model.NewAutoscanDirectory(a.Location, mode)
	dir.Recursive = a.Recursive
	dir.Hidden = a.Hidden
	dir.FollowSymlinks = a.FollowSymlinks
	dir.Persistent = true
	if a.IntervalSecs > 0 {
		dir.Interval = time.Duration(a.IntervalSecs) * time.Second
	}
	if err := engine.Register(dir, nil); err != nil {
		return err
	}
	if mode == model.ScanINotify {
		return inotify.Monitor(dir)
	}
	return nil
}
