// Package dlna implements the UPnP AV MediaServer transport: SSDP
// discovery, device/SCPD description, and SOAP control for
// ContentDirectory, ConnectionManager and MediaReceiverRegistrar, all
// backed by the core/* packages rather than any single storage schema.
package dlna

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/navidrome/mediaserver/core/clients"
	"github.com/navidrome/mediaserver/core/didl"
	"github.com/navidrome/mediaserver/core/dispatch"
	"github.com/navidrome/mediaserver/core/search"
	"github.com/navidrome/mediaserver/log"
	"github.com/navidrome/mediaserver/model"
	"github.com/navidrome/mediaserver/server/session"
)

const (
	ssdpAddr   = "239.255.255.250:1900"
	deviceType = "urn:schemas-upnp-org:device:MediaServer:1"

	contentDirectoryType       = "urn:schemas-upnp-org:service:ContentDirectory:1"
	connectionManagerType      = "urn:schemas-upnp-org:service:ConnectionManager:1"
	mediaReceiverRegistrarType = "urn:microsoft.com:service:X_MS_MediaReceiverRegistrar:1"
)

// Router wires the UPnP AV transport to the domain core: client
// identification, DIDL-Lite rendering, resource dispatch and the
// search/sort compiler.
type Router struct {
	storage     model.Storage
	clients     *clients.Registry
	dispatcher  *dispatch.Dispatcher
	didl        *didl.Builder
	mapper      search.ColumnMapper
	liveEmitter search.SQLEmitter
	sessions    *session.Registry

	serverName string
	uuid       string
	httpPort   int

	interfaces []net.Interface
	ssdpConn   *net.UDPConn
	mu         sync.RWMutex
	running    bool
	ctx        context.Context
	cancel     context.CancelFunc
}

type Config struct {
	Storage    model.Storage
	Clients    *clients.Registry
	Dispatcher *dispatch.Dispatcher
	DIDL       *didl.Builder
	Mapper     search.ColumnMapper
	Sessions   *session.Registry
	ServerName string
	HTTPPort   int
}

func New(cfg Config) *Router {
	serverName := cfg.ServerName
	if serverName == "" {
		serverName = "mediaserver"
	}
	return &Router{
		storage:     cfg.Storage,
		clients:     cfg.Clients,
		dispatcher:  cfg.Dispatcher,
		didl:        cfg.DIDL,
		mapper:      cfg.Mapper,
		liveEmitter: search.LiveEmitter{},
		sessions:    cfg.Sessions,
		serverName:  serverName,
		uuid:        generateUUID(serverName, cfg.HTTPPort),
		httpPort:    cfg.HTTPPort,
	}
}

// Routes returns the chi router for DLNA HTTP endpoints.
func (r *Router) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/device.xml", r.handleDeviceDescription)
	router.Get("/icon/*", r.handleIcon)

	router.Get("/ContentDirectory.xml", r.handleContentDirectoryDescription)
	router.Post("/ContentDirectory/control", r.handleContentDirectoryControl)

	router.Get("/ConnectionManager.xml", r.handleConnectionManagerDescription)
	router.Post("/ConnectionManager/control", r.handleConnectionManagerControl)

	router.Get("/X_MS_MediaReceiverRegistrar.xml", r.handleMediaReceiverRegistrarDescription)
	router.Post("/X_MS_MediaReceiverRegistrar/control", r.handleMediaReceiverRegistrarControl)

	router.Get("/resource/*", r.handleResource)

	return router
}

// Start begins SSDP announcements and M-SEARCH handling.
func (r *Router) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.running = true
	r.mu.Unlock()

	ifaces, err := getActiveInterfaces()
	if err != nil {
		return fmt.Errorf("failed to get network interfaces: %w", err)
	}
	r.interfaces = ifaces

	if err := r.startSSDP(); err != nil {
		return fmt.Errorf("failed to start SSDP: %w", err)
	}

	r.announcePresence()
	log.Info(r.ctx, "DLNA server started", "name", r.serverName, "uuid", r.uuid)
	return nil
}

func (r *Router) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}

	r.sendByeBye()
	if r.cancel != nil {
		r.cancel()
	}
	if r.ssdpConn != nil {
		r.ssdpConn.Close()
	}
	r.running = false
	log.Info(context.Background(), "DLNA server stopped")
}

func generateUUID(serverName string, port int) string {
	return fmt.Sprintf("uuid:mediaserver-%s-%d", serverName, port)
}

func getActiveInterfaces() ([]net.Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var active []net.Interface
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && ipnet.IP.To4() != nil && !ipnet.IP.IsLoopback() {
				active = append(active, iface)
				break
			}
		}
	}
	return active, nil
}

func getLocalIP() string {
	ifaces, err := getActiveInterfaces()
	if err != nil || len(ifaces) == 0 {
		return "127.0.0.1"
	}
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && ipnet.IP.To4() != nil && !ipnet.IP.IsLoopback() {
				return ipnet.IP.String()
			}
		}
	}
	return "127.0.0.1"
}
