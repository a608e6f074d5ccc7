package dlna

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/navidrome/mediaserver/log"
)

const (
	ssdpAlive  = "ssdp:alive"
	ssdpByeBye = "ssdp:byebye"
	ssdpAll    = "ssdp:all"

	cacheMaxAge      = 1800
	announceInterval = 30 * time.Minute
)

func (r *Router) startSSDP() error {
	addr, err := net.ResolveUDPAddr("udp4", ssdpAddr)
	if err != nil {
		return fmt.Errorf("failed to resolve SSDP address: %w", err)
	}

	conn, err := net.ListenMulticastUDP("udp4", nil, addr)
	if err != nil {
		return fmt.Errorf("failed to listen on multicast: %w", err)
	}
	if err := conn.SetReadBuffer(65535); err != nil {
		log.Warn(r.ctx, "failed to set SSDP read buffer", "error", err.Error())
	}
	r.ssdpConn = conn

	go r.listenSSDP()
	go r.periodicAnnounce()
	return nil
}

func (r *Router) listenSSDP() {
	buf := make([]byte, 2048)
	for {
		select {
		case <-r.ctx.Done():
			return
		default:
		}

		if err := r.ssdpConn.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
			continue
		}

		n, remoteAddr, err := r.ssdpConn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			log.Error(r.ctx, "error reading SSDP packet", err)
			continue
		}

		msg := string(buf[:n])
		if strings.HasPrefix(msg, "M-SEARCH") {
			r.handleMSearch(msg, remoteAddr)
		}
	}
}

func (r *Router) handleMSearch(msg string, remoteAddr *net.UDPAddr) {
	st := extractHeader(msg, "ST")
	if st == "" {
		return
	}

	var respondTargets []string
	switch st {
	case ssdpAll:
		respondTargets = r.getAllServiceTypes()
	case "upnp:rootdevice":
		respondTargets = []string{"upnp:rootdevice"}
	case deviceType, contentDirectoryType, connectionManagerType, mediaReceiverRegistrarType:
		respondTargets = []string{st}
	default:
		if st == r.uuid {
			respondTargets = []string{r.uuid}
		}
	}
	if len(respondTargets) == 0 {
		return
	}

	log.Debug(r.ctx, "responding to M-SEARCH", "st", st, "from", remoteAddr.String())
	for _, target := range respondTargets {
		r.sendSearchResponse(target, remoteAddr)
	}
}

func (r *Router) sendSearchResponse(st string, remoteAddr *net.UDPAddr) {
	location := r.getDeviceURL()
	usn := r.getUSN(st)

	response := fmt.Sprintf("HTTP/1.1 200 OK\r\n"+
		"CACHE-CONTROL: max-age=%d\r\n"+
		"DATE: %s\r\n"+
		"EXT:\r\n"+
		"LOCATION: %s\r\n"+
		"SERVER: %s\r\n"+
		"ST: %s\r\n"+
		"USN: %s\r\n"+
		"BOOTID.UPNP.ORG: 1\r\n"+
		"CONFIGID.UPNP.ORG: 1\r\n"+
		"\r\n",
		cacheMaxAge, time.Now().UTC().Format(time.RFC1123), location, r.getServerString(), st, usn)

	conn, err := net.DialUDP("udp4", nil, remoteAddr)
	if err != nil {
		log.Error(r.ctx, "failed to dial for M-SEARCH response", err)
		return
	}
	defer conn.Close()
	if _, err := conn.Write([]byte(response)); err != nil {
		log.Error(r.ctx, "failed to send M-SEARCH response", err)
	}
}

func (r *Router) announcePresence() {
	for _, target := range r.getAllServiceTypes() {
		r.sendNotify(target, ssdpAlive)
	}
}

func (r *Router) sendByeBye() {
	for _, target := range r.getAllServiceTypes() {
		r.sendNotify(target, ssdpByeBye)
	}
}

func (r *Router) periodicAnnounce() {
	ticker := time.NewTicker(announceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.announcePresence()
		}
	}
}

func (r *Router) sendNotify(nt, nts string) {
	location := r.getDeviceURL()
	usn := r.getUSN(nt)

	var msg string
	if nts == ssdpByeBye {
		msg = fmt.Sprintf("NOTIFY * HTTP/1.1\r\n"+
			"HOST: %s\r\n"+
			"NT: %s\r\n"+
			"NTS: %s\r\n"+
			"USN: %s\r\n"+
			"BOOTID.UPNP.ORG: 1\r\n"+
			"CONFIGID.UPNP.ORG: 1\r\n"+
			"\r\n",
			ssdpAddr, nt, nts, usn)
	} else {
		msg = fmt.Sprintf("NOTIFY * HTTP/1.1\r\n"+
			"HOST: %s\r\n"+
			"CACHE-CONTROL: max-age=%d\r\n"+
			"LOCATION: %s\r\n"+
			"NT: %s\r\n"+
			"NTS: %s\r\n"+
			"SERVER: %s\r\n"+
			"USN: %s\r\n"+
			"BOOTID.UPNP.ORG: 1\r\n"+
			"CONFIGID.UPNP.ORG: 1\r\n"+
			"\r\n",
			ssdpAddr, cacheMaxAge, location, nt, nts, r.getServerString(), usn)
	}

	addr, err := net.ResolveUDPAddr("udp4", ssdpAddr)
	if err != nil {
		log.Error(r.ctx, "failed to resolve SSDP address for notify", err)
		return
	}
	conn, err := net.DialUDP("udp4", nil, addr)
	if err != nil {
		log.Error(r.ctx, "failed to dial for NOTIFY", err)
		return
	}
	defer conn.Close()

	for i := 0; i < 3; i++ {
		if _, err := conn.Write([]byte(msg)); err != nil {
			log.Error(r.ctx, "failed to send NOTIFY", err)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func (r *Router) getAllServiceTypes() []string {
	return []string{
		"upnp:rootdevice",
		r.uuid,
		deviceType,
		contentDirectoryType,
		connectionManagerType,
		mediaReceiverRegistrarType,
	}
}

func (r *Router) getUSN(st string) string {
	if st == r.uuid {
		return r.uuid
	}
	return fmt.Sprintf("%s::%s", r.uuid, st)
}

func (r *Router) getDeviceURL() string {
	localIP := getLocalIP()
	return fmt.Sprintf("http://%s:%d/dlna/device.xml", localIP, r.httpPort)
}

func (r *Router) getServerString() string {
	return fmt.Sprintf("Linux/1.0 UPnP/1.1 %s/1.0", r.serverName)
}

func extractHeader(msg, header string) string {
	headerPrefix := header + ":"
	for _, line := range strings.Split(msg, "\r\n") {
		if strings.HasPrefix(strings.ToUpper(line), strings.ToUpper(headerPrefix)) {
			return strings.TrimSpace(line[len(headerPrefix):])
		}
	}
	return ""
}
