// Package discovery finds Elgato accessories and Hue bridges on the local
// network.
package discovery

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/mdns"

	"auraconnect/internal/logging"
)

const (
	elgatoService = "_elg._tcp"
	elgatoPort    = 9123
)

type Scanner struct {
	logger      *slog.Logger
	mdnsTimeout time.Duration
}

func NewScanner(logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scanner{
		logger:      logging.Component(logger, "discovery"),
		mdnsTimeout: 3 * time.Second,
	}
}

// ElgatoAddrs returns the IPv4 addresses of Key Light accessories. mDNS is
// tried first; the /24 subnet probe only runs when mDNS finds nothing.
func (s *Scanner) ElgatoAddrs(ctx context.Context) []string {
	addrs := s.elgatoViaMDNS(ctx)
	s.logger.Info("mDNS Elgato query finished", "found", len(addrs))
	if len(addrs) > 0 || ctx.Err() != nil {
		return addrs
	}
	return s.elgatoViaProbe(ctx)
}

func (s *Scanner) elgatoViaMDNS(ctx context.Context) []string {
	entries := make(chan *mdns.ServiceEntry, 10)

	go func() {
		params := &mdns.QueryParam{
			Service:             elgatoService,
			Domain:              "local",
			Timeout:             s.mdnsTimeout,
			Entries:             entries,
			DisableIPv6:         true,
			WantUnicastResponse: true,
		}
		if err := mdns.Query(params); err != nil {
			s.logger.Warn("mDNS Elgato query failed", "error", err)
		}
		close(entries)
	}()

	var addrs []string
	seen := make(map[string]bool)
	for entry := range entries {
		if ctx.Err() != nil {
			continue // drain so the query goroutine can finish
		}
		s.logger.Debug("mDNS entry", "name", entry.Name, "addr", entry.AddrV4, "port", entry.Port)
		if entry.AddrV4 == nil {
			continue
		}
		addr := entry.AddrV4.String()
		if !seen[addr] {
			seen[addr] = true
			addrs = append(addrs, addr)
		}
	}
	return addrs
}

func (s *Scanner) elgatoViaProbe(ctx context.Context) []string {
	subnets := getLocalSubnets()
	if len(subnets) == 0 {
		s.logger.Warn("could not determine local subnets for Elgato probe")
		return nil
	}

	client := &http.Client{Timeout: 800 * time.Millisecond}
	var (
		mu    sync.Mutex
		addrs []string
	)
	probe(ctx, subnets, 50, func(ip string) {
		if isElgatoKeyLight(ctx, client, fmt.Sprintf("http://%s:%d", ip, elgatoPort)) {
			s.logger.Info("found Elgato light via probe", "addr", ip)
			mu.Lock()
			addrs = append(addrs, ip)
			mu.Unlock()
		}
	})
	return addrs
}

func isElgatoKeyLight(ctx context.Context, client *http.Client, baseURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/elgato/accessory-info", nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// probe runs fn for every host of every /24 prefix with at most limit
// concurrent calls.
func probe(ctx context.Context, subnets []string, limit int, fn func(ip string)) {
	var wg sync.WaitGroup
	sem := make(chan struct{}, limit)

	for _, subnet := range subnets {
		for _, ip := range expandSubnet(subnet) {
			if ctx.Err() != nil {
				break
			}
			wg.Add(1)
			sem <- struct{}{}
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				fn(ip)
			}()
		}
	}
	wg.Wait()
}

func getLocalSubnets() []string {
	var subnets []string
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if prefix, ok := subnetPrefix(addr); ok {
				subnets = append(subnets, prefix)
			}
		}
	}
	return subnets
}

// subnetPrefix returns the first three octets of an IPv4 network of /24 or
// wider.
func subnetPrefix(addr net.Addr) (string, bool) {
	ipNet, ok := addr.(*net.IPNet)
	if !ok {
		return "", false
	}
	ip := ipNet.IP.To4()
	if ip == nil {
		return "", false
	}
	ones, bits := ipNet.Mask.Size()
	if ones == 0 || bits == 0 || ones > 24 {
		return "", false
	}
	return fmt.Sprintf("%d.%d.%d", ip[0], ip[1], ip[2]), true
}

func expandSubnet(prefix string) []string {
	ips := make([]string, 0, 254)
	for i := 1; i <= 254; i++ {
		ips = append(ips, fmt.Sprintf("%s.%d", prefix, i))
	}
	return ips
}

type HueBridge struct {
	IP   string `json:"ip"`
	Name string `json:"name"`
}

// HueBridges finds bridges via SSDP and the meethue N-UPnP service in
// parallel, then falls back to probing the local subnets.
func (s *Scanner) HueBridges(ctx context.Context) []HueBridge {
	var mu sync.Mutex
	seen := make(map[string]bool)
	var bridges []HueBridge

	addBridge := func(ip, name string) {
		mu.Lock()
		defer mu.Unlock()
		if seen[ip] {
			return
		}
		seen[ip] = true
		bridges = append(bridges, HueBridge{IP: ip, Name: name})
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.hueViaSSDP(ctx, addBridge)
	}()
	go func() {
		defer wg.Done()
		s.hueViaCloud(ctx, nupnpURLs, addBridge)
	}()
	wg.Wait()

	mu.Lock()
	found := len(bridges)
	mu.Unlock()

	if found == 0 && ctx.Err() == nil {
		s.logger.Info("SSDP and cloud found nothing, probing subnets for Hue bridges")
		s.hueViaProbe(ctx, addBridge)
	}
	return bridges
}

func (s *Scanner) hueViaSSDP(ctx context.Context, addBridge func(ip, name string)) {
	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		s.logger.Warn("SSDP: failed to open UDP socket", "error", err)
		return
	}
	defer conn.Close()

	ssdpAddr, err := net.ResolveUDPAddr("udp4", "239.255.255.250:1900")
	if err != nil {
		s.logger.Warn("SSDP: failed to resolve multicast address", "error", err)
		return
	}

	for _, st := range []string{"ssdp:all", "urn:schemas-upnp-org:device:Basic:1", "upnp:rootdevice"} {
		if _, err := conn.WriteTo([]byte(mSearch(st)), ssdpAddr); err != nil {
			s.logger.Debug("SSDP: M-SEARCH failed", "st", st, "error", err)
		}
	}

	deadline := time.Now().Add(5 * time.Second)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline.Add(-500 * time.Millisecond)
	}

	buf := make([]byte, 4096)
	responses := 0
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(time.Second))
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			continue
		}
		responses++
		udpAddr, ok := addr.(*net.UDPAddr)
		if !ok || !isHueSSDPResponse(string(buf[:n])) {
			continue
		}
		addBridge(udpAddr.IP.String(), "Hue Bridge")
	}
	s.logger.Debug("SSDP finished", "responses", responses)
}

func mSearch(st string) string {
	return "M-SEARCH * HTTP/1.1\r\n" +
		"HOST: 239.255.255.250:1900\r\n" +
		"MAN: \"ssdp:discover\"\r\n" +
		"ST: " + st + "\r\n" +
		"MX: 3\r\n" +
		"\r\n"
}

func isHueSSDPResponse(response string) bool {
	upper := strings.ToUpper(response)
	return strings.Contains(upper, "HUE") ||
		strings.Contains(upper, "PHILIPS") ||
		strings.Contains(upper, "IPBRIDGE")
}

var nupnpURLs = []string{
	"https://discovery.meethue.com/",
	"https://www.meethue.com/api/nupnp",
	"http://www.meethue.com/api/nupnp",
}

func (s *Scanner) hueViaCloud(ctx context.Context, urls []string, addBridge func(ip, name string)) {
	client := &http.Client{Timeout: 5 * time.Second}

	for _, url := range urls {
		if ctx.Err() != nil {
			return
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			continue
		}
		resp, err := client.Do(req)
		if err != nil {
			s.logger.Debug("N-UPnP request failed", "url", url, "error", err)
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			continue
		}
		if resp.StatusCode != http.StatusOK {
			s.logger.Debug("N-UPnP returned non-OK", "url", url, "status", resp.StatusCode)
			continue
		}

		bridges, err := parseNUPnP(body)
		if err != nil {
			s.logger.Debug("N-UPnP parse error", "url", url, "error", err)
			continue
		}
		for _, b := range bridges {
			addBridge(b.IP, b.Name)
		}
		if len(bridges) > 0 {
			return
		}
	}
}

func parseNUPnP(body []byte) ([]HueBridge, error) {
	var results []struct {
		ID                string `json:"id"`
		InternalIPAddress string `json:"internalipaddress"`
	}
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, err
	}
	var bridges []HueBridge
	for _, r := range results {
		if r.InternalIPAddress == "" {
			continue
		}
		name := "Hue Bridge"
		if len(r.ID) >= 6 {
			name = "Hue Bridge (" + r.ID[len(r.ID)-6:] + ")"
		}
		bridges = append(bridges, HueBridge{IP: r.InternalIPAddress, Name: name})
	}
	return bridges, nil
}

func (s *Scanner) hueViaProbe(ctx context.Context, addBridge func(ip, name string)) {
	subnets := getLocalSubnets()
	if len(subnets) == 0 {
		s.logger.Warn("could not determine local subnets for Hue probe")
		return
	}

	httpClient := &http.Client{Timeout: time.Second}
	httpsClient := &http.Client{
		Timeout: time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	probe(ctx, subnets, 80, func(ip string) {
		if isHueBridge(ctx, httpClient, httpsClient, ip) {
			s.logger.Info("found Hue bridge via probe", "ip", ip)
			addBridge(ip, "Hue Bridge")
		}
	})
}

// isHueBridge checks the unauthenticated config endpoint for a bridge id.
func isHueBridge(ctx context.Context, httpClient, httpsClient *http.Client, host string) bool {
	candidates := []struct {
		client *http.Client
		url    string
	}{
		{httpClient, fmt.Sprintf("http://%s/api/config", host)},
		{httpsClient, fmt.Sprintf("https://%s/api/0/config", host)},
	}

	for _, c := range candidates {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
		if err != nil {
			continue
		}
		resp, err := c.client.Do(req)
		if err != nil {
			continue
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		if err != nil {
			continue
		}

		var config struct {
			BridgeID string `json:"bridgeid"`
		}
		if err := json.Unmarshal(body, &config); err != nil {
			continue
		}
		if config.BridgeID != "" {
			return true
		}
	}
	return false
}
