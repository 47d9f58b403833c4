package wifi

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"strings"
)

const (
	defaultInterface = "wlan0"
	defaultAPProfile = "needle-ap"
	defaultAPCIDR    = "192.168.4.1/24"

	// NetworkManager device states, see NMDeviceState.
	nmStateDisconnected = 30
	nmStateActivated    = 100
)

type runner func(ctx context.Context, args ...string) (string, error)

// NMCLI drives a NetworkManager-managed interface through the nmcli tool.
type NMCLI struct {
	iface     string
	apProfile string
	apCIDR    string
	run       runner
}

// NewNMCLI returns a radio bound to iface. It fails when nmcli is not installed.
func NewNMCLI(iface string) (*NMCLI, error) {
	if _, err := exec.LookPath("nmcli"); err != nil {
		return nil, fmt.Errorf("nmcli: not found in PATH")
	}
	return newNMCLI(iface, runNMCLI), nil
}

func newNMCLI(iface string, run runner) *NMCLI {
	if strings.TrimSpace(iface) == "" {
		iface = defaultInterface
	}
	return &NMCLI{
		iface:     iface,
		apProfile: defaultAPProfile,
		apCIDR:    defaultAPCIDR,
		run:       run,
	}
}

func runNMCLI(ctx context.Context, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, "nmcli", args...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("nmcli %s: %w: %s", strings.Join(redact(args), " "), err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

func (n *NMCLI) Disconnect(ctx context.Context) error {
	_, err := n.run(ctx, "device", "disconnect", n.iface)
	return err
}

func (n *NMCLI) Join(ctx context.Context, ssid, password, hostname string) error {
	if hostname != "" {
		// Best effort: the DHCP client sends the system hostname.
		_, _ = n.run(ctx, "general", "hostname", hostname)
	}
	args := []string{"--wait", "0", "device", "wifi", "connect", ssid}
	if password != "" {
		args = append(args, "password", password)
	}
	args = append(args, "ifname", n.iface)
	_, err := n.run(ctx, args...)
	return err
}

func (n *NMCLI) Status(ctx context.Context) (LinkStatus, error) {
	out, err := n.run(ctx, "-g", "GENERAL.STATE", "device", "show", n.iface)
	if err != nil {
		return LinkDown, err
	}
	return parseDeviceState(out)
}

func (n *NMCLI) LocalIP(ctx context.Context) (string, error) {
	out, err := n.run(ctx, "-g", "IP4.ADDRESS", "device", "show", n.iface)
	if err != nil {
		return "", err
	}
	return parseIPv4Address(out)
}

func (n *NMCLI) StartAP(ctx context.Context, ssid string) (string, error) {
	// A stale profile from a previous boot would make "add" fail.
	_, _ = n.run(ctx, "connection", "delete", n.apProfile)

	if _, err := n.run(ctx, "connection", "add",
		"type", "wifi",
		"ifname", n.iface,
		"con-name", n.apProfile,
		"autoconnect", "no",
		"ssid", ssid,
		"802-11-wireless.mode", "ap",
		"ipv4.method", "shared",
		"ipv4.addresses", n.apCIDR,
	); err != nil {
		return "", err
	}
	if _, err := n.run(ctx, "connection", "up", n.apProfile); err != nil {
		return "", err
	}
	ip, _, err := net.ParseCIDR(n.apCIDR)
	if err != nil {
		return "", fmt.Errorf("nmcli: ap cidr: %w", err)
	}
	return ip.String(), nil
}

func (n *NMCLI) StopAP(ctx context.Context) error {
	_, err := n.run(ctx, "connection", "down", n.apProfile)
	return err
}

// parseDeviceState reads the "100 (connected)" form printed for GENERAL.STATE.
func parseDeviceState(out string) (LinkStatus, error) {
	field, _, _ := strings.Cut(strings.TrimSpace(out), " ")
	code, err := strconv.Atoi(field)
	if err != nil {
		return LinkDown, fmt.Errorf("nmcli: parse device state %q: %w", out, err)
	}
	switch {
	case code == nmStateActivated:
		return LinkUp, nil
	case code > nmStateDisconnected && code < nmStateActivated:
		return LinkConnecting, nil
	default:
		return LinkDown, nil
	}
}

// parseIPv4Address takes the first "a.b.c.d/len" entry of an IP4.ADDRESS listing.
func parseIPv4Address(out string) (string, error) {
	for _, line := range strings.FieldsFunc(out, func(r rune) bool { return r == '\n' || r == '|' }) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ip, _, err := net.ParseCIDR(line)
		if err != nil {
			ip = net.ParseIP(line)
		}
		if ip != nil && ip.To4() != nil {
			return ip.String(), nil
		}
	}
	return "", fmt.Errorf("nmcli: no IPv4 address in %q", out)
}

func redact(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i := 0; i+1 < len(out); i++ {
		if out[i] == "password" {
			out[i+1] = "****"
		}
	}
	return out
}
