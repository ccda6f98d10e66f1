package push

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
)

var ErrEndpointNotAllowed = errors.New("push endpoint not allowed")

// CheckEndpoint accepts only https URLs whose host is not a loopback,
// private, link-local or unspecified address. Host names are resolved
// later; the dialer repeats the address check on every connection.
func CheckEndpoint(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEndpointNotAllowed, err)
	}
	if u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be https", ErrEndpointNotAllowed)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("%w: host missing", ErrEndpointNotAllowed)
	}
	if h := strings.ToLower(strings.TrimSuffix(host, ".")); h == "localhost" || strings.HasSuffix(h, ".localhost") {
		return fmt.Errorf("%w: %s", ErrEndpointNotAllowed, host)
	}
	if ip, err := netip.ParseAddr(host); err == nil && !publicAddr(ip) {
		return fmt.Errorf("%w: %s", ErrEndpointNotAllowed, host)
	}
	return nil
}

func publicAddr(ip netip.Addr) bool {
	ip = ip.Unmap()
	return ip.IsValid() &&
		!ip.IsLoopback() &&
		!ip.IsPrivate() &&
		!ip.IsLinkLocalUnicast() &&
		!ip.IsLinkLocalMulticast() &&
		!ip.IsInterfaceLocalMulticast() &&
		!ip.IsMulticast() &&
		!ip.IsUnspecified()
}

// dialControl runs after DNS resolution, so a name that resolves to an
// internal address is refused too.
func dialControl(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrEndpointNotAllowed, host)
	}
	if !publicAddr(ip) {
		return fmt.Errorf("%w: %s", ErrEndpointNotAllowed, host)
	}
	return nil
}
