package deploy

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
)

// ErrAvatarNotAllowed is returned for references outside the avatar policy.
var ErrAvatarNotAllowed = errors.New("deploy: avatar source not allowed")

// AvatarPolicy limits where avatars may be fetched from. The zero value
// allows nothing.
type AvatarPolicy struct {
	// Hosts lists allowed host names; "*.example.com" matches any subdomain.
	Hosts []string
	// AllowPrivate permits loopback, private and link-local addresses.
	AllowPrivate bool
}

var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

// Check reports whether ref may be fetched.
func (p AvatarPolicy) Check(ref string) error {
	u, err := url.Parse(ref)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: not an http reference", ErrUnsupportedAvatar)
	}
	if u.User != nil {
		return fmt.Errorf("%w: credentials in reference", ErrAvatarNotAllowed)
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if !p.hostAllowed(host) {
		return fmt.Errorf("%w: host %q", ErrAvatarNotAllowed, host)
	}
	if ip := net.ParseIP(host); ip != nil && !p.AllowPrivate && blockedIP(ip) {
		return fmt.Errorf("%w: address %s", ErrAvatarNotAllowed, ip)
	}
	return nil
}

func (p AvatarPolicy) hostAllowed(host string) bool {
	if host == "" {
		return false
	}
	for _, h := range p.Hosts {
		h = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(h)), ".")
		switch {
		case h == "":
		case strings.HasPrefix(h, "*."):
			if strings.HasSuffix(host, h[1:]) && len(host) > len(h)-1 {
				return true
			}
		case h == host:
			return true
		}
	}
	return false
}

// control runs on every dialled address after name resolution, so names that
// resolve to internal addresses are refused as well.
func (p AvatarPolicy) control(_, address string, _ syscall.RawConn) error {
	if p.AllowPrivate {
		return nil
	}
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAvatarNotAllowed, err)
	}
	ip := net.ParseIP(host)
	if ip == nil || blockedIP(ip) {
		return fmt.Errorf("%w: address %s", ErrAvatarNotAllowed, host)
	}
	return nil
}

func blockedIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() || ip.IsMulticast() {
		return true
	}
	if addr, ok := netip.AddrFromSlice(ip); ok && sharedAddressSpace.Contains(addr.Unmap()) {
		return true
	}
	return false
}
