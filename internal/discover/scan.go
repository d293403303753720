// Package discover finds hosts accepting SSH connections in an IPv4 range.
package discover

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// minPrefixBits bounds a scan to a /16.
const minPrefixBits = 16

// Scanner probes addresses for an open TCP port.
type Scanner struct {
	Port        int
	Concurrency int
	Timeout     time.Duration
}

// NewScanner returns a Scanner for port 22 with 64 concurrent dials and
// a one second dial timeout.
func NewScanner() *Scanner {
	return &Scanner{Port: 22, Concurrency: 64, Timeout: time.Second}
}

// Addresses lists the usable host addresses of an IPv4 prefix. The network
// and broadcast addresses are skipped except for /31 and /32.
func Addresses(cidr string) ([]netip.Addr, error) {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return nil, fmt.Errorf("invalid CIDR %q: %w", cidr, err)
	}
	prefix = prefix.Masked()
	if !prefix.Addr().Is4() {
		return nil, fmt.Errorf("invalid CIDR %q: only IPv4 ranges are supported", cidr)
	}
	if prefix.Bits() < minPrefixBits {
		return nil, fmt.Errorf("CIDR %q is too large, use /%d or smaller", cidr, minPrefixBits)
	}

	var addrs []netip.Addr
	for a := prefix.Addr(); a.IsValid() && prefix.Contains(a); a = a.Next() {
		addrs = append(addrs, a)
	}
	if prefix.Bits() <= 30 {
		addrs = addrs[1 : len(addrs)-1]
	}
	return addrs, nil
}

// Scan returns the addresses in cidr that accept a TCP connection on the
// scanner's port, in address order.
func (s *Scanner) Scan(ctx context.Context, cidr string) ([]string, error) {
	addrs, err := Addresses(cidr)
	if err != nil {
		return nil, err
	}

	open := make([]bool, len(addrs))
	var g errgroup.Group
	g.SetLimit(max(s.Concurrency, 1))

	port := strconv.Itoa(s.Port)
	for i, addr := range addrs {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			dialCtx, cancel := context.WithTimeout(ctx, s.Timeout)
			defer cancel()

			var d net.Dialer
			conn, err := d.DialContext(dialCtx, "tcp", net.JoinHostPort(addr.String(), port))
			if err != nil {
				return nil
			}
			conn.Close()
			open[i] = true
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var found []string
	for i, ok := range open {
		if ok {
			found = append(found, addrs[i].String())
		}
	}
	logrus.WithFields(logrus.Fields{"cidr": cidr, "port": s.Port, "scanned": len(addrs), "found": len(found)}).Debug("scan complete")
	return found, nil
}
