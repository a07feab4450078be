package connectivity

import (
	"context"
	"net"
	"time"

	"github.com/miekg/dns"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultHostname is resolved by the reachability probe when none is configured.
const DefaultHostname = "radar.arvancloud.com"

// Resolver looks up the addresses of a host. Implementations return an error
// wrapping ErrNotFound when the name does not exist.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// SystemResolver resolves through the operating system configuration.
type SystemResolver struct {
	Resolver *net.Resolver
}

func (r SystemResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	res := r.Resolver
	if res == nil {
		res = net.DefaultResolver
	}
	addrs, err := res.LookupHost(ctx, host)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return nil, errors.Wrapf(ErrNotFound, "lookup %s", host)
		}
		return nil, err
	}
	return addrs, nil
}

// NameserverResolver queries one nameserver directly, bypassing the system
// resolver and its caches.
type NameserverResolver struct {
	Server string // host or host:port
	Client *dns.Client
}

func (r *NameserverResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	server := r.Server
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}
	client := r.Client
	if client == nil {
		client = new(dns.Client)
	}

	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		m := new(dns.Msg)
		m.SetQuestion(dns.Fqdn(host), qtype)
		m.RecursionDesired = true

		in, _, err := client.ExchangeContext(ctx, m, server)
		if err != nil {
			return nil, errors.Wrapf(err, "query %s", server)
		}
		switch in.Rcode {
		case dns.RcodeSuccess:
		case dns.RcodeNameError:
			return nil, errors.Wrapf(ErrNotFound, "lookup %s on %s", host, server)
		default:
			return nil, errors.Errorf("lookup %s on %s: %s", host, server, dns.RcodeToString[in.Rcode])
		}

		var addrs []string
		for _, rr := range in.Answer {
			switch v := rr.(type) {
			case *dns.A:
				addrs = append(addrs, v.A.String())
			case *dns.AAAA:
				addrs = append(addrs, v.AAAA.String())
			}
		}
		if len(addrs) > 0 {
			return addrs, nil
		}
	}
	return nil, errors.Wrapf(ErrNotFound, "lookup %s on %s: no addresses", host, server)
}

// ReachabilityProbe resolves a well-known name as a proxy for Internet access.
type ReachabilityProbe struct {
	Resolver Resolver
	Log      logrus.FieldLogger
}

// Resolve reports whether hostname resolves within timeout. A timeout or a
// not-found answer is a failure; any other resolution error counts as
// success so a local fault never reports the Internet as gone.
func (p *ReachabilityProbe) Resolve(ctx context.Context, hostname string, timeout time.Duration) bool {
	resolver := p.Resolver
	if resolver == nil {
		resolver = SystemResolver{}
	}
	if hostname == "" {
		hostname = DefaultHostname
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type lookup struct {
		addrs []string
		err   error
	}
	res := make(chan lookup, 1)
	go func() {
		addrs, err := resolver.LookupHost(ctx, hostname)
		res <- lookup{addrs: addrs, err: err}
	}()

	select {
	case <-ctx.Done():
		return false
	case r := <-res:
		if r.err == nil {
			return len(r.addrs) > 0
		}
		if ctx.Err() != nil || errors.Is(r.err, ErrNotFound) {
			return false
		}
		logger(p.Log).WithError(r.err).WithField("host", hostname).Debug("resolution error, assuming reachable")
		return true
	}
}

func logger(l logrus.FieldLogger) logrus.FieldLogger {
	if l == nil {
		return logrus.StandardLogger()
	}
	return l
}
