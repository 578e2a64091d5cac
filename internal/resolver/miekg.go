package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	mdns "github.com/miekg/dns"
)

// Config contains configuration for DNSResolver.
type Config struct {
	// Nameservers to query (e.g. "8.8.8.8:53"). If empty, servers from
	// /etc/resolv.conf are used, falling back to public resolvers.
	Nameservers []string

	// Timeout bounds a single exchange with one server. Default is 5 seconds.
	Timeout time.Duration

	// Retries is the number of extra passes over the nameserver list after a
	// temporary failure.
	Retries int
}

// DNSResolver implements Resolver with github.com/miekg/dns.
type DNSResolver struct {
	config    Config
	client    *mdns.Client
	tcpClient *mdns.Client
}

// NewDNSResolver creates a resolver, filling in defaults for unset fields.
func NewDNSResolver(config Config) *DNSResolver {
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if config.Retries < 0 {
		config.Retries = 0
	}
	if len(config.Nameservers) == 0 {
		config.Nameservers = systemNameservers()
	} else {
		config.Nameservers = withPorts(config.Nameservers)
	}

	return &DNSResolver{
		config:    config,
		client:    &mdns.Client{Timeout: config.Timeout},
		tcpClient: &mdns.Client{Net: "tcp", Timeout: config.Timeout},
	}
}

// Config returns the resolver's effective configuration.
func (r *DNSResolver) Config() Config {
	return r.config
}

func systemNameservers() []string {
	conf, err := mdns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(conf.Servers) == 0 {
		return []string{"8.8.8.8:53", "1.1.1.1:53"}
	}
	servers := make([]string, 0, len(conf.Servers))
	for _, s := range conf.Servers {
		servers = append(servers, net.JoinHostPort(s, conf.Port))
	}
	return servers
}

func withPorts(servers []string) []string {
	out := make([]string, 0, len(servers))
	for _, s := range servers {
		if _, _, err := net.SplitHostPort(s); err != nil {
			s = net.JoinHostPort(s, "53")
		}
		out = append(out, s)
	}
	return out
}

// LookupTXT queries TXT records for name.
func (r *DNSResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	resp, err := r.query(ctx, name, mdns.TypeTXT)
	if err != nil {
		return nil, err
	}

	var records []string
	for _, rr := range resp.Answer {
		if txt, ok := rr.(*mdns.TXT); ok {
			// A record split into several character-strings is one logical value.
			records = append(records, strings.Join(txt.Txt, ""))
		}
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records, nil
}

// ednsBufferSize is the UDP payload size advertised in the OPT record.
const ednsBufferSize = 4096

func (r *DNSResolver) query(ctx context.Context, name string, qtype uint16) (*mdns.Msg, error) {
	m := new(mdns.Msg)
	m.SetQuestion(ensureAbsolute(name), qtype)
	m.RecursionDesired = true
	m.SetEdns0(ednsBufferSize, false)

	attempts := (r.config.Retries + 1) * len(r.config.Nameservers)
	var lastErr error
	for i := 0; i < attempts; i++ {
		server := r.config.Nameservers[i%len(r.config.Nameservers)]
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, ErrTimeout
			}
			return nil, err
		}

		resp, err := r.exchange(ctx, m, server, attempts-i)
		if err != nil {
			lastErr = err
			continue
		}

		switch resp.Rcode {
		case mdns.RcodeSuccess:
			return resp, nil
		case mdns.RcodeNameError:
			return nil, ErrNotFound
		case mdns.RcodeServerFailure:
			lastErr = ErrServFail
		case mdns.RcodeRefused:
			lastErr = ErrRefused
		default:
			lastErr = fmt.Errorf("dns: unexpected rcode %s", mdns.RcodeToString[resp.Rcode])
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrServFail
}

// exchange sends m to one server over UDP, repeating over TCP when the reply
// is truncated. The exchange gets an equal share of what is left of the
// caller's deadline so later servers still get a turn.
func (r *DNSResolver) exchange(ctx context.Context, m *mdns.Msg, server string, attemptsLeft int) (*mdns.Msg, error) {
	budget := r.config.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		budget = min(budget, time.Until(deadline)/time.Duration(attemptsLeft))
	}
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	resp, _, err := r.client.ExchangeContext(ctx, m, server)
	if err != nil {
		return nil, classifyExchangeError(err)
	}
	if resp.Rcode == mdns.RcodeSuccess && resp.Truncated {
		resp, _, err = r.tcpClient.ExchangeContext(ctx, m, server)
		if err != nil {
			return nil, classifyExchangeError(err)
		}
	}
	return resp, nil
}

func classifyExchangeError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	return fmt.Errorf("dns query failed: %w", err)
}
