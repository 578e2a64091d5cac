package resolver

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	mdns "github.com/miekg/dns"
)

// startTestServer runs an in-process UDP DNS server answering from zone.
// Names listed in servfail answer SERVFAIL; unknown names get NXDOMAIN; names
// present with no TXT data get NOERROR/NODATA.
func startTestServer(t *testing.T, zone map[string][][]string, servfail ...string) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	handler := mdns.HandlerFunc(func(w mdns.ResponseWriter, req *mdns.Msg) {
		m := new(mdns.Msg)
		m.SetReply(req)
		name := strings.ToLower(req.Question[0].Name)
		for _, s := range servfail {
			if s == name {
				m.Rcode = mdns.RcodeServerFailure
				_ = w.WriteMsg(m)
				return
			}
		}
		records, ok := zone[name]
		if !ok {
			m.Rcode = mdns.RcodeNameError
			_ = w.WriteMsg(m)
			return
		}
		for _, txt := range records {
			m.Answer = append(m.Answer, &mdns.TXT{
				Hdr: mdns.RR_Header{Name: name, Rrtype: mdns.TypeTXT, Class: mdns.ClassINET, Ttl: 60},
				Txt: txt,
			})
		}
		_ = w.WriteMsg(m)
	})

	started := make(chan struct{})
	srv := &mdns.Server{PacketConn: pc, Handler: handler, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = srv.ActivateAndServe() }()
	<-started
	t.Cleanup(func() { _ = srv.Shutdown() })

	return pc.LocalAddr().String()
}

func TestDNSResolverLookupTXT(t *testing.T) {
	addr := startTestServer(t, map[string][][]string{
		"example.com.":        {{"v=spf1 include:_spf.example.net ", "~all"}, {"google-site-verification=abc"}},
		"nodata.example.com.": {},
	}, "broken.example.com.")

	r := NewDNSResolver(Config{Nameservers: []string{addr}, Timeout: time.Second})

	records, err := r.LookupTXT(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("LookupTXT returned error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d: %v", len(records), records)
	}
	if records[0] != "v=spf1 include:_spf.example.net ~all" {
		t.Fatalf("character-strings not joined: %q", records[0])
	}

	if _, err := r.LookupTXT(context.Background(), "missing.example.com"); !IsNotFound(err) {
		t.Fatalf("expected ErrNotFound for NXDOMAIN, got %v", err)
	}
	if _, err := r.LookupTXT(context.Background(), "nodata.example.com"); !IsNotFound(err) {
		t.Fatalf("expected ErrNotFound for NODATA, got %v", err)
	}
	if _, err := r.LookupTXT(context.Background(), "broken.example.com"); !errors.Is(err, ErrServFail) {
		t.Fatalf("expected ErrServFail, got %v", err)
	}
}

// startTruncatingServer answers every UDP query with an empty truncated reply
// and serves zone over TCP on the same port.
func startTruncatingServer(t *testing.T, zone map[string][]string) (string, *atomic.Bool) {
	t.Helper()

	var pc net.PacketConn
	var ln net.Listener
	for attempt := 0; attempt < 10 && ln == nil; attempt++ {
		udp, err := net.ListenPacket("udp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen udp: %v", err)
		}
		tcp, err := net.Listen("tcp", udp.LocalAddr().String())
		if err != nil {
			_ = udp.Close()
			continue
		}
		pc, ln = udp, tcp
	}
	if ln == nil {
		t.Fatal("could not bind udp and tcp on one port")
	}

	sawEDNS := new(atomic.Bool)
	handler := mdns.HandlerFunc(func(w mdns.ResponseWriter, req *mdns.Msg) {
		m := new(mdns.Msg)
		m.SetReply(req)
		if _, udp := w.RemoteAddr().(*net.UDPAddr); udp {
			if req.IsEdns0() != nil {
				sawEDNS.Store(true)
			}
			m.Truncated = true
			_ = w.WriteMsg(m)
			return
		}
		name := strings.ToLower(req.Question[0].Name)
		for _, txt := range zone[name] {
			m.Answer = append(m.Answer, &mdns.TXT{
				Hdr: mdns.RR_Header{Name: name, Rrtype: mdns.TypeTXT, Class: mdns.ClassINET, Ttl: 60},
				Txt: []string{txt},
			})
		}
		_ = w.WriteMsg(m)
	})

	for _, srv := range []*mdns.Server{
		{PacketConn: pc, Handler: handler},
		{Listener: ln, Handler: handler},
	} {
		srv := srv
		started := make(chan struct{})
		srv.NotifyStartedFunc = func() { close(started) }
		go func() { _ = srv.ActivateAndServe() }()
		<-started
		t.Cleanup(func() { _ = srv.Shutdown() })
	}

	return pc.LocalAddr().String(), sawEDNS
}

func TestDNSResolverRetriesTruncatedOverTCP(t *testing.T) {
	addr, sawEDNS := startTruncatingServer(t, map[string][]string{
		"example.com.": {"v=spf1 include:_spf.example.net -all", "google-site-verification=" + strings.Repeat("a", 200)},
	})
	r := NewDNSResolver(Config{Nameservers: []string{addr}, Timeout: time.Second})

	records, err := r.LookupTXT(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("LookupTXT returned error: %v", err)
	}
	if len(records) != 2 || records[0] != "v=spf1 include:_spf.example.net -all" {
		t.Fatalf("unexpected records %v", records)
	}
	if !sawEDNS.Load() {
		t.Fatal("UDP query should advertise an EDNS0 buffer size")
	}
}

func TestDNSResolverSharesDeadlineAcrossServers(t *testing.T) {
	// Accepts queries and never answers.
	dead, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = dead.Close() })

	live := startTestServer(t, map[string][][]string{
		"example.com.": {{"v=spf1 -all"}},
	})
	r := NewDNSResolver(Config{
		Nameservers: []string{dead.LocalAddr().String(), live},
		Timeout:     5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	records, err := r.LookupTXT(ctx, "example.com")
	if err != nil {
		t.Fatalf("second nameserver should answer within the deadline, got %v", err)
	}
	if len(records) != 1 || records[0] != "v=spf1 -all" {
		t.Fatalf("unexpected records %v", records)
	}
}

func TestDNSResolverDefaults(t *testing.T) {
	r := NewDNSResolver(Config{Nameservers: []string{"192.0.2.1"}})
	cfg := r.Config()
	if cfg.Timeout != 5*time.Second {
		t.Errorf("default timeout = %v, want 5s", cfg.Timeout)
	}
	if cfg.Nameservers[0] != "192.0.2.1:53" {
		t.Errorf("nameserver port not defaulted: %v", cfg.Nameservers)
	}

	sys := NewDNSResolver(Config{})
	if len(sys.Config().Nameservers) == 0 {
		t.Error("expected system or fallback nameservers")
	}
}

func TestDNSResolverExpiredContext(t *testing.T) {
	r := NewDNSResolver(Config{Nameservers: []string{"127.0.0.1:1"}, Timeout: time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	if _, err := r.LookupTXT(ctx, "example.com"); !IsTimeout(err) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestConvertError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "not found", err: &net.DNSError{IsNotFound: true}, want: ErrNotFound},
		{name: "timeout", err: &net.DNSError{IsTimeout: true}, want: ErrTimeout},
		{name: "temporary", err: &net.DNSError{IsTemporary: true}, want: ErrServFail},
		{name: "deadline", err: context.DeadlineExceeded, want: ErrTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := convertError(tt.err); !errors.Is(got, tt.want) {
				t.Fatalf("convertError() = %v, want %v", got, tt.want)
			}
		})
	}

	other := convertError(errors.New("boom"))
	if !strings.Contains(other.Error(), "boom") {
		t.Fatalf("unexpected wrapped error: %v", other)
	}
}

func TestThrottledPassThroughAndDeadline(t *testing.T) {
	mock := &MockResolver{TXT: map[string][]string{"example.com.": {"v=spf1 -all"}}}

	if got := NewThrottled(mock, 0, 0); got != Resolver(mock) {
		t.Fatal("non-positive qps should return the wrapped resolver")
	}

	throttled := NewThrottled(mock, 0.001, 1)
	if _, err := throttled.LookupTXT(context.Background(), "example.com"); err != nil {
		t.Fatalf("first lookup should use the burst token: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := throttled.LookupTXT(ctx, "example.com"); !IsTimeout(err) {
		t.Fatalf("expected timeout while waiting for a token, got %v", err)
	}
	if mock.Calls() != 1 {
		t.Fatalf("throttled lookup should not reach the resolver, calls=%d", mock.Calls())
	}
}

func TestMockResolver(t *testing.T) {
	mock := &MockResolver{
		TXT:  map[string][]string{"a.example.": {"x"}},
		Fail: []string{"b.example."},
		Slow: []string{"c.example."},
	}

	if got, err := mock.LookupTXT(context.Background(), "a.example"); err != nil || got[0] != "x" {
		t.Fatalf("unexpected result %v, %v", got, err)
	}
	if _, err := mock.LookupTXT(context.Background(), "b.example"); !errors.Is(err, ErrServFail) {
		t.Fatalf("expected ErrServFail, got %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := mock.LookupTXT(ctx, "c.example"); !IsTimeout(err) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if _, err := mock.LookupTXT(context.Background(), "d.example"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}
