package probe

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeResolver struct {
	ips   []net.IP
	ipErr error
	cname string
	ns    []*net.NS
}

func (f fakeResolver) LookupIP(context.Context, string, string) ([]net.IP, error) {
	return f.ips, f.ipErr
}
func (f fakeResolver) LookupCNAME(context.Context, string) (string, error) {
	if f.cname == "" {
		return "", errors.New("no cname")
	}
	return f.cname, nil
}
func (f fakeResolver) LookupNS(context.Context, string) ([]*net.NS, error) {
	if len(f.ns) == 0 {
		return nil, errors.New("no ns")
	}
	return f.ns, nil
}

func TestClassifyHost(t *testing.T) {
	notFound := &net.DNSError{Err: "no such host", Name: "x", IsNotFound: true}
	temp := &net.DNSError{Err: "server misbehaving", Name: "x", IsTemporary: true}

	cases := []struct {
		name string
		host string
		r    fakeResolver
		want string
	}{
		{"empty", "", fakeResolver{}, DNSInvalidName},
		{"url not host", "https://x", fakeResolver{}, DNSInvalidName},
		{"ip literal", "10.0.0.1", fakeResolver{}, DNSResolves},
		{"resolves", "example.com", fakeResolver{ips: []net.IP{net.ParseIP("1.2.3.4")}}, DNSResolves},
		{"nxdomain", "nope.example", fakeResolver{ipErr: notFound}, DNSNXDomain},
		{"ns but no A", "example.com", fakeResolver{ipErr: notFound, ns: []*net.NS{{Host: "ns1.example.com."}}}, DNSNoARecord},
		{"servfail", "example.com", fakeResolver{ipErr: temp}, DNSServfail},
	}
	for _, c := range cases {
		got := ClassifyHost(context.Background(), c.r, c.host)
		assert.Equal(t, c.want, got.Class, c.name)
	}
}

func TestClassifyHost_CollectsDetails(t *testing.T) {
	got := ClassifyHost(context.Background(), fakeResolver{
		ips:   []net.IP{net.ParseIP("1.2.3.4")},
		cname: "edge.cdn.net.",
		ns:    []*net.NS{{Host: "ns1.example.com."}},
	}, "www.example.com")
	assert.Equal(t, "edge.cdn.net", got.CNAME)
	assert.Equal(t, []string{"ns1.example.com"}, got.Nameservers)
}
