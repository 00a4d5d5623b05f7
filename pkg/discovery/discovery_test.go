package discovery

import (
	"net"
	"strings"
	"testing"

	"github.com/grandcat/zeroconf"
	"github.com/stretchr/testify/assert"
)

func TestServiceType(t *testing.T) {
	a := ServiceType("lab")
	assert.Equal(t, a, ServiceType("lab"))
	assert.NotEqual(t, a, ServiceType("other"))
	assert.True(t, strings.HasPrefix(a, "_p2p-"))
	assert.True(t, strings.HasSuffix(a, "._tcp"))
	assert.Len(t, a, len("_p2p-")+16+len("._tcp"))
}

func TestPeersFromEntry(t *testing.T) {
	entry := zeroconf.NewServiceEntry("laptop", ServiceType("lab"), domain)
	entry.Port = 5005
	entry.Text = []string{"app=p2p-overlay", "peerid=p05"}
	entry.AddrIPv4 = []net.IP{net.ParseIP("192.168.1.5"), net.ParseIP("10.0.0.5")}

	assert.Equal(t, []Peer{
		{ID: "p05", IP: "192.168.1.5", Port: 5005},
		{ID: "p05", IP: "10.0.0.5", Port: 5005},
	}, peersFromEntry(entry))
}

func TestPeersFromEntryFallsBackToInstance(t *testing.T) {
	entry := zeroconf.NewServiceEntry("p07", ServiceType("lab"), domain)
	entry.Port = 5007
	entry.AddrIPv4 = []net.IP{net.ParseIP("192.168.1.7")}

	assert.Equal(t, []Peer{{ID: "p07", IP: "192.168.1.7", Port: 5007}}, peersFromEntry(entry))
}
