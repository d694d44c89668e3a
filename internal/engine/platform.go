package engine

import (
	"encoding/xml"
	"fmt"

	"github.com/wrenchsim/daemon/internal/model"
)

// DefaultCores and DefaultFlopRate are used for a host declared without
// explicit capacity attributes.
const (
	DefaultCores    = 8
	DefaultFlopRate = 1e9
)

type platformXML struct {
	Hosts []hostXML `xml:"host"`
}

type hostXML struct {
	ID       string  `xml:"id,attr"`
	Cores    int     `xml:"cores,attr"`
	FlopRate float64 `xml:"flop_rate,attr"`
}

// Platform is the static description of simulated hosts, loaded once at
// session launch and never mutated afterward.
type Platform struct {
	hosts map[string]model.Host
	order []string
}

// LoadPlatform parses a platform XML document into a Platform.
func LoadPlatform(xmlBody []byte) (*Platform, error) {
	var doc platformXML
	if err := xml.Unmarshal(xmlBody, &doc); err != nil {
		return nil, fmt.Errorf("parse platform xml: %w", err)
	}
	if len(doc.Hosts) == 0 {
		return nil, fmt.Errorf("platform declares no hosts")
	}

	p := &Platform{hosts: make(map[string]model.Host, len(doc.Hosts))}
	for _, h := range doc.Hosts {
		if h.ID == "" {
			return nil, fmt.Errorf("platform host missing id attribute")
		}
		if _, dup := p.hosts[h.ID]; dup {
			return nil, fmt.Errorf("platform declares host %q more than once", h.ID)
		}
		cores := h.Cores
		if cores <= 0 {
			cores = DefaultCores
		}
		flopRate := h.FlopRate
		if flopRate <= 0 {
			flopRate = DefaultFlopRate
		}
		p.hosts[h.ID] = model.Host{Name: h.ID, Cores: cores, FlopRate: flopRate}
		p.order = append(p.order, h.ID)
	}
	return p, nil
}

// HostExists reports whether name names a host on this platform.
func (p *Platform) HostExists(name string) bool {
	_, ok := p.hosts[name]
	return ok
}

// Host returns the host description for name.
func (p *Platform) Host(name string) (model.Host, bool) {
	h, ok := p.hosts[name]
	return h, ok
}

// Hostnames returns every host name in the order declared in the platform
// document.
func (p *Platform) Hostnames() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}
