// Package config reads the public address file that tells this node which
// client-visible addresses it may host and on which interfaces. A missing
// file means public addressing is not configured on this node.
package config

import (
	"fmt"
	"net"
	"os"
	"sort"

	"gopkg.in/yaml.v2"
)

// A PublicAddress is a client-visible virtual address that cluster members
// take over and release. Identity is the address value; the authoritative
// interface binding lives in the kernel, Interface is only the configured
// target.
type PublicAddress struct {
	IP        net.IP
	PrefixLen int
	Interface string
}

func (a PublicAddress) String() string {
	return fmt.Sprintf("%v/%d", a.IP, a.PrefixLen)
}

func (a PublicAddress) IsIPv6() bool {
	return a.IP.To4() == nil
}

// Options are the administrative knobs that apply to every event, passed
// explicitly to the dispatcher rather than read from ambient state.
type Options struct {
	// Whether a node with some but not all configured interfaces up is
	// still reported healthy.
	PartialOnline bool `yaml:"partial_online"`

	// Whether init should enable kernel ARP filtering so the node answers
	// ARP only on the interface owning the address.
	ARPFilter bool `yaml:"arp_filter"`
}

type Config struct {
	Addresses []PublicAddress
	Options   Options
}

type addressFile struct {
	Options   Options        `yaml:"options"`
	Addresses []addressEntry `yaml:"addresses"`
}

type addressEntry struct {
	Address   string `yaml:"address"`
	Interface string `yaml:"interface"`
}

// Load reads the address file at path. A nonexistent file is not an error:
// it returns (nil, nil), meaning public addressing is disabled.
func Load(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: reading %q: %w", path, err)
	}
	return parse(buf)
}

func parse(buf []byte) (*Config, error) {
	f := addressFile{Options: Options{ARPFilter: true}}
	if err := yaml.UnmarshalStrict(buf, &f); err != nil {
		return nil, fmt.Errorf("config: bad address file: %w", err)
	}

	cfg := &Config{Options: f.Options}
	for _, e := range f.Addresses {
		ip, ipnet, err := net.ParseCIDR(e.Address)
		if err != nil {
			return nil, fmt.Errorf("config: bad address %q: %w", e.Address, err)
		}
		if e.Interface == "" {
			return nil, fmt.Errorf("config: address %q has no interface", e.Address)
		}
		prefixLen, _ := ipnet.Mask.Size()
		cfg.Addresses = append(cfg.Addresses, PublicAddress{
			IP:        ip,
			PrefixLen: prefixLen,
			Interface: e.Interface,
		})
	}
	return cfg, nil
}

// Interfaces returns the sorted set of interfaces that carry at least one
// configured public address.
func (c *Config) Interfaces() []string {
	seen := make(map[string]bool)
	var names []string
	for _, a := range c.Addresses {
		if !seen[a.Interface] {
			seen[a.Interface] = true
			names = append(names, a.Interface)
		}
	}
	sort.Strings(names)
	return names
}
