package linuxnet

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/miekg/dns"

	"github.com/radio-control/netctl/internal/netaddr"
)

// DefaultResolvConf is the system resolver file.
const DefaultResolvConf = "/etc/resolv.conf"

// MaxNameservers is the number of nameserver lines the libc resolver honours.
const MaxNameservers = 3

// ResolvConf implements adapter.IDNSResolver over a resolv.conf file. Slot n
// is the n-th nameserver line. Addresses are big-endian.
type ResolvConf struct {
	path string
	mu   sync.Mutex
}

// NewResolvConf reads and writes path; empty means DefaultResolvConf.
func NewResolvConf(path string) *ResolvConf {
	if path == "" {
		path = DefaultResolvConf
	}
	return &ResolvConf{path: path}
}

// Path returns the file in use.
func (r *ResolvConf) Path() string { return r.path }

// ByteOrder is always big-endian.
func (r *ResolvConf) ByteOrder() netaddr.ByteOrder { return netaddr.BigEndian }

// DNSServer returns the IPv4 server in slot, or 0.0.0.0 when the slot is
// empty or holds an IPv6 server.
func (r *ResolvConf) DNSServer(ctx context.Context, slot int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if slot < 0 || slot >= MaxNameservers {
		return nil, fmt.Errorf("SLOT_OUT_OF_RANGE: slot %d", slot)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	servers, err := r.servers()
	if err != nil {
		return nil, err
	}
	if slot >= len(servers) {
		return netaddr.Encode(netaddr.Unspecified, netaddr.BigEndian), nil
	}
	a, err := netaddr.FromIP(net.ParseIP(servers[slot]))
	if err != nil {
		return netaddr.Encode(netaddr.Unspecified, netaddr.BigEndian), nil
	}
	return netaddr.Encode(a, netaddr.BigEndian), nil
}

// SetDNSServer rewrites the nameserver in slot and keeps every other line.
// Writing 0.0.0.0 into the last slot removes it.
func (r *ResolvConf) SetDNSServer(ctx context.Context, slot int, raw []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if slot < 0 || slot >= MaxNameservers {
		return fmt.Errorf("SLOT_OUT_OF_RANGE: slot %d", slot)
	}
	a, err := netaddr.Decode(raw, netaddr.BigEndian)
	if err != nil {
		return fmt.Errorf("OUT_OF_RANGE: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	servers, err := r.servers()
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	for len(servers) <= slot {
		servers = append(servers, netaddr.Unspecified.String())
	}
	servers[slot] = a.String()
	for len(servers) > 0 && servers[len(servers)-1] == netaddr.Unspecified.String() {
		servers = servers[:len(servers)-1]
	}
	return r.write(servers)
}

// servers parses the nameserver list with the dns package's resolv.conf
// reader. A missing file reads as no servers.
func (r *ResolvConf) servers() ([]string, error) {
	cfg, err := dns.ClientConfigFromFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", r.path, err)
	}
	return cfg.Servers, nil
}

// write replaces the nameserver lines in place and renames a temporary file
// over the original.
func (r *ResolvConf) write(servers []string) error {
	old, err := os.ReadFile(r.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read %s: %w", r.path, err)
	}

	var buf bytes.Buffer
	written := false
	emit := func() {
		for _, s := range servers {
			fmt.Fprintf(&buf, "nameserver %s\n", s)
		}
		written = true
	}

	sc := bufio.NewScanner(bytes.NewReader(old))
	for sc.Scan() {
		line := sc.Text()
		fields := strings.Fields(line)
		if len(fields) > 0 && fields[0] == "nameserver" {
			if !written {
				emit()
			}
			continue
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	if !written {
		emit()
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".resolv.conf-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", r.path, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", r.path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", r.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", r.path, err)
	}
	return os.Rename(tmp.Name(), r.path)
}
