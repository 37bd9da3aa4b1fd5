// Package linuxnet is the "linux" driver: interface addresses and the
// default route through netlink, leases through a DHCPv4 client, and the
// DNS slots through resolv.conf.
package linuxnet
