// Package replay feeds GDL90 datagrams captured in pcap or pcapng files
// through the same handler as the live UDP listener. Each datagram carries
// its capture timestamp as the receive time.
package replay
