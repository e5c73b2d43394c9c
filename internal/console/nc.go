package console

import "net"

// ncTarget turns a listen address into "host port" for the nc hint.
func ncTarget(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return host + " " + port
}
