package state

var (
	// DBG_debug serves pprof and expvar on 0.0.0.0:6060
	DBG_debug = false
	DBG_trace = false
	// DBG_log_packets logs every dispatched packet
	DBG_log_packets = false
	DBG_log_routes  = false
	// DBG_decrement_ttl makes routers decrement the TTL of IPv4 datagrams they forward
	// over a link and drop expired ones. Off by default, forwarded Data is left untouched.
	DBG_decrement_ttl = false
)
