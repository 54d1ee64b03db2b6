package main

import "flag"

var addressFile = flag.String(
	"config.addresses", "/etc/pubaddr/addresses.yaml",
	"Public address file; if absent, public addressing is disabled and every event is a no-op")
