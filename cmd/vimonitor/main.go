// Command vimonitor watches the exchange's volatility interruption feed and
// streams trade ticks for every instrument while it is under VI.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
