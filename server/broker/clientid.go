package broker

import (
	"fmt"
	"os"
	"sync"
	"time"

	sf "github.com/tinode/snowflake"
)

// Generator of process-unique client id suffixes. Two connections
// sharing a bare username as client id would steal each other's broker
// session; snowflake suffixes keep them distinct.
var idGen struct {
	sync.Mutex
	seq *sf.SnowFlake
}

// ClientID derives a broker client id from a stable prefix (usually the
// username) and a unique suffix.
func ClientID(prefix string) string {
	idGen.Lock()
	defer idGen.Unlock()

	if idGen.seq == nil {
		seq, err := sf.NewSnowFlake(uint32(os.Getpid() & 1023))
		if err != nil {
			// No generator; fall back to wall clock. Good enough for a
			// single connection being opened at startup.
			return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
		}
		idGen.seq = seq
	}

	id, err := idGen.seq.Next()
	if err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%x", prefix, id)
}
