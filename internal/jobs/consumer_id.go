package jobs

import (
	"os"
	"strings"

	"github.com/oklog/ulid/v2"
)

// NewConsumerID returns "<hostname>-<ulid>", unique per process start,
// for the content job consumer group.
func NewConsumerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	host = strings.ReplaceAll(host, " ", "_")
	return host + "-" + strings.ToLower(ulid.Make().String())
}
