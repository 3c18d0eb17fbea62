package bot

import (
	"fmt"
	"strconv"
	"strings"
)

// Item counts accepted by /latest.
const (
	DefaultLatest = 5
	MaxLatest     = 20
)

// LatestArgs holds the parsed arguments of /latest.
type LatestArgs struct {
	Category string
	Limit    int
}

// ParseLatestArgs parses arguments for /latest.
// Format: [category words...] [n]
func ParseLatestArgs(args string) (LatestArgs, error) {
	parts := strings.Fields(args)
	la := LatestArgs{Limit: DefaultLatest}

	if len(parts) > 0 {
		last := parts[len(parts)-1]
		if n, err := strconv.Atoi(last); err == nil {
			if n < 1 || n > MaxLatest {
				return LatestArgs{}, fmt.Errorf("count must be between 1 and %d", MaxLatest)
			}
			la.Limit = n
			parts = parts[:len(parts)-1]
		}
	}

	la.Category = strings.Join(parts, " ")
	return la, nil
}
