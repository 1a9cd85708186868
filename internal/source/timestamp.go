package source

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// ParseTime parses a timestamp cell: unix seconds or a datetime such as
// RFC3339, "2006-01-02 15:04:05" or "2006-01-02". Values without a zone are
// read as UTC.
func ParseTime(input string) (time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	var value any = input
	if secs, err := cast.ToInt64E(input); err == nil {
		value = secs
	}
	t, err := cast.ToTimeInDefaultLocationE(value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", input, err)
	}
	return t.UTC(), nil
}
