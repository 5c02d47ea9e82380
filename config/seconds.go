package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Seconds is a duration read as integer or fractional seconds ("2", "2.5").
// Go duration strings ("2500ms") are accepted too.
type Seconds time.Duration

// Duration converts to time.Duration.
func (s Seconds) Duration() time.Duration {
	return time.Duration(s)
}

// Decode implements envconfig.Decoder.
func (s *Seconds) Decode(value string) error {
	d, err := ParseSeconds(value)
	if err != nil {
		return err
	}
	*s = Seconds(d)
	return nil
}

// UnmarshalText lets Seconds be used with text based decoders.
func (s *Seconds) UnmarshalText(text []byte) error {
	return s.Decode(string(text))
}

func (s Seconds) String() string {
	return strconv.FormatFloat(time.Duration(s).Seconds(), 'f', -1, 64)
}

// maxSeconds is the first float seconds value time.Duration cannot hold.
const maxSeconds = float64(math.MaxInt64) / float64(time.Second)

// ParseSeconds parses a timeout value.
func ParseSeconds(value string) (time.Duration, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return 0, fmt.Errorf("empty duration")
	}

	if f, err := strconv.ParseFloat(v, 64); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("invalid duration %q", value)
		}
		if f < 0 {
			return 0, fmt.Errorf("negative duration %q", value)
		}
		if f >= maxSeconds {
			return 0, fmt.Errorf("duration %q out of range", value)
		}
		return time.Duration(f * float64(time.Second)), nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", value)
	}
	return d, nil
}
