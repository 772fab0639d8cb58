package survey

import (
	"strconv"
	"strings"
)

// SecondsPerDay is the length of a survey day.
const SecondsPerDay = 24 * 60 * 60

// ParseClock converts "HH:MM:SS" into seconds after midnight.
func ParseClock(s string) (int32, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, &TimestampError{Value: s, Reason: "expected HH:MM:SS"}
	}

	limits := [3]uint64{24, 60, 60}
	names := [3]string{"hours", "minutes", "seconds"}
	var v [3]uint64
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return 0, &TimestampError{Value: s, Reason: names[i] + " is not a number"}
		}
		if n >= limits[i] {
			return 0, &TimestampError{Value: s, Reason: names[i] + " out of range"}
		}
		v[i] = n
	}
	return int32((v[0]*60+v[1])*60 + v[2]), nil
}

// FormatClock is the inverse of ParseClock for values in [0, SecondsPerDay).
func FormatClock(secs int32) string {
	h, m, s := secs/3600, secs/60%60, secs%60
	return pad2(h) + ":" + pad2(m) + ":" + pad2(s)
}

func pad2(n int32) string {
	if n < 10 {
		return "0" + strconv.Itoa(int(n))
	}
	return strconv.Itoa(int(n))
}
