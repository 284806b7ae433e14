package placeholder

import (
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func builtinGenerators() map[string]genFunc {
	uuidGen := func([]string, *rand.Rand, time.Time) (string, bool) {
		return uuid.NewString(), true
	}
	randomInt := func(args []string, rng *rand.Rand, _ time.Time) (string, bool) {
		lo, hi := intBounds(args, 0, 1000)
		return strconv.FormatInt(lo+rng.Int64N(hi-lo+1), 10), true
	}
	randomBool := func(_ []string, rng *rand.Rand, _ time.Time) (string, bool) {
		return strconv.FormatBool(rng.IntN(2) == 1), true
	}

	return map[string]genFunc{
		"uuid":  uuidGen,
		"uuid4": uuidGen,
		"guid":  uuidGen,

		"timestamp": func(_ []string, _ *rand.Rand, now time.Time) (string, bool) {
			return strconv.FormatInt(now.UnixMilli(), 10), true
		},
		"timestamp_unix": func(_ []string, _ *rand.Rand, now time.Time) (string, bool) {
			return strconv.FormatInt(now.Unix(), 10), true
		},
		"timestamp_iso": func(_ []string, _ *rand.Rand, now time.Time) (string, bool) {
			return now.Format(time.RFC3339Nano), true
		},
		"date": func(_ []string, _ *rand.Rand, now time.Time) (string, bool) {
			return now.Format(time.DateOnly), true
		},
		"time": func(_ []string, _ *rand.Rand, now time.Time) (string, bool) {
			return now.Format(time.TimeOnly), true
		},
		"datetime": func(_ []string, _ *rand.Rand, now time.Time) (string, bool) {
			return now.Format(time.DateTime), true
		},

		"random":     randomInt,
		"random_int": randomInt,
		"random_float": func(args []string, rng *rand.Rand, _ time.Time) (string, bool) {
			lo, hi := floatBounds(args, 0, 100)
			v := decimal.NewFromFloat(lo + rng.Float64()*(hi-lo))
			return v.StringFixed(2), true
		},

		"random_string": func(args []string, rng *rand.Rand, _ time.Time) (string, bool) {
			return pick(letters, length(args, 10), rng), true
		},
		"random_hex": func(args []string, rng *rand.Rand, _ time.Time) (string, bool) {
			return pick(hexDigits, length(args, 16), rng), true
		},
		"random_alphanumeric": func(args []string, rng *rand.Rand, _ time.Time) (string, bool) {
			return pick(letters+digits, length(args, 10), rng), true
		},

		"random_first_name": func(_ []string, rng *rand.Rand, _ time.Time) (string, bool) {
			return firstNames[rng.IntN(len(firstNames))], true
		},
		"random_last_name": func(_ []string, rng *rand.Rand, _ time.Time) (string, bool) {
			return lastNames[rng.IntN(len(lastNames))], true
		},
		"random_name": func(_ []string, rng *rand.Rand, _ time.Time) (string, bool) {
			return firstNames[rng.IntN(len(firstNames))] + " " + lastNames[rng.IntN(len(lastNames))], true
		},
		"random_email": func(_ []string, rng *rand.Rand, _ time.Time) (string, bool) {
			return pick(lowerLetters, 8, rng) + "@" + emailDomains[rng.IntN(len(emailDomains))], true
		},
		"random_username": func(_ []string, rng *rand.Rand, _ time.Time) (string, bool) {
			return pick(lowerLetters+digits, 10, rng), true
		},

		"random_bool":    randomBool,
		"random_boolean": randomBool,
	}
}

// intBounds reads [MAX] or [MIN, MAX]. Unparseable input falls back to the
// defaults; reversed bounds are swapped.
func intBounds(args []string, defLo, defHi int64) (int64, int64) {
	lo, hi := defLo, defHi
	switch len(args) {
	case 1:
		v, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
		if err != nil {
			return defLo, defHi
		}
		hi = v
	case 2:
		a, errA := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
		b, errB := strconv.ParseInt(strings.TrimSpace(args[1]), 10, 64)
		if errA != nil || errB != nil {
			return defLo, defHi
		}
		lo, hi = a, b
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	// keep hi-lo+1 inside int64
	if hi-lo < 0 || hi-lo == math.MaxInt64 {
		return defLo, defHi
	}
	return lo, hi
}

func floatBounds(args []string, defLo, defHi float64) (float64, float64) {
	lo, hi := defLo, defHi
	switch len(args) {
	case 1:
		v, err := strconv.ParseFloat(strings.TrimSpace(args[0]), 64)
		if err != nil {
			return defLo, defHi
		}
		hi = v
	case 2:
		a, errA := strconv.ParseFloat(strings.TrimSpace(args[0]), 64)
		b, errB := strconv.ParseFloat(strings.TrimSpace(args[1]), 64)
		if errA != nil || errB != nil {
			return defLo, defHi
		}
		lo, hi = a, b
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	if !finite(lo) || !finite(hi) || !finite(hi-lo) {
		return defLo, defHi
	}
	return lo, hi
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func length(args []string, def int) int {
	if len(args) == 0 {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil || n <= 0 {
		return def
	}
	return min(n, maxGeneratedLen)
}

func pick(alphabet string, n int, rng *rand.Rand) string {
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		b.WriteByte(alphabet[rng.IntN(len(alphabet))])
	}
	return b.String()
}
