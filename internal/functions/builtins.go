package functions

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// BuiltinPrefix addresses the built-in function library.
const BuiltinPrefix = "rehearse"

const defaultDateFormat = "yyyy-MM-dd'T'HH:mm:ss"

// Builtins returns the built-in library bound to the wall clock.
func Builtins() *Library {
	return BuiltinsWithClock(clockwork.NewRealClock())
}

// BuiltinsWithClock returns the built-in library with currentDate reading
// from clock.
func BuiltinsWithClock(clock clockwork.Clock) *Library {
	lib := NewLibrary(BuiltinPrefix)

	lib.Register("concat", func(args []string) (string, error) {
		return strings.Join(args, ""), nil
	})
	lib.Register("upperCase", unary("upperCase", strings.ToUpper))
	lib.Register("lowerCase", unary("lowerCase", strings.ToLower))
	lib.Register("stringLength", unary("stringLength", func(s string) string {
		return strconv.Itoa(len([]rune(s)))
	}))
	lib.Register("escapeXml", unary("escapeXml", func(s string) string {
		var buf bytes.Buffer
		_ = xml.EscapeText(&buf, []byte(s))
		return buf.String()
	}))
	lib.Register("substring", substring)
	lib.Register("sum", sum)
	lib.Register("randomNumber", randomNumber)
	lib.Register("randomString", randomString)
	lib.Register("randomUUID", func(args []string) (string, error) {
		return uuid.NewString(), nil
	})
	lib.Register("currentDate", func(args []string) (string, error) {
		format := defaultDateFormat
		if len(args) > 0 && args[0] != "" {
			format = args[0]
		}
		now := clock.Now()
		if len(args) > 1 {
			offset, err := time.ParseDuration(args[1])
			if err != nil {
				return "", fmt.Errorf("invalid date offset '%s': %w", args[1], err)
			}
			now = now.Add(offset)
		}
		return now.Format(dateLayout(format)), nil
	})

	return lib
}

func unary(name string, fn func(string) string) Func {
	return func(args []string) (string, error) {
		if len(args) != 1 {
			return "", fmt.Errorf("%s expects 1 argument, got %d", name, len(args))
		}
		return fn(args[0]), nil
	}
}

func substring(args []string) (string, error) {
	if len(args) < 2 || len(args) > 3 {
		return "", fmt.Errorf("substring expects 2 or 3 arguments, got %d", len(args))
	}
	runes := []rune(args[0])
	begin, err := strconv.Atoi(args[1])
	if err != nil || begin < 0 || begin > len(runes) {
		return "", fmt.Errorf("invalid begin index '%s'", args[1])
	}
	end := len(runes)
	if len(args) == 3 {
		end, err = strconv.Atoi(args[2])
		if err != nil || end < begin || end > len(runes) {
			return "", fmt.Errorf("invalid end index '%s'", args[2])
		}
	}
	return string(runes[begin:end]), nil
}

func sum(args []string) (string, error) {
	var total float64
	for _, a := range args {
		f, err := strconv.ParseFloat(strings.TrimSpace(a), 64)
		if err != nil {
			return "", fmt.Errorf("sum argument '%s' is not a number", a)
		}
		total += f
	}
	return strconv.FormatFloat(total, 'f', -1, 64), nil
}

// randomNumber(length[, padding]) returns a number with length digits. Without
// padding the first digit is never zero.
func randomNumber(args []string) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("randomNumber expects a length argument")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return "", fmt.Errorf("invalid length '%s'", args[0])
	}
	padding := len(args) > 1 && strings.EqualFold(args[1], "true")

	var b strings.Builder
	for i := 0; i < n; i++ {
		d := rand.IntN(10)
		if i == 0 && !padding && d == 0 {
			d = 1 + rand.IntN(9)
		}
		b.WriteByte(byte('0' + d))
	}
	return b.String(), nil
}

const (
	upperLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerLetters = "abcdefghijklmnopqrstuvwxyz"
	digits       = "0123456789"
)

// randomString(length[, UPPERCASE|LOWERCASE|MIXED[, includeNumbers]])
func randomString(args []string) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("randomString expects a length argument")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return "", fmt.Errorf("invalid length '%s'", args[0])
	}

	alphabet := upperLetters + lowerLetters
	if len(args) > 1 {
		switch strings.ToUpper(args[1]) {
		case "UPPERCASE":
			alphabet = upperLetters
		case "LOWERCASE":
			alphabet = lowerLetters
		case "MIXED", "":
		default:
			return "", fmt.Errorf("unknown letter case '%s'", args[1])
		}
	}
	if len(args) > 2 && strings.EqualFold(args[2], "true") {
		alphabet += digits
	}

	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rand.IntN(len(alphabet))]
	}
	return string(b), nil
}

var dateTokens = strings.NewReplacer(
	"yyyy", "2006",
	"yy", "06",
	"MM", "01",
	"dd", "02",
	"HH", "15",
	"mm", "04",
	"ss", "05",
	"SSS", "000",
	"'T'", "T",
	"Z", "-0700",
)

// dateLayout accepts either a Go reference layout or the common
// yyyy-MM-dd style tokens.
func dateLayout(format string) string {
	if strings.Contains(format, "2006") {
		return format
	}
	return dateTokens.Replace(format)
}
