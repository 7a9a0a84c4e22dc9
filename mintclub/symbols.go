package mintclub

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

const maxPostSymbolLen = 20

// CoinSymbol derives the creator-coin symbol for a username: the configured
// prefix followed by the uppercased username.
func CoinSymbol(prefix, username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", fmt.Errorf("mintclub: username required")
	}
	if prefix == "" {
		prefix = DefaultSymbolPrefix
	}
	return prefix + strings.ToUpper(username), nil
}

// PostSymbol derives a unique post symbol from the post name and creation
// time: name plus unix milliseconds, stripped to alphanumerics and capped at
// twenty characters.
func PostSymbol(name string, now time.Time) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("mintclub: post name required")
	}
	raw := fmt.Sprintf("%s%d", name, now.UnixMilli())
	var b strings.Builder
	for _, r := range raw {
		if r > unicode.MaxASCII {
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	symbol := b.String()
	if symbol == "" {
		return "", fmt.Errorf("mintclub: post name %q has no usable characters", name)
	}
	if len(symbol) > maxPostSymbolLen {
		symbol = symbol[:maxPostSymbolLen]
	}
	return symbol, nil
}
