package storage

import (
	"strconv"
	"strings"

	"listing_harvester/internal/shared/logger"
	"listing_harvester/proxypool/model"
)

// ParseCandidates parses a delimited proxy list. Entries may be separated by
// ",,", newlines or single commas and take the form host:port or
// host:port:username:password, optionally prefixed with "http://" or
// "socks5://". Malformed entries are logged and skipped.
func ParseCandidates(text, source string) []model.ProxyCandidate {
	l := logger.WithComponent("ProxyPool/Storage")

	normalized := strings.NewReplacer(",,", "\n", ",", "\n", "\r", "\n", ";", "\n").Replace(text)

	var candidates []model.ProxyCandidate
	for _, entry := range strings.Split(normalized, "\n") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		c, ok := parseEntry(entry)
		if !ok {
			l.Warn().Str("entry", redactEntry(entry)).Str("source", source).Msg("Invalid proxy format, skipping.")
			continue
		}
		c.Source = source
		candidates = append(candidates, c)
	}
	return candidates
}

func parseEntry(entry string) (model.ProxyCandidate, bool) {
	scheme := model.SchemeHTTP
	if i := strings.Index(entry, "://"); i >= 0 {
		scheme = strings.ToLower(entry[:i])
		entry = entry[i+3:]
	}
	switch scheme {
	case model.SchemeHTTP, model.SchemeSOCKS5:
	case "socks5h":
		scheme = model.SchemeSOCKS5
	default:
		return model.ProxyCandidate{}, false
	}

	parts := strings.Split(entry, ":")
	if len(parts) != 2 && len(parts) != 4 {
		return model.ProxyCandidate{}, false
	}
	host := strings.TrimSpace(parts[0])
	port, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if host == "" || err != nil || port <= 0 || port > 65535 {
		return model.ProxyCandidate{}, false
	}

	c := model.ProxyCandidate{Scheme: scheme, Host: host, Port: port}
	if len(parts) == 4 {
		c.Username = strings.TrimSpace(parts[2])
		c.Password = strings.TrimSpace(parts[3])
	}
	return c, true
}

// redactEntry keeps host:port and drops credentials from log output.
func redactEntry(entry string) string {
	parts := strings.Split(entry, ":")
	if len(parts) > 2 {
		return strings.Join(parts[:2], ":") + ":***"
	}
	return entry
}
