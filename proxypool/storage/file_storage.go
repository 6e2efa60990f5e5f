package storage

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"listing_harvester/internal/shared/logger"
	"listing_harvester/proxypool/model"
)

// Report lines are id|scheme|latency_ms|checked_unix|exit_ip.
const delimiter = "|"

// Storage loads proxy candidates and records the probe outcome.
type Storage interface {
	Load() ([]model.ProxyCandidate, error)
	SaveReport(live []model.LiveProxy) error
}

// FileStorage implements Storage on top of a plain text or csv candidate file.
type FileStorage struct {
	filePath   string
	reportPath string
	mu         sync.RWMutex
}

// NewFileStorage creates a FileStorage. reportPath may be empty, in which case
// SaveReport is a no-op.
func NewFileStorage(filePath, reportPath string) *FileStorage {
	return &FileStorage{
		filePath:   filePath,
		reportPath: reportPath,
	}
}

// Load reads the candidate file. Files ending in .csv must carry a header row
// with host and port columns (username and password optional); anything else
// is read as one entry per line with '#' comments.
func (fs *FileStorage) Load() ([]model.ProxyCandidate, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	l := logger.WithComponent("ProxyPool/Storage")

	file, err := os.Open(fs.filePath)
	if err != nil {
		return nil, fmt.Errorf("proxy file '%s': %w", fs.filePath, err)
	}
	defer file.Close()

	var candidates []model.ProxyCandidate
	if strings.EqualFold(filepath.Ext(fs.filePath), ".csv") {
		candidates, err = readCSV(file)
	} else {
		candidates, err = readLines(file)
	}
	if err != nil {
		return nil, fmt.Errorf("proxy file '%s': %w", fs.filePath, err)
	}

	l.Info().Int("count", len(candidates)).Str("path", fs.filePath).Msg("Loaded proxy candidates from file.")
	return candidates, nil
}

func readLines(r io.Reader) ([]model.ProxyCandidate, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return ParseCandidates(strings.Join(lines, "\n"), "file"), nil
}

func readCSV(r io.Reader) ([]model.ProxyCandidate, error) {
	l := logger.WithComponent("ProxyPool/Storage")

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := col["host"]; !ok {
		return nil, fmt.Errorf("csv header must contain a 'host' column")
	}
	if _, ok := col["port"]; !ok {
		return nil, fmt.Errorf("csv header must contain a 'port' column")
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var candidates []model.ProxyCandidate
	lineNum := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		lineNum++
		if err != nil {
			return nil, fmt.Errorf("reading csv line %d: %w", lineNum, err)
		}

		port, err := strconv.Atoi(field(row, "port"))
		if err != nil || port <= 0 || port > 65535 {
			l.Warn().Int("line", lineNum).Str("port", field(row, "port")).Msg("Invalid port, skipping.")
			continue
		}
		host := field(row, "host")
		if host == "" {
			l.Warn().Int("line", lineNum).Msg("Empty host, skipping.")
			continue
		}
		scheme := strings.ToLower(field(row, "scheme"))
		if scheme == "" {
			scheme = model.SchemeHTTP
		}
		candidates = append(candidates, model.ProxyCandidate{
			Scheme:   scheme,
			Host:     host,
			Port:     port,
			Username: field(row, "username"),
			Password: field(row, "password"),
			Source:   "file",
		})
	}
	return candidates, nil
}

// SaveReport writes the live set, one proxy per line, sorted by ID.
func (fs *FileStorage) SaveReport(live []model.LiveProxy) error {
	if fs.reportPath == "" {
		return nil
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	l := logger.WithComponent("ProxyPool/Storage")

	sorted := make([]model.LiveProxy, len(live))
	copy(sorted, live)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ID() < sorted[j].ID()
	})

	var sb strings.Builder
	for _, p := range sorted {
		sb.WriteString(formatLiveProxy(p))
		sb.WriteString("\n")
	}

	if err := os.WriteFile(fs.reportPath, []byte(sb.String()), 0644); err != nil {
		return err
	}

	l.Info().Int("count", len(sorted)).Str("path", fs.reportPath).Msg("Saved live proxy report.")
	return nil
}

func formatLiveProxy(p model.LiveProxy) string {
	return strings.Join([]string{
		p.ID(),
		p.URL.Scheme,
		strconv.FormatInt(p.Latency.Milliseconds(), 10),
		strconv.FormatInt(p.CheckedAt.Unix(), 10),
		p.ExitIP,
	}, delimiter)
}
