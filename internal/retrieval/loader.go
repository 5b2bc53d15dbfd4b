package retrieval

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"nephro-assistant/pkg"
)

// LoadPassages reads JSON Lines, one passage per line, skipping blank
// lines.  Lines without text are rejected.
func LoadPassages(r io.Reader) ([]pkg.Passage, error) {
	var out []pkg.Passage
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var p pkg.Passage
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("passages line %d: %w", line, err)
		}
		if strings.TrimSpace(p.Text) == "" {
			return nil, fmt.Errorf("passages line %d: empty text", line)
		}
		out = append(out, p)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read passages: %w", err)
	}
	return out, nil
}
