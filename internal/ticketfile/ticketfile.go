// Package ticketfile parses and renders ticket markdown files
// (<repo>/.codex-autorunner/tickets/TICKET-NNN.md): a YAML frontmatter block
// delimited by `---` lines followed by a free-form markdown body.
package ticketfile

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	frontmatterDelimiter = regexp.MustCompile(`^---\s*$`)
	indexPattern         = regexp.MustCompile(`TICKET-(\d+)`)
)

// Frontmatter is the YAML header of a ticket file.
type Frontmatter struct {
	Title string `yaml:"title"`
	Agent string `yaml:"agent"`
	Done  bool   `yaml:"done"`
}

// Parsed is a ticket file split into its frontmatter and body, plus the
// numeric index recovered from its filename.
type Parsed struct {
	Index       int
	Frontmatter Frontmatter
	Body        string
}

// IndexFromFilename extracts the numeric index from a TICKET-NNN.md style
// filename. Returns an error if no TICKET-<digits> pattern is present —
// callers surface this as a skipped, errored ticket rather than halting.
func IndexFromFilename(name string) (int, error) {
	m := indexPattern.FindStringSubmatch(name)
	if m == nil {
		return 0, fmt.Errorf("filename %q does not contain a TICKET-<NNN> index", name)
	}
	return strconv.Atoi(m[1])
}

// Parse splits raw ticket markdown into frontmatter and body and unmarshals
// the frontmatter as YAML. A ticket whose frontmatter fails to parse is
// reported as an error to the caller; it must not halt the engine (spec
// invariant: malformed tickets surface errors but do not halt the run).
func Parse(name string, raw string) (Parsed, error) {
	idx, err := IndexFromFilename(name)
	if err != nil {
		return Parsed{}, err
	}

	fm, body, err := splitFrontmatter(raw)
	if err != nil {
		return Parsed{Index: idx}, fmt.Errorf("split frontmatter: %w", err)
	}

	var parsedFM Frontmatter
	if err := yaml.Unmarshal([]byte(fm), &parsedFM); err != nil {
		return Parsed{Index: idx}, fmt.Errorf("parse frontmatter yaml: %w", err)
	}

	return Parsed{Index: idx, Frontmatter: parsedFM, Body: strings.TrimLeft(body, "\n")}, nil
}

// Render reassembles a Parsed ticket back into the on-disk markdown form,
// preserving the frontmatter/body delimiter convention.
func Render(p Parsed) (string, error) {
	fm, err := yaml.Marshal(p.Frontmatter)
	if err != nil {
		return "", fmt.Errorf("marshal frontmatter: %w", err)
	}
	var b strings.Builder
	b.WriteString("---\n")
	b.Write(fm)
	b.WriteString("---\n")
	b.WriteString(p.Body)
	if !strings.HasSuffix(p.Body, "\n") {
		b.WriteString("\n")
	}
	return b.String(), nil
}

// splitFrontmatter splits markdown into its YAML frontmatter and body.
func splitFrontmatter(markdown string) (frontmatter string, body string, err error) {
	lines := strings.Split(markdown, "\n")
	if len(lines) < 2 {
		return "", "", fmt.Errorf("ticket file too short to contain frontmatter")
	}
	if !frontmatterDelimiter.MatchString(strings.TrimSpace(lines[0])) {
		return "", "", fmt.Errorf("missing frontmatter opening delimiter (---)")
	}

	closingIdx := -1
	for i := 1; i < len(lines); i++ {
		if frontmatterDelimiter.MatchString(strings.TrimSpace(lines[i])) {
			closingIdx = i
			break
		}
	}
	if closingIdx == -1 {
		return "", "", fmt.Errorf("missing frontmatter closing delimiter (---)")
	}

	frontmatter = strings.Join(lines[1:closingIdx], "\n")
	body = strings.Join(lines[closingIdx+1:], "\n")
	return frontmatter, body, nil
}
