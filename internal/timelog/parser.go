package timelog

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/zerok/gtimelog2jira"
)

// NonWorkSuffix marks gtimelog entries that are not work (breaks, lunch).
const NonWorkSuffix = "**"

type alias struct {
	name    string
	pattern *regexp.Regexp
	issue   string
}

// Parser maps entries to Jira issues using the configured project keys
// and aliases.
type Parser struct {
	issuePattern *regexp.Regexp
	aliases      []alias
}

// NewParser builds a parser recognizing issue keys of the given projects.
// Aliases map a word (matched case-insensitively) to an issue key and are
// only consulted if no issue key is found in the message.
func NewParser(projects []string, aliases map[string]string) (*Parser, error) {
	if len(projects) == 0 {
		return nil, errors.New("at least one project key is required")
	}
	keys := make([]string, 0, len(projects))
	for _, p := range projects {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		keys = append(keys, regexp.QuoteMeta(p))
	}
	if len(keys) == 0 {
		return nil, errors.New("at least one project key is required")
	}
	sort.Strings(keys)
	p := Parser{
		issuePattern: regexp.MustCompile(fmt.Sprintf(`\b(%s)-\d+`, strings.Join(keys, "|"))),
		aliases:      make([]alias, 0, len(aliases)),
	}
	for name, issue := range aliases {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		re, err := regexp.Compile(`(?i)(^|\W)` + regexp.QuoteMeta(name) + `($|\W)`)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid alias %q", name)
		}
		p.aliases = append(p.aliases, alias{name: name, pattern: re, issue: strings.TrimSpace(issue)})
	}
	// Longer aliases win over their prefixes.
	sort.Slice(p.aliases, func(i, j int) bool {
		if len(p.aliases[i].name) != len(p.aliases[j].name) {
			return len(p.aliases[i].name) > len(p.aliases[j].name)
		}
		return p.aliases[i].name < p.aliases[j].name
	})
	return &p, nil
}

// Issue returns the issue key an entry message refers to.
func (p *Parser) Issue(message string) (string, bool) {
	if issue := p.issuePattern.FindString(message); issue != "" {
		return issue, true
	}
	for _, a := range p.aliases {
		if a.pattern.MatchString(message) {
			return a.issue, true
		}
	}
	return "", false
}

// Parse keeps only entries that can be booked on an issue. Non-work
// entries, entries without an issue and zero-length entries are dropped.
func (p *Parser) Parse(entries []gtimelog2jira.Entry) []gtimelog2jira.WorkLog {
	result := make([]gtimelog2jira.WorkLog, 0, len(entries))
	for _, e := range entries {
		if strings.HasSuffix(e.Message, NonWorkSuffix) {
			continue
		}
		issue, ok := p.Issue(e.Message)
		if !ok {
			continue
		}
		if e.Duration() <= 0 {
			continue
		}
		result = append(result, gtimelog2jira.NewWorkLog(e, issue, Comment(e.Message, issue)))
	}
	return result
}

// Comment strips gtimelog categories ("project: ...") and the issue key
// from a message.
func Comment(message, issue string) string {
	comment := message
	if idx := strings.LastIndex(comment, ":"); idx >= 0 {
		comment = comment[idx+1:]
	}
	comment = strings.TrimSpace(comment)
	if strings.HasPrefix(comment, issue) {
		comment = strings.TrimSpace(comment[len(issue):])
	}
	if strings.HasSuffix(comment, issue) {
		comment = strings.TrimSpace(comment[:len(comment)-len(issue)])
	}
	return comment
}
