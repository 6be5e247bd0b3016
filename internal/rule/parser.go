package rule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kazuhito/yoyaku/internal/model"
)

// CommandKind distinguishes the operator commands the parser understands.
type CommandKind int

const (
	// KindCreate carries a fully built rule from /limit or /stop.
	KindCreate CommandKind = iota
	// KindList is the /limits listing request.
	KindList
	// KindDeactivate is /limit off #<id-prefix>.
	KindDeactivate
)

// Command is the structured result of parsing one line of operator text.
type Command struct {
	Kind     CommandKind
	Rule     *model.Rule // set for KindCreate
	IDPrefix string      // set for KindDeactivate
}

// ParseErrorKind classifies parse failures so transports can branch on
// the kind while echoing the detail verbatim to the operator.
type ParseErrorKind string

const (
	ParseInvalidRange     ParseErrorKind = "invalid_range"
	ParseUnknownToken     ParseErrorKind = "unknown_token"
	ParseInvalidLimit     ParseErrorKind = "invalid_limit"
	ParseConflictingScope ParseErrorKind = "conflicting_scope"
)

// ParseError reports a malformed operator command. Commands that fail to
// parse are never guessed at or partially applied.
type ParseError struct {
	Kind   ParseErrorKind
	Token  string
	Detail string
}

func (e *ParseError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("parse error (%s): %s %q", e.Kind, e.Detail, e.Token)
	}
	return fmt.Sprintf("parse error (%s): %s", e.Kind, e.Detail)
}

// Parser turns operator command text into Commands. Now is injectable so
// tests can pin "today"; it defaults to time.Now.
type Parser struct {
	Now func() time.Time
}

// NewParser returns a Parser using wall-clock time.
func NewParser() *Parser { return &Parser{Now: time.Now} }

// Named time shorthands.
const (
	lunchStart  = "11:00"
	lunchEnd    = "15:00"
	dinnerStart = "17:00"
	dinnerEnd   = "22:00"
)

// Default priority for stop rules, so a plain /stop outranks numeric
// limits authored at the default priority 0.
const stopPriority = 5

var weekdayTokens = map[string]int{
	"sun": 0, "sunday": 0, "日": 0,
	"mon": 1, "monday": 1, "月": 1,
	"tue": 2, "tues": 2, "tuesday": 2, "火": 2,
	"wed": 3, "wednesday": 3, "水": 3,
	"thu": 4, "thur": 4, "thurs": 4, "thursday": 4, "木": 4,
	"fri": 5, "friday": 5, "金": 5,
	"sat": 6, "saturday": 6, "土": 6,
}

var scopeTokens = map[string]model.ScopeType{
	"seat": model.ScopeSeatType, "席": model.ScopeSeatType,
	"menu": model.ScopeMenu, "メニュー": model.ScopeMenu,
	"staff": model.ScopeStaff, "スタッフ": model.ScopeStaff,
}

var (
	timeRangeRe = regexp.MustCompile(`^(\d{1,2}:\d{2})?-(\d{1,2}:\d{2})?$`)
	limitSpecRe = regexp.MustCompile(`^(\d+)(?:/(h|hour|d|day|c|concurrent))?$`)
	slashDateRe = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})$`)
)

// Parse interprets one line of operator text. It returns (nil, nil) when
// the text is not a recognized command, a *ParseError when a command is
// malformed, and a Command otherwise. Parsing is pure: persisting the
// resulting rule is the command service's job.
func (p *Parser) Parse(text string) (*Command, error) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return nil, nil
	}
	switch fields[0] {
	case "/limits":
		return &Command{Kind: KindList}, nil
	case "/stop":
		return p.parseCreate(fields[1:], true)
	case "/limit":
		if len(fields) >= 2 && fields[1] == "off" {
			return parseOff(fields[2:])
		}
		return p.parseCreate(fields[1:], false)
	default:
		return nil, nil
	}
}

func parseOff(args []string) (*Command, error) {
	if len(args) != 1 {
		return nil, &ParseError{Kind: ParseUnknownToken, Detail: "expected /limit off #<rule-id>"}
	}
	prefix := strings.TrimPrefix(args[0], "#")
	if prefix == "" {
		return nil, &ParseError{Kind: ParseUnknownToken, Token: args[0], Detail: "empty rule id"}
	}
	return &Command{Kind: KindDeactivate, IDPrefix: prefix}, nil
}

// parseCreate handles /limit and /stop bodies: a time-spec consumed
// left-to-right, then an optional limit-spec, then scope-specs.
func (p *Parser) parseCreate(args []string, stop bool) (*Command, error) {
	r := &model.Rule{
		Scope:     model.ScopeStore,
		CountUnit: model.CountGroups,
		Active:    true,
	}

	i, err := p.consumeTimeSpec(args, r)
	if err != nil {
		return nil, err
	}

	if stop {
		r.Limit = model.LimitStop
		r.Priority = stopPriority
	} else {
		var consumed bool
		consumed, err = parseLimitSpec(argAt(args, i), r)
		if err != nil {
			return nil, err
		}
		if consumed {
			i++
		} else {
			// a /limit with no limit-spec becomes "1 per hour"
			// rather than an error
			r.Limit = model.LimitPerHour
			r.LimitValue = 1
		}
	}

	for ; i < len(args); i++ {
		if err := applyScopeSpec(args[i], r); err != nil {
			return nil, err
		}
	}

	if err := r.Validate(); err != nil {
		kind := ParseUnknownToken
		switch err {
		case model.ErrInvalidDateRange, model.ErrInvalidTimeRange:
			kind = ParseInvalidRange
		case model.ErrInvalidLimitValue:
			kind = ParseInvalidLimit
		}
		return nil, &ParseError{Kind: kind, Detail: err.Error()}
	}
	r.Description = r.Describe()
	return &Command{Kind: KindCreate, Rule: r}, nil
}

func argAt(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

// consumeTimeSpec eats tokens from the front of args while they match a
// known time-spec shape; the first non-matching token ends the spec. It
// returns the index of the first unconsumed token.
func (p *Parser) consumeTimeSpec(args []string, r *model.Rule) (int, error) {
	for i, tok := range args {
		lower := strings.ToLower(tok)
		switch {
		case lower == "today":
			d := p.Now().Format(model.DateLayout)
			r.DateStart, r.DateEnd = d, d
		case lower == "tomorrow":
			d := p.Now().AddDate(0, 0, 1).Format(model.DateLayout)
			r.DateStart, r.DateEnd = d, d
		case lower == "lunch":
			r.TimeStart, r.TimeEnd = lunchStart, lunchEnd
		case lower == "dinner":
			r.TimeStart, r.TimeEnd = dinnerStart, dinnerEnd
		case strings.Contains(tok, ".."):
			start, end, err := p.parseDateRange(tok)
			if err != nil {
				return i, err
			}
			r.DateStart, r.DateEnd = start, end
		case timeRangeRe.MatchString(tok):
			start, end, err := parseTimeRange(tok)
			if err != nil {
				return i, err
			}
			r.TimeStart, r.TimeEnd = start, end
		default:
			if d, ok := p.parseDate(tok); ok {
				r.DateStart, r.DateEnd = d, d
				continue
			}
			days, isWeekday, err := parseWeekdayList(lower)
			if err != nil {
				return i, err
			}
			if isWeekday {
				r.Weekdays = days
				continue
			}
			return i, nil
		}
	}
	return len(args), nil
}

// parseDate accepts YYYY-MM-DD or M/D (year inferred from Now).
func (p *Parser) parseDate(tok string) (string, bool) {
	if t, err := time.Parse(model.DateLayout, tok); err == nil {
		return t.Format(model.DateLayout), true
	}
	if m := slashDateRe.FindStringSubmatch(tok); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		if month < 1 || month > 12 || day < 1 || day > 31 {
			return "", false
		}
		t := time.Date(p.Now().Year(), time.Month(month), day, 0, 0, 0, 0, time.UTC)
		return t.Format(model.DateLayout), true
	}
	return "", false
}

func (p *Parser) parseDateRange(tok string) (string, string, error) {
	parts := strings.SplitN(tok, "..", 2)
	start, ok := p.parseDate(parts[0])
	if !ok {
		return "", "", &ParseError{Kind: ParseInvalidRange, Token: parts[0], Detail: "bad date"}
	}
	end, ok := p.parseDate(parts[1])
	if !ok {
		return "", "", &ParseError{Kind: ParseInvalidRange, Token: parts[1], Detail: "bad date"}
	}
	if start > end {
		return "", "", &ParseError{Kind: ParseInvalidRange, Token: tok, Detail: "start after end"}
	}
	return start, end, nil
}

func parseTimeRange(tok string) (string, string, error) {
	m := timeRangeRe.FindStringSubmatch(tok)
	start, end := m[1], m[2]
	if start == "" && end == "" {
		return "", "", &ParseError{Kind: ParseInvalidRange, Token: tok, Detail: "empty time range"}
	}
	var err error
	if start != "" {
		if start, err = normalizeTime(start); err != nil {
			return "", "", &ParseError{Kind: ParseInvalidRange, Token: tok, Detail: "bad time"}
		}
	}
	if end != "" {
		if end, err = normalizeTime(end); err != nil {
			return "", "", &ParseError{Kind: ParseInvalidRange, Token: tok, Detail: "bad time"}
		}
	}
	if start != "" && end != "" && start > end {
		return "", "", &ParseError{Kind: ParseInvalidRange, Token: tok, Detail: "start after end"}
	}
	return start, end, nil
}

// normalizeTime zero-pads single-digit hours so string comparison works.
func normalizeTime(s string) (string, error) {
	if len(s) == 4 { // H:MM
		s = "0" + s
	}
	if _, err := time.Parse(model.TimeLayout, s); err != nil {
		return "", err
	}
	return s, nil
}

// parseWeekdayList interprets a comma list of weekday tokens (English
// abbreviation/full name or single CJK character). A list whose first
// element is a weekday but that contains an unknown element is an error;
// a token that does not look like weekdays at all simply ends the
// time-spec.
func parseWeekdayList(tok string) ([]int, bool, error) {
	elems := strings.Split(tok, ",")
	if _, ok := weekdayTokens[elems[0]]; !ok {
		return nil, false, nil
	}
	seen := make(map[int]bool, len(elems))
	days := make([]int, 0, len(elems))
	for _, e := range elems {
		d, ok := weekdayTokens[e]
		if !ok {
			return nil, false, &ParseError{Kind: ParseUnknownToken, Token: e, Detail: "unknown weekday"}
		}
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	return days, true, nil
}

// parseLimitSpec interprets the optional limit token. It reports whether
// the token was consumed; an absent or non-matching token is left for
// the scope-spec stage.
func parseLimitSpec(tok string, r *model.Rule) (bool, error) {
	if tok == "" {
		return false, nil
	}
	m := limitSpecRe.FindStringSubmatch(tok)
	if m == nil {
		return false, nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return false, &ParseError{Kind: ParseInvalidLimit, Token: tok, Detail: "limit must be a positive integer"}
	}
	r.LimitValue = n
	switch m[2] {
	case "", "d", "day":
		r.Limit = model.LimitPerDay
	case "h", "hour":
		r.Limit = model.LimitPerHour
	case "c", "concurrent":
		r.Limit = model.LimitConcurrent
	}
	return true, nil
}

// applyScopeSpec interprets a <type>:<comma-list> token. Unrecognized
// type names deliberately fall back to seat_type.
func applyScopeSpec(tok string, r *model.Rule) error {
	typ, rest, found := strings.Cut(tok, ":")
	if !found || rest == "" {
		return &ParseError{Kind: ParseUnknownToken, Token: tok, Detail: "expected <type>:<ids>"}
	}
	scope, ok := scopeTokens[strings.ToLower(typ)]
	if !ok {
		scope = model.ScopeSeatType
	}
	ids := make([]string, 0, 2)
	for _, id := range strings.Split(rest, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return &ParseError{Kind: ParseUnknownToken, Token: tok, Detail: "empty scope ids"}
	}
	if r.Scope != model.ScopeStore && r.Scope != scope {
		return &ParseError{Kind: ParseConflictingScope, Token: tok, Detail: "conflicting scope types"}
	}
	r.Scope = scope
	r.ScopeIDs = append(r.ScopeIDs, ids...)
	return nil
}
