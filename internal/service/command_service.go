// Package service holds the pieces that sit between transport and the
// core packages: the operator command service and the event publisher.
package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kazuhito/yoyaku/internal/model"
	"github.com/kazuhito/yoyaku/internal/repository"
	"github.com/kazuhito/yoyaku/internal/rule"
)

// shortIDLen is how many ID characters are echoed back to operators;
// /limit off matches on this prefix.
const shortIDLen = 8

// CommandService executes operator commands against the rule store and
// renders the confirmation text sent back over the command channel. The
// parser itself stays pure; persistence happens here.
type CommandService struct {
	parser *rule.Parser
	rules  repository.RuleStore
	now    func() time.Time
}

// NewCommandService wires a command service over the given rule store.
func NewCommandService(rules repository.RuleStore) *CommandService {
	return &CommandService{parser: rule.NewParser(), rules: rules, now: time.Now}
}

// Execute interprets one line of operator text. The empty reply with a
// nil error means the text was not a command at all. Parse errors are
// returned unwrapped so the transport can echo them verbatim; they are
// never applied partially or guessed at.
func (s *CommandService) Execute(ctx context.Context, storeID, operatorID, text string) (string, error) {
	cmd, err := s.parser.Parse(text)
	if err != nil {
		return "", err
	}
	if cmd == nil {
		return "", nil
	}
	switch cmd.Kind {
	case rule.KindCreate:
		return s.create(ctx, storeID, operatorID, cmd.Rule)
	case rule.KindList:
		return s.list(ctx, storeID)
	case rule.KindDeactivate:
		return s.deactivate(ctx, storeID, cmd.IDPrefix)
	}
	return "", nil
}

func (s *CommandService) create(ctx context.Context, storeID, operatorID string, r *model.Rule) (string, error) {
	r.ID = uuid.NewString()
	r.StoreID = storeID
	r.CreatedBy = operatorID
	r.CreatedAt = s.now().UTC()
	if err := s.rules.Insert(ctx, r); err != nil {
		return "", err
	}
	return fmt.Sprintf("registered #%s %s", shortID(r.ID), r.Description), nil
}

func (s *CommandService) list(ctx context.Context, storeID string) (string, error) {
	rules, err := s.rules.ActiveByStore(ctx, storeID)
	if err != nil {
		return "", err
	}
	if len(rules) == 0 {
		return "no active rules", nil
	}
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority > rules[j].Priority
		}
		return rules[i].CreatedAt.Before(rules[j].CreatedAt)
	})
	lines := make([]string, 0, len(rules))
	for _, r := range rules {
		lines = append(lines, fmt.Sprintf("#%s [p%d] %s", shortID(r.ID), r.Priority, r.Description))
	}
	return strings.Join(lines, "\n"), nil
}

func (s *CommandService) deactivate(ctx context.Context, storeID, prefix string) (string, error) {
	r, err := s.rules.DeactivateByIDPrefix(ctx, storeID, prefix)
	if err != nil {
		if err == repository.ErrRuleNotFound {
			return fmt.Sprintf("no rule matching #%s", prefix), nil
		}
		return "", err
	}
	return fmt.Sprintf("deactivated #%s %s", shortID(r.ID), r.Description), nil
}

func shortID(id string) string {
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}
