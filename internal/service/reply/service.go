// Package reply runs user messages through a widget's intent rules.
package reply

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/compose"
	"go.uber.org/zap"

	"github.com/zhouzirui/campus-widgets/backend/internal/analysis/intent"
	"github.com/zhouzirui/campus-widgets/backend/internal/model/persona"
)

var ErrUnknownPersona = errors.New("no ruleset bound to persona")

// lockedRand serialises access to a *rand.Rand shared by concurrent requests.
type lockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (r *lockedRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(n)
}

func (r *lockedRand) Int63n(n int64) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Int63n(n)
}

// Source is the random source shared by reply selection and delay jitter.
type Source interface {
	intent.Picker
	Int63n(n int64) int64
}

// NewSource returns a goroutine-safe random source seeded with seed.
func NewSource(seed int64) Source {
	return &lockedRand{rng: rand.New(rand.NewSource(seed))}
}

type request struct {
	rules *intent.Ruleset
	text  string
}

// Service 为每个组件持有一份规则表，并通过 eino 链路生成回复。
type Service struct {
	rulesets map[string]*intent.Ruleset
	rng      Source
	chain    compose.Runnable[request, intent.Result]
	logger   *zap.Logger
}

// NewService binds each persona to its embedded ruleset. Personas whose ruleset
// cannot be loaded are skipped with a warning so the other widgets still mount.
func NewService(ctx context.Context, personas persona.Store, rng Source, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rng == nil {
		rng = NewSource(time.Now().UnixNano())
	}

	rulesets := make(map[string]*intent.Ruleset)
	for _, p := range personas.List() {
		rs, err := intent.LoadRuleset(p.RulesetID)
		if err != nil {
			logger.Warn("skipping widget without usable ruleset",
				zap.String("persona", p.ID), zap.String("ruleset", p.RulesetID), zap.Error(err))
			continue
		}
		rulesets[p.ID] = rs
	}

	svc := &Service{rulesets: rulesets, rng: rng, logger: logger}

	chain := compose.NewChain[request, intent.Result]()
	chain.AppendLambda(compose.InvokableLambda(normalizeRequest))
	chain.AppendLambda(compose.InvokableLambda(svc.respond))

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile reply chain: %w", err)
	}
	svc.chain = runnable
	return svc, nil
}

func normalizeRequest(_ context.Context, req request) (request, error) {
	req.text = intent.Normalize(strings.TrimSpace(req.text))
	return req, nil
}

func (s *Service) respond(_ context.Context, req request) (intent.Result, error) {
	return intent.Respond(req.rules, req.text, s.rng), nil
}

// Reply answers text with the rules bound to personaID.
func (s *Service) Reply(ctx context.Context, personaID, text string) (intent.Result, error) {
	rs, ok := s.rulesets[personaID]
	if !ok {
		return intent.Result{}, fmt.Errorf("%w: %s", ErrUnknownPersona, personaID)
	}

	result, err := s.chain.Invoke(ctx, request{rules: rs, text: text})
	if err != nil {
		return intent.Result{}, fmt.Errorf("failed to run reply chain: %w", err)
	}

	s.logger.Debug("reply generated",
		zap.String("persona", personaID),
		zap.String("rule", result.RuleID),
		zap.Bool("fallback", result.Fallback))
	return result, nil
}

// Ruleset returns the rule table bound to personaID.
func (s *Service) Ruleset(personaID string) (*intent.Ruleset, bool) {
	rs, ok := s.rulesets[personaID]
	return rs, ok
}

// Random exposes the shared random source, used for delay jitter.
func (s *Service) Random() Source {
	return s.rng
}

// Mounted filters personas down to the ones with a loaded ruleset.
func (s *Service) Mounted(personas []persona.Persona) []persona.Persona {
	mounted := make([]persona.Persona, 0, len(personas))
	for _, p := range personas {
		if _, ok := s.rulesets[p.ID]; ok {
			mounted = append(mounted, p)
		}
	}
	return mounted
}
