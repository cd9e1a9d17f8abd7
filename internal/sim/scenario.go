package sim

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"

	"github.com/genomechain/genome-ledger/internal/chain"
	"github.com/genomechain/genome-ledger/internal/dao"
)

// DefaultStart is the scenario clock's starting time when none is given.
var DefaultStart = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// Scenario is a scripted sequence of calls against a fresh World.
type Scenario struct {
	Name  string `yaml:"name"`
	Start string `yaml:"start"`
	// Owner names the deploying account.
	Owner string `yaml:"owner"`
	// Accounts maps names to hex addresses. An empty address is derived from the name.
	Accounts map[string]string `yaml:"accounts"`
	Params   ScenarioParams    `yaml:"params"`
	Genesis  Genesis           `yaml:"genesis"`
	Steps    []Step            `yaml:"steps"`
}

// ScenarioParams overrides deployment parameters. Empty fields keep defaults.
type ScenarioParams struct {
	FeeRecipient      string  `yaml:"fee_recipient"`
	InitialSupply     string  `yaml:"initial_supply"`
	MaxSupply         string  `yaml:"max_supply"`
	PlatformFeeBps    *uint64 `yaml:"platform_fee_bps"`
	NFTReward         string  `yaml:"nft_reward"`
	VotingDelay       string  `yaml:"voting_delay"`
	VotingPeriod      string  `yaml:"voting_period"`
	ExecutionDelay    string  `yaml:"execution_delay"`
	ProposalThreshold string  `yaml:"proposal_threshold"`
	QuorumPercent     *uint64 `yaml:"quorum_percent"`
}

// Genesis funds accounts before the first step. Token amounts come out of
// the owner's initial supply.
type Genesis struct {
	Native map[string]string `yaml:"native"`
	Token  map[string]string `yaml:"token"`
}

// Step advances the clock, makes one call, or both, then runs its checks.
type Step struct {
	Name    string            `yaml:"name"`
	Advance string            `yaml:"advance"`
	From    string            `yaml:"from"`
	Call    string            `yaml:"call"`
	Value   string            `yaml:"value"`
	Args    map[string]string `yaml:"args"`
	// Expect is the failure reason the call must produce. Empty or "ok" means success.
	Expect string `yaml:"expect"`
	Check  *Check `yaml:"check"`
}

// Check asserts state after a step.
type Check struct {
	Native    map[string]string `yaml:"native"`
	Token     map[string]string `yaml:"token"`
	Output    map[string]string `yaml:"output"`
	Proposals map[uint64]string `yaml:"proposals"`
}

// Load decodes a scenario. Unknown fields are rejected.
func Load(r io.Reader) (*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var s Scenario
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	if s.Owner == "" {
		return nil, fmt.Errorf("scenario %q: owner is required", s.Name)
	}
	if len(s.Steps) == 0 {
		return nil, fmt.Errorf("scenario %q: no steps", s.Name)
	}
	return &s, nil
}

// LoadFile reads and decodes a scenario file.
func LoadFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Load(bytes.NewReader(data))
}

// StepReport is the outcome of one step.
type StepReport struct {
	Index    int
	Name     string
	Call     string
	From     string
	At       time.Time
	Output   Output
	Error    string
	Expected string
	Failures []string
}

// Passed reports whether the step met every expectation.
func (s StepReport) Passed() bool { return len(s.Failures) == 0 }

// AccountReport is an account's final balances.
type AccountReport struct {
	Name    string
	Address chain.Address
	Native  *uint256.Int
	Token   *uint256.Int
}

// ProposalReport is a proposal's final state.
type ProposalReport struct {
	ID      uint64
	Title   string
	State   dao.State
	For     *uint256.Int
	Against *uint256.Int
	Abstain *uint256.Int
}

// Report summarises a scenario run.
type Report struct {
	Name      string
	Steps     []StepReport
	Accounts  []AccountReport
	Proposals []ProposalReport
}

// Failed returns how many steps did not pass.
func (r *Report) Failed() int {
	n := 0
	for _, s := range r.Steps {
		if !s.Passed() {
			n++
		}
	}
	return n
}

// runner holds the state of one scenario run.
type runner struct {
	s        *Scenario
	world    *World
	clock    *chain.ManualClock
	accounts map[string]chain.Address
	names    []string
}

// Run deploys a fresh World and plays the scenario against it. Step
// failures are recorded in the report; the error is reserved for a
// scenario that cannot be set up.
func (s *Scenario) Run(ctx context.Context, opts ...chain.Option) (*Report, error) {
	start := DefaultStart
	if s.Start != "" {
		t, err := time.Parse(time.RFC3339, s.Start)
		if err != nil {
			return nil, fmt.Errorf("scenario start: %w", err)
		}
		start = t
	}
	r := &runner{s: s, clock: chain.NewManualClock(start), accounts: make(map[string]chain.Address)}
	if err := r.resolveAccounts(); err != nil {
		return nil, err
	}
	params, err := r.params()
	if err != nil {
		return nil, err
	}
	r.world, err = New(ctx, params, append(opts, chain.WithClock(r.clock))...)
	if err != nil {
		return nil, err
	}
	for name, addr := range r.world.Contracts() {
		if _, taken := r.accounts[name]; taken {
			return nil, fmt.Errorf("account %q collides with a contract name", name)
		}
		r.accounts[name] = addr
	}
	if err := r.genesis(ctx); err != nil {
		return nil, err
	}

	report := &Report{Name: s.Name}
	for i, step := range s.Steps {
		report.Steps = append(report.Steps, r.step(ctx, i, step))
	}
	r.finish(report)
	return report, nil
}

func (r *runner) resolveAccounts() error {
	if _, ok := r.s.Accounts[r.s.Owner]; !ok {
		if r.s.Accounts == nil {
			r.s.Accounts = make(map[string]string)
		}
		r.s.Accounts[r.s.Owner] = ""
	}
	for name, hex := range r.s.Accounts {
		addr := chain.AddressFromName(name)
		if hex != "" {
			var err error
			if addr, err = chain.ParseAddress(hex); err != nil {
				return fmt.Errorf("account %q: %w", name, err)
			}
		}
		r.accounts[name] = addr
		r.names = append(r.names, name)
	}
	slices.Sort(r.names)
	return nil
}

func (r *runner) params() (Params, error) {
	p := DefaultParams(r.accounts[r.s.Owner])
	sp := r.s.Params
	a := NewArgs(map[string]string{
		"fee_recipient":      sp.FeeRecipient,
		"initial_supply":     sp.InitialSupply,
		"max_supply":         sp.MaxSupply,
		"nft_reward":         sp.NFTReward,
		"voting_delay":       sp.VotingDelay,
		"voting_period":      sp.VotingPeriod,
		"execution_delay":    sp.ExecutionDelay,
		"proposal_threshold": sp.ProposalThreshold,
	}, r.accounts)
	if sp.FeeRecipient != "" {
		p.FeeRecipient = a.Address("fee_recipient")
	}
	if sp.InitialSupply != "" {
		p.InitialSupply = a.Amount("initial_supply")
	}
	if sp.MaxSupply != "" {
		p.MaxSupply = a.Amount("max_supply")
	}
	if sp.NFTReward != "" {
		p.NFTReward = a.Amount("nft_reward")
	}
	if sp.PlatformFeeBps != nil {
		p.PlatformFeeBps = *sp.PlatformFeeBps
	}
	if sp.VotingDelay != "" {
		p.DAO.VotingDelay = a.Duration("voting_delay")
	}
	if sp.VotingPeriod != "" {
		p.DAO.VotingPeriod = a.Duration("voting_period")
	}
	if sp.ExecutionDelay != "" {
		p.DAO.ExecutionDelay = a.Duration("execution_delay")
	}
	if sp.ProposalThreshold != "" {
		p.DAO.ProposalThreshold = *a.Amount("proposal_threshold")
	}
	if sp.QuorumPercent != nil {
		p.DAO.QuorumPercent = *sp.QuorumPercent
	}
	if err := a.Err(); err != nil {
		return p, fmt.Errorf("scenario params: %w", err)
	}
	return p, nil
}

func (r *runner) genesis(ctx context.Context) error {
	for _, name := range sortedKeys(r.s.Genesis.Native) {
		addr, amount, err := r.allocation(name, r.s.Genesis.Native[name])
		if err != nil {
			return fmt.Errorf("genesis native: %w", err)
		}
		if err := r.world.Fund(ctx, addr, amount); err != nil {
			return fmt.Errorf("genesis native %s: %w", name, err)
		}
	}
	owner := r.accounts[r.s.Owner]
	for _, name := range sortedKeys(r.s.Genesis.Token) {
		args := NewArgs(map[string]string{"to": name, "amount": r.s.Genesis.Token[name]}, r.accounts)
		if _, err := r.world.Call(ctx, owner, "token.transfer", nil, args); err != nil {
			return fmt.Errorf("genesis token %s: %w", name, err)
		}
	}
	return nil
}

func (r *runner) allocation(name, amount string) (chain.Address, *uint256.Int, error) {
	addr, ok := r.accounts[name]
	if !ok {
		return chain.Address{}, nil, fmt.Errorf("unknown account %q", name)
	}
	v, err := ParseAmount(amount)
	if err != nil {
		return chain.Address{}, nil, fmt.Errorf("%s: %w", name, err)
	}
	return addr, v, nil
}

func (r *runner) step(ctx context.Context, i int, step Step) StepReport {
	rep := StepReport{Index: i + 1, Name: step.Name, Call: step.Call, From: step.From, Expected: step.Expect}
	failf := func(format string, v ...any) {
		rep.Failures = append(rep.Failures, fmt.Sprintf(format, v...))
	}

	if step.Advance != "" {
		d, err := ParseDuration(step.Advance)
		if err != nil {
			failf("advance: %v", err)
			return rep
		}
		r.clock.Advance(d)
	}
	rep.At = r.clock.Now()

	if step.Call != "" {
		from, ok := r.accounts[step.From]
		if !ok {
			failf("unknown sender %q", step.From)
			return rep
		}
		var value *uint256.Int
		if step.Value != "" {
			v, err := ParseAmount(step.Value)
			if err != nil {
				failf("value: %v", err)
				return rep
			}
			value = v
		}
		res, err := r.world.Call(ctx, from, step.Call, value, NewArgs(step.Args, r.accounts))
		want := step.Expect
		if want == "ok" {
			want = ""
		}
		switch {
		case err != nil:
			rep.Error = chain.ReasonOf(err)
			if rep.Error == "" {
				rep.Error = err.Error()
			}
			if rep.Error != want {
				failf("got error %s (%v), want %s", rep.Error, err, orOK(want))
			}
		case want != "":
			failf("call succeeded, want %s", want)
		default:
			rep.Output = res.Output
		}
	}

	if step.Check != nil {
		for _, f := range r.check(step.Check, rep.Output) {
			failf("%s", f)
		}
	}
	return rep
}

func (r *runner) check(c *Check, out Output) []string {
	var failures []string
	compare := func(what, name, want string, got *uint256.Int) {
		v, err := ParseAmount(want)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s %s: %v", what, name, err))
			return
		}
		if !v.Eq(got) {
			failures = append(failures, fmt.Sprintf("%s %s = %s, want %s", what, name, got.Dec(), v.Dec()))
		}
	}
	for _, name := range sortedKeys(c.Native) {
		addr, ok := r.accounts[name]
		if !ok {
			failures = append(failures, fmt.Sprintf("unknown account %q", name))
			continue
		}
		native, _ := r.world.Balances(addr)
		compare("native", name, c.Native[name], native)
	}
	for _, name := range sortedKeys(c.Token) {
		addr, ok := r.accounts[name]
		if !ok {
			failures = append(failures, fmt.Sprintf("unknown account %q", name))
			continue
		}
		_, tok := r.world.Balances(addr)
		compare("token", name, c.Token[name], tok)
	}
	for _, key := range sortedKeys(c.Output) {
		if got := out[key]; got != c.Output[key] {
			failures = append(failures, fmt.Sprintf("output %s = %q, want %q", key, got, c.Output[key]))
		}
	}
	ids := make([]uint64, 0, len(c.Proposals))
	for id := range c.Proposals {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		var (
			state dao.State
			err   error
		)
		r.world.Engine.View(func(now time.Time) { state, err = r.world.DAO.State(now, id) })
		if err != nil {
			failures = append(failures, fmt.Sprintf("proposal %d: %v", id, err))
			continue
		}
		if state.String() != c.Proposals[id] {
			failures = append(failures, fmt.Sprintf("proposal %d is %s, want %s", id, state, c.Proposals[id]))
		}
	}
	return failures
}

func (r *runner) finish(rep *Report) {
	for _, name := range r.names {
		addr := r.accounts[name]
		native, tok := r.world.Balances(addr)
		rep.Accounts = append(rep.Accounts, AccountReport{Name: name, Address: addr, Native: native, Token: tok})
	}
	r.world.Engine.View(func(now time.Time) {
		for _, p := range r.world.DAO.Proposals() {
			state, _ := r.world.DAO.State(now, p.ID)
			rep.Proposals = append(rep.Proposals, ProposalReport{
				ID:      p.ID,
				Title:   p.Title,
				State:   state,
				For:     p.ForVotes.Clone(),
				Against: p.AgainstVotes.Clone(),
				Abstain: p.AbstainVotes.Clone(),
			})
		}
	})
}

func orOK(reason string) string {
	if reason == "" {
		return "success"
	}
	return reason
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
