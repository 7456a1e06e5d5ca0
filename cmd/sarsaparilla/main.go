// Command sarsaparilla is a thin CLI front-end over the query orchestrator
// (spec §6's external interface, exposed as a convenience driver rather
// than a new surface): it reads a rule corpus, an initial-state file and a
// query file, drives pkg/query.Orchestrator to completion, and prints
// every nession assessed and any attack found.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/hashicorp/go-hclog"

	"sarsaparilla/pkg/attack"
	"sarsaparilla/pkg/horn"
	"sarsaparilla/pkg/model"
	"sarsaparilla/pkg/nession"
	"sarsaparilla/pkg/query"
	"sarsaparilla/pkg/rule"
	"sarsaparilla/pkg/term"
)

// CLI is the kong command definition (spec §6's configuration options,
// flattened onto flags). One non-blank, non-comment ('#') line per rule,
// state or query file.
var CLI struct {
	Rules  string `arg:"" help:"Path to a rule corpus file (one rule per line)."`
	States string `arg:"" help:"Path to an initial-state file (one cell(value) per line)."`
	Query  string `arg:"" help:"Path to a query file (one message per line)."`

	MaxNessionDepth      int           `help:"Maximum nession depth to explore." default:"6"`
	MaxMessageDepth      int           `help:"Maximum elaborated clause message depth." default:"20"`
	MaxBranchingPerFrame int           `help:"Maximum nession branches kept per frame." default:"8"`
	PerNessionTimeBudget time.Duration `help:"Wall-clock budget per nession (0 = unbounded)."`
	PerQueryTimeBudget   time.Duration `help:"Wall-clock budget for the whole query (0 = unbounded)."`
	BreadthFirst         bool          `help:"Elaborate breadth-first instead of priority-by-rank."`
	LogLevel             string        `help:"Log level (trace, debug, info, warn, error)." default:"info"`
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, s.Err()
}

func loadRules(path string) ([]*rule.Rule, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules: %w", err)
	}
	rules, err := rule.ParseCorpus(lines)
	if err != nil {
		return rules, fmt.Errorf("parsing rules: %w", err)
	}
	return rules, nil
}

func loadInitialStates(path string) (map[string]*term.Message, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, fmt.Errorf("reading initial states: %w", err)
	}
	states := make([]model.State, 0, len(lines))
	for i, line := range lines {
		s, err := model.ParseState(line)
		if err != nil {
			return nil, fmt.Errorf("initial state %d: %w", i, err)
		}
		states = append(states, s)
	}
	initial, err := rule.ValidateInitialStates(states)
	if err != nil {
		return nil, fmt.Errorf("validating initial states: %w", err)
	}
	return initial, nil
}

func loadQueries(path string) ([]*term.Message, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, fmt.Errorf("reading queries: %w", err)
	}
	queries := make([]*term.Message, 0, len(lines))
	for i, line := range lines {
		msg, err := term.ParseMessage(line)
		if err != nil {
			return nil, fmt.Errorf("query %d: %w", i, err)
		}
		queries = append(queries, msg)
	}
	return queries, nil
}

func main() {
	kong.Parse(&CLI, kong.Description("Stateful Horn-clause protocol verifier."))

	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "sarsaparilla",
		Level: hclog.LevelFromString(CLI.LogLevel),
	})

	rules, err := loadRules(CLI.Rules)
	if err != nil {
		logger.Error("failed to load rules", "error", err)
		os.Exit(1)
	}
	initial, err := loadInitialStates(CLI.States)
	if err != nil {
		logger.Error("failed to load initial states", "error", err)
		os.Exit(1)
	}
	queries, err := loadQueries(CLI.Query)
	if err != nil {
		logger.Error("failed to load queries", "error", err)
		os.Exit(1)
	}

	strategy := query.PriorityByRank
	if CLI.BreadthFirst {
		strategy = query.BreadthFirst
	}
	cfg := query.Config{
		MaxNessionDepth:      CLI.MaxNessionDepth,
		MaxMessageDepth:      CLI.MaxMessageDepth,
		MaxBranchingPerFrame: CLI.MaxBranchingPerFrame,
		PerNessionTimeBudget: CLI.PerNessionTimeBudget,
		PerQueryTimeBudget:   CLI.PerQueryTimeBudget,
		ElaborationStrategy:  strategy,
	}

	metrics := query.NewMetrics()
	o := query.NewOrchestrator(rules, initial, queries, cfg,
		query.WithLogger(logger), query.WithMetrics(metrics))

	result := o.Execute(context.Background(), query.Callbacks{
		OnLevelStart: func(depth int) {
			fmt.Printf("== depth %d ==\n", depth)
		},
		OnNessionAssessed: func(n *nession.Nession, clauses []*horn.HornClause, atk *attack.Attack) {
			fmt.Printf("%s: %d clauses", n.Label(), len(clauses))
			if atk != nil {
				fmt.Printf(" -- ATTACK: %s", atk.String())
			}
			fmt.Println()
		},
	})

	reportAttacks(result)
	if result.Status == query.StatusGlobalAttack || result.FirstAttackDepth > 0 {
		os.Exit(2)
	}
}

func reportAttacks(result query.Result) {
	fmt.Printf("status: %s\n", result.Status)
	if result.Status == query.StatusGlobalAttack {
		for q, atk := range result.GlobalAttacks {
			fmt.Printf("ATTACK on %s: %s\n", q, atk.String())
		}
		return
	}
	if result.FirstAttackDepth > 0 {
		fmt.Printf("attack found at nession depth %d\n", result.FirstAttackDepth)
		return
	}
	fmt.Println("no attack found")
}
