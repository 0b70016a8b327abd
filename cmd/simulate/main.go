// simulate runs a headless AI-vs-AI battle from content, for balancing.
//
// Usage:
//
//	go run ./cmd/simulate -players knight,cleric -enemies goblin,troll
//	go run ./cmd/simulate -players rogue -enemies wolf -seed 42 -runs 100
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/udisondev/skirmish/internal/data"
	"github.com/udisondev/skirmish/internal/game/battle"
	"github.com/udisondev/skirmish/internal/model"
)

type options struct {
	players  []string
	enemies  []string
	seed     string
	salt     string
	maxTurns int
}

func main() {
	content := flag.String("content", "content", "content directory")
	players := flag.String("players", "knight,cleric", "player team templates, comma separated")
	enemies := flag.String("enemies", "goblin,shaman", "enemy team templates, comma separated")
	seed := flag.String("seed", "1", "battle seed")
	salt := flag.String("salt", battle.DefaultSalt, "seed salt")
	maxTurns := flag.Int("max-turns", battle.DefaultMaxTurns, "rounds before a draw")
	runs := flag.Int("runs", 1, "number of battles; more than one prints only the summary")
	asJSON := flag.Bool("json", false, "print the result as JSON")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx := context.Background()
	catalog, err := data.LoadDir(ctx, *content)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	opts := options{
		players:  splitList(*players),
		enemies:  splitList(*enemies),
		seed:     *seed,
		salt:     *salt,
		maxTurns: *maxTurns,
	}

	if *runs > 1 {
		sum, err := batch(ctx, catalog, opts, *runs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		printSummary(os.Stdout, sum)
		return
	}

	b, err := simulate(ctx, catalog, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	res, _ := b.Result()
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	printBattle(os.Stdout, b.LogEntries(), res)
}

// simulate plays both teams with the battle AI until the battle ends.
func simulate(ctx context.Context, catalog *data.Catalog, opts options) (*battle.Battle, error) {
	players, err := catalog.Team(opts.players, model.TeamPlayer, "p")
	if err != nil {
		return nil, err
	}
	enemies, err := catalog.Team(opts.enemies, model.TeamEnemy, "e")
	if err != nil {
		return nil, err
	}
	b, err := battle.New("sim-"+opts.seed, players, enemies, catalog, battle.Options{
		Salt:     opts.salt,
		MaxTurns: opts.maxTurns,
	})
	if err != nil {
		return nil, err
	}
	for !b.Status().Finished() {
		if err := b.RunAITurn(ctx); err != nil {
			return nil, fmt.Errorf("turn failed: %w", err)
		}
	}
	return b, nil
}

type summary struct {
	runs     int
	outcomes map[battle.Status]int
	turns    int
}

func batch(ctx context.Context, catalog *data.Catalog, opts options, runs int) (summary, error) {
	sum := summary{runs: runs, outcomes: map[battle.Status]int{}}
	for i := range runs {
		o := opts
		o.seed = fmt.Sprintf("%s-%d", opts.seed, i)
		b, err := simulate(ctx, catalog, o)
		if err != nil {
			return sum, err
		}
		res, _ := b.Result()
		sum.outcomes[res.Status]++
		sum.turns += res.Turns
	}
	return sum, nil
}

func printBattle(w io.Writer, log []battle.LogEntry, res battle.Result) {
	for _, e := range log {
		fmt.Fprintf(w, "[%3d] %s\n", e.Turn, e.Text)
	}
	fmt.Fprintf(w, "\nresult: %s after %d turns (battle %s)\n\n", res.Status, res.Turns, res.BattleID)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHARACTER\tTEAM\tDEALT\tTAKEN\tHEALED\tDODGES\tCRITS\tKILLS\tCASTS\tALIVE")
	for _, p := range res.Participants {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%t\n",
			p.CharacterID, p.Team, p.DamageDealt, p.DamageTaken, p.HealingDone,
			p.Dodges, p.Crits, p.Kills, p.AbilitiesUsed, p.Survived)
	}
	tw.Flush()
}

func printSummary(w io.Writer, s summary) {
	fmt.Fprintf(w, "runs:      %d\n", s.runs)
	for _, st := range []battle.Status{battle.StatusVictory, battle.StatusDefeat, battle.StatusDraw} {
		fmt.Fprintf(w, "%-10s %d (%.1f%%)\n", string(st)+":", s.outcomes[st], 100*float64(s.outcomes[st])/float64(s.runs))
	}
	fmt.Fprintf(w, "avg turns: %.1f\n", float64(s.turns)/float64(s.runs))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
