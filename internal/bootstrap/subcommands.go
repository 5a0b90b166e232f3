package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/muesli/reflow/truncate"
	urfavecli "github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/chmouel/lazystatus/internal/app"
	"github.com/chmouel/lazystatus/internal/app/services"
	"github.com/chmouel/lazystatus/internal/engine"
	"github.com/chmouel/lazystatus/internal/utils"
)

const (
	settleInterval = 10 * time.Millisecond
	defaultTimeout = 30 * time.Second
)

var runTUI = app.Run

func timeoutFlag() urfavecli.Flag {
	return &urfavecli.DurationFlag{
		Name:  "timeout",
		Usage: "Give up waiting for the scan after this long",
		Value: defaultTimeout,
	}
}

func watchCommand() *urfavecli.Command {
	return &urfavecli.Command{
		Name:   "watch",
		Usage:  "Show the live status tree (default)",
		Action: handleWatchAction,
	}
}

func statusCommand() *urfavecli.Command {
	return &urfavecli.Command{
		Name:    "status",
		Aliases: []string{"st"},
		Usage:   "Scan the working tree once and print the status tree",
		Action:  handleStatusAction,
		Flags: []urfavecli.Flag{
			&urfavecli.BoolFlag{
				Name:    "all",
				Aliases: []string{"a"},
				Usage:   "Include clean files",
			},
			&urfavecli.BoolFlag{
				Name:  "json",
				Usage: "Output changed entries as JSON",
			},
			timeoutFlag(),
		},
	}
}

func stageCommand() *urfavecli.Command {
	return &urfavecli.Command{
		Name:      "stage",
		Aliases:   []string{"add"},
		Usage:     "Stage paths and print their new status",
		ArgsUsage: "PATH...",
		Action: func(ctx context.Context, cmd *urfavecli.Command) error {
			return handleStageAction(ctx, cmd, engine.OpStage)
		},
		Flags: stageFlags(),
	}
}

func unstageCommand() *urfavecli.Command {
	return &urfavecli.Command{
		Name:      "unstage",
		Aliases:   []string{"reset"},
		Usage:     "Unstage paths and print their new status",
		ArgsUsage: "PATH...",
		Action: func(ctx context.Context, cmd *urfavecli.Command) error {
			return handleStageAction(ctx, cmd, engine.OpUnstage)
		},
		Flags: stageFlags(),
	}
}

func stageFlags() []urfavecli.Flag {
	return []urfavecli.Flag{
		&urfavecli.BoolFlag{
			Name:  "with-meta",
			Usage: "Include the .meta sidecar of every path",
		},
		timeoutFlag(),
	}
}

// handleWatchAction starts the interactive client.
func handleWatchAction(_ context.Context, cmd *urfavecli.Command) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := runTUI(s.cfg, s.engine); err != nil {
		return fmt.Errorf("error running app: %w", err)
	}
	return nil
}

// handleStatusAction settles the engine and prints the published view.
func handleStatusAction(ctx context.Context, cmd *urfavecli.Command) error {
	s, err := openSession(cmd, headless)
	if err != nil {
		return err
	}
	defer s.Close()

	view, err := settle(ctx, s.engine, cmd.Duration("timeout"))
	if err != nil {
		return err
	}

	out := writer(cmd)
	if cmd.Bool("json") {
		return outputStatusJSON(out, view)
	}
	outputStatusTree(out, view, cmd.Bool("all"), outputWidth(out))
	return nil
}

// handleStageAction stages or unstages the arguments synchronously, then
// prints the status the follow-up rescan published for them.
func handleStageAction(ctx context.Context, cmd *urfavecli.Command, kind string) error {
	if cmd.NArg() == 0 {
		return fmt.Errorf("usage: lazystatus %s PATH...", cmd.Name)
	}

	s, err := openSession(cmd, headless)
	if err != nil {
		return err
	}
	defer s.Close()

	paths, err := repoRelativePaths(s.engine.RepoPath(), cmd.Args().Slice())
	if err != nil {
		return err
	}
	if cmd.Bool("with-meta") {
		paths = utils.PathsWithMeta(paths)
	}

	timeout := cmd.Duration("timeout")
	// the first settle opens the repository
	if _, err := settle(ctx, s.engine, timeout); err != nil {
		return err
	}
	if kind == engine.OpUnstage {
		err = s.engine.UnstageSync(paths)
	} else {
		err = s.engine.StageSync(paths)
	}
	if err != nil {
		return err
	}
	view, err := settle(ctx, s.engine, timeout)
	if err != nil {
		return err
	}

	out := writer(cmd)
	for _, p := range paths {
		fmt.Fprintf(out, "%s %s\n", app.StatusGlyph(view.Snapshot.Status(p)), p)
	}
	return nil
}

// headless runs tree builds inline for one-shot commands, which render no
// list and tick on their own goroutine.
func headless(t engine.Threading) engine.Threading {
	return t &^ (engine.ThreadingTree | engine.ThreadingList)
}

func settle(ctx context.Context, eng *engine.Engine, timeout time.Duration) (*engine.View, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	view, err := eng.Settle(ctx, settleInterval)
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("working tree not settled after %s (gate: %s)", timeout, eng.Gate())
	}
	return view, err
}

// repoRelativePaths resolves command line paths against the current
// directory and returns them relative to root.
func repoRelativePaths(root string, args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, err
		}
		rel, ok := utils.RelativeTo(root, abs)
		if !ok || rel == "" {
			return nil, fmt.Errorf("%s is outside the working tree %s", arg, root)
		}
		out = append(out, rel)
	}
	return out, nil
}

func writer(cmd *urfavecli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

// outputWidth returns the terminal width, or 0 when out is not a terminal.
func outputWidth(out io.Writer) int {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}

// outputStatusTree prints the flattened tree, one row per line.
func outputStatusTree(out io.Writer, view *engine.View, all bool, width int) {
	counts := view.Snapshot.Counts()
	header := fmt.Sprintf("%s  +%d ~%d ?%d", view.Branch, counts.Staged, counts.Unstaged, counts.Untracked)
	if counts.Conflicted > 0 {
		header += fmt.Sprintf(" !%d", counts.Conflicted)
	}
	fmt.Fprintln(out, strings.TrimSpace(header))

	rows := services.FlattenTree(view.Tree, services.FlattenOptions{ShowClean: all})
	if len(rows) == 0 {
		fmt.Fprintln(out, "nothing to show, working tree clean")
		return
	}
	for _, row := range rows {
		glyph := "  "
		if !row.IsDir || row.ForceStatus {
			glyph = app.StatusGlyph(row.Status)
		}
		label := row.Label
		if row.IsDir {
			label += "/"
		}
		line := strings.Repeat("  ", row.Depth) + glyph + " " + label
		if width > 0 {
			line = truncate.StringWithTail(line, uint(width), "…")
		}
		fmt.Fprintln(out, line)
	}
}

// statusJSON represents the JSON output format for one entry.
type statusJSON struct {
	Path   string `json:"path"`
	Code   string `json:"code"`
	Status string `json:"status"`
}

type viewJSON struct {
	Branch  string       `json:"branch"`
	Entries []statusJSON `json:"entries"`
}

// outputStatusJSON prints the changed entries of the view.
func outputStatusJSON(out io.Writer, view *engine.View) error {
	doc := viewJSON{Branch: view.Branch, Entries: []statusJSON{}}
	for _, e := range view.Snapshot.Entries() {
		if e.Status.IsUnaltered() {
			continue
		}
		doc.Entries = append(doc.Entries, statusJSON{
			Path:   e.Path,
			Code:   app.StatusGlyph(e.Status),
			Status: e.Status.String(),
		})
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
