package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/pavcore/internal/results"
	"github.com/Dicklesworthstone/pavcore/internal/store"
	"github.com/Dicklesworthstone/pavcore/internal/tui/theme"
)

var convertForce bool

// ConvertResult is the JSON output of convert.
type ConvertResult struct {
	Source      string       `json:"source"`
	Destination string       `json:"destination"`
	Format      store.Format `json:"format"`
	NumAlts     int          `json:"num_alts"`
	K           int          `json:"k"`
	Histories   int          `json:"histories"`
}

func newConvertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert SRC DST",
		Short: "Convert a result artifact between YAML and SQLite",
		Long: `Read the artifact at SRC and write it to DST in the format named by DST's
extension (.yaml, .yml, .db, .sqlite, .sqlite3). The written artifact is
read back and compared with the source; any difference is shown as a
line diff and the command fails.

Examples:
  pavcore convert results/12/info-12-9.yaml results/12/info-12-9.db
  pavcore convert info-12-9.db info-12-9.yaml --force`,
		Args: cobra.ExactArgs(2),
		RunE: runConvert,
	}

	cmd.Flags().BoolVarP(&convertForce, "force", "f", false, "overwrite DST if it exists")

	return cmd
}

func runConvert(cmd *cobra.Command, args []string) error {
	src, dst := args[0], args[1]
	format, err := store.FormatOf(dst)
	if err != nil {
		return err
	}
	if !convertForce {
		if _, err := os.Stat(dst); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", dst)
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}

	m, err := store.Load(src)
	if err != nil {
		return err
	}
	logger.Debug("artifact loaded", "path", src, "histories", m.Len())
	if err := store.Save(dst, m); err != nil {
		return err
	}

	written, err := store.Load(dst)
	if err != nil {
		return fmt.Errorf("reading back %s: %w", dst, err)
	}
	if diff, err := roundTripDiff(m, written); err != nil {
		return err
	} else if diff != "" {
		fmt.Fprint(cmd.ErrOrStderr(), diff)
		return fmt.Errorf("%s does not match %s after conversion", dst, src)
	}

	res := ConvertResult{
		Source:      src,
		Destination: dst,
		Format:      format,
		NumAlts:     m.NumAlts,
		K:           m.K,
		Histories:   m.Len(),
	}
	if IsJSONOutput() {
		return printJSON(cmd.OutOrStdout(), res)
	}

	th := theme.Current()
	ok := lipgloss.NewStyle().Bold(true).Foreground(th.Success).Render("✓")
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s → %s (%s, num_alts=%d k=%d, %d histories)\n",
		ok, src, dst, format, res.NumAlts, res.K, res.Histories)
	return nil
}

// roundTripDiff renders both maps canonically and returns a line diff of
// the two, or "" when they agree.
func roundTripDiff(want, got *results.Map) (string, error) {
	a, err := store.Canonical(want)
	if err != nil {
		return "", err
	}
	b, err := store.Canonical(got)
	if err != nil {
		return "", err
	}
	if a == b {
		return "", nil
	}
	return lineDiff(a, b), nil
}

// lineDiff formats the differing lines of a and b with -/+ markers.
func lineDiff(a, b string) string {
	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)

	var sb strings.Builder
	for _, d := range diffs {
		var prefix string
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		default:
			continue
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			sb.WriteString(prefix + line + "\n")
		}
	}
	return sb.String()
}
