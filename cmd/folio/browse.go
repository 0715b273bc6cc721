package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/avoswald/folio/internal/client"
	"github.com/avoswald/folio/internal/services/shelf"
	"github.com/avoswald/folio/internal/services/viewer"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse the shelf interactively",
	Long: `Browse starts a read-eval-print loop over the shelf and the page
viewer. Shelf commands list, add, open and remove documents; once a
document is open, viewer commands page, zoom, and scroll through it.`,
	RunE: runBrowse,
}

func init() {
	rootCmd.AddCommand(browseCmd)
}

// printlnFn is a test seam for user-facing REPL output.
var printlnFn = fmt.Println

func runBrowse(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("browse needs an interactive terminal")
	}

	ctx := cmd.Context()
	if err := appClient.Shelf.Refresh(ctx); err != nil {
		printWarning("Listing unavailable, starting with an empty shelf: %v", err)
	}

	runREPL(ctx, browseApp{appClient}, bufio.NewScanner(os.Stdin))
	return nil
}

// runREPL reads a line, dispatches the first token, and loops until
// EOF or quit. Handler errors are printed, never fatal: the loop's
// job is I/O, not policy.
func runREPL(ctx context.Context, app browseClient, scanner *bufio.Scanner) {
	for {
		printlnFn(browsePrompt(app.ActiveSession()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, rest := parts[0], parts[1:]

		if sess := app.ActiveSession(); sess != nil {
			if done := viewerCommand(sess, app, cmd, rest); done {
				continue
			}
		}

		switch cmd {
		case "help", "?":
			printBrowseHelp(app.ActiveSession() != nil)

		case "l", "list":
			listShelf(app)

		case "add":
			if len(rest) == 0 {
				printlnFn("Usage: add <file>...")
				continue
			}
			browseAdd(ctx, app, rest)

		case "open":
			if len(rest) != 1 {
				printlnFn("Usage: open <id>")
				continue
			}
			browseOpen(ctx, app, rest[0])

		case "rm":
			if len(rest) != 1 {
				printlnFn("Usage: rm <id>")
				continue
			}
			if err := app.ShelfRemove(ctx, rest[0]); err != nil {
				printlnFn("Remove failed:", err)
			} else {
				printlnFn("Removed", rest[0])
			}

		case "refresh":
			if err := app.ShelfRefresh(ctx); err != nil {
				printlnFn("Refresh failed:", err)
			} else {
				listShelf(app)
			}

		case "exit", "quit", "q":
			app.CloseViewer()
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}

// viewerCommand handles the per-document commands. It reports whether
// the token was consumed so shelf commands still work while reading.
func viewerCommand(sess *viewer.Session, app browseClient, cmd string, rest []string) bool {
	switch cmd {
	case "n", "next":
		sess.GoTo(sess.CurrentPage() + 1)

	case "p", "prev":
		sess.GoTo(sess.CurrentPage() - 1)

	case "g", "goto":
		if len(rest) != 1 {
			printlnFn("Usage: g <page>")
			return true
		}
		// Committed like the page input field: invalid text reverts.
		applied := sess.CommitPageInput(rest[0])
		if fmt.Sprint(applied) != rest[0] {
			printlnFn("Staying on page", applied)
		}

	case "+", "zi":
		sess.ZoomIn()

	case "-", "zo":
		sess.ZoomOut()

	case "fit":
		sess.FitToContainer()

	case "axis":
		if sess.Axis() == viewer.AxisVertical {
			sess.SetAxis(viewer.AxisHorizontal)
		} else {
			sess.SetAxis(viewer.AxisVertical)
		}
		printlnFn("Axis:", string(sess.Axis()))

	case "mode":
		if sess.Mode() == viewer.ModeSingle {
			sess.SetMode(viewer.ModeContinuous)
		} else {
			sess.SetMode(viewer.ModeSingle)
		}
		printlnFn("Mode:", string(sess.Mode()))

	case "scroll":
		if len(rest) != 1 {
			printlnFn("Usage: scroll <offset>")
			return true
		}
		offset, err := strconv.ParseFloat(rest[0], 64)
		if err != nil {
			printlnFn("Not a number:", rest[0])
			return true
		}
		printlnFn("Page", sess.Scroll(offset))

	case "resize":
		if len(rest) != 2 {
			printlnFn("Usage: resize <width> <height>")
			return true
		}
		w, errW := strconv.ParseFloat(rest[0], 64)
		h, errH := strconv.ParseFloat(rest[1], 64)
		if errW != nil || errH != nil || w <= 0 || h <= 0 {
			printlnFn("Bad dimensions")
			return true
		}
		sess.SetContainerSize(w, h)

	case "close":
		app.CloseViewer()
		printlnFn("Closed")

	default:
		return false
	}
	return true
}

// browseClient is the command surface the REPL needs; browseApp
// adapts *client.Client to it and tests substitute a stub.
type browseClient interface {
	ActiveSession() *viewer.Session
	CloseViewer()
	OpenEntry(ctx context.Context, id string) (*viewer.Session, error)
	ShelfEntries() []shelfLine
	ShelfAdd(ctx context.Context, files []shelf.FileInput) ([]shelf.AddOutcome, error)
	ShelfRemove(ctx context.Context, id string) error
	ShelfRefresh(ctx context.Context) error
}

// shelfLine is the listing row the REPL prints.
type shelfLine struct {
	ID      string
	Name    string
	Size    int64
	Pending bool
}

// browseApp adapts the application client to the REPL surface.
type browseApp struct {
	c *client.Client
}

func (a browseApp) ActiveSession() *viewer.Session { return a.c.ActiveSession() }
func (a browseApp) CloseViewer()                   { a.c.CloseViewer() }

func (a browseApp) OpenEntry(ctx context.Context, id string) (*viewer.Session, error) {
	return a.c.OpenEntry(ctx, id)
}

func (a browseApp) ShelfEntries() []shelfLine {
	entries := a.c.Shelf.Entries()
	lines := make([]shelfLine, len(entries))
	for i, entry := range entries {
		lines[i] = shelfLine{
			ID:      entry.ID,
			Name:    entry.DisplayName,
			Size:    entry.SizeBytes,
			Pending: entry.Placeholder,
		}
	}
	return lines
}

func (a browseApp) ShelfAdd(ctx context.Context, files []shelf.FileInput) ([]shelf.AddOutcome, error) {
	return a.c.Shelf.AddFiles(ctx, files)
}

func (a browseApp) ShelfRemove(ctx context.Context, id string) error {
	return a.c.Shelf.Remove(ctx, id)
}

func (a browseApp) ShelfRefresh(ctx context.Context) error {
	return a.c.Shelf.Refresh(ctx)
}

func browsePrompt(sess *viewer.Session) string {
	if sess == nil {
		return "folio> shelf >"
	}
	return fmt.Sprintf("folio> page %d/%d %d%% >",
		sess.CurrentPage(), sess.PageCount(), sess.ZoomPercent())
}

func printBrowseHelp(reading bool) {
	printlnFn("Shelf: (l)ist, add <file>..., open <id>, rm <id>, refresh, quit")
	if reading {
		printlnFn("Viewer: (n)ext, (p)rev, g <page>, +, -, fit, axis, mode, scroll <offset>, resize <w> <h>, close")
	}
}

func listShelf(app browseClient) {
	lines := app.ShelfEntries()
	if len(lines) == 0 {
		printlnFn("The shelf is empty.")
		return
	}
	for i, line := range lines {
		marker := " "
		if line.Pending {
			marker = "*"
		}
		printlnFn(fmt.Sprintf("%2d.%s %-36s  %-40s  %s",
			i+1, marker, line.ID, line.Name, formatBytes(line.Size)))
	}
}

func browseAdd(ctx context.Context, app browseClient, paths []string) {
	files := make([]shelf.FileInput, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			printlnFn("Read failed:", err)
			continue
		}
		name := fileBase(p)
		files = append(files, shelf.FileInput{Name: name, Type: declaredType(name), Data: data})
	}
	if len(files) == 0 {
		return
	}

	outcomes, err := app.ShelfAdd(ctx, files)
	if err != nil {
		printlnFn("Add failed:", err)
		return
	}
	for _, outcome := range outcomes {
		if outcome.Skipped {
			printlnFn("Skipped", outcome.Name+":", outcome.Reason)
		} else {
			printlnFn("Uploading", outcome.Name, "as", outcome.Entry.ID)
		}
	}
}

func browseOpen(ctx context.Context, app browseClient, id string) {
	sess, err := app.OpenEntry(ctx, id)
	if err != nil {
		printlnFn("Open failed:", err)
		return
	}
	printlnFn(fmt.Sprintf("Opened %s: %d page(s)", id, sess.PageCount()))
}

func fileBase(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}
