package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/EO-DataHub/eodhp-user-admin/internal/appconfig"
	"github.com/EO-DataHub/eodhp-user-admin/internal/directory"
	"github.com/EO-DataHub/eodhp-user-admin/internal/querycache"
	"github.com/EO-DataHub/eodhp-user-admin/internal/remote"
	"github.com/EO-DataHub/eodhp-user-admin/internal/usertable"
	"github.com/EO-DataHub/eodhp-user-admin/models"
)

const consoleHelp = `Commands:
  /<text>              search as you type (applied after a short pause)
  search <text>        search by name or email now ("search" alone clears it)
  filter all|active|inactive
  page <n> | next | prev
  toggle <user-id>     activate or deactivate a user
  retry                reload the current page
  help | quit`

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive user admin table backed by the users API",
	Long: `Lists users page by page with search and status filtering and toggles
their status. When the API is unavailable a local mock directory is used.`,
	Run: func(cmd *cobra.Command, args []string) {

		// Load the config and set up logging
		commonSetUp()

		var table *usertable.Table

		rl, err := readline.NewEx(&readline.Config{
			Prompt:          "users> ",
			AutoComplete:    consoleCompleter,
			InterruptPrompt: "^C",
			EOFPrompt:       "quit",
			// "/" lines are live search input
			Listener: readline.FuncListener(func(line []rune, pos int, key rune) ([]rune, int, bool) {
				if s := string(line); strings.HasPrefix(s, "/") {
					table.SetSearch(strings.TrimPrefix(s, "/"))
				}
				return nil, 0, false
			}),
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to start console")
		}
		defer rl.Close()

		ctx := context.Background()
		out := rl.Stdout()

		table, closeTable, err := newConsoleTable(appCfg, func() {
			snap, _ := table.Load(ctx)
			renderTable(out, snap)
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to set up console")
		}
		defer closeTable()

		snap, _ := table.Load(ctx)
		renderTable(out, snap)
		fmt.Fprintln(out, `Type "help" for commands.`)

		confirm := func(prompt string) bool {
			rl.SetPrompt(prompt + " [y/N] ")
			defer rl.SetPrompt("users> ")
			answer, err := rl.Readline()
			if err != nil {
				return false
			}
			answer = strings.ToLower(strings.TrimSpace(answer))
			return answer == "y" || answer == "yes"
		}

		for {
			line, err := rl.Readline()
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if err != nil {
				return
			}
			if quit := runConsoleCommand(ctx, table, line, confirm, out); quit {
				return
			}
		}
	},
}

var consoleCompleter = readline.NewPrefixCompleter(
	readline.PcItem("search"),
	readline.PcItem("filter",
		readline.PcItem(string(models.StatusFilterAll)),
		readline.PcItem(string(models.StatusFilterActive)),
		readline.PcItem(string(models.StatusFilterInactive)),
	),
	readline.PcItem("page"),
	readline.PcItem("next"),
	readline.PcItem("prev"),
	readline.PcItem("toggle"),
	readline.PcItem("retry"),
	readline.PcItem("help"),
	readline.PcItem("quit"),
)

func init() {
	rootCmd.AddCommand(consoleCmd)
}

// newConsoleTable wires the table to the configured API with the seeded
// mock directory as fallback.
func newConsoleTable(cfg *appconfig.Config, onChange func()) (*usertable.Table, func(), error) {
	fallback := directory.NewSeeded(cfg.Server.SeedUsers, cfg.Server.Seed)

	opts := []remote.Option{
		remote.WithHTTPTimeout(cfg.Client.Timeout),
		remote.WithRetries(cfg.Client.Retries, 100*time.Millisecond),
	}
	if cfg.Client.Token != "" {
		opts = append(opts, remote.WithBearerToken(cfg.Client.Token))
	}
	client, err := remote.NewClient(cfg.Client.BaseURL, fallback, opts...)
	if err != nil {
		return nil, nil, err
	}

	cache := querycache.New(client)
	table := usertable.New(cache,
		usertable.WithPageSize(cfg.Client.PageSize),
		usertable.WithDebounce(cfg.Client.Debounce),
		usertable.WithOnChange(onChange),
	)
	return table, func() {
		table.Close()
		cache.Close()
	}, nil
}

// runConsoleCommand executes one console line and renders the result to
// out. It reports whether the console should exit.
func runConsoleCommand(ctx context.Context, table *usertable.Table, line string, confirm func(string) bool, out io.Writer) bool {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "/") {
		table.SetSearch(strings.TrimPrefix(line, "/"))
		table.ApplySearch()
		snap, _ := table.Load(ctx)
		renderTable(out, snap)
		return false
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "":
		snap, _ := table.Load(ctx)
		renderTable(out, snap)
		return false
	case "quit", "exit":
		return true
	case "help":
		fmt.Fprintln(out, consoleHelp)
		return false
	case "search":
		table.SetSearch(arg)
		table.ApplySearch()
	case "filter":
		f, err := models.ParseStatusFilter(arg)
		if err != nil {
			fmt.Fprintln(out, err)
			return false
		}
		table.SetStatusFilter(f)
	case "page", "next", "prev":
		if err := changePage(table, cmd, arg); err != nil {
			fmt.Fprintln(out, err)
			return false
		}
	case "toggle":
		if arg == "" {
			fmt.Fprintln(out, "usage: toggle <user-id>")
			return false
		}
		toggleUser(ctx, table, arg, confirm, out)
	case "retry":
		snap, _ := table.Retry(ctx)
		renderTable(out, snap)
		return false
	default:
		fmt.Fprintf(out, "unknown command %q, type \"help\"\n", cmd)
		return false
	}

	snap, _ := table.Load(ctx)
	renderTable(out, snap)
	return false
}

func changePage(table *usertable.Table, cmd, arg string) error {
	current := table.Snapshot()
	page := current.Page
	switch cmd {
	case "next":
		page++
	case "prev":
		page--
	default:
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("invalid page %q", arg)
		}
		page = n
	}
	if page < 1 || (current.PageCount > 0 && page > current.PageCount) {
		return fmt.Errorf("page %d is out of range", page)
	}
	return table.SetPage(page)
}

func toggleUser(ctx context.Context, table *usertable.Table, userID string, confirm func(string) bool, out io.Writer) {
	_, err := table.Toggle(ctx, userID, false)
	if errors.Is(err, usertable.ErrConfirmationRequired) {
		name := userID
		for _, r := range table.Snapshot().Rows {
			if r.UserID == userID {
				name = r.Name
			}
		}
		if !confirm(fmt.Sprintf("Deactivate %s? They will lose access until reactivated.", name)) {
			fmt.Fprintln(out, "cancelled")
			return
		}
		_, err = table.Toggle(ctx, userID, true)
	}
	if errors.Is(err, querycache.ErrNotFound) {
		fmt.Fprintf(out, "no user %q on this page\n", userID)
	}
}
