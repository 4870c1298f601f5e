package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/EO-DataHub/eodhp-user-admin/internal/usertable"
)

const createdLayout = "2006-01-02"

// renderTable writes snap as an aligned text table followed by the page
// footer and the current message.
func renderTable(out io.Writer, snap usertable.Snapshot) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tSTATUS\tCREATED\tGROUPS\tACTION")
	for _, r := range snap.Rows {
		groups := make([]string, 0, len(r.Groups))
		for _, g := range r.Groups {
			groups = append(groups, g.Name)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.UserID, r.Name, r.Email, r.Status, r.CreatedAt.Format(createdLayout),
			strings.Join(groups, ","), r.Action)
	}
	_ = tw.Flush()

	if len(snap.Rows) == 0 && !snap.Loading {
		fmt.Fprintln(out, "No users found.")
	}

	footer := fmt.Sprintf("Page %d of %d, %d users", snap.Page, snap.PageCount, snap.TotalCount)
	if snap.Search != "" {
		footer += fmt.Sprintf(", search %q", snap.Search)
	}
	footer += fmt.Sprintf(", filter %s", snap.Status)
	if snap.Placeholder {
		footer += " (loading)"
	}
	fmt.Fprintln(out, footer)

	if snap.Message.Text != "" {
		line := snap.Message.Text
		if snap.Message.Retry {
			line += ` Type "retry" to try again.`
		}
		fmt.Fprintln(out, line)
	}
}
