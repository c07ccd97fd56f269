package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/omeyang/xlockable/pkg/lockable/xalloc"
	"github.com/omeyang/xlockable/pkg/lockable/xrequire"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func joinOrDash(ss []string) string { return orDash(strings.Join(ss, ",")) }

// printPool 输出配置声明的资源池。
func printPool(w io.Writer, resources []xalloc.ResourceConfig) {
	tw := newTable(w)
	fmt.Fprintln(tw, "NAME\tLABELS\tNOTE")
	for _, r := range resources {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Name, joinOrDash(r.Labels), orDash(r.Note))
	}
	_ = tw.Flush()
}

// printResources 输出分配器中的资源及其锁状态。
func printResources(w io.Writer, resources []xalloc.Resource) {
	tw := newTable(w)
	fmt.Fprintln(tw, "NAME\tLABELS\tSTATE\tHOLDER\tSINCE")
	for _, r := range resources {
		state := "free"
		switch {
		case r.Locked:
			state = "locked"
		case r.Retired:
			state = "retired"
		case r.Ephemeral:
			state = "ephemeral"
		}
		since := "-"
		if r.Locked {
			since = r.LockedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Name, joinOrDash(r.Labels), state, orDash(r.Holder), since)
	}
	_ = tw.Flush()
}

// printGrants 输出授权。
func printGrants(w io.Writer, grants []xalloc.Grant) {
	if len(grants) == 0 {
		fmt.Fprintln(w, "(no grants)")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "GRANT\tOWNER\tRESOURCES\tGRANTED AT")
	for _, g := range grants {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", g.ID, g.Owner, xalloc.FormatNames(g.Resources), g.GrantedAt.Format(time.RFC3339))
	}
	_ = tw.Flush()
}

// printPending 输出等待队列，按重扫顺序。
func printPending(w io.Writer, pending []xalloc.PendingRequest) {
	if len(pending) == 0 {
		fmt.Fprintln(w, "(no pending requests)")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "SEQ\tOWNER\tREQUIREMENTS\tPRIORITY\tSINCE")
	for _, p := range pending {
		prio := "normal"
		if p.InversePrecedence {
			prio = "elevated"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", p.Seq, p.Owner, xrequire.Describe(p.Requirements), prio, p.EnqueuedAt.Format(time.RFC3339))
	}
	_ = tw.Flush()
}
