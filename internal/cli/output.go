package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/memora/backend/internal/client"
)

func printJSON(w io.Writer, v interface{}) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func memoryTable(w io.Writer, memories []client.Memory) {
	if len(memories) == 0 {
		fmt.Fprintln(w, "No memories yet.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tTITLE\tMOOD\tPHOTOS\tVISIBILITY\tCREATED")
	for _, m := range memories {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			m.ID, m.MemoryDate, m.Title, m.Mood, m.PhotoCount, m.Visibility, relativeTime(m.CreatedAt))
	}
	tw.Flush()
}

func memoryDetail(w io.Writer, m client.Memory) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Title:\t%s\n", m.Title)
	fmt.Fprintf(tw, "ID:\t%s\n", m.ID)
	fmt.Fprintf(tw, "Date:\t%s\n", m.MemoryDate)
	fmt.Fprintf(tw, "Mood:\t%s\n", m.Mood)
	fmt.Fprintf(tw, "Visibility:\t%s\n", m.Visibility)
	if m.Description != nil {
		fmt.Fprintf(tw, "Description:\t%s\n", *m.Description)
	}
	if m.Location != nil {
		fmt.Fprintf(tw, "Location:\t%s\n", *m.Location)
	}
	fmt.Fprintf(tw, "Photos:\t%d\n", m.PhotoCount)
	tw.Flush()

	for i, u := range m.AllMediaURLs {
		fmt.Fprintf(w, "  [%d] %s\n", i+1, u)
	}
}

func profileInfo(w io.Writer, p client.Profile) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Name:\t%s\n", p.Name)
	fmt.Fprintf(tw, "Email:\t%s\n", p.Email)
	fmt.Fprintf(tw, "ID:\t%s\n", p.ID)
	login := "password"
	if !p.HasPassword {
		login = "social"
	}
	fmt.Fprintf(tw, "Login:\t%s\n", login)
	tw.Flush()
}

// relativeTime formats a timestamp relative to now (e.g. "2h ago").
func relativeTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}
