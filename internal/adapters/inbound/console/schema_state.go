package console

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	valueobjects "ledgerdesk/internal/domain/value_objects"
)

// RenderSchemaState prints the migration status reported by a handle.
func RenderSchemaState(out io.Writer, provider string, state valueobjects.SchemaState) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.SetTitle("Migrations (" + provider + ")")
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("KEY"),
		text.FgHiCyan.Sprint("VALUE"),
	})

	version := "none"
	if state.Versioned {
		version = fmt.Sprintf("%d", state.CurrentVersion)
		if state.Dirty {
			version += " " + text.FgRed.Sprint("(dirty)")
		}
	}

	t.AppendRow(table.Row{"database exists", state.DatabaseExists})
	t.AppendRow(table.Row{"current version", version})
	t.AppendRow(table.Row{"source fingerprint", state.SourceFingerprint})
	t.AppendSeparator()

	if !state.HasPending() {
		t.AppendRow(table.Row{"pending", text.FgGreen.Sprint("up to date")})
	}
	for _, id := range state.PendingIDs() {
		t.AppendRow(table.Row{"pending", text.FgYellow.Sprint(id)})
	}

	t.Render()
}
