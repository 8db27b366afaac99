package console

import (
	"os"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	valueobjects "ledgerdesk/internal/domain/value_objects"
)

// Message keys. English text doubles as the key and the fallback.
const (
	msgStartupFailed      = "LedgerDesk could not start"
	msgStartupInterrupted = "LedgerDesk startup was interrupted"
	msgStageFailed        = "The %s step failed: %s"
	msgErrorCode          = "Error code: %s"
	msgRunID              = "Run ID: %s"
	msgSeeLog             = "See the log file for details."
	msgPreparing          = "Preparing the database..."
	msgTableHeader        = "Table"
	msgRowsHeader         = "Rows"
	msgTotal              = "Total"
	msgReady              = "Ready. %d tables verified."
	msgPressEnter         = "Press Enter to exit."
)

var stageLabels = map[valueobjects.BootstrapStage]string{
	valueobjects.BootstrapStageConnectivity: "database connection",
	valueobjects.BootstrapStageSchemaEnsure: "database creation",
	valueobjects.BootstrapStageMigration:    "schema upgrade",
	valueobjects.BootstrapStageVerification: "table check",
}

var translations = map[language.Tag]map[string]string{
	language.German: {
		msgStartupFailed:      "LedgerDesk konnte nicht gestartet werden",
		msgStartupInterrupted: "Der Start von LedgerDesk wurde abgebrochen",
		msgStageFailed:        "Der Schritt %s ist fehlgeschlagen: %s",
		msgErrorCode:          "Fehlercode: %s",
		msgRunID:              "Lauf-ID: %s",
		msgSeeLog:             "Details stehen in der Protokolldatei.",
		msgPreparing:          "Datenbank wird vorbereitet...",
		msgTableHeader:        "Tabelle",
		msgRowsHeader:         "Zeilen",
		msgTotal:              "Summe",
		msgReady:              "Bereit. %d Tabellen geprüft.",
		msgPressEnter:         "Zum Beenden die Eingabetaste drücken.",
		"database connection": "Datenbankverbindung",
		"database creation":   "Datenbankanlage",
		"schema upgrade":      "Schemaaktualisierung",
		"table check":         "Tabellenprüfung",
	},
}

var supportedLocales = []language.Tag{language.English, language.German}

var messages = newCatalog()

func newCatalog() *catalog.Builder {
	builder := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, entries := range translations {
		for key, text := range entries {
			if err := builder.SetString(tag, key, text); err != nil {
				panic(err)
			}
		}
	}

	return builder
}

// NewPrinter returns a printer for tag backed by the LedgerDesk catalog.
func NewPrinter(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag, message.Catalog(messages))
}

// DetectLocale resolves the UI language. A configured BCP 47 tag wins,
// otherwise LC_ALL, LC_MESSAGES and LANG are consulted. Unsupported languages
// fall back to English.
func DetectLocale(configured string) language.Tag {
	candidates := []string{configured, os.Getenv("LC_ALL"), os.Getenv("LC_MESSAGES"), os.Getenv("LANG")}
	for _, candidate := range candidates {
		tag, ok := parseLocale(candidate)
		if !ok {
			continue
		}

		_, index, confidence := language.NewMatcher(supportedLocales).Match(tag)
		if confidence == language.No {
			return language.English
		}
		return supportedLocales[index]
	}

	return language.English
}

// parseLocale accepts BCP 47 tags and POSIX locale names such as de_DE.UTF-8.
func parseLocale(value string) (language.Tag, bool) {
	value = strings.TrimSpace(value)
	if value == "" || value == "C" || value == "POSIX" {
		return language.Und, false
	}
	if cut := strings.IndexAny(value, ".@"); cut >= 0 {
		value = value[:cut]
	}

	tag, err := language.Parse(strings.ReplaceAll(value, "_", "-"))
	if err != nil {
		return language.Und, false
	}

	return tag, true
}

func stageLabel(printer *message.Printer, stage valueobjects.BootstrapStage) string {
	label, ok := stageLabels[stage]
	if !ok {
		return stage.String()
	}

	return printer.Sprintf(label)
}
