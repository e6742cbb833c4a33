package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/yusco/siteaudit/internal/e2etest"
	"github.com/yusco/siteaudit/internal/errors"
	"github.com/yusco/siteaudit/internal/logging"
)

// TestWizard starts an audit of the first site matching term and walks it up to the phase loop. Nothing is saved.
func TestWizard(client *e2etest.Client, term string) error {
	ctx := context.Background()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second) //nolint:mnd // 10 seconds
	defer cancel()

	doc, err := client.GetDoc(ctx, "/?q="+url.QueryEscape(term))
	if err != nil {
		return errors.Wrap(err, "search sites")
	}
	title, ok := doc.Find("#results input[name=title]").First().Attr("value")
	if !ok {
		return errors.New("no site found", slog.String("term", term))
	}
	if doc, err = client.SubmitForm(ctx, doc, "/project", url.Values{"title": {title}}); err != nil {
		return errors.Wrap(err, "select project", slog.String("title", title))
	}
	if doc.Find("form[action='/identification']").Length() == 0 {
		return errors.New("identification form missing")
	}
	if doc, err = client.SubmitForm(ctx, doc, "/restart", nil); err != nil {
		return errors.Wrap(err, "restart")
	}
	if !strings.Contains(doc.Find("main h2").Text(), "Sélection du Chantier") {
		return errors.New("restart did not return to the site selection")
	}
	return nil
}

func main() {
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	}))
	logger := slog.New(loggerHandler)
	ctx := context.Background()

	if len(os.Args) != 3 { //nolint:mnd // hostname and search term
		logger.LogAttrs(ctx, slog.LevelError, "usage: smoketest <hostname> <site search term>")
		os.Exit(1)
	}

	var (
		hostname = os.Args[1]
		term     = os.Args[2]
		baseURL  = "https://" + hostname
		client   *e2etest.Client
		err      error
	)
	ctx = logging.WithAttrs(ctx, slog.String("hostname", baseURL))

	if client, err = e2etest.NewClient(baseURL); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error creating client", errors.SlogError(err))
		os.Exit(1)
	}
	if err = TestWizard(client, term); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error testing wizard", errors.SlogError(err))
		os.Exit(1)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Smoke test successful 🙌")
	os.Exit(0)
}
