package oauth

import (
	"context"
	"fmt"
	"io"
)

// Presenter is the presentation context a provider needs to show its login
// page, e.g. a browser window or a terminal the user reads the link from.
type Presenter interface {
	Present(ctx context.Context, authURL string) error
}

// PresenterFunc adapts a function to the Presenter interface.
type PresenterFunc func(ctx context.Context, authURL string) error

// Present calls f.
func (f PresenterFunc) Present(ctx context.Context, authURL string) error {
	return f(ctx, authURL)
}

// WriterPresenter asks the user to open the login page by printing its URL.
func WriterPresenter(w io.Writer) Presenter {
	return PresenterFunc(func(_ context.Context, authURL string) error {
		_, err := fmt.Fprintf(w, "Open this link to continue:\n\n  %s\n\n", authURL)
		return err
	})
}
