package oauth

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	apperrors "github.com/carlossalguero/socialauth/services/shared/errors"
)

// authorize shows the page built by authURL and waits for the redirect that
// carries the same state. A redirect without an error always has a code.
func authorize(ctx context.Context, recv *Receiver, presenter Presenter, authURL func(state string) string) (Redirect, error) {
	if presenter == nil {
		return Redirect{}, apperrors.InvalidInput("a presentation context is required")
	}

	state := uuid.NewString()
	ch := recv.Expect(state)
	defer recv.Forget(state)

	if err := presenter.Present(ctx, authURL(state)); err != nil {
		return Redirect{}, fmt.Errorf("presenting login page: %w", err)
	}

	select {
	case <-ctx.Done():
		return Redirect{}, ctx.Err()
	case rd := <-ch:
		switch {
		case rd.Cancelled():
			return rd, ErrCancelled
		case rd.Error != "":
			return rd, apperrors.OAuthError(rd.Error).WithDetails(rd.ErrorDescription)
		case rd.Code == "":
			return rd, apperrors.OAuthError("redirect carried no authorization code")
		}
		return rd, nil
	}
}
