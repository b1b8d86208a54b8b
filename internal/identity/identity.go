package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Profile is the public identity of a user as known to the platform.
type Profile struct {
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
}

// Resolver looks up the display identity behind an opaque user id. The
// second return is false when the user is unknown.
type Resolver interface {
	Resolve(ctx context.Context, userID string) (Profile, bool, error)
}

// NullResolver reports every user as unknown. Used when no identity
// endpoint is configured; redeems still carry the raw user id.
type NullResolver struct{}

func (NullResolver) Resolve(context.Context, string) (Profile, bool, error) {
	return Profile{}, false, nil
}

// HTTPResolver resolves users against the platform identity endpoint.
type HTTPResolver struct {
	client *resty.Client
}

func NewHTTPResolver(baseURL string) *HTTPResolver {
	return &HTTPResolver{
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(5 * time.Second).
			SetRetryCount(2),
	}
}

func (r *HTTPResolver) Resolve(ctx context.Context, userID string) (Profile, bool, error) {
	var profile Profile
	resp, err := r.client.R().
		SetContext(ctx).
		SetResult(&profile).
		SetPathParam("id", userID).
		Get("/users/{id}")
	if err != nil {
		return Profile{}, false, fmt.Errorf("resolve user %s: %w", userID, err)
	}
	if resp.StatusCode() == 404 {
		return Profile{}, false, nil
	}
	if resp.IsError() {
		return Profile{}, false, fmt.Errorf("resolve user %s: status %d", userID, resp.StatusCode())
	}
	return profile, true, nil
}
