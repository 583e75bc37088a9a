package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/vaultsandbox/e3kit-go/internal/apierrors"
)

// Paths served by the reference server.
const (
	CardsPath       = "/v1/cards"
	CardSearchPath  = "/v1/cards/actions/search"
	KeyknoxPathBase = "/v1/keyknox"
	HealthPath      = "/healthz"
)

// EntryPath returns the path of a cloud entry.
func EntryPath(identity, name string) string {
	return fmt.Sprintf("%s/%s/%s", KeyknoxPathBase, url.PathEscape(identity), url.PathEscape(name))
}

// Health checks server liveness.
func (c *Client) Health(ctx context.Context) error {
	var result HealthResponse
	if err := c.Do(ctx, http.MethodGet, HealthPath, nil, &result); err != nil {
		return err
	}
	if result.Status != "ok" {
		return fmt.Errorf("server unhealthy: %q", result.Status)
	}
	return nil
}

// PublishCard publishes a card. Publishing the same identity and key twice
// returns the existing card. It is never retried.
func (c *Client) PublishCard(ctx context.Context, req PublishCardRequest) (*Card, error) {
	var result Card
	if err := c.do(ctx, http.MethodPost, CardsPath, req, &result, false); err != nil {
		return nil, apierrors.WithResourceType(err, apierrors.ResourceCard)
	}
	return &result, nil
}

// SearchCards returns the newest card of each identity that has one. The
// search has no side effects, so it is retried like a GET.
func (c *Client) SearchCards(ctx context.Context, identities []string) ([]Card, error) {
	var result SearchCardsResponse
	req := SearchCardsRequest{Identities: identities}
	if err := c.do(ctx, http.MethodPost, CardSearchPath, req, &result, true); err != nil {
		return nil, apierrors.WithResourceType(err, apierrors.ResourceCard)
	}
	return result.Cards, nil
}

// GetEntry retrieves a cloud entry.
func (c *Client) GetEntry(ctx context.Context, identity, name string) (*Entry, error) {
	var result Entry
	if err := c.Do(ctx, http.MethodGet, EntryPath(identity, name), nil, &result); err != nil {
		return nil, apierrors.WithResourceType(err, apierrors.ResourceEntry)
	}
	return &result, nil
}

// PutEntry writes a cloud entry if its current version equals
// expectedVersion, or creates it if expectedVersion is empty.
func (c *Client) PutEntry(ctx context.Context, identity, name string, data []byte, expectedVersion string) (*Entry, error) {
	var result Entry
	req := PutEntryRequest{Data: data, ExpectedVersion: expectedVersion}
	if err := c.Do(ctx, http.MethodPut, EntryPath(identity, name), req, &result); err != nil {
		return nil, apierrors.WithResourceType(err, apierrors.ResourceEntry)
	}
	return &result, nil
}

// DeleteEntry deletes a cloud entry if its current version equals version.
func (c *Client) DeleteEntry(ctx context.Context, identity, name, version string) error {
	path := EntryPath(identity, name) + "?version=" + url.QueryEscape(version)
	if err := c.Do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return apierrors.WithResourceType(err, apierrors.ResourceEntry)
	}
	return nil
}
