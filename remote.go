package e3kit

import (
	"context"
	"errors"

	"github.com/vaultsandbox/e3kit-go/internal/api"
)

// buildAPIClient creates the HTTP client shared by the remote directory and
// cloud store. The bearer token is the one EThree attached to the context.
func buildAPIClient(cfg *config) (*api.Client, error) {
	apiOpts := []api.Option{
		api.WithBaseURL(cfg.baseURL),
	}
	if cfg.timeout > 0 {
		apiOpts = append(apiOpts, api.WithTimeout(cfg.timeout))
	}
	if cfg.retries > 0 {
		apiOpts = append(apiOpts, api.WithRetries(cfg.retries))
	}
	if len(cfg.retryOn) > 0 {
		apiOpts = append(apiOpts, api.WithRetryOn(cfg.retryOn))
	}

	apiClient, err := api.New(contextToken, apiOpts...)
	if err != nil {
		return nil, err
	}

	if cfg.httpClient != nil {
		apiClient.SetHTTPClient(cfg.httpClient)
	}

	return apiClient, nil
}

func contextToken(ctx context.Context) (string, error) {
	tok, _ := TokenFromContext(ctx)
	return tok, nil
}

type remoteDirectory struct {
	api *api.Client
}

func (d *remoteDirectory) Publish(ctx context.Context, identity string, publicKey []byte, previousCardID string) (*Card, error) {
	c, err := d.api.PublishCard(ctx, api.PublishCardRequest{
		Identity:       identity,
		PublicKey:      publicKey,
		PreviousCardID: previousCardID,
	})
	if errors.Is(err, api.ErrConflict) {
		return nil, ErrCardConflict
	}
	if err != nil {
		return nil, wrapError(err)
	}
	return fromAPICard(*c), nil
}

func (d *remoteDirectory) Lookup(ctx context.Context, identities []string) (map[string]*Card, error) {
	cards, err := d.api.SearchCards(ctx, identities)
	if err != nil {
		return nil, wrapError(err)
	}
	out := make(map[string]*Card, len(cards))
	for _, c := range cards {
		out[c.Identity] = fromAPICard(c)
	}
	return out, nil
}

type remoteCloud struct {
	api *api.Client
}

func (s *remoteCloud) Get(ctx context.Context, identity, name string) (*CloudEntry, error) {
	e, err := s.api.GetEntry(ctx, identity, name)
	if err != nil {
		return nil, remoteCloudError(err)
	}
	return fromAPIEntry(*e), nil
}

func (s *remoteCloud) Put(ctx context.Context, identity, name string, data []byte, expectedVersion string) (*CloudEntry, error) {
	e, err := s.api.PutEntry(ctx, identity, name, data, expectedVersion)
	if err != nil {
		return nil, remoteCloudError(err)
	}
	return fromAPIEntry(*e), nil
}

func (s *remoteCloud) Delete(ctx context.Context, identity, name, expectedVersion string) error {
	return remoteCloudError(s.api.DeleteEntry(ctx, identity, name, expectedVersion))
}

func remoteCloudError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, api.ErrEntryNotFound):
		return ErrCloudEntryNotFound
	case errors.Is(err, api.ErrConflict):
		return ErrCloudConflict
	}
	return wrapError(err)
}

func fromAPICard(c api.Card) *Card {
	return &Card{
		ID:             c.ID,
		Identity:       c.Identity,
		PublicKey:      c.PublicKey,
		PreviousCardID: c.PreviousCardID,
		CreatedAt:      c.CreatedAt,
	}
}

func fromAPIEntry(e api.Entry) *CloudEntry {
	return &CloudEntry{
		Name:      e.Name,
		Data:      e.Data,
		Version:   e.Version,
		UpdatedAt: e.UpdatedAt,
	}
}
