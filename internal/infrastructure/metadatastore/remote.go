// Package metadatastore implements the metadata tree port: a remote HTTP
// store plus an offline write-through copy kept in the local secure
// storage.
package metadatastore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker"

	"github.com/veridian-wallet/walletcore/internal/core/domain"
	"github.com/veridian-wallet/walletcore/pkg/circuitbreaker"
	"github.com/veridian-wallet/walletcore/pkg/util"
)

type entryResponse struct {
	Payload string `json:"payload"`
}

// RemoteStore talks to the metadata service. It implements
// ports.MetadataStore.
type RemoteStore struct {
	apiURL string
	cb     *gobreaker.CircuitBreaker
}

// NewRemoteStore returns a RemoteStore bound to the given endpoint.
func NewRemoteStore(apiURL string) (*RemoteStore, error) {
	if len(apiURL) <= 0 {
		return nil, fmt.Errorf("missing metadata api url")
	}
	return &RemoteStore{
		apiURL: apiURL,
		cb:     circuitbreaker.NewCircuitBreaker(),
	}, nil
}

func (s *RemoteStore) Fetch(
	ctx context.Context, kind domain.EntryKind,
) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/metadata/%d", s.apiURL, kind)

	resp, err := s.cb.Execute(func() (interface{}, error) {
		status, resp, err := util.NewHTTPRequest(ctx, "GET", endpoint, "", nil)
		if err != nil {
			return nil, err
		}
		if status == http.StatusNotFound {
			return nil, domain.ErrEntryNotFound
		}
		if status != http.StatusOK {
			return nil, util.NewHTTPError(status, resp)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	var entry entryResponse
	if err := json.Unmarshal([]byte(resp.(string)), &entry); err != nil {
		return nil, fmt.Errorf("error on retrieving metadata entry: %w", err)
	}
	return base64.StdEncoding.DecodeString(entry.Payload)
}

func (s *RemoteStore) Save(
	ctx context.Context, kind domain.EntryKind, payload []byte,
) error {
	endpoint := fmt.Sprintf("%s/metadata/%d", s.apiURL, kind)
	body, _ := json.Marshal(entryResponse{
		Payload: base64.StdEncoding.EncodeToString(payload),
	})
	headers := map[string]string{"Content-Type": "application/json"}

	_, err := s.cb.Execute(func() (interface{}, error) {
		status, resp, err := util.NewHTTPRequest(
			ctx, "PUT", endpoint, string(body), headers,
		)
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK && status != http.StatusNoContent {
			return nil, util.NewHTTPError(status, resp)
		}
		return nil, nil
	})
	return err
}
