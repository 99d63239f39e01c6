package sharing

import (
	"context"

	"github.com/vyrodovalexey/toolgate/internal/config"
)

// staticStore serves sharing records seeded from configuration. It backs
// development setups and tests where no redis is available.
type staticStore struct {
	records map[string][]Record
}

var _ Store = (*staticStore)(nil)

func newStaticStore(seed []config.StaticRecord) *staticStore {
	records := make(map[string][]Record, len(seed))
	for _, r := range seed {
		records[r.ResourceID] = append(records[r.ResourceID], Record{
			ResourceID:       r.ResourceID,
			OwnerTenantID:    r.OwnerTenantID,
			ConsumerTenantID: r.ConsumerTenantID,
			Visibility:       r.Visibility,
			Status:           r.Status,
		})
	}
	return &staticStore{records: records}
}

// Fetch implements Store.
func (s *staticStore) Fetch(ctx context.Context, resourceID string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records, ok := s.records[resourceID]
	if !ok {
		return nil, ErrRecordNotFound
	}

	out := make([]Record, len(records))
	copy(out, records)
	return out, nil
}

// Ping implements Store.
func (s *staticStore) Ping(context.Context) error {
	return nil
}

// Close implements Store.
func (s *staticStore) Close() error {
	return nil
}
