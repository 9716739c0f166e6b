package server

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// membershipStore records which organizations a principal belongs to. The
// scope resolver reads it fresh on every request; Grant is called at login
// for the home organization and by operators for cross-org grants.
type membershipStore interface {
	OrgIDsForPrincipal(ctx context.Context, principalID string) ([]string, error)
	Grant(ctx context.Context, principalID string, orgID string) error
}

type memoryMembershipStore struct {
	mu     sync.Mutex
	byPrin map[string][]string
}

func newMemoryMembershipStore() *memoryMembershipStore {
	return &memoryMembershipStore{byPrin: map[string][]string{}}
}

func (s *memoryMembershipStore) Grant(_ context.Context, principalID string, orgID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.byPrin[principalID] {
		if id == orgID {
			return nil
		}
	}
	s.byPrin[principalID] = append(s.byPrin[principalID], orgID)
	return nil
}

func (s *memoryMembershipStore) OrgIDsForPrincipal(_ context.Context, principalID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.byPrin[principalID]...), nil
}

type pgMembershipStore struct {
	q querier
}

func newMembershipStore(pool *pgxpool.Pool) membershipStore {
	if pool == nil {
		return newMemoryMembershipStore()
	}
	return &pgMembershipStore{q: pool}
}

func (s *pgMembershipStore) Grant(ctx context.Context, principalID string, orgID string) error {
	_, err := s.q.Exec(ctx, `
INSERT INTO iam.org_memberships (principal_id, org_id)
VALUES ($1, $2)
ON CONFLICT (principal_id, org_id) DO NOTHING;
`, principalID, orgID)
	return err
}

// OrgIDsForPrincipal returns memberships oldest grant first, so the home
// organization granted at first login stays the default.
func (s *pgMembershipStore) OrgIDsForPrincipal(ctx context.Context, principalID string) ([]string, error) {
	rows, err := s.q.Query(ctx, `
SELECT org_id::text
FROM iam.org_memberships
WHERE principal_id = $1
ORDER BY granted_at ASC, org_id ASC;
`, principalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]string, 0, 2)
	for rows.Next() {
		var orgID string
		if err := rows.Scan(&orgID); err != nil {
			return nil, err
		}
		out = append(out, orgID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
