package market

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/genomechain/genome-ledger/internal/chain"
)

// AccessLevel is what a grant lets its holder do with the data.
type AccessLevel uint8

const (
	AccessView AccessLevel = iota + 1
	AccessDownload
	AccessCommercial
)

func (l AccessLevel) String() string {
	switch l {
	case AccessView:
		return "view"
	case AccessDownload:
		return "download"
	case AccessCommercial:
		return "commercial"
	default:
		return fmt.Sprintf("level(%d)", uint8(l))
	}
}

// Valid reports whether l is a known level.
func (l AccessLevel) Valid() bool {
	return l >= AccessView && l <= AccessCommercial
}

// ParseAccessLevel accepts a level name.
func ParseAccessLevel(s string) (AccessLevel, error) {
	for l := AccessView; l <= AccessCommercial; l++ {
		if l.String() == s {
			return l, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidAccessLevel, s)
}

// Grant is a time-bounded right of a grantee to use an asset.
type Grant struct {
	Grantee   chain.Address
	AssetID   uint64
	ExpiresAt time.Time
	Level     AccessLevel
	Active    bool
}

// ValidAt reports whether the grant is usable at now. Expiry is inclusive.
func (g Grant) ValidAt(now time.Time) bool {
	return g.Active && !now.After(g.ExpiresAt)
}

type grantKey struct {
	grantee chain.Address
	assetID uint64
}

// GrantStore keeps one grant per (grantee, asset). A later purchase
// replaces the earlier grant.
type GrantStore struct {
	grants map[grantKey]*Grant
}

// NewGrantStore returns an empty store.
func NewGrantStore() *GrantStore {
	return &GrantStore{grants: make(map[grantKey]*Grant)}
}

// Issue records an active grant.
func (s *GrantStore) Issue(tx *chain.Tx, grantee chain.Address, assetID uint64, expiresAt time.Time, level AccessLevel) Grant {
	g := &Grant{
		Grantee:   grantee,
		AssetID:   assetID,
		ExpiresAt: expiresAt,
		Level:     level,
		Active:    true,
	}
	chain.Put(tx, s.grants, grantKey{grantee, assetID}, g)
	return *g
}

// Revoke deactivates a grant regardless of its expiry.
func (s *GrantStore) Revoke(tx *chain.Tx, grantee chain.Address, assetID uint64) error {
	g, ok := s.grants[grantKey{grantee, assetID}]
	if !ok {
		return ErrNoGrant
	}
	if !g.Active {
		return ErrGrantRevoked
	}
	chain.Assign(tx, &g.Active, false)
	return nil
}

// Get returns the stored grant, if any.
func (s *GrantStore) Get(grantee chain.Address, assetID uint64) (Grant, bool) {
	g, ok := s.grants[grantKey{grantee, assetID}]
	if !ok {
		return Grant{}, false
	}
	return *g, true
}

// Check reports whether grantee may use assetID at now, with the grant's
// level and expiry.
func (s *GrantStore) Check(now time.Time, grantee chain.Address, assetID uint64) (bool, AccessLevel, time.Time) {
	g, ok := s.grants[grantKey{grantee, assetID}]
	if !ok {
		return false, 0, time.Time{}
	}
	return g.ValidAt(now), g.Level, g.ExpiresAt
}

// Of returns every grant held by grantee.
func (s *GrantStore) Of(grantee chain.Address) []Grant {
	var out []Grant
	for k, g := range s.grants {
		if k.grantee == grantee {
			out = append(out, *g)
		}
	}
	slices.SortFunc(out, func(a, b Grant) int { return cmp.Compare(a.AssetID, b.AssetID) })
	return out
}
