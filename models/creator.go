package models

import "time"

// Creator is the author/owner of a post. Creators form a tree at most one
// level deep: a secondary creator (is_primary=false) points at a primary
// creator (parent_creator_id) on the same platform; no recursion is needed
// or allowed.
type Creator struct {
	ID                int64             `json:"id" db:"id"`
	Name              string            `json:"name" db:"name"`
	PlatformID        int64             `json:"platform_id" db:"platform_id"`
	ParentCreatorID   *int64            `json:"parent_creator_id" db:"parent_creator_id"`
	IsPrimary         bool              `json:"is_primary" db:"is_primary"`
	AliasType         AliasType         `json:"alias_type" db:"alias_type"`
	PlatformCreatorID *string           `json:"platform_creator_id" db:"platform_creator_id"`
	ProfileURL        *string           `json:"profile_url" db:"profile_url"`
	CreatorNameSource CreatorNameSource `json:"creator_name_source" db:"creator_name_source"`
	CreatedAt         time.Time         `json:"created_at" db:"created_at"`
}

// Validate enforces the creator-hierarchy invariants: a creator with a parent
// must be non-primary, and a creator with no parent must be primary with
// alias_type=main. The alias_type of a creator with a parent is not checked.
func (c *Creator) Validate() error {
	if c.ParentCreatorID != nil && c.IsPrimary {
		return InvariantError("creator has a parent but is marked primary")
	}
	if c.ParentCreatorID == nil && c.AliasType != AliasMain {
		return InvariantError("primary creator must have alias_type=main")
	}
	if c.ParentCreatorID == nil && !c.IsPrimary {
		return InvariantError("creator with no parent must be primary")
	}
	return nil
}

// CreatorURL is a supplemental per-platform URL for a creator, beyond the
// single ProfileURL column; populated opportunistically, never required for
// the Creator invariants above.
type CreatorURL struct {
	CreatorID int64  `json:"creator_id" db:"creator_id"`
	Platform  string `json:"platform" db:"platform"`
	URL       string `json:"url" db:"url"`
}
