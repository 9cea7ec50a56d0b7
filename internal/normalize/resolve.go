package normalize

import (
	"context"
	"fmt"

	"github.com/zidane0ma/tagflow/internal/extractors"
	"github.com/zidane0ma/tagflow/models"
)

// resolveCreator resolves or creates the creator for one raw item. It
// searches by (platform, platform_creator_id) when available, falls back to
// (platform, name, profile_url), and otherwise creates a primary creator —
// or a secondary one when a same-name creator with a different identity
// already exists on the platform.
func (e *Engine) resolveCreator(ctx context.Context, platformID int64, item extractors.RawItem) (*int64, error) {
	hint := item.Creator
	if hint.Name == "" {
		return nil, nil
	}

	if hint.PlatformCreatorID != "" {
		if existing, err := e.store.FindCreatorByPlatformID(ctx, platformID, hint.PlatformCreatorID); err != nil {
			return nil, err
		} else if existing != nil {
			return &existing.ID, nil
		}
	} else if hint.URL != "" {
		if existing, err := e.store.FindCreatorByNameAndURL(ctx, platformID, hint.Name, hint.URL); err != nil {
			return nil, err
		} else if existing != nil {
			return &existing.ID, nil
		}
	}

	siblings, err := e.store.FindCreatorsByName(ctx, platformID, hint.Name)
	if err != nil {
		return nil, err
	}

	if len(siblings) == 0 {
		id, err := e.store.CreateCreator(ctx, models.Creator{
			Name:              hint.Name,
			PlatformID:        platformID,
			IsPrimary:         true,
			AliasType:         models.AliasMain,
			PlatformCreatorID: nonEmpty(hint.PlatformCreatorID),
			ProfileURL:        nonEmpty(hint.URL),
			CreatorNameSource: creatorNameSource(item),
		})
		if err != nil {
			return nil, fmt.Errorf("create primary creator %q: %w", hint.Name, err)
		}
		return &id, nil
	}

	// A creator with this name already exists on the platform but neither
	// (platform, platform_creator_id) nor (platform, name, url) matched it
	// exactly: this is a variation of the oldest (primary) match.
	primary := siblings[0]
	parentID := primary.ID
	if !primary.IsPrimary && primary.ParentCreatorID != nil {
		parentID = *primary.ParentCreatorID
	}
	id, err := e.store.CreateCreator(ctx, models.Creator{
		Name:              hint.Name,
		PlatformID:        platformID,
		ParentCreatorID:   &parentID,
		IsPrimary:         false,
		AliasType:         models.AliasVariation,
		PlatformCreatorID: nonEmpty(hint.PlatformCreatorID),
		ProfileURL:        nonEmpty(hint.URL),
		CreatorNameSource: creatorNameSource(item),
	})
	if err != nil {
		return nil, fmt.Errorf("create secondary creator %q: %w", hint.Name, err)
	}
	if hint.URL != "" {
		_ = e.store.AddCreatorURL(ctx, id, item.Platform, hint.URL)
	}
	return &id, nil
}

func creatorNameSource(item extractors.RawItem) models.CreatorNameSource {
	switch item.ExternalDBSource {
	case string(models.SourceVideoDownloader), string(models.SourceTokkit), string(models.SourceStogram):
		return models.CreatorSourceDB
	default:
		return models.CreatorSourceFolder
	}
}

// resolveSubscription resolves or creates the subscription for one raw
// item. The hint carries enough information (name/type/is_account/url) to
// look up or create the subscription. Playlists have no creator; accounts
// (including liked/saved lists) point at the owning creator.
func (e *Engine) resolveSubscription(ctx context.Context, platformID int64, creatorID *int64, item extractors.RawItem) (*int64, error) {
	hint := item.Subscription
	if hint.Name == "" || hint.Type == "" {
		return nil, nil
	}
	subType := models.SubscriptionType(hint.Type)

	existing, err := e.store.FindSubscription(ctx, platformID, hint.Name, subType)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &existing.ID, nil
	}

	sub := models.Subscription{
		Name:             hint.Name,
		PlatformID:       platformID,
		SubscriptionType: subType,
		IsAccount:        hint.IsAccount,
		SubscriptionURL:  nonEmpty(hint.URL),
		ExternalUUID:     nonEmpty(hint.ExternalUUID),
	}
	if subType == models.SubscriptionPlaylist {
		sub.CreatorID = nil
	} else if hint.IsAccount {
		// A liked/saved list collects other creators' posts; the
		// subscription belongs to the list owner, not the item's author.
		if hint.OwnerName != "" && hint.OwnerName != item.Creator.Name {
			ownerID, err := e.resolveOwnerCreator(ctx, platformID, hint.OwnerName)
			if err != nil {
				return nil, err
			}
			sub.CreatorID = ownerID
		} else {
			sub.CreatorID = creatorID
		}
	}

	id, err := e.store.CreateSubscription(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("create subscription %q: %w", hint.Name, err)
	}
	return &id, nil
}

// resolveOwnerCreator finds or creates the account-holder creator a
// subscription belongs to, by (platform, name). An existing match resolves to
// its primary; otherwise a new primary creator is created.
func (e *Engine) resolveOwnerCreator(ctx context.Context, platformID int64, name string) (*int64, error) {
	existing, err := e.store.FindCreatorsByName(ctx, platformID, name)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		owner := existing[0]
		if !owner.IsPrimary && owner.ParentCreatorID != nil {
			return owner.ParentCreatorID, nil
		}
		return &owner.ID, nil
	}

	id, err := e.store.CreateCreator(ctx, models.Creator{
		Name:              name,
		PlatformID:        platformID,
		IsPrimary:         true,
		AliasType:         models.AliasMain,
		CreatorNameSource: models.CreatorSourceDB,
	})
	if err != nil {
		return nil, fmt.Errorf("create subscription owner %q: %w", name, err)
	}
	return &id, nil
}
