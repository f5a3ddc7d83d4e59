package inventory

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// CreateLocation registers a new active location
// ロケーションを作成
func (m *Manager) CreateLocation(ctx context.Context, name string, locationType LocationType, address string) (*Location, error) {
	name = strings.TrimSpace(name)
	if err := ValidateLocationName(name); err != nil {
		return nil, err
	}
	if err := ValidateLocationType(locationType); err != nil {
		return nil, err
	}

	now := m.now()
	location := &Location{
		Name:      name,
		Type:      locationType,
		Address:   strings.TrimSpace(address),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.storage.CreateLocation(ctx, location); err != nil {
		return nil, err
	}

	m.logger.Info("ロケーション作成完了",
		zap.Int64("location_id", location.ID),
		zap.String("name", location.Name),
		zap.String("type", string(location.Type)),
	)
	return location, nil
}

// GetLocation gets a location by id
// ロケーションを取得
func (m *Manager) GetLocation(ctx context.Context, locationID int64) (*Location, error) {
	if err := ValidateID("location_id", locationID); err != nil {
		return nil, err
	}
	return m.storage.GetLocation(ctx, locationID)
}

// ListLocations lists locations ordered by id
// ロケーション一覧を取得
func (m *Manager) ListLocations(ctx context.Context, activeOnly bool) ([]Location, error) {
	locations, err := m.storage.ListLocations(ctx, activeOnly)
	if err != nil {
		return nil, NewStorageError("list_locations", "ロケーション一覧取得に失敗しました", err)
	}
	return locations, nil
}

// UpdateLocation applies the non-nil fields of patch
// ロケーションを更新
func (m *Manager) UpdateLocation(ctx context.Context, locationID int64, patch LocationPatch) (*Location, error) {
	location, err := m.GetLocation(ctx, locationID)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if err := ValidateLocationName(name); err != nil {
			return nil, err
		}
		location.Name = name
	}
	if patch.Type != nil {
		if err := ValidateLocationType(*patch.Type); err != nil {
			return nil, err
		}
		location.Type = *patch.Type
	}
	if patch.Address != nil {
		location.Address = strings.TrimSpace(*patch.Address)
	}
	location.UpdatedAt = m.now()

	if err := m.storage.UpdateLocation(ctx, location); err != nil {
		return nil, err
	}

	m.logger.Info("ロケーション更新完了", zap.Int64("location_id", locationID))
	return location, nil
}

// DeactivateLocation soft-deletes a location. It fails with ErrLocationInUse while
// an open transfer references the location.
// ロケーションを無効化
func (m *Manager) DeactivateLocation(ctx context.Context, locationID int64) (*Location, error) {
	location, err := m.GetLocation(ctx, locationID)
	if err != nil {
		return nil, err
	}
	if !location.IsActive {
		return location, nil
	}

	open, err := m.storage.CountOpenTransfers(ctx, locationID)
	if err != nil {
		return nil, NewStorageError("count_open_transfers", "移動依頼の確認に失敗しました", err)
	}
	if open > 0 {
		m.logger.Warn("未完了の移動依頼があるためロケーションを無効化できません",
			zap.Int64("location_id", locationID),
			zap.Int("open_transfers", open),
		)
		return nil, ErrLocationInUse
	}

	return m.setLocationActive(ctx, location, false)
}

// ActivateLocation re-enables a deactivated location
// ロケーションを有効化
func (m *Manager) ActivateLocation(ctx context.Context, locationID int64) (*Location, error) {
	location, err := m.GetLocation(ctx, locationID)
	if err != nil {
		return nil, err
	}
	if location.IsActive {
		return location, nil
	}
	return m.setLocationActive(ctx, location, true)
}

func (m *Manager) setLocationActive(ctx context.Context, location *Location, active bool) (*Location, error) {
	location.IsActive = active
	location.UpdatedAt = m.now()
	if err := m.storage.UpdateLocation(ctx, location); err != nil {
		return nil, err
	}

	m.logger.Info("ロケーション状態変更完了",
		zap.Int64("location_id", location.ID),
		zap.Bool("is_active", active),
	)
	return location, nil
}

// activeLocation loads a location and requires it to be active
func (m *Manager) activeLocation(ctx context.Context, locationID int64) (*Location, error) {
	location, err := m.storage.GetLocation(ctx, locationID)
	if err != nil {
		return nil, err
	}
	if !location.IsActive {
		return nil, ErrLocationInactive
	}
	return location, nil
}
