package store

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bioreactor-monitor/internal/apperr"
	"bioreactor-monitor/internal/model"
)

// PutPushSubscription creates or replaces a subscription and its reactor mapping.
func (s *gormStore) PutPushSubscription(ctx context.Context, sub *model.PushSubscription, reactorIDs []int64) error {
	db, cancel := s.conn(ctx)
	defer cancel()
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "user_id"}),
		}).Create(sub).Error; err != nil {
			return err
		}

		var reactors []*model.Reactor
		if len(reactorIDs) > 0 {
			if err := tx.Find(&reactors, reactorIDs).Error; err != nil {
				return err
			}
		}
		return tx.Model(sub).Association("Reactors").Replace(reactors)
	})
	return wrap(db, "put push subscription", err)
}

// GetPushSubscription loads a subscription with its reactors.
func (s *gormStore) GetPushSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	db, cancel := s.conn(ctx)
	defer cancel()
	var sub model.PushSubscription
	if err := db.Preload("Reactors").First(&sub, "endpoint = ?", endpoint).Error; err != nil {
		return nil, wrap(db, "get push subscription", err)
	}
	return &sub, nil
}

func (s *gormStore) DeletePushSubscription(ctx context.Context, endpoint string) error {
	db, cancel := s.conn(ctx)
	defer cancel()
	sub := model.PushSubscription{Endpoint: endpoint}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&sub).Association("Reactors").Clear(); err != nil {
			return err
		}
		res := tx.Delete(&sub)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("push subscription not found")
		}
		return nil
	})
	return wrap(db, "delete push subscription", err)
}

// PushSubscriptionsForReactor returns the subscriptions mapped to reactorID.
func (s *gormStore) PushSubscriptionsForReactor(ctx context.Context, reactorID int64) ([]model.PushSubscription, error) {
	db, cancel := s.conn(ctx)
	defer cancel()
	var subs []model.PushSubscription
	err := db.
		Joins("JOIN subscription_reactor_mapping srm ON srm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("srm.reactor_id = ?", reactorID).
		Find(&subs).Error
	return subs, wrap(db, "push subscriptions for reactor", err)
}
