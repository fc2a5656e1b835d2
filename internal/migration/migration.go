// Package migration creates the schema on startup so the service is usable
// out of the box for local and self-hosted environments.
package migration

import (
	"errors"
	"fmt"

	contentdomain "github.com/looksell/looksell/internal/content/domain"
	creatordomain "github.com/looksell/looksell/internal/creator/domain"
	ledgerdomain "github.com/looksell/looksell/internal/ledger/domain"
	payoutdomain "github.com/looksell/looksell/internal/payout/domain"
	purchasedomain "github.com/looksell/looksell/internal/purchase/domain"
	subscriptiondomain "github.com/looksell/looksell/internal/subscription/domain"
	"gorm.io/gorm"
)

// Partial unique indexes backing the settlement race guards. The service
// checks these predicates before writing, but only the database can close
// the race between two concurrent attempts.
var raceGuardIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_purchases_buyer_content_completed
	 ON purchases (buyer_id, content_id) WHERE status = 'completed'`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_subscriptions_subscriber_creator_active
	 ON subscriptions (subscriber_id, creator_id) WHERE status = 'active'`,
}

func Run(db *gorm.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	err := db.AutoMigrate(
		&creatordomain.CreatorProfile{},
		&contentdomain.Content{},
		&purchasedomain.Purchase{},
		&subscriptiondomain.Subscription{},
		&payoutdomain.Payout{},
		&ledgerdomain.Transaction{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	for _, stmt := range raceGuardIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}
