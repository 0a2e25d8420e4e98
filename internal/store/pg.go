package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pixelatlas/conquest-engine/internal/domain"
	"github.com/pixelatlas/conquest-engine/internal/store/schema"
)

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// ConfigureConnectionPool configures the connection pool settings for a GORM
// database connection. Zero values fall back to reasonable defaults:
//   - MaxOpenConns: 20
//   - MaxIdleConns: 5
//   - ConnMaxLifetime: 5 minutes
//   - ConnMaxIdleTime: 10 minutes
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// GetTerritory retrieves a territory by id
func (s *pgStore) GetTerritory(ctx context.Context, id string) (*schema.Territory, error) {
	var territory schema.Territory
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&territory).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get territory: %w", err)
	}
	return &territory, nil
}

// ListProtectionExpired retrieves protected, unleased territories whose protection window has elapsed
func (s *pgStore) ListProtectionExpired(ctx context.Context, now time.Time, limit int) ([]schema.Territory, error) {
	var territories []schema.Territory
	err := s.db.WithContext(ctx).
		Where("sovereignty_state = ? AND protection_ends_at <= ? AND lease_ends_at IS NULL",
			domain.SovereigntyProtected, now).
		Order("protection_ends_at ASC").
		Limit(limit).
		Find(&territories).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list protection-expired territories: %w", err)
	}
	return territories, nil
}

// ListAbandonCandidates retrieves permanent, unleased territories inactive since the given instant
func (s *pgStore) ListAbandonCandidates(ctx context.Context, inactiveSince time.Time, limit int) ([]schema.Territory, error) {
	var territories []schema.Territory
	err := s.db.WithContext(ctx).
		Where("sovereignty_state = ? AND last_activity_at <= ? AND lease_ends_at IS NULL",
			domain.SovereigntyPermanent, inactiveSince).
		Order("last_activity_at ASC").
		Limit(limit).
		Find(&territories).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list abandon candidates: %w", err)
	}
	return territories, nil
}

// ListExpiredLeases retrieves non-permanent territories whose lease has run out
func (s *pgStore) ListExpiredLeases(ctx context.Context, now time.Time, limit int) ([]schema.Territory, error) {
	var territories []schema.Territory
	err := s.db.WithContext(ctx).
		Where("lease_ends_at IS NOT NULL AND lease_ends_at <= ? AND sovereignty_state <> ?",
			now, domain.SovereigntyPermanent).
		Order("lease_ends_at ASC").
		Limit(limit).
		Find(&territories).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expired leases: %w", err)
	}
	return territories, nil
}

// MarkTerritoryPermanent transitions protected -> permanent and appends an
// auto_permanent ownership log entry in the same transaction
func (s *pgStore) MarkTerritoryPermanent(ctx context.Context, territoryID string, logTransactionID string, now time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var territory schema.Territory
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", territoryID).
			First(&territory).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrTerritoryNotFound
			}
			return fmt.Errorf("failed to lock territory: %w", err)
		}

		res := tx.Model(&schema.Territory{}).
			Where("id = ? AND sovereignty_state = ?", territoryID, domain.SovereigntyProtected).
			Updates(map[string]interface{}{
				"sovereignty_state": domain.SovereigntyPermanent,
				"updated_at":        now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to mark territory permanent: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.ErrStateConflict
		}

		log := schema.OwnershipLog{
			TransactionID: logTransactionID,
			TerritoryID:   territoryID,
			PreviousOwner: territory.OwnerID,
			NewOwner:      territory.OwnerID,
			Price:         0,
			Reason:        domain.TransferReasonAutoPermanent,
			CreatedAt:     now,
		}
		if err := tx.Create(&log).Error; err != nil {
			return fmt.Errorf("failed to append ownership log: %w", err)
		}

		return nil
	})
}

// MarkTerritoryChallengeable transitions protected -> challengeable
func (s *pgStore) MarkTerritoryChallengeable(ctx context.Context, territoryID string, now time.Time) error {
	res := s.db.WithContext(ctx).Model(&schema.Territory{}).
		Where("id = ? AND sovereignty_state = ?", territoryID, domain.SovereigntyProtected).
		Updates(map[string]interface{}{
			"sovereignty_state": domain.SovereigntyChallengeable,
			"updated_at":        now,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to mark territory challengeable: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrStateConflict
	}
	return nil
}

// SetAbandonedWarning flags a permanent territory as warned for inactivity
func (s *pgStore) SetAbandonedWarning(ctx context.Context, territoryID string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&schema.Territory{}).
		Where("id = ? AND sovereignty_state = ? AND abandoned_warning = ?",
			territoryID, domain.SovereigntyPermanent, false).
		Updates(map[string]interface{}{
			"abandoned_warning":    true,
			"abandoned_warning_at": at,
			"updated_at":           at,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to set abandonment warning: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrStateConflict
	}
	return nil
}

// OpenReauction atomically creates a new auction, moves the territory to
// challengeable, and appends an ownership log entry
func (s *pgStore) OpenReauction(ctx context.Context, input OpenReauctionInput) (*schema.Auction, error) {
	var auction schema.Auction

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var territory schema.Territory
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", input.TerritoryID).
			First(&territory).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrTerritoryNotFound
			}
			return fmt.Errorf("failed to lock territory: %w", err)
		}

		if territory.SovereigntyState != input.ExpectedState {
			return domain.ErrStateConflict
		}

		var activeCount int64
		if err := tx.Model(&schema.Auction{}).
			Where("territory_id = ? AND status = ?", input.TerritoryID, domain.AuctionStatusActive).
			Count(&activeCount).Error; err != nil {
			return fmt.Errorf("failed to check active auctions: %w", err)
		}
		if activeCount > 0 {
			return domain.ErrActiveAuctionExists
		}

		auction = schema.Auction{
			ID:            input.AuctionID,
			TerritoryID:   input.TerritoryID,
			Status:        domain.AuctionStatusActive,
			Reason:        input.AuctionReason,
			StartingPrice: input.StartingPrice,
			CurrentPrice:  input.StartingPrice,
			BidHistory:    []byte("[]"),
			EndsAt:        input.EndsAt,
			CreatedAt:     input.Now,
			UpdatedAt:     input.Now,
		}
		if err := tx.Create(&auction).Error; err != nil {
			return fmt.Errorf("failed to create auction: %w", err)
		}

		updates := map[string]interface{}{
			"sovereignty_state":  domain.SovereigntyChallengeable,
			"current_auction_id": input.AuctionID,
			"updated_at":         input.Now,
		}
		if input.ClearWarning {
			updates["abandoned_warning"] = false
			updates["abandoned_warning_at"] = nil
		}
		if input.ClearOwner {
			updates["owner_id"] = nil
			updates["owner_display_name"] = nil
			updates["owner_since"] = nil
			updates["lease_kind"] = nil
			updates["lease_ends_at"] = nil
		}

		res := tx.Model(&schema.Territory{}).
			Where("id = ? AND sovereignty_state = ?", input.TerritoryID, input.ExpectedState).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to update territory for re-auction: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.ErrStateConflict
		}

		log := schema.OwnershipLog{
			TransactionID: input.LogTransactionID,
			TerritoryID:   input.TerritoryID,
			PreviousOwner: input.PreviousOwner,
			NewOwner:      nil,
			Price:         input.StartingPrice,
			Reason:        input.LogReason,
			CreatedAt:     input.Now,
		}
		if err := tx.Create(&log).Error; err != nil {
			return fmt.Errorf("failed to append ownership log: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &auction, nil
}

// GetAuction retrieves an auction by id
func (s *pgStore) GetAuction(ctx context.Context, id string) (*schema.Auction, error) {
	var auction schema.Auction
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&auction).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	return &auction, nil
}

// GetActiveAuctionByTerritory retrieves the active auction referencing a territory
func (s *pgStore) GetActiveAuctionByTerritory(ctx context.Context, territoryID string) (*schema.Auction, error) {
	var auction schema.Auction
	err := s.db.WithContext(ctx).
		Where("territory_id = ? AND status = ?", territoryID, domain.AuctionStatusActive).
		First(&auction).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active auction: %w", err)
	}
	return &auction, nil
}

// CreateAuction creates an auction for the external bidding flow
func (s *pgStore) CreateAuction(ctx context.Context, input CreateAuctionInput) (*schema.Auction, error) {
	var auction schema.Auction

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var territory schema.Territory
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", input.TerritoryID).
			First(&territory).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrTerritoryNotFound
			}
			return fmt.Errorf("failed to lock territory: %w", err)
		}

		var activeCount int64
		if err := tx.Model(&schema.Auction{}).
			Where("territory_id = ? AND status = ?", input.TerritoryID, domain.AuctionStatusActive).
			Count(&activeCount).Error; err != nil {
			return fmt.Errorf("failed to check active auctions: %w", err)
		}
		if activeCount > 0 {
			return domain.ErrActiveAuctionExists
		}

		auction = schema.Auction{
			ID:            input.AuctionID,
			TerritoryID:   input.TerritoryID,
			Status:        domain.AuctionStatusActive,
			Reason:        input.Reason,
			StartingPrice: input.StartingPrice,
			CurrentPrice:  input.StartingPrice,
			BidHistory:    []byte("[]"),
			EndsAt:        input.EndsAt,
			CreatedAt:     input.Now,
			UpdatedAt:     input.Now,
		}
		if err := tx.Create(&auction).Error; err != nil {
			return fmt.Errorf("failed to create auction: %w", err)
		}

		updates := map[string]interface{}{
			"current_auction_id": input.AuctionID,
			"updated_at":         input.Now,
		}
		// A territory still under protection or lease keeps its state; an
		// available or permanent one becomes challengeable with the auction.
		if territory.SovereigntyState == domain.SovereigntyAvailable ||
			territory.SovereigntyState == domain.SovereigntyPermanent {
			updates["sovereignty_state"] = domain.SovereigntyChallengeable
		}

		if err := tx.Model(&schema.Territory{}).
			Where("id = ?", input.TerritoryID).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to set territory auction reference: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &auction, nil
}

// ListDueAuctions retrieves active auctions whose ends_at has passed
func (s *pgStore) ListDueAuctions(ctx context.Context, now time.Time, limit int) ([]schema.Auction, error) {
	var auctions []schema.Auction
	err := s.db.WithContext(ctx).
		Where("status = ? AND ends_at <= ?", domain.AuctionStatusActive, now).
		Order("ends_at ASC").
		Limit(limit).
		Find(&auctions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list due auctions: %w", err)
	}
	return auctions, nil
}

// CancelAuctionNoBids marks an active auction cancelled for lack of bids and
// clears the territory's auction reference in the same transaction
func (s *pgStore) CancelAuctionNoBids(ctx context.Context, auctionID string, territoryID string, now time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&schema.Auction{}).
			Where("id = ? AND status = ? AND highest_bidder IS NULL",
				auctionID, domain.AuctionStatusActive).
			Updates(map[string]interface{}{
				"status":            domain.AuctionStatusCancelled,
				"settlement_reason": domain.AuctionReasonNoBids,
				"updated_at":        now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to cancel auction: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.ErrStateConflict
		}

		// Clear the dangling reference only if it still points at this auction
		if err := tx.Model(&schema.Territory{}).
			Where("id = ? AND current_auction_id = ?", territoryID, auctionID).
			Updates(map[string]interface{}{
				"current_auction_id": nil,
				"updated_at":         now,
			}).Error; err != nil {
			return fmt.Errorf("failed to clear territory auction reference: %w", err)
		}

		return nil
	})
}

// MarkAuctionSettlementFailed ends an active auction whose ownership transfer
// failed, flagging it for manual reconciliation
func (s *pgStore) MarkAuctionSettlementFailed(ctx context.Context, auctionID string, winnerID string, finalBid int64, transferErr string, now time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var auction schema.Auction
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", auctionID).
			First(&auction).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrAuctionNotFound
			}
			return fmt.Errorf("failed to lock auction: %w", err)
		}

		res := tx.Model(&schema.Auction{}).
			Where("id = ? AND status = ?", auctionID, domain.AuctionStatusActive).
			Updates(map[string]interface{}{
				"status":                    domain.AuctionStatusEnded,
				"settlement_reason":         domain.AuctionReasonAuctionWon,
				"winner_id":                 winnerID,
				"final_bid":                 finalBid,
				"ownership_transfer_failed": true,
				"transfer_error":            transferErr,
				"updated_at":                now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to mark settlement failure: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.ErrStateConflict
		}

		// The auction is no longer active, so the territory must not keep
		// referencing it
		if err := tx.Model(&schema.Territory{}).
			Where("id = ? AND current_auction_id = ?", auction.TerritoryID, auctionID).
			Updates(map[string]interface{}{
				"current_auction_id": nil,
				"updated_at":         now,
			}).Error; err != nil {
			return fmt.Errorf("failed to clear territory auction reference: %w", err)
		}

		return nil
	})
}

// GetWallet retrieves a wallet by user id
func (s *pgStore) GetWallet(ctx context.Context, userID string) (*schema.Wallet, error) {
	var wallet schema.Wallet
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &wallet, nil
}

// GetPayment retrieves a payment by id
func (s *pgStore) GetPayment(ctx context.Context, id string) (*schema.Payment, error) {
	var payment schema.Payment
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &payment, nil
}

// GetOwnershipLogByRequestID retrieves the log entry for an idempotency key
func (s *pgStore) GetOwnershipLogByRequestID(ctx context.Context, requestID string) (*schema.OwnershipLog, error) {
	var log schema.OwnershipLog
	err := s.db.WithContext(ctx).Where("request_id = ?", requestID).First(&log).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get ownership log by request id: %w", err)
	}
	return &log, nil
}

// ApplyOwnershipTransfer applies a full ownership transfer as one transaction
func (s *pgStore) ApplyOwnershipTransfer(ctx context.Context, input ApplyTransferInput) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. Debit the wallet (direct purchases only). The balance predicate
		// is part of the UPDATE so the debit can never drive the balance
		// negative, regardless of what the earlier read observed.
		if input.DebitWallet {
			res := tx.Model(&schema.Wallet{}).
				Where("user_id = ? AND balance >= ?", input.UserID, input.Price).
				Updates(map[string]interface{}{
					"balance":     gorm.Expr("balance - ?", input.Price),
					"total_spent": gorm.Expr("total_spent + ?", input.Price),
					"updated_at":  input.Now,
				})
			if res.Error != nil {
				return fmt.Errorf("failed to debit wallet: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return domain.ErrInsufficientFunds
			}
		}

		// 2. Settle the auction (auction wins only)
		if input.SettleAuctionID != nil {
			res := tx.Model(&schema.Auction{}).
				Where("id = ? AND status = ?", *input.SettleAuctionID, domain.AuctionStatusActive).
				Updates(map[string]interface{}{
					"status":            domain.AuctionStatusEnded,
					"settlement_reason": domain.AuctionReasonAuctionWon,
					"winner_id":         input.UserID,
					"final_bid":         input.Price,
					"transaction_id":    input.TransactionID,
					"updated_at":        input.Now,
				})
			if res.Error != nil {
				return fmt.Errorf("failed to settle auction: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return domain.ErrAuctionNotActive
			}
		}

		// 3. Set the territory's owner fields and reset protection. The
		// ownership predicate is re-asserted in the same write.
		res := tx.Model(&schema.Territory{}).
			Where("id = ? AND (owner_id IS NULL OR owner_id = ?)", input.TerritoryID, input.UserID).
			Updates(map[string]interface{}{
				"owner_id":           input.UserID,
				"owner_display_name": input.UserName,
				"owner_since":        input.Now,
				"sovereignty_state":  domain.SovereigntyProtected,
				"protection_ends_at": input.ProtectionEndsAt,
				"current_auction_id": nil,
				"acquired_price":     input.Price,
				"last_activity_at":   input.Now,
				"updated_at":         input.Now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update territory owner: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.ErrOwnershipConflict
		}

		// 4. Append the immutable ownership log entry. The unique index on
		// request_id aborts the transaction if a concurrent duplicate slipped
		// past the dedup read.
		newOwner := input.UserID
		log := schema.OwnershipLog{
			TransactionID: input.TransactionID,
			TerritoryID:   input.TerritoryID,
			PreviousOwner: input.PreviousOwner,
			NewOwner:      &newOwner,
			Price:         input.Price,
			Reason:        input.Reason,
			RequestID:     input.RequestID,
			CreatedAt:     input.Now,
		}
		if err := tx.Create(&log).Error; err != nil {
			return fmt.Errorf("failed to append ownership log: %w", err)
		}

		return nil
	})
}

// AggregateOwnerHoldings computes per-owner territory aggregates wholesale
func (s *pgStore) AggregateOwnerHoldings(ctx context.Context) ([]OwnerHoldings, error) {
	type row struct {
		OwnerID          string
		OwnerDisplayName string
		TerritoryCount   int
		TotalValue       int64
		PixelCount       int64
		Countries        string
		Continents       string
	}

	var rows []row
	err := s.db.WithContext(ctx).Raw(`
		SELECT
			owner_id,
			MAX(COALESCE(owner_display_name, '')) AS owner_display_name,
			COUNT(*) AS territory_count,
			SUM(acquired_price) AS total_value,
			SUM(pixel_count) AS pixel_count,
			STRING_AGG(DISTINCT country_code, ',') AS countries,
			STRING_AGG(DISTINCT continent, ',') AS continents
		FROM territories
		WHERE owner_id IS NOT NULL
		GROUP BY owner_id
	`).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate owner holdings: %w", err)
	}

	holdings := make([]OwnerHoldings, len(rows))
	for i, r := range rows {
		holdings[i] = OwnerHoldings{
			OwnerID:          r.OwnerID,
			OwnerDisplayName: r.OwnerDisplayName,
			TerritoryCount:   r.TerritoryCount,
			TotalValue:       r.TotalValue,
			PixelCount:       r.PixelCount,
			Countries:        splitSet(r.Countries),
			Continents:       splitSet(r.Continents),
		}
	}

	return holdings, nil
}

func splitSet(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// GetRanking retrieves the stored ranking for a user
func (s *pgStore) GetRanking(ctx context.Context, userID string) (*schema.Ranking, error) {
	var ranking schema.Ranking
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&ranking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get ranking: %w", err)
	}
	return &ranking, nil
}

// UpsertRanking commits a recomputed ranking
func (s *pgStore) UpsertRanking(ctx context.Context, ranking schema.Ranking) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(&ranking).Error
	if err != nil {
		return fmt.Errorf("failed to upsert ranking: %w", err)
	}
	return nil
}

// CreateRankingAnomaly records a quarantined ranking update
func (s *pgStore) CreateRankingAnomaly(ctx context.Context, anomaly schema.RankingAnomaly) error {
	if err := s.db.WithContext(ctx).Create(&anomaly).Error; err != nil {
		return fmt.Errorf("failed to create ranking anomaly: %w", err)
	}
	return nil
}

// ListPendingReports retrieves unresolved reports for a territory
func (s *pgStore) ListPendingReports(ctx context.Context, territoryID string) ([]schema.Report, error) {
	var reports []schema.Report
	err := s.db.WithContext(ctx).
		Where("territory_id = ? AND status = ?", territoryID, domain.ReportStatusPending).
		Order("created_at ASC").
		Find(&reports).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending reports: %w", err)
	}
	return reports, nil
}

// GetReporterStats retrieves a reporter's resolved-report history counts
func (s *pgStore) GetReporterStats(ctx context.Context, reporterID string) (ReporterStats, error) {
	type row struct {
		Status domain.ReportStatus
		Count  int
	}

	var rows []row
	err := s.db.WithContext(ctx).Model(&schema.Report{}).
		Select("status, COUNT(*) AS count").
		Where("reporter_id = ? AND status <> ?", reporterID, domain.ReportStatusPending).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return ReporterStats{}, fmt.Errorf("failed to get reporter stats: %w", err)
	}

	var stats ReporterStats
	for _, r := range rows {
		switch r.Status {
		case domain.ReportStatusConfirmed:
			stats.Confirmed = r.Count
		case domain.ReportStatusRejected:
			stats.Rejected = r.Count
		}
	}

	return stats, nil
}
